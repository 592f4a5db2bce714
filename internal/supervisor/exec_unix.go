//go:build !windows

package supervisor

import "syscall"

// execSlapd replaces the current process image with slapd, so the pid in
// the freshly written state record stays accurate for the server's whole
// lifetime.
func execSlapd(binary string, argv, env []string) error {
	return syscall.Exec(binary, argv, env)
}
