//go:build windows

package supervisor

import "errors"

func execSlapd(binary string, argv, env []string) error {
	return errors.New("supervisor: foreground slapd exec is not supported on windows")
}
