// Package certs provisions the self-signed server certificate for an
// instance, shelling out to the toolchain's own openssl build so the key
// material matches the libraries slapd is linked against.
package certs

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/slaplab/slaplab/internal/instance"
	"github.com/slaplab/slaplab/internal/sanitize"
)

const (
	keyBits      = "rsa:4096"
	validityDays = "3650"
)

// Provisioner generates or reuses the server certificate pair for one
// instance. Host discovery and the openssl binary are fields so tests can
// substitute a stub.
type Provisioner struct {
	CertFile string
	KeyFile  string

	// Binary is the preferred openssl executable. When it does not exist
	// the provisioner falls back to whatever openssl is on PATH.
	Binary string
	Env    []string

	Hostname func() (string, error)
	Addrs    func() ([]net.Addr, error)
}

// New builds a provisioner for the instance, wired to its variant openssl
// and library path.
func New(ic *instance.Context) *Provisioner {
	return &Provisioner{
		CertFile: ic.Paths.CertFile,
		KeyFile:  ic.Paths.KeyFile,
		Binary:   ic.OpenSSLBinary(),
		Env:      ic.ChildEnv(),
	}
}

// Material locates a provisioned certificate pair.
type Material struct {
	CertPath string
	KeyPath  string
}

// Ensure makes the certificate pair available and returns its location. An
// existing pair is reused unless force is set; any generation failure is
// returned to the caller, which must treat it as fatal since slapd cannot
// serve ldaps without it.
func (p *Provisioner) Ensure(ctx context.Context, force bool) (Material, error) {
	m := Material{CertPath: p.CertFile, KeyPath: p.KeyFile}
	if !force && fileExists(p.CertFile) && fileExists(p.KeyFile) {
		return m, nil
	}
	if err := p.generate(ctx); err != nil {
		return Material{}, err
	}
	return m, nil
}

func (p *Provisioner) generate(ctx context.Context) error {
	sans, commonName := p.subjectAltNames()

	if err := os.MkdirAll(filepath.Dir(p.CertFile), 0o755); err != nil {
		return fmt.Errorf("certs: create ssl dir: %w", err)
	}

	bin := p.Binary
	if !fileExists(bin) {
		bin = "openssl"
	}

	args := []string{
		"req", "-x509",
		"-newkey", keyBits,
		"-sha256",
		"-days", validityDays,
		"-nodes",
		"-keyout", p.KeyFile,
		"-out", p.CertFile,
		"-subj", "/CN=" + commonName,
		"-addext", "subjectAltName=" + strings.Join(sans, ","),
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = p.Env
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("certs: %s req: %w: %s", bin, err, sanitize.Diagnostic(out))
	}

	if err := os.Chmod(p.CertFile, 0o644); err != nil {
		return fmt.Errorf("certs: chmod certificate: %w", err)
	}
	if err := os.Chmod(p.KeyFile, 0o600); err != nil {
		return fmt.Errorf("certs: chmod key: %w", err)
	}
	return nil
}

// subjectAltNames returns the sorted, deduplicated SAN list covering every
// name and address a local client might dial, plus the certificate common
// name. The loopback addresses are always present; interface enumeration
// failures just narrow the list down to those.
func (p *Provisioner) subjectAltNames() ([]string, string) {
	hostnameFn := p.Hostname
	if hostnameFn == nil {
		hostnameFn = os.Hostname
	}
	addrsFn := p.Addrs
	if addrsFn == nil {
		addrsFn = net.InterfaceAddrs
	}

	names := map[string]struct{}{"localhost": {}}
	commonName := "localhost"
	if host, err := hostnameFn(); err == nil && host != "" {
		names[host] = struct{}{}
		commonName = host
	}

	ips := map[string]struct{}{"127.0.0.1": {}, "::1": {}}
	if addrs, err := addrsFn(); err == nil {
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsUnspecified() {
				continue
			}
			ips[ip.String()] = struct{}{}
		}
	}

	sans := make([]string, 0, len(names)+len(ips))
	for name := range names {
		sans = append(sans, "DNS:"+name)
	}
	for ip := range ips {
		sans = append(sans, "IP:"+ip)
	}
	sort.Strings(sans)
	return sans, commonName
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
