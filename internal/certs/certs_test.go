package certs

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
)

// writeStub installs a shell script standing in for openssl: it appends its
// arguments to logPath and creates the files named after -keyout and -out.
func writeStub(t *testing.T, path, logPath string) {
	t.Helper()
	script := "#!/bin/sh\n" +
		"printf '%s\\n' \"$*\" >> " + logPath + "\n" +
		"prev=\n" +
		"for a in \"$@\"; do\n" +
		"  case \"$prev\" in\n" +
		"    -keyout|-out) : > \"$a\" ;;\n" +
		"  esac\n" +
		"  prev=\"$a\"\n" +
		"done\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func writeFailingStub(t *testing.T, path string) {
	t.Helper()
	script := "#!/bin/sh\necho 'req: unable to load config' >&2\nexit 1\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func stubProvisioner(t *testing.T, dir, binary string) *Provisioner {
	t.Helper()
	return &Provisioner{
		CertFile: filepath.Join(dir, "ssl", "server.crt"),
		KeyFile:  filepath.Join(dir, "ssl", "server.key"),
		Binary:   binary,
		Hostname: func() (string, error) { return "testhost", nil },
		Addrs: func() ([]net.Addr, error) {
			return []net.Addr{
				&net.IPNet{IP: net.ParseIP("192.0.2.7"), Mask: net.CIDRMask(24, 32)},
			}, nil
		},
	}
}

func countInvocations(t *testing.T, logPath string) int {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("read invocation log: %v", err)
	}
	return len(strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func TestEnsureGeneratesPair(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub script requires a unix shell")
	}

	dir := t.TempDir()
	logPath := filepath.Join(dir, "invocations.log")
	stub := filepath.Join(dir, "openssl")
	writeStub(t, stub, logPath)

	p := stubProvisioner(t, dir, stub)
	m, err := p.Ensure(context.Background(), false)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if m.CertPath != p.CertFile || m.KeyPath != p.KeyFile {
		t.Errorf("material = %+v, want the provisioner paths", m)
	}

	certInfo, err := os.Stat(p.CertFile)
	if err != nil {
		t.Fatalf("stat certificate: %v", err)
	}
	if got := certInfo.Mode().Perm(); got != 0o644 {
		t.Errorf("certificate mode = %o, want 644", got)
	}

	keyInfo, err := os.Stat(p.KeyFile)
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if got := keyInfo.Mode().Perm(); got != 0o600 {
		t.Errorf("key mode = %o, want 600", got)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read invocation log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	for _, want := range []string{
		"req -x509",
		"-newkey rsa:4096",
		"-days 3650",
		"/CN=testhost",
		"DNS:localhost",
		"DNS:testhost",
		"IP:127.0.0.1",
		"IP:::1",
		"IP:192.0.2.7",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("openssl invocation missing %q: %s", want, line)
		}
	}
}

func TestEnsureReusesExistingPair(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub script requires a unix shell")
	}

	dir := t.TempDir()
	logPath := filepath.Join(dir, "invocations.log")
	stub := filepath.Join(dir, "openssl")
	writeStub(t, stub, logPath)

	p := stubProvisioner(t, dir, stub)
	for i := 0; i < 3; i++ {
		if _, err := p.Ensure(context.Background(), false); err != nil {
			t.Fatalf("Ensure #%d: %v", i+1, err)
		}
	}

	if got := countInvocations(t, logPath); got != 1 {
		t.Errorf("openssl ran %d times, want 1", got)
	}
}

func TestEnsureForceRegenerates(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub script requires a unix shell")
	}

	dir := t.TempDir()
	logPath := filepath.Join(dir, "invocations.log")
	stub := filepath.Join(dir, "openssl")
	writeStub(t, stub, logPath)

	p := stubProvisioner(t, dir, stub)
	if _, err := p.Ensure(context.Background(), false); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err := p.Ensure(context.Background(), true); err != nil {
		t.Fatalf("Ensure with force: %v", err)
	}

	if got := countInvocations(t, logPath); got != 2 {
		t.Errorf("openssl ran %d times, want 2", got)
	}
}

func TestEnsureReportsGenerationFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub script requires a unix shell")
	}

	dir := t.TempDir()
	stub := filepath.Join(dir, "openssl")
	writeFailingStub(t, stub)

	p := stubProvisioner(t, dir, stub)
	_, err := p.Ensure(context.Background(), false)
	if err == nil {
		t.Fatal("Ensure succeeded with failing openssl")
	}
	if !strings.Contains(err.Error(), "unable to load config") {
		t.Errorf("error does not carry openssl output: %v", err)
	}
}

func TestSubjectAltNamesSortedAndDeduped(t *testing.T) {
	p := &Provisioner{
		Hostname: func() (string, error) { return "myhost", nil },
		Addrs: func() ([]net.Addr, error) {
			return []net.Addr{
				&net.IPNet{IP: net.ParseIP("10.0.0.5"), Mask: net.CIDRMask(24, 32)},
				&net.IPAddr{IP: net.ParseIP("10.0.0.5")},
				&net.IPNet{IP: net.ParseIP("0.0.0.0"), Mask: net.CIDRMask(0, 32)},
				&net.IPAddr{IP: net.ParseIP("127.0.0.1")},
			}, nil
		},
	}

	sans, commonName := p.subjectAltNames()
	want := []string{"DNS:localhost", "DNS:myhost", "IP:10.0.0.5", "IP:127.0.0.1", "IP:::1"}
	if !reflect.DeepEqual(sans, want) {
		t.Errorf("subjectAltNames = %v, want %v", sans, want)
	}
	if commonName != "myhost" {
		t.Errorf("common name = %q, want myhost", commonName)
	}
}

func TestSubjectAltNamesFallsBackToLoopback(t *testing.T) {
	p := &Provisioner{
		Hostname: func() (string, error) { return "", errors.New("no hostname") },
		Addrs:    func() ([]net.Addr, error) { return nil, errors.New("no interfaces") },
	}

	sans, commonName := p.subjectAltNames()
	want := []string{"DNS:localhost", "IP:127.0.0.1", "IP:::1"}
	if !reflect.DeepEqual(sans, want) {
		t.Errorf("subjectAltNames = %v, want %v", sans, want)
	}
	if commonName != "localhost" {
		t.Errorf("common name = %q, want localhost", commonName)
	}
}
