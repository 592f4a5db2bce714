// Package slapdconf renders the per-instance configuration artifacts: the
// bootstrap slapd.conf, the client ldap.conf and the sourceable environment
// script. Rendering is deterministic for a fixed instance context.
package slapdconf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/slaplab/slaplab/internal/instance"
)

type params struct {
	Instance     string
	SchemaDir    string
	PIDFile      string
	ArgsFile     string
	ModuleDir    string
	CertFile     string
	KeyFile      string
	ConfigRootDN string
	ConfigRootPW string
	Suffix       string
	RootDN       string
	RootPW       string
	DataDir      string
	URI          string
	LDAPSURI     string
	SocketURI    string
	LDAPPort     int
	LDAPSPort    int
	ClientConf   string
	EnvScript    string
	LibraryPath  string
	BinDir       string
	UID          int
	GID          int
}

func newParams(ic *instance.Context) params {
	p := params{
		Instance:     ic.Identity.Name(),
		SchemaDir:    ic.SchemaDir(),
		PIDFile:      ic.Paths.PIDFile,
		ArgsFile:     ic.Paths.ArgsFile,
		CertFile:     ic.Paths.CertFile,
		KeyFile:      ic.Paths.KeyFile,
		ConfigRootDN: ic.ConfigAdminDN,
		ConfigRootPW: ic.ConfigAdminPassword,
		Suffix:       ic.BaseDN,
		RootDN:       ic.AdminDN,
		RootPW:       ic.AdminPassword,
		DataDir:      ic.Paths.DataDir,
		URI:          ic.LDAPURI(),
		LDAPSURI:     ic.LDAPSURI(),
		SocketURI:    ic.SocketURI(),
		LDAPPort:     ic.LDAPPort,
		LDAPSPort:    ic.LDAPSPort,
		ClientConf:   ic.Paths.ClientConf,
		EnvScript:    ic.Paths.EnvScript,
		LibraryPath:  ic.LibraryPath(),
		BinDir:       filepath.Join(ic.Prefix, "bin"),
		UID:          os.Getuid(),
		GID:          os.Getgid(),
	}

	// Only reference the module directory when the build actually ships
	// loadable modules; static builds have the mdb backend compiled in.
	moduleDir := filepath.Join(ic.Prefix, "libexec", "openldap")
	if info, err := os.Stat(moduleDir); err == nil && info.IsDir() {
		p.ModuleDir = moduleDir
	}
	return p
}

func render(name, text string, p params) ([]byte, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("slapdconf: parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("slapdconf: render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func writeArtifact(path, name, text string, p params) error {
	data, err := render(name, text, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("slapdconf: create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("slapdconf: write %s: %w", name, err)
	}
	return nil
}

// WriteBootstrapConf renders the one-shot slapd.conf used to seed cn=config.
func WriteBootstrapConf(ic *instance.Context) error {
	return writeArtifact(ic.Paths.BootstrapConf, "bootstrap.conf", bootstrapConfTemplate, newParams(ic))
}

// WriteClientConf renders the ldap.conf for command line clients.
func WriteClientConf(ic *instance.Context) error {
	return writeArtifact(ic.Paths.ClientConf, "ldap.conf", clientConfTemplate, newParams(ic))
}

// WriteEnvScript renders the sourceable environment descriptor.
func WriteEnvScript(ic *instance.Context) error {
	return writeArtifact(ic.Paths.EnvScript, "env script", envScriptTemplate, newParams(ic))
}

// WriteAll renders every configuration artifact for the instance.
func WriteAll(ic *instance.Context) error {
	if err := WriteBootstrapConf(ic); err != nil {
		return err
	}
	if err := WriteClientConf(ic); err != nil {
		return err
	}
	return WriteEnvScript(ic)
}
