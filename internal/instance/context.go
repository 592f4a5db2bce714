package instance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slaplab/slaplab/internal/constants"
)

// Context aggregates everything a lifecycle operation needs to know about
// one instance: identity, layout, installation prefixes, listener ports and
// administrative credentials. It is passed explicitly to every component;
// there is no package-level mutable state.
type Context struct {
	Identity Identity
	Paths    Paths

	RootDir     string // instance tree root (data/, etc/, run/)
	InstallRoot string // holds openldap/<name>/ and openssl/<variant>/
	Prefix      string // OpenLDAP build prefix for this instance
	OpenSSLDir  string // OpenSSL variant prefix

	// Listener ports, filled in by the port allocator before any
	// configuration is rendered.
	LDAPPort  int
	LDAPSPort int

	BaseDN              string
	AdminDN             string
	AdminPassword       string
	ConfigAdminDN       string
	ConfigAdminPassword string
}

// NewContext resolves the layout for (version, variant) under rootDir and
// binds the installation prefixes under installRoot. Ports remain zero
// until allocated.
func NewContext(id Identity, rootDir, installRoot string) (*Context, error) {
	paths, err := Resolve(id, rootDir)
	if err != nil {
		return nil, err
	}

	return &Context{
		Identity:    id,
		Paths:       paths,
		RootDir:     rootDir,
		InstallRoot: installRoot,
		Prefix:      filepath.Join(installRoot, "openldap", id.Name()),
		OpenSSLDir:  filepath.Join(installRoot, "openssl", id.Variant),

		BaseDN:              constants.BaseDN,
		AdminDN:             constants.AdminDN,
		AdminPassword:       constants.AdminPassword,
		ConfigAdminDN:       constants.ConfigAdminDN,
		ConfigAdminPassword: constants.ConfigAdminPassword,
	}, nil
}

// SlapdBinary returns the daemon binary path under the build prefix.
func (c *Context) SlapdBinary() string {
	return filepath.Join(c.Prefix, "libexec", "slapd")
}

// SlaptestBinary returns the config conversion/validation tool path.
func (c *Context) SlaptestBinary() string {
	return filepath.Join(c.Prefix, "sbin", "slaptest")
}

// OpenSSLBinary returns the variant's openssl binary path.
func (c *Context) OpenSSLBinary() string {
	return filepath.Join(c.OpenSSLDir, "bin", "openssl")
}

// SchemaDir returns the build's schema directory used by the bootstrap
// configuration includes.
func (c *Context) SchemaDir() string {
	return filepath.Join(c.Prefix, "etc", "openldap", "schema")
}

// CheckInstalled verifies the build prefix actually contains a slapd
// binary. Operating on a version that was never installed is a usage
// error, reported before any directories are created.
func (c *Context) CheckInstalled() error {
	if _, err := os.Stat(c.SlapdBinary()); err != nil {
		return fmt.Errorf("instance: OpenLDAP %s (variant %s) is not installed: missing %s",
			c.Identity.Version, c.Identity.Variant, c.SlapdBinary())
	}
	return nil
}

// LDAPURI returns the plaintext listener URI.
func (c *Context) LDAPURI() string {
	return fmt.Sprintf("ldap://localhost:%d", c.LDAPPort)
}

// LDAPSURI returns the TLS listener URI.
func (c *Context) LDAPSURI() string {
	return fmt.Sprintf("ldaps://localhost:%d", c.LDAPSPort)
}

// SocketURI returns the ldapi:// URI with the socket path %2F-encoded.
func (c *Context) SocketURI() string {
	return "ldapi://" + EncodeSocketPath(c.Paths.SocketPath)
}

// ListenerURIs renders the space-separated listener list handed to
// slapd -h, covering all three transports.
func (c *Context) ListenerURIs() string {
	return strings.Join([]string{c.LDAPURI(), c.LDAPSURI(), c.SocketURI()}, " ")
}

// LibraryPath composes the dynamic-library search path for child
// processes: the OpenSSL variant's lib directory first so the daemon links
// against the variant under test, then the build's own lib directory, then
// whatever the caller already had.
func (c *Context) LibraryPath() string {
	parts := []string{
		filepath.Join(c.OpenSSLDir, "lib"),
		filepath.Join(c.Prefix, "lib"),
	}
	if inherited := os.Getenv("LD_LIBRARY_PATH"); inherited != "" {
		parts = append(parts, inherited)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// ChildEnv returns the current environment with LD_LIBRARY_PATH replaced
// by LibraryPath, for spawned slapd/slaptest/openssl processes.
func (c *Context) ChildEnv() []string {
	env := os.Environ()
	out := env[:0]
	for _, kv := range env {
		if !strings.HasPrefix(kv, "LD_LIBRARY_PATH=") {
			out = append(out, kv)
		}
	}
	return append(out, "LD_LIBRARY_PATH="+c.LibraryPath())
}

// EnsureDirs creates the instance directory tree if it does not exist.
func (c *Context) EnsureDirs() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.EtcDir,
		c.Paths.SSLDir,
		c.Paths.RunDir,
		c.Paths.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return nil
}
