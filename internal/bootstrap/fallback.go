package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/slaplab/slaplab/internal/instance"
)

// writeMinimalConfigDir assembles a bare runtime configuration by hand:
// global settings with the TLS material, the config database and the mdb
// payload database. Schema beyond the built-ins is not included, so richer
// object classes only come back after a bootstrap rerun with a working
// slaptest.
func writeMinimalConfigDir(ic *instance.Context) error {
	confDir := ic.Paths.ConfigDir
	subDir := filepath.Join(confDir, "cn=config")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		return fmt.Errorf("bootstrap: create config dir: %w", err)
	}

	root := fmt.Sprintf(`dn: cn=config
objectClass: olcGlobal
cn: config
olcArgsFile: %s
olcPidFile: %s
olcTLSCertificateFile: %s
olcTLSCertificateKeyFile: %s
olcTLSVerifyClient: never
`, ic.Paths.ArgsFile, ic.Paths.PIDFile, ic.Paths.CertFile, ic.Paths.KeyFile)

	schema := `dn: cn=schema,cn=config
objectClass: olcSchemaConfig
cn: schema
`

	frontend := `dn: olcDatabase={-1}frontend,cn=config
objectClass: olcDatabaseConfig
objectClass: olcFrontendConfig
olcDatabase: {-1}frontend
`

	configDB := fmt.Sprintf(`dn: olcDatabase={0}config,cn=config
objectClass: olcDatabaseConfig
olcDatabase: {0}config
olcRootDN: %s
olcRootPW: %s
`, ic.ConfigAdminDN, ic.ConfigAdminPassword)

	payloadDB := fmt.Sprintf(`dn: olcDatabase={1}mdb,cn=config
objectClass: olcDatabaseConfig
objectClass: olcMdbConfig
olcDatabase: {1}mdb
olcSuffix: %s
olcRootDN: %s
olcRootPW: %s
olcDbDirectory: %s
olcDbMaxSize: 1073741824
olcDbIndex: objectClass eq
`, ic.BaseDN, ic.AdminDN, ic.AdminPassword, ic.Paths.DataDir)

	files := []struct {
		path    string
		content string
	}{
		{path: filepath.Join(confDir, "cn=config.ldif"), content: root},
		{path: filepath.Join(subDir, "cn=schema.ldif"), content: schema},
		{path: filepath.Join(subDir, "olcDatabase={-1}frontend.ldif"), content: frontend},
		{path: filepath.Join(subDir, "olcDatabase={0}config.ldif"), content: configDB},
		{path: filepath.Join(subDir, "olcDatabase={1}mdb.ldif"), content: payloadDB},
	}

	for _, f := range files {
		if err := os.WriteFile(f.path, []byte(f.content), 0o600); err != nil {
			return fmt.Errorf("bootstrap: write %s: %w", filepath.Base(f.path), err)
		}
	}
	return nil
}
