package constants

// Seeded directory identities. These are a fixed contract consumed by the
// smoke tests and by external test suites pointed at a managed instance;
// changing any of them is a breaking change for `test` consumers.
const (
	BaseDN        = "dc=example,dc=com"
	AdminDN       = "cn=admin," + BaseDN
	AdminPassword = "secret"

	ConfigAdminDN       = "cn=admin,cn=config"
	ConfigAdminPassword = "secret"

	// Bare OU names; consumers compose the full DN under BaseDN.
	PeopleOU = "People"
	GroupsOU = "Groups"
)

// DefaultVariant is the crypto-library build variant assumed when the CLI
// is invoked without one.
const DefaultVariant = "ssl30"

// File names inside an instance's etc/ and run/ directories.
const (
	BootstrapConfName  = "slapd-bootstrap.conf"
	ClientConfName     = "ldap.conf"
	EnvScriptName      = "ldap_env.sh"
	RuntimeConfDirName = "slapd.d"

	SSLDirName   = "ssl"
	CertFileName = "server.crt"
	KeyFileName  = "server.key"

	StateFileName    = "instance.state"
	PIDFileName      = "slapd.pid"
	ArgsFileName     = "slapd.args"
	SocketFileName   = "ldapi"
	BootstrapLogName = "bootstrap.log"
)
