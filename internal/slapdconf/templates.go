package slapdconf

// bootstrapConfTemplate is the slapd.conf used exactly once per instance,
// to seed the cn=config database. After conversion the instance runs from
// slapd.d and this file is kept only for reference.
const bootstrapConfTemplate = `# Bootstrap configuration for instance {{.Instance}}.
# Seeds cn=config on first start; later changes live under slapd.d.

include {{.SchemaDir}}/core.schema
include {{.SchemaDir}}/cosine.schema
include {{.SchemaDir}}/inetorgperson.schema
include {{.SchemaDir}}/nis.schema

pidfile {{.PIDFile}}
argsfile {{.ArgsFile}}
{{if .ModuleDir}}
modulepath {{.ModuleDir}}
moduleload back_mdb.la
{{end}}
TLSCertificateFile {{.CertFile}}
TLSCertificateKeyFile {{.KeyFile}}
TLSVerifyClient never

database config
rootdn "{{.ConfigRootDN}}"
rootpw {{.ConfigRootPW}}
access to * by dn.exact=gidNumber={{.GID}}+uidNumber={{.UID}},cn=peercred,cn=external,cn=auth manage by * break

database mdb
maxsize 1073741824
suffix "{{.Suffix}}"
rootdn "{{.RootDN}}"
rootpw {{.RootPW}}
directory {{.DataDir}}
index objectClass eq
`

// clientConfTemplate is the ldap.conf handed to command line clients.
const clientConfTemplate = `# Client defaults for the {{.Instance}} instance.
BASE {{.Suffix}}
URI {{.URI}} {{.LDAPSURI}}

# The server certificate is self-signed, so verification is disabled.
# Acceptable for this local test instance only; never copy these two
# lines into a real deployment.
TLS_CACERT {{.CertFile}}
TLS_REQCERT never
`

// envScriptTemplate is a shell fragment describing the instance. Meant to
// be sourced, not executed.
const envScriptTemplate = `# Connection parameters for the {{.Instance}} instance.
# Usage: . {{.EnvScript}}

export LDAPURI="{{.URI}}"
export LDAPSURI="{{.LDAPSURI}}"
export LDAPIURI="{{.SocketURI}}"
export LDAPBASE="{{.Suffix}}"
export LDAPBINDDN="{{.RootDN}}"
export LDAPBINDPW="{{.RootPW}}"
export LDAPPORT={{.LDAPPort}}
export LDAPSPORT={{.LDAPSPort}}
export LDAPCONF="{{.ClientConf}}"
export LD_LIBRARY_PATH="{{.LibraryPath}}"
export PATH="{{.BinDir}}:$PATH"

alias lsearch='ldapsearch -x -D "$LDAPBINDDN" -w "$LDAPBINDPW" -b "$LDAPBASE"'
alias ladd='ldapadd -x -D "$LDAPBINDDN" -w "$LDAPBINDPW"'
alias lmodify='ldapmodify -x -D "$LDAPBINDDN" -w "$LDAPBINDPW"'
alias lwhoami='ldapwhoami -x -D "$LDAPBINDDN" -w "$LDAPBINDPW"'
`
