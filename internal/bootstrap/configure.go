package bootstrap

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/go-ldap/ldap/v3"

	"github.com/slaplab/slaplab/internal/ldapadmin"
)

const moduleListDN = "cn=module{0},cn=config"

// bootstrapModules are the loadable backends and overlays the instance
// should carry. Static builds compile these in and answer every load with
// a failure, which is fine.
var bootstrapModules = []string{"back_mdb.la", "ppolicy.la", "sssvlv.la", "dds.la"}

type overlayDef struct {
	name        string
	objectClass string
}

var bootstrapOverlays = []overlayDef{
	{name: "sssvlv", objectClass: "olcSssVlvConfig"},
	{name: "ppolicy", objectClass: "olcPPolicyConfig"},
	{name: "dds", objectClass: "olcDDSConfig"},
}

// configure shapes the live cn=config database over the unix socket using
// the peer-credential identity. Attaching the TLS material is the only
// step that must succeed; the rest is reported and tolerated.
func (o *Orchestrator) configure() error {
	client, err := ldapadmin.DialSocket(o.ic.Paths.SocketPath)
	if err != nil {
		return fmt.Errorf("bootstrap: admin connection: %w", err)
	}
	defer client.Close()

	if err := client.ExternalBind(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	out := client.ModifyReplace("attach TLS configuration", "cn=config", []ldapadmin.Attr{
		{Type: "olcTLSCertificateFile", Vals: []string{o.ic.Paths.CertFile}},
		{Type: "olcTLSCertificateKeyFile", Vals: []string{o.ic.Paths.KeyFile}},
		{Type: "olcTLSVerifyClient", Vals: []string{"never"}},
	})
	log.Printf("[Bootstrap] %s", out)
	if !out.OK() {
		return fmt.Errorf("bootstrap: %s", out)
	}

	o.loadModules(client)

	dbDN := o.databaseDN(client)
	o.attachOverlays(client, dbDN)

	out = client.ModifyAdd("index entryExpireTimestamp", dbDN, "olcDbIndex", "entryExpireTimestamp eq")
	log.Printf("[Bootstrap] %s", out)

	return nil
}

func (o *Orchestrator) loadModules(client *ldapadmin.Client) {
	out := client.Add("create module list", moduleListDN, []ldapadmin.Attr{
		{Type: "objectClass", Vals: []string{"olcModuleList"}},
		{Type: "cn", Vals: []string{"module{0}"}},
		{Type: "olcModulePath", Vals: []string{filepath.Join(o.ic.Prefix, "libexec", "openldap")}},
	})
	log.Printf("[Bootstrap] %s", out)
	if out.Kind == ldapadmin.Failed {
		return
	}

	for _, mod := range bootstrapModules {
		out := client.ModifyAdd("load module "+mod, moduleListDN, "olcModuleLoad", mod)
		log.Printf("[Bootstrap] %s", out)
	}
}

// databaseDN finds the payload database: the one entry under cn=config
// carrying both a root DN and a suffix. When discovery fails the
// conventional mdb position is assumed.
func (o *Orchestrator) databaseDN(client *ldapadmin.Client) string {
	const fallback = "olcDatabase={1}mdb,cn=config"

	req := ldap.NewSearchRequest(
		"cn=config", ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 10, false,
		"(&(olcRootDN=*)(olcSuffix=*))",
		[]string{"dn"},
		nil,
	)
	res, err := client.Search(req)
	if err != nil || len(res.Entries) == 0 {
		log.Printf("[Bootstrap] database discovery failed, assuming %s", fallback)
		return fallback
	}

	dn := res.Entries[0].DN
	log.Printf("[Bootstrap] payload database is %s", dn)
	return dn
}

func (o *Orchestrator) attachOverlays(client *ldapadmin.Client, dbDN string) {
	for _, ov := range bootstrapOverlays {
		out := client.Add("attach overlay "+ov.name, "olcOverlay="+ov.name+","+dbDN, []ldapadmin.Attr{
			{Type: "objectClass", Vals: []string{"olcOverlayConfig", ov.objectClass}},
			{Type: "olcOverlay", Vals: []string{ov.name}},
		})
		log.Printf("[Bootstrap] %s", out)
	}
}
