package bootstrap

import (
	"log"

	"github.com/slaplab/slaplab/internal/constants"
	"github.com/slaplab/slaplab/internal/instance"
	"github.com/slaplab/slaplab/internal/ldapadmin"
)

type seedEntry struct {
	Op    string
	DN    string
	Attrs []ldapadmin.Attr
}

// seedEntries returns the initial directory content: the suffix entry, the
// two standard organizational units, two people and a group referencing
// them. Enough for clients to exercise search, bind and group membership
// without loading their own fixtures first.
func seedEntries(ic *instance.Context) []seedEntry {
	peopleOU := "ou=" + constants.PeopleOU + "," + ic.BaseDN
	groupsOU := "ou=" + constants.GroupsOU + "," + ic.BaseDN
	aliceDN := "uid=alice," + peopleOU
	bobDN := "uid=bob," + peopleOU

	return []seedEntry{
		{
			Op: "seed suffix entry",
			DN: ic.BaseDN,
			Attrs: []ldapadmin.Attr{
				{Type: "objectClass", Vals: []string{"dcObject", "organization"}},
				{Type: "dc", Vals: []string{"example"}},
				{Type: "o", Vals: []string{"Example Organization"}},
			},
		},
		{
			Op: "seed ou=" + constants.PeopleOU,
			DN: peopleOU,
			Attrs: []ldapadmin.Attr{
				{Type: "objectClass", Vals: []string{"organizationalUnit"}},
				{Type: "ou", Vals: []string{constants.PeopleOU}},
			},
		},
		{
			Op: "seed ou=" + constants.GroupsOU,
			DN: groupsOU,
			Attrs: []ldapadmin.Attr{
				{Type: "objectClass", Vals: []string{"organizationalUnit"}},
				{Type: "ou", Vals: []string{constants.GroupsOU}},
			},
		},
		{
			Op: "seed user alice",
			DN: aliceDN,
			Attrs: []ldapadmin.Attr{
				{Type: "objectClass", Vals: []string{"inetOrgPerson"}},
				{Type: "uid", Vals: []string{"alice"}},
				{Type: "cn", Vals: []string{"Alice Liddell"}},
				{Type: "sn", Vals: []string{"Liddell"}},
				{Type: "mail", Vals: []string{"alice@example.com"}},
				{Type: "telephoneNumber", Vals: []string{"+1 555 0101"}},
				{Type: "userPassword", Vals: []string{"alicepw"}},
				{Type: "description", Vals: []string{"Directory test user"}},
			},
		},
		{
			Op: "seed user bob",
			DN: bobDN,
			Attrs: []ldapadmin.Attr{
				{Type: "objectClass", Vals: []string{"inetOrgPerson"}},
				{Type: "uid", Vals: []string{"bob"}},
				{Type: "cn", Vals: []string{"Bob Stone"}},
				{Type: "sn", Vals: []string{"Stone"}},
				{Type: "mail", Vals: []string{"bob@example.com"}},
				{Type: "telephoneNumber", Vals: []string{"+1 555 0102"}},
				{Type: "userPassword", Vals: []string{"bobpw"}},
				{Type: "description", Vals: []string{"Directory test user"}},
			},
		},
		{
			Op: "seed group staff",
			DN: "cn=staff," + groupsOU,
			Attrs: []ldapadmin.Attr{
				{Type: "objectClass", Vals: []string{"groupOfNames"}},
				{Type: "cn", Vals: []string{"staff"}},
				{Type: "member", Vals: []string{aliceDN, bobDN}},
				{Type: "description", Vals: []string{"All seeded test users"}},
			},
		},
	}
}

// seed loads the initial entries through an administrative simple bind on
// the plaintext listener. Every entry is tolerated to exist already, and a
// broken directory only costs the fixtures, not the bootstrap.
func (o *Orchestrator) seed() {
	client, err := ldapadmin.DialNetwork(o.ic.LDAPURI())
	if err != nil {
		log.Printf("[Bootstrap] seeding skipped: %v", err)
		return
	}
	defer client.Close()

	if err := client.Bind(o.ic.AdminDN, o.ic.AdminPassword); err != nil {
		log.Printf("[Bootstrap] seeding skipped: %v", err)
		return
	}

	for _, entry := range seedEntries(o.ic) {
		out := client.Add(entry.Op, entry.DN, entry.Attrs)
		log.Printf("[Bootstrap] %s", out)
	}
}
