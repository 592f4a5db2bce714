// Package smoke verifies a running instance end to end: every listener is
// exercised with a real LDAP conversation and the seeded directory content
// is checked. Each check passes or fails independently so one broken
// transport does not mask the others.
package smoke

import (
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/slaplab/slaplab/internal/constants"
	"github.com/slaplab/slaplab/internal/instance"
	"github.com/slaplab/slaplab/internal/ldapadmin"
)

// ErrNotRunning is reported when the suite is requested for an instance
// that has no live server to talk to.
var ErrNotRunning = errors.New("smoke: instance is not running")

// Result is the outcome of one named check.
type Result struct {
	Name string
	Err  error
}

// OK reports whether the check passed.
func (r Result) OK() bool {
	return r.Err == nil
}

// Failed counts the failures in a result set.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Runner executes the verification suite against one instance. The ports
// in the context must come from the live state record, not from a fresh
// allocation.
type Runner struct {
	ic *instance.Context
}

func New(ic *instance.Context) *Runner {
	return &Runner{ic: ic}
}

type check struct {
	name string
	run  func() error
}

func (r *Runner) checks() []check {
	return []check{
		{name: "anonymous root DSE", run: r.checkRootDSE},
		{name: "administrative bind", run: r.checkAdminBind},
		{name: "seeded people present", run: r.checkPeople},
		{name: "staff group membership", run: r.checkGroup},
		{name: "TLS listener", run: r.checkTLS},
		{name: "socket EXTERNAL identity", run: r.checkSocket},
	}
}

// Run executes every check and returns their results in order. It never
// stops early; a dead listener should show up as one failure among
// passes, not hide the rest of the picture.
func (r *Runner) Run() []Result {
	checks := r.checks()
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		results = append(results, Result{Name: c.name, Err: c.run()})
	}
	return results
}

// peopleBase is the subtree holding the seeded user entries.
func (r *Runner) peopleBase() string {
	return "ou=" + constants.PeopleOU + "," + r.ic.BaseDN
}

// staffDN names the seeded group entry.
func (r *Runner) staffDN() string {
	return "cn=staff,ou=" + constants.GroupsOU + "," + r.ic.BaseDN
}

func (r *Runner) adminClient() (*ldapadmin.Client, error) {
	client, err := ldapadmin.DialNetwork(r.ic.LDAPURI())
	if err != nil {
		return nil, err
	}
	if err := client.Bind(r.ic.AdminDN, r.ic.AdminPassword); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (r *Runner) checkRootDSE() error {
	client, err := ldapadmin.DialNetwork(r.ic.LDAPURI())
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ping()
}

func (r *Runner) checkAdminBind() error {
	client, err := r.adminClient()
	if err != nil {
		return err
	}
	defer client.Close()

	req := ldap.NewSearchRequest(
		r.ic.BaseDN, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 10, false,
		"(objectClass=*)",
		[]string{"dc"},
		nil,
	)
	res, err := client.Search(req)
	if err != nil {
		return fmt.Errorf("read suffix entry: %w", err)
	}
	if len(res.Entries) != 1 {
		return fmt.Errorf("suffix entry %s not found", r.ic.BaseDN)
	}
	return nil
}

func (r *Runner) checkPeople() error {
	client, err := r.adminClient()
	if err != nil {
		return err
	}
	defer client.Close()

	req := ldap.NewSearchRequest(
		r.peopleBase(),
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 10, false,
		"(|(uid=alice)(uid=bob))",
		[]string{"uid"},
		nil,
	)
	res, err := client.Search(req)
	if err != nil {
		return fmt.Errorf("search seeded users: %w", err)
	}
	if len(res.Entries) != 2 {
		return fmt.Errorf("found %d of 2 seeded users", len(res.Entries))
	}
	return nil
}

func (r *Runner) checkGroup() error {
	client, err := r.adminClient()
	if err != nil {
		return err
	}
	defer client.Close()

	req := ldap.NewSearchRequest(
		r.staffDN(),
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 10, false,
		"(objectClass=groupOfNames)",
		[]string{"member"},
		nil,
	)
	res, err := client.Search(req)
	if err != nil {
		return fmt.Errorf("read staff group: %w", err)
	}
	if len(res.Entries) != 1 {
		return errors.New("staff group not found")
	}
	if members := res.Entries[0].GetAttributeValues("member"); len(members) != 2 {
		return fmt.Errorf("staff group has %d members, want 2", len(members))
	}
	return nil
}

func (r *Runner) checkTLS() error {
	client, err := ldapadmin.DialTLS(r.ic.LDAPSURI())
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ping()
}

func (r *Runner) checkSocket() error {
	client, err := ldapadmin.DialSocket(r.ic.Paths.SocketPath)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.ExternalBind(); err != nil {
		return err
	}
	id, err := client.WhoAmI()
	if err != nil {
		return err
	}
	if id == "" {
		return errors.New("empty authorization identity")
	}
	return nil
}
