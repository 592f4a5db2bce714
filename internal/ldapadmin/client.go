// Package ldapadmin wraps the LDAP operations the tool performs against a
// running slapd: liveness pings, cn=config surgery during bootstrap and the
// directory checks of the smoke test. Every mutating call returns a typed
// Outcome so callers can distinguish "done", "was already done" and "broken"
// without string-matching server diagnostics.
package ldapadmin

import (
	"crypto/tls"
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/slaplab/slaplab/internal/constants"
	"github.com/slaplab/slaplab/internal/tlswarn"
)

// Client is a thin session wrapper around one LDAP connection.
type Client struct {
	conn *ldap.Conn
}

// DialSocket connects over the instance's unix socket. The raw filesystem
// path is passed here; the %2F-encoded form appears only in rendered
// artifacts and slapd arguments.
func DialSocket(socketPath string) (*Client, error) {
	conn, err := ldap.DialURL("ldapi://" + socketPath)
	if err != nil {
		return nil, fmt.Errorf("ldapadmin: dial %s: %w", socketPath, err)
	}
	return newClient(conn), nil
}

// DialNetwork connects to a plaintext ldap:// URI.
func DialNetwork(uri string) (*Client, error) {
	conn, err := ldap.DialURL(uri)
	if err != nil {
		return nil, fmt.Errorf("ldapadmin: dial %s: %w", uri, err)
	}
	return newClient(conn), nil
}

// DialTLS connects to an ldaps:// URI. The instance certificate is
// self-signed, so chain verification is skipped; this client only ever
// talks to slapd processes it started itself on localhost.
func DialTLS(uri string) (*Client, error) {
	tlswarn.LogInsecure()
	conn, err := ldap.DialURL(uri, ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	if err != nil {
		return nil, fmt.Errorf("ldapadmin: dial %s: %w", uri, err)
	}
	return newClient(conn), nil
}

func newClient(conn *ldap.Conn) *Client {
	conn.SetTimeout(constants.AdminOpTimeout)
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// ExternalBind authenticates via SASL EXTERNAL, mapping the unix peer
// credentials to an identity. Only meaningful on socket connections.
func (c *Client) ExternalBind() error {
	if err := c.conn.ExternalBind(); err != nil {
		return fmt.Errorf("ldapadmin: external bind: %w", err)
	}
	return nil
}

// Bind performs a simple bind.
func (c *Client) Bind(dn, password string) error {
	if err := c.conn.Bind(dn, password); err != nil {
		return fmt.Errorf("ldapadmin: bind %s: %w", dn, err)
	}
	return nil
}

// Ping reads the root DSE anonymously. The cheapest request a directory
// server answers, used as the liveness probe while slapd is coming up.
func (c *Client) Ping() error {
	req := ldap.NewSearchRequest(
		"", ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 5, false,
		"(objectClass=*)",
		[]string{"namingContexts", "supportedLDAPVersion"},
		nil,
	)
	if _, err := c.conn.Search(req); err != nil {
		return fmt.Errorf("ldapadmin: root DSE: %w", err)
	}
	return nil
}

// WhoAmI returns the server-side authorization identity of this session.
func (c *Client) WhoAmI() (string, error) {
	res, err := c.conn.WhoAmI(nil)
	if err != nil {
		return "", fmt.Errorf("ldapadmin: whoami: %w", err)
	}
	return res.AuthzID, nil
}

// Search passes a raw search request through to the connection.
func (c *Client) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return c.conn.Search(req)
}

// Attr is one attribute of an entry being added, ordered.
type Attr struct {
	Type string
	Vals []string
}

// Add creates an entry. op names the operation in the returned outcome.
func (c *Client) Add(op, dn string, attrs []Attr) Outcome {
	req := ldap.NewAddRequest(dn, nil)
	for _, a := range attrs {
		req.Attribute(a.Type, a.Vals)
	}
	return classify(op, c.conn.Add(req))
}

// ModifyAdd appends values to an attribute of an existing entry.
func (c *Client) ModifyAdd(op, dn, attr string, vals ...string) Outcome {
	req := ldap.NewModifyRequest(dn, nil)
	req.Add(attr, vals)
	return classify(op, c.conn.Modify(req))
}

// ModifyReplace replaces an attribute's values on an existing entry.
func (c *Client) ModifyReplace(op, dn string, attrs []Attr) Outcome {
	req := ldap.NewModifyRequest(dn, nil)
	for _, a := range attrs {
		req.Replace(a.Type, a.Vals)
	}
	return classify(op, c.conn.Modify(req))
}
