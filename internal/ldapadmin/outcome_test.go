package ldapadmin

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-ldap/ldap/v3"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{
			name: "nil error is success",
			err:  nil,
			want: Success,
		},
		{
			name: "entry already exists",
			err:  &ldap.Error{ResultCode: ldap.LDAPResultEntryAlreadyExists, Err: errors.New("entry already exists")},
			want: AlreadyExists,
		},
		{
			name: "attribute value already exists",
			err:  &ldap.Error{ResultCode: ldap.LDAPResultAttributeOrValueExists, Err: errors.New("value exists")},
			want: AlreadyExists,
		},
		{
			name: "wrapped already exists",
			err:  fmt.Errorf("adding entry: %w", &ldap.Error{ResultCode: ldap.LDAPResultEntryAlreadyExists}),
			want: AlreadyExists,
		},
		{
			name: "access denied",
			err:  &ldap.Error{ResultCode: ldap.LDAPResultInsufficientAccessRights, Err: errors.New("denied")},
			want: Failed,
		},
		{
			name: "plain transport error",
			err:  errors.New("connection reset"),
			want: Failed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classify("test op", tt.err)
			if out.Kind != tt.want {
				t.Errorf("classify kind = %v, want %v", out.Kind, tt.want)
			}
			if out.Op != "test op" {
				t.Errorf("classify op = %q, want %q", out.Op, "test op")
			}
		})
	}
}

func TestOutcomeOK(t *testing.T) {
	if ok := (Outcome{Kind: Success}).OK(); !ok {
		t.Error("Success outcome reported not OK")
	}
	if ok := (Outcome{Kind: AlreadyExists}).OK(); !ok {
		t.Error("AlreadyExists outcome reported not OK")
	}
	if ok := (Outcome{Kind: Failed}).OK(); ok {
		t.Error("Failed outcome reported OK")
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    string
	}{
		{
			name:    "success",
			outcome: Outcome{Op: "load module back_mdb", Kind: Success},
			want:    "load module back_mdb: ok",
		},
		{
			name:    "already present",
			outcome: Outcome{Op: "add overlay ppolicy", Kind: AlreadyExists},
			want:    "add overlay ppolicy: already present",
		},
		{
			name:    "failure with error",
			outcome: Outcome{Op: "attach TLS", Kind: Failed, Err: errors.New("no such attribute")},
			want:    "attach TLS: no such attribute",
		},
		{
			name:    "failure without error",
			outcome: Outcome{Op: "attach TLS", Kind: Failed},
			want:    "attach TLS: failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutcomeKindString(t *testing.T) {
	tests := []struct {
		kind OutcomeKind
		want string
	}{
		{kind: Success, want: "success"},
		{kind: AlreadyExists, want: "already exists"},
		{kind: Failed, want: "failed"},
		{kind: OutcomeKind(42), want: "outcome(42)"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("OutcomeKind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
