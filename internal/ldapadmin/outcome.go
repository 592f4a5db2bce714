package ldapadmin

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// OutcomeKind classifies the result of an administrative operation.
type OutcomeKind int

const (
	// Success means the server applied the operation.
	Success OutcomeKind = iota
	// AlreadyExists means the entry or attribute value was present before
	// the operation ran. Harmless for every idempotent bootstrap step.
	AlreadyExists
	// Failed covers everything else.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case AlreadyExists:
		return "already exists"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the typed result of one administrative operation. Callers
// decide per operation whether Failed is fatal or merely worth a warning.
type Outcome struct {
	Op   string
	Kind OutcomeKind
	Err  error
}

// OK reports whether the operation left the server in the desired state,
// counting AlreadyExists as success.
func (o Outcome) OK() bool {
	return o.Kind != Failed
}

func (o Outcome) String() string {
	switch o.Kind {
	case Success:
		return o.Op + ": ok"
	case AlreadyExists:
		return o.Op + ": already present"
	default:
		if o.Err != nil {
			return fmt.Sprintf("%s: %v", o.Op, o.Err)
		}
		return o.Op + ": failed"
	}
}

// classify maps a go-ldap error to an outcome. Result codes 68 (entry
// already exists) and 20 (attribute or value exists) both mean the desired
// state was already in place.
func classify(op string, err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Op: op, Kind: Success}
	case ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists),
		ldap.IsErrorWithCode(err, ldap.LDAPResultAttributeOrValueExists):
		return Outcome{Op: op, Kind: AlreadyExists, Err: err}
	default:
		return Outcome{Op: op, Kind: Failed, Err: err}
	}
}
