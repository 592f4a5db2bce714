// Package validate checks user-supplied identifiers before they become
// filesystem path components or registry keys.
package validate

import "regexp"

// ComponentRe matches valid instance name components: the OpenLDAP version
// string and the variant tag. Must start with an alphanumeric, followed by
// alphanumerics, dots, hyphens, or underscores. Path separators and a
// leading dot can never appear, so a component is always safe to join into
// a directory name.
var ComponentRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// MaxComponentLen is the maximum length for a name component.
const MaxComponentLen = 64

// Component reports whether s is usable as one component of an instance
// name, and therefore of every path derived from that name.
func Component(s string) bool {
	return len(s) > 0 && len(s) <= MaxComponentLen && ComponentRe.MatchString(s)
}
