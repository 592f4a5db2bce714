// Package ports selects the listener pair for an instance: the protocol's
// well-known defaults when available, otherwise a version-derived alternate
// pair so several instances can coexist on one host.
package ports

import (
	"context"
	"net"
	"strconv"
	"strings"
)

const (
	DefaultLDAPPort  = 389
	DefaultLDAPSPort = 636

	altLDAPBase  = 3389
	altLDAPSBase = 6363
)

// versionOffsets maps an OpenLDAP major.minor release to its fixed port
// offset. Offsets are spaced five apart so the supported version set never
// collides on the alternate ranges.
var versionOffsets = map[string]int{
	"2.4": 0,
	"2.5": 5,
	"2.6": 10,
	"2.7": 15,
}

// Allocation is the chosen listener pair for one instance.
type Allocation struct {
	LDAPPort  int
	LDAPSPort int
}

// Prober reports whether a TCP port on the loopback interface is currently
// free. Injected so tests can model arbitrary occupancy snapshots.
type Prober func(ctx context.Context, port int) bool

// BindProbe is the real prober: attempt to bind the port, then release it.
func BindProbe(ctx context.Context, port int) bool {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// Allocate picks the listener pair for the given version. The well-known
// defaults win whenever the plaintext default is free, and also when this
// instance is the first registered on the host: in that case whatever is
// occupying the default is assumed to be a previous run of this same
// instance. Deterministic for a fixed (version, occupancy, first) input;
// no randomization.
func Allocate(ctx context.Context, version string, first bool, probe Prober) Allocation {
	if probe == nil {
		probe = BindProbe
	}

	if first || probe(ctx, DefaultLDAPPort) {
		return Allocation{LDAPPort: DefaultLDAPPort, LDAPSPort: DefaultLDAPSPort}
	}

	off := OffsetFor(version)
	return Allocation{LDAPPort: altLDAPBase + off, LDAPSPort: altLDAPSBase + off}
}

// OffsetFor returns the fixed alternate-range offset for an OpenLDAP
// version. The version is reduced to major.minor first; 2.x releases
// outside the table keep the same five-per-minor spacing, and anything
// unparseable falls back to 0.
func OffsetFor(version string) int {
	mm := majorMinor(version)
	if off, ok := versionOffsets[mm]; ok {
		return off
	}

	major, minor, ok := strings.Cut(mm, ".")
	if ok && major == "2" {
		if n, err := strconv.Atoi(minor); err == nil && n >= 4 {
			return (n - 4) * 5
		}
	}
	return 0
}

func majorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}
