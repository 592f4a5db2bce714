package constants

import "time"

// Shared duration vocabulary used by timeouts, polling and retry checks.
// Keep these centralized to simplify system-wide timing tuning.
const (
	Duration500Milliseconds = 500 * time.Millisecond

	Duration1Second   = 1 * time.Second
	Duration2Seconds  = 2 * time.Second
	Duration5Seconds  = 5 * time.Second
	Duration10Seconds = 10 * time.Second
)

// Domain-level timing defaults. The tool configuration file may override
// each of these at runtime.
const (
	// Bounded readiness poll against the bootstrap daemon's root DSE.
	BootstrapReadyAttempts = 10
	BootstrapReadyInterval = Duration2Seconds

	// Grace period between SIGTERM and SIGKILL when stopping slapd, and
	// the liveness poll cadence within it.
	StopGraceTimeout = Duration10Seconds
	StopPollInterval = Duration500Milliseconds

	// Per-operation timeout for administrative LDAP requests.
	AdminOpTimeout = Duration10Seconds
)
