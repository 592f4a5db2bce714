// Package supervisor owns the lifecycle of one slapd instance: observing
// its state, bringing it up (including the one-time bootstrap on first
// start), taking it down and removing it. All process tracking goes through
// the persisted state record and slapd's own pid file; nothing is held in
// memory between invocations.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/slaplab/slaplab/internal/bootstrap"
	"github.com/slaplab/slaplab/internal/certs"
	"github.com/slaplab/slaplab/internal/constants"
	"github.com/slaplab/slaplab/internal/instance"
	"github.com/slaplab/slaplab/internal/ports"
	"github.com/slaplab/slaplab/internal/procutil"
	"github.com/slaplab/slaplab/internal/registry"
	"github.com/slaplab/slaplab/internal/slapdconf"
	"github.com/slaplab/slaplab/internal/state"
)

// State is the lifecycle position of an instance as observed from disk and
// the process table.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Supervisor drives one instance. The timing fields default from the shared
// constants; callers may tighten them before use.
type Supervisor struct {
	ic  *instance.Context
	reg *registry.Registry

	StopTimeout  time.Duration
	PollInterval time.Duration

	// Bootstrap knobs, forwarded when a first start provisions the
	// instance. Zero values keep the bootstrap defaults.
	ReadyAttempts int
	ReadyInterval time.Duration

	// Prober overrides the port occupancy probe in tests.
	Prober ports.Prober
}

func New(ic *instance.Context, reg *registry.Registry) *Supervisor {
	return &Supervisor{
		ic:           ic,
		reg:          reg,
		StopTimeout:  constants.StopGraceTimeout,
		PollInterval: constants.StopPollInterval,
	}
}

// Status reports the observed state plus the persisted record when one
// exists. A record whose process is gone, or whose pid now belongs to an
// unrelated program, comes back as Stopped with the stale record still
// attached so callers can tell a clean shutdown from a crash.
func (s *Supervisor) Status() (State, *state.Record) {
	rec, ok := state.Load(s.ic.Paths.StateFile)
	if !ok {
		// No record, but an orphaned pid file still counts as running.
		if pid := readPIDFile(s.ic.Paths.PIDFile); pid > 0 && isSlapd(pid) {
			return Running, nil
		}
		return Stopped, nil
	}

	pid := rec.PID
	if pid <= 0 {
		pid = readPIDFile(s.ic.Paths.PIDFile)
	}
	if pid > 0 && isSlapd(pid) {
		return Running, &rec
	}
	return Stopped, &rec
}

// Start brings the instance up. On success the call does not return: the
// process execs into slapd and serves in the foreground until stopped. A
// nil return therefore means the instance was already running. With reset
// set, every instance directory is wiped first and provisioning starts
// over.
func (s *Supervisor) Start(ctx context.Context, reset bool) error {
	if st, rec := s.Status(); st == Running {
		pid := 0
		if rec != nil {
			pid = rec.PID
		}
		log.Printf("[Supervisor] instance %s is already running (pid %d)", s.ic.Identity.Name(), pid)
		return nil
	}

	if err := s.ic.CheckInstalled(); err != nil {
		return err
	}

	if reset {
		if err := s.wipe(); err != nil {
			return err
		}
	}
	if err := s.ic.EnsureDirs(); err != nil {
		return fmt.Errorf("supervisor: create instance tree: %w", err)
	}

	name := s.ic.Identity.Name()
	if _, err := s.reg.Register(ctx, name, s.ic.Identity.Version, s.ic.Identity.Variant); err != nil {
		return fmt.Errorf("supervisor: register instance: %w", err)
	}
	first, err := s.reg.IsFirst(ctx, name)
	if err != nil {
		log.Printf("[Supervisor] first-instance check failed: %v; assuming not first", err)
	}

	alloc := ports.Allocate(ctx, s.ic.Identity.Version, first, s.Prober)
	s.ic.LDAPPort = alloc.LDAPPort
	s.ic.LDAPSPort = alloc.LDAPSPort
	log.Printf("[Supervisor] listeners: ldap=%d ldaps=%d ldapi=%s",
		alloc.LDAPPort, alloc.LDAPSPort, s.ic.Paths.SocketPath)

	if err := s.reg.RecordStart(ctx, name, alloc.LDAPPort, alloc.LDAPSPort); err != nil {
		log.Printf("[Supervisor] record start in registry: %v", err)
	}

	if _, err := certs.New(s.ic).Ensure(ctx, reset); err != nil {
		return err
	}
	if err := slapdconf.WriteAll(s.ic); err != nil {
		return err
	}

	if bootstrap.Required(s.ic) {
		b := bootstrap.New(s.ic)
		if s.ReadyAttempts > 0 {
			b.ReadyAttempts = s.ReadyAttempts
		}
		if s.ReadyInterval > 0 {
			b.ReadyInterval = s.ReadyInterval
		}
		if s.StopTimeout > 0 {
			b.StopTimeout = s.StopTimeout
		}
		if err := b.Run(ctx); err != nil {
			return err
		}
	}

	rec := state.Record{
		Instance:   name,
		Prefix:     s.ic.Prefix,
		Variant:    s.ic.Identity.Variant,
		LDAPPort:   s.ic.LDAPPort,
		LDAPSPort:  s.ic.LDAPSPort,
		SocketPath: s.ic.Paths.SocketPath,
		URI:        s.ic.LDAPURI(),
		LDAPIURI:   s.ic.SocketURI(),
		PID:        os.Getpid(),
		StartedAt:  time.Now(),
	}
	if err := state.Save(s.ic.Paths.StateFile, rec); err != nil {
		return err
	}

	log.Printf("[Supervisor] starting slapd in the foreground, %s", s.ic.ListenerURIs())
	argv := []string{"slapd", "-d", "0", "-F", s.ic.Paths.ConfigDir, "-h", s.ic.ListenerURIs()}
	if err := execSlapd(s.ic.SlapdBinary(), argv, s.ic.ChildEnv()); err != nil {
		_ = state.Clear(s.ic.Paths.StateFile)
		return fmt.Errorf("supervisor: exec slapd: %w", err)
	}
	return nil
}

// Stop takes the instance down: SIGTERM, a bounded poll for exit, SIGKILL
// only if the grace period runs out. Stopping an instance that is not
// running is not an error, and stale bookkeeping is cleaned up on the way.
func (s *Supervisor) Stop(ctx context.Context) error {
	name := s.ic.Identity.Name()

	pid := s.currentPID()
	if pid <= 0 {
		log.Printf("[Supervisor] instance %s is not running", name)
		return s.clearRuntime()
	}
	if !isSlapd(pid) {
		log.Printf("[Supervisor] recorded pid %d is gone or not slapd; clearing stale state", pid)
		return s.clearRuntime()
	}

	log.Printf("[Supervisor] stopping slapd (pid %d)", pid)
	if err := procutil.TerminateByPID(pid); err != nil {
		return fmt.Errorf("supervisor: signal pid %d: %w", pid, err)
	}

	if err := s.waitExit(ctx, pid); err != nil {
		log.Printf("[Supervisor] slapd (pid %d) did not exit within %s; forcing", pid, s.StopTimeout)
		if err := procutil.ForceKillByPID(pid); err != nil && procutil.IsProcessAlive(pid) {
			return fmt.Errorf("supervisor: kill pid %d: %w", pid, err)
		}
	}

	log.Printf("[Supervisor] instance %s stopped", name)
	return s.clearRuntime()
}

// Clean stops the instance if needed and removes everything it owns on
// disk. The registry row survives so a re-created instance keeps its
// position in the port allocation order.
func (s *Supervisor) Clean(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}

	for _, dir := range []string{s.ic.Paths.DataDir, s.ic.Paths.EtcDir, s.ic.Paths.RunDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("supervisor: remove %s: %w", dir, err)
		}
		log.Printf("[Supervisor] removed %s", dir)
	}
	return nil
}

// wipe clears the instance directories ahead of a reset start. Certificate
// material lives under etc and goes with it.
func (s *Supervisor) wipe() error {
	log.Printf("[Supervisor] reset requested, wiping instance %s", s.ic.Identity.Name())
	for _, dir := range []string{s.ic.Paths.DataDir, s.ic.Paths.EtcDir, s.ic.Paths.RunDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("supervisor: wipe %s: %w", dir, err)
		}
	}
	return nil
}

// waitExit polls the process table until pid is gone or the grace period
// ends.
func (s *Supervisor) waitExit(ctx context.Context, pid int) error {
	check := func() error {
		if procutil.IsProcessAlive(pid) {
			return fmt.Errorf("pid %d still running", pid)
		}
		return nil
	}

	retries := uint64(1)
	if s.PollInterval > 0 {
		if n := int64(s.StopTimeout / s.PollInterval); n > 0 {
			retries = uint64(n)
		}
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.PollInterval), retries),
		ctx)
	return backoff.Retry(check, policy)
}

// clearRuntime drops the state record and any leftover pid file or socket.
func (s *Supervisor) clearRuntime() error {
	if err := state.Clear(s.ic.Paths.StateFile); err != nil {
		return err
	}
	for _, path := range []string{s.ic.Paths.PIDFile, s.ic.Paths.SocketPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[Supervisor] remove %s: %v", path, err)
		}
	}
	return nil
}

func (s *Supervisor) currentPID() int {
	if rec, ok := state.Load(s.ic.Paths.StateFile); ok && rec.PID > 0 {
		return rec.PID
	}
	return readPIDFile(s.ic.Paths.PIDFile)
}

func readPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// isSlapd reports whether pid is alive and actually belongs to a slapd
// process, guarding every signal we send against pid reuse.
func isSlapd(pid int) bool {
	return procutil.IsProcessAlive(pid) && procutil.MatchesName(pid, "slapd")
}
