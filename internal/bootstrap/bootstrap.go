// Package bootstrap performs the one-time provisioning of a fresh instance:
// it starts a throwaway slapd from the bootstrap configuration, shapes the
// live cn=config database over the unix socket, seeds the directory with the
// initial entries, then shuts the server down and leaves a converted
// runtime configuration behind for the supervisor to start from.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/slaplab/slaplab/internal/constants"
	"github.com/slaplab/slaplab/internal/instance"
	"github.com/slaplab/slaplab/internal/ldapadmin"
	"github.com/slaplab/slaplab/internal/procutil"
	"github.com/slaplab/slaplab/internal/sanitize"
)

// Orchestrator drives the bootstrap sequence for one instance. The timing
// knobs are fields so callers and tests can tighten them.
type Orchestrator struct {
	ic *instance.Context

	ReadyAttempts int
	ReadyInterval time.Duration
	StopTimeout   time.Duration
}

func New(ic *instance.Context) *Orchestrator {
	return &Orchestrator{
		ic:            ic,
		ReadyAttempts: constants.BootstrapReadyAttempts,
		ReadyInterval: constants.BootstrapReadyInterval,
		StopTimeout:   constants.StopGraceTimeout,
	}
}

// Required reports whether the instance still needs its one-time bootstrap:
// either the runtime configuration was never converted or the certificate
// material is missing.
func Required(ic *instance.Context) bool {
	if _, err := os.Stat(filepath.Join(ic.Paths.ConfigDir, "cn=config.ldif")); err != nil {
		return true
	}
	if _, err := os.Stat(ic.Paths.CertFile); err != nil {
		return true
	}
	return false
}

// Run executes the full sequence. A failure in the mandatory steps (launch,
// TLS attachment, final conversion) aborts the bootstrap; everything else
// degrades to warnings so a partially capable slapd build still yields a
// usable instance.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Printf("[Bootstrap] provisioning instance %s", o.ic.Identity.Name())

	cmd, logFile, err := o.launch()
	if err != nil {
		return err
	}
	defer logFile.Close()

	terminated := false
	defer func() {
		if !terminated {
			o.terminate(cmd)
		}
	}()

	if err := o.waitReady(ctx); err != nil {
		log.Printf("[Bootstrap] server not answering after %d probes: %v; continuing anyway",
			o.ReadyAttempts, err)
	}

	if err := o.configure(); err != nil {
		return err
	}
	o.seed()

	o.terminate(cmd)
	terminated = true

	return o.convert(ctx)
}

// launch starts the throwaway slapd on all three listeners, reading the
// bootstrap configuration and converting it into the runtime directory as
// it starts. Output goes to the bootstrap log.
func (o *Orchestrator) launch() (*exec.Cmd, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(o.ic.Paths.BootstrapLog), 0o755); err != nil {
		return nil, nil, fmt.Errorf("bootstrap: create run dir: %w", err)
	}
	logFile, err := os.OpenFile(o.ic.Paths.BootstrapLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open log: %w", err)
	}

	cmd := exec.Command(o.ic.SlapdBinary(),
		"-d", "0",
		"-f", o.ic.Paths.BootstrapConf,
		"-F", o.ic.Paths.ConfigDir,
		"-h", o.ic.ListenerURIs(),
	)
	cmd.Env = o.ic.ChildEnv()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, nil, fmt.Errorf("bootstrap: start slapd: %w", err)
	}
	log.Printf("[Bootstrap] slapd started (pid %d), listening on %s",
		cmd.Process.Pid, o.ic.ListenerURIs())
	return cmd, logFile, nil
}

// waitReady polls the root DSE until the server answers or the bounded
// probe budget runs out.
func (o *Orchestrator) waitReady(ctx context.Context) error {
	probe := func() error {
		client, err := ldapadmin.DialNetwork(o.ic.LDAPURI())
		if err != nil {
			return err
		}
		defer client.Close()
		return client.Ping()
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.ReadyInterval), uint64(o.ReadyAttempts-1)),
		ctx)
	return backoff.Retry(probe, policy)
}

// terminate asks the bootstrap slapd to exit and waits within the stop
// timeout. The process is never force-killed here: a server that ignores
// the signal is still flushing its databases and gets left alone.
func (o *Orchestrator) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	log.Printf("[Bootstrap] stopping bootstrap slapd (pid %d)", pid)
	if err := procutil.GracefulTerminate(cmd.Process); err != nil {
		log.Printf("[Bootstrap] signal slapd (pid %d): %v", pid, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(o.StopTimeout):
		log.Printf("[Bootstrap] slapd (pid %d) still running after %s, leaving it to exit on its own",
			pid, o.StopTimeout)
	}
}

// convert runs slaptest over the bootstrap configuration and the runtime
// directory. With a populated directory this validates what the bootstrap
// server already converted; with an empty one it performs the conversion
// itself. If slaptest fails outright, or succeeds without leaving a
// cn=config.ldif behind, a minimal runtime configuration is assembled by
// hand so the instance can still start.
func (o *Orchestrator) convert(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, o.ic.SlaptestBinary(),
		"-f", o.ic.Paths.BootstrapConf,
		"-F", o.ic.Paths.ConfigDir,
	)
	cmd.Env = o.ic.ChildEnv()

	if out, err := cmd.CombinedOutput(); err != nil {
		log.Printf("[Bootstrap] slaptest: %v: %s", err, sanitize.Diagnostic(out))
		log.Printf("[Bootstrap] assembling minimal runtime configuration instead")
		return writeMinimalConfigDir(o.ic)
	}
	if _, err := os.Stat(filepath.Join(o.ic.Paths.ConfigDir, "cn=config.ldif")); err != nil {
		log.Printf("[Bootstrap] slaptest left no runtime configuration; assembling a minimal one")
		return writeMinimalConfigDir(o.ic)
	}
	return nil
}
