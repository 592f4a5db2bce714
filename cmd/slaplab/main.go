package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slaplab/slaplab/internal/config"
	"github.com/slaplab/slaplab/internal/instance"
	"github.com/slaplab/slaplab/internal/registry"
	"github.com/slaplab/slaplab/internal/smoke"
	"github.com/slaplab/slaplab/internal/supervisor"
	slapversion "github.com/slaplab/slaplab/internal/version"
)

var rootCmd *cobra.Command

var validActions = map[string]bool{
	"start":   true,
	"stop":    true,
	"restart": true,
	"status":  true,
	"clean":   true,
	"test":    true,
	"reset":   true,
}

// readOnlyActions never write to the registry and open it read-only.
var readOnlyActions = map[string]bool{
	"status": true,
	"test":   true,
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "slaplab <version> <action> [variant]",
		Short: "Manage local OpenLDAP test instances",
		Long: `slaplab runs disposable slapd instances built from specific OpenLDAP
versions and crypto-library variants, for testing LDAP clients against the
real server.

Actions: start, stop, restart, status, clean, test, reset.

Examples:
  slaplab 2.6 start
  slaplab 2.6 status
  slaplab 2.5 start ssl11
  slaplab 2.6 test
  slaplab 2.6 clean`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	rootCmd.Version = slapversion.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.Flags().Bool("reset", false, "wipe the instance and provision it from scratch before starting")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseInvocation validates the positional arguments into an instance
// identity and an action name.
func parseInvocation(args []string, defaultVariant string) (instance.Identity, string, error) {
	action := args[1]
	if !validActions[action] {
		return instance.Identity{}, "", fmt.Errorf(
			"unknown action %q (expected start, stop, restart, status, clean, test or reset)", action)
	}

	variant := defaultVariant
	if len(args) == 3 && args[2] != "" {
		variant = args[2]
	}

	id, err := instance.NewIdentity(args[0], variant)
	if err != nil {
		return instance.Identity{}, "", err
	}
	return id, action, nil
}

// registryOptions opens the registry read-only for actions that never write
// to it. The very first invocation on a fresh root still opens read-write so
// the database file and schema get created.
func registryOptions(action, path string) registry.Options {
	opts := registry.Options{Path: path}
	if !readOnlyActions[action] {
		return opts
	}
	if _, err := os.Stat(path); err == nil {
		opts.ReadOnly = true
	}
	return opts
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	id, action, err := parseInvocation(args, cfg.DefaultVariant)
	if err != nil {
		return err
	}

	ic, err := instance.NewContext(id, cfg.Root, cfg.InstallRoot)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return fmt.Errorf("create root directory: %w", err)
	}
	reg, err := registry.Open(registryOptions(action, cfg.RegistryPath()))
	if err != nil {
		return err
	}
	defer reg.Close()

	sup := supervisor.New(ic, reg)
	sup.StopTimeout = cfg.Stop.WaitTimeout.Std()
	sup.PollInterval = cfg.Stop.PollInterval.Std()
	sup.ReadyAttempts = cfg.Bootstrap.ReadyAttempts
	sup.ReadyInterval = cfg.Bootstrap.ReadyInterval.Std()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reset, _ := cmd.Flags().GetBool("reset")

	switch action {
	case "start":
		return runStart(ctx, sup, ic, reset)
	case "reset":
		return runStart(ctx, sup, ic, true)
	case "stop":
		return sup.Stop(ctx)
	case "restart":
		if err := sup.Stop(ctx); err != nil {
			return err
		}
		return runStart(ctx, sup, ic, reset)
	case "status":
		return runStatus(sup, ic)
	case "clean":
		return sup.Clean(ctx)
	case "test":
		return runTest(sup, ic, cfg.DefaultVariant)
	}
	return nil
}

func runStart(ctx context.Context, sup *supervisor.Supervisor, ic *instance.Context, reset bool) error {
	if err := sup.Start(ctx, reset); err != nil {
		return err
	}
	// Start only returns without error when the server was already up;
	// otherwise this process has become slapd and never gets here.
	fmt.Printf("%s is already running\n", ic.Identity.Name())
	return nil
}

func runStatus(sup *supervisor.Supervisor, ic *instance.Context) error {
	st, rec := sup.Status()
	name := ic.Identity.Name()

	switch {
	case st == supervisor.Running && rec != nil:
		fmt.Printf("%s: %s (pid %d)\n", name, st, rec.PID)
		fmt.Printf("  ldap:   %s\n", rec.URI)
		fmt.Printf("  ldaps:  ldaps://localhost:%d\n", rec.LDAPSPort)
		fmt.Printf("  ldapi:  %s\n", rec.LDAPIURI)
		fmt.Printf("  prefix: %s\n", rec.Prefix)
		fmt.Printf("  config: %s\n", ic.Paths.ConfigDir)
		fmt.Printf("  data:   %s\n", ic.Paths.DataDir)
		fmt.Printf("  since:  %s\n", rec.StartedAt.Format("2006-01-02 15:04:05"))
	case rec != nil:
		fmt.Printf("%s: %s (stale state, last pid %d)\n", name, st, rec.PID)
	default:
		fmt.Printf("%s: %s\n", name, st)
	}
	return nil
}

// startHint suggests the command that brings the instance up, spelling out
// the variant when it is not the configured default.
func startHint(id instance.Identity, defaultVariant string) string {
	if id.Variant == defaultVariant {
		return fmt.Sprintf("slaplab %s start", id.Version)
	}
	return fmt.Sprintf("slaplab %s start %s", id.Version, id.Variant)
}

func runTest(sup *supervisor.Supervisor, ic *instance.Context, defaultVariant string) error {
	st, rec := sup.Status()
	if st != supervisor.Running || rec == nil {
		return fmt.Errorf("%w; start it first with: %s",
			smoke.ErrNotRunning, startHint(ic.Identity, defaultVariant))
	}

	ic.LDAPPort = rec.LDAPPort
	ic.LDAPSPort = rec.LDAPSPort

	results := smoke.New(ic).Run()
	for _, r := range results {
		if r.OK() {
			fmt.Printf("PASS  %s\n", r.Name)
		} else {
			fmt.Printf("FAIL  %s: %v\n", r.Name, r.Err)
		}
	}

	if n := smoke.Failed(results); n > 0 {
		return fmt.Errorf("%d of %d checks failed", n, len(results))
	}
	fmt.Printf("all %d checks passed\n", len(results))
	return nil
}
