// Package config loads the tool configuration: where instance trees live,
// where the OpenLDAP and OpenSSL builds are installed and the timing knobs
// for bootstrap and shutdown. Everything has a default; the YAML file and
// the environment only override.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slaplab/slaplab/internal/constants"
)

const (
	envConfigFile  = "SLAPLAB_CONFIG"
	envRoot        = "SLAPLAB_ROOT"
	envInstallRoot = "SLAPLAB_INSTALL_ROOT"
)

// Duration wraps time.Duration so YAML values like "2s" or "500ms" parse
// naturally.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// BootstrapConfig tunes the readiness poll of the one-time provisioning.
type BootstrapConfig struct {
	ReadyAttempts int      `yaml:"ready_attempts"`
	ReadyInterval Duration `yaml:"ready_interval"`
}

// StopConfig tunes graceful shutdown.
type StopConfig struct {
	WaitTimeout  Duration `yaml:"wait_timeout"`
	PollInterval Duration `yaml:"poll_interval"`
}

// Config is the resolved tool configuration.
type Config struct {
	Root           string          `yaml:"root"`
	InstallRoot    string          `yaml:"install_root"`
	DefaultVariant string          `yaml:"default_variant"`
	Bootstrap      BootstrapConfig `yaml:"bootstrap"`
	Stop           StopConfig      `yaml:"stop"`
}

// RegistryPath returns the location of the instance registry database.
func (c Config) RegistryPath() string {
	return filepath.Join(c.Root, "registry.db")
}

func defaults() Config {
	home, _ := os.UserHomeDir()
	root := filepath.Join(home, ".slaplab")
	return Config{
		Root:           root,
		InstallRoot:    filepath.Join(root, "installs"),
		DefaultVariant: constants.DefaultVariant,
		Bootstrap: BootstrapConfig{
			ReadyAttempts: constants.BootstrapReadyAttempts,
			ReadyInterval: Duration(constants.BootstrapReadyInterval),
		},
		Stop: StopConfig{
			WaitTimeout:  Duration(constants.StopGraceTimeout),
			PollInterval: Duration(constants.StopPollInterval),
		},
	}
}

// Load resolves the configuration: built-in defaults first, then the YAML
// file ($SLAPLAB_CONFIG if set, otherwise config.yaml under the default
// root), then environment overrides. A missing implicit file is normal; a
// missing explicit one, or a file that does not parse, is an error.
func Load() (Config, error) {
	cfg := defaults()

	path := os.Getenv(envConfigFile)
	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.Root, "config.yaml")
	}

	data, err := os.ReadFile(ExpandPath(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No file, defaults stand.
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if v := os.Getenv(envRoot); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv(envInstallRoot); v != "" {
		cfg.InstallRoot = v
	}

	cfg.Root = ExpandPath(cfg.Root)
	cfg.InstallRoot = ExpandPath(cfg.InstallRoot)
	if cfg.Root == "" {
		cfg.Root = defaults().Root
	}
	if cfg.InstallRoot == "" {
		cfg.InstallRoot = filepath.Join(cfg.Root, "installs")
	}
	if cfg.DefaultVariant == "" {
		cfg.DefaultVariant = constants.DefaultVariant
	}
	if cfg.Bootstrap.ReadyAttempts <= 0 {
		cfg.Bootstrap.ReadyAttempts = constants.BootstrapReadyAttempts
	}
	if cfg.Bootstrap.ReadyInterval <= 0 {
		cfg.Bootstrap.ReadyInterval = Duration(constants.BootstrapReadyInterval)
	}
	if cfg.Stop.WaitTimeout <= 0 {
		cfg.Stop.WaitTimeout = Duration(constants.StopGraceTimeout)
	}
	if cfg.Stop.PollInterval <= 0 {
		cfg.Stop.PollInterval = Duration(constants.StopPollInterval)
	}

	return cfg, nil
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
