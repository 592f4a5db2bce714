package instance

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/slaplab/slaplab/internal/constants"
	"github.com/slaplab/slaplab/internal/validate"
)

// Identity names one managed slapd instance: the OpenLDAP version it was
// built from plus the crypto-library variant it is linked against.
type Identity struct {
	Version string
	Variant string
}

// NewIdentity validates and normalizes a (version, variant) pair. A leading
// "v" on the version is accepted and stripped; an empty variant falls back
// to the default variant tag. Both components end up in directory names, so
// anything that is not a plain identifier is rejected.
func NewIdentity(version, variant string) (Identity, error) {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	if version == "" {
		return Identity{}, fmt.Errorf("instance: version must not be empty")
	}
	if !validate.Component(version) {
		return Identity{}, fmt.Errorf("instance: invalid version %q", version)
	}
	variant = strings.TrimSpace(variant)
	if variant == "" {
		variant = constants.DefaultVariant
	}
	if !validate.Component(variant) {
		return Identity{}, fmt.Errorf("instance: invalid variant %q", variant)
	}
	return Identity{Version: version, Variant: variant}, nil
}

// Name returns the canonical instance name, e.g. "2.6-ssl30". Every
// per-instance path is keyed by this name.
func (id Identity) Name() string {
	return id.Version + "-" + id.Variant
}

// Paths contains every filesystem location belonging to one instance.
// All fields derive deterministically from the identity and a root
// directory; the struct is immutable once computed.
type Paths struct {
	DataDir   string // mdb data files
	EtcDir    string // generated configuration
	SSLDir    string // certificate material
	RunDir    string // state file, PID file, socket
	ConfigDir string // converted runtime configuration (slapd.d)

	BootstrapConf string
	ClientConf    string
	EnvScript     string
	CertFile      string
	KeyFile       string
	StateFile     string
	PIDFile       string
	ArgsFile      string
	SocketPath    string
	BootstrapLog  string
}

// Resolve derives the instance layout under rootDir. Pure function, no I/O;
// identical inputs always produce identical paths and distinct identities
// produce disjoint path sets.
func Resolve(id Identity, rootDir string) (Paths, error) {
	if strings.TrimSpace(id.Version) == "" {
		return Paths{}, fmt.Errorf("instance: version must not be empty")
	}

	name := id.Name()
	dataDir := filepath.Join(rootDir, "data", name)
	etcDir := filepath.Join(rootDir, "etc", name)
	runDir := filepath.Join(rootDir, "run", name)

	return Paths{
		DataDir:   dataDir,
		EtcDir:    etcDir,
		SSLDir:    filepath.Join(etcDir, constants.SSLDirName),
		RunDir:    runDir,
		ConfigDir: filepath.Join(etcDir, constants.RuntimeConfDirName),

		BootstrapConf: filepath.Join(etcDir, constants.BootstrapConfName),
		ClientConf:    filepath.Join(etcDir, constants.ClientConfName),
		EnvScript:     filepath.Join(etcDir, constants.EnvScriptName),
		CertFile:      filepath.Join(etcDir, constants.SSLDirName, constants.CertFileName),
		KeyFile:       filepath.Join(etcDir, constants.SSLDirName, constants.KeyFileName),
		StateFile:     filepath.Join(runDir, constants.StateFileName),
		PIDFile:       filepath.Join(runDir, constants.PIDFileName),
		ArgsFile:      filepath.Join(runDir, constants.ArgsFileName),
		SocketPath:    filepath.Join(runDir, constants.SocketFileName),
		BootstrapLog:  filepath.Join(runDir, constants.BootstrapLogName),
	}, nil
}

// EncodeSocketPath escapes every path separator as %2F so an absolute
// socket path can be embedded in an ldapi:// URI the way the OpenLDAP
// command-line tools expect.
func EncodeSocketPath(path string) string {
	return strings.ReplaceAll(path, "/", "%2F")
}
