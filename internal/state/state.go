// Package state persists the per-instance runtime record: listener ports,
// socket path, connection URI, process id and start time. The record is a
// shell-sourceable key=value file under the instance run directory so that
// external test harnesses can consume it without this tool.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// timeLayout is the human-readable timestamp format used in records.
const timeLayout = "2006-01-02 15:04:05"

// Record is the persisted runtime state of one instance. Created on first
// successful start, overwritten on every start, deleted on stop.
type Record struct {
	Instance   string
	Prefix     string
	Variant    string
	LDAPPort   int
	LDAPSPort  int
	SocketPath string
	URI        string
	LDAPIURI   string
	PID        int
	StartedAt  time.Time
}

// Save writes the record to path atomically: the parent directory is
// created if absent, the record goes to a temp file first (written, synced
// and closed before visible), then replaces path in one rename. The record
// is durable when Save returns.
func Save(path string, rec Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create run directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSTANCE=%s\n", rec.Instance)
	fmt.Fprintf(&b, "PREFIX=%s\n", rec.Prefix)
	fmt.Fprintf(&b, "VARIANT=%s\n", rec.Variant)
	fmt.Fprintf(&b, "LDAP_PORT=%d\n", rec.LDAPPort)
	fmt.Fprintf(&b, "LDAPS_PORT=%d\n", rec.LDAPSPort)
	fmt.Fprintf(&b, "SOCKET_PATH=%s\n", rec.SocketPath)
	fmt.Fprintf(&b, "URI=%s\n", rec.URI)
	fmt.Fprintf(&b, "LDAPI_URI=%s\n", rec.LDAPIURI)
	fmt.Fprintf(&b, "PID=%d\n", rec.PID)
	fmt.Fprintf(&b, "STARTED=%s\n", rec.StartedAt.Format(timeLayout))

	tmpFile, err := os.CreateTemp(dir, ".instance.state.tmp.*")
	if err != nil {
		return fmt.Errorf("state: create temp record: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.WriteString(b.String()); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("state: write record: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("state: chmod record: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("state: sync record: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: close record: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: replace record: %w", err)
	}

	return nil
}

// Load reads the record at path. A missing file, unreadable file or
// unusable content is reported as found=false, never as an error: absent
// state is the normal first-run condition. Individually malformed lines
// are skipped.
func Load(path string) (Record, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, false
	}

	var rec Record
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		switch key {
		case "INSTANCE":
			rec.Instance = value
		case "PREFIX":
			rec.Prefix = value
		case "VARIANT":
			rec.Variant = value
		case "LDAP_PORT":
			if n, err := strconv.Atoi(value); err == nil {
				rec.LDAPPort = n
			}
		case "LDAPS_PORT":
			if n, err := strconv.Atoi(value); err == nil {
				rec.LDAPSPort = n
			}
		case "SOCKET_PATH":
			rec.SocketPath = value
		case "URI":
			rec.URI = value
		case "LDAPI_URI":
			rec.LDAPIURI = value
		case "PID":
			if n, err := strconv.Atoi(value); err == nil {
				rec.PID = n
			}
		case "STARTED":
			if ts, err := time.ParseInLocation(timeLayout, value, time.Local); err == nil {
				rec.StartedAt = ts
			}
		}
	}

	// A record without its instance name is too damaged to trust.
	if rec.Instance == "" {
		return Record{}, false
	}

	return rec, true
}

// Clear removes the record. Clearing an already-absent record succeeds, so
// repeated stops stay idempotent.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("state: remove record: %w", err)
	}
	return nil
}
