// Package registry tracks every instance this tool has ever managed in a
// small SQLite database at the root of the instance tree. Its main job is
// answering "which instance was registered first on this host"
// deterministically: the port allocator keeps the well-known ports for the
// first-registered instance and moves later ones to version-derived
// alternates. Rows survive `clean` so first registration never migrates
// between instances.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	defaultBusyTimeout = 5 * time.Second
	timeLayout         = "2006-01-02 15:04:05"
)

// Options describes parameters for opening an instance registry.
type Options struct {
	Path     string // registry database path
	ReadOnly bool   // open database in read-only mode
}

// Registry provides access to the instance registry database.
type Registry struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// Instance is one registry row.
type Instance struct {
	ID            string
	Name          string
	Version       string
	Variant       string
	LDAPPort      int
	LDAPSPort     int
	CreatedAt     time.Time
	LastStartedAt time.Time // zero when the instance never started
}

// NotFoundError indicates a requested record does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// IsNotFound returns true when err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// Open initialises the registry database, creating it and applying the
// schema when necessary.
func Open(opts Options) (*Registry, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("registry: database path must not be empty")
	}

	dsn := opts.Path
	if opts.ReadOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro", opts.Path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := applyPragmas(ctx, db, opts.ReadOnly); err != nil {
		db.Close()
		return nil, err
	}
	if !opts.ReadOnly {
		if err := applySchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Registry{db: db, path: opts.Path, readOnly: opts.ReadOnly}, nil
}

// Close finalises the underlying database connection.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Path returns the filesystem path of the backing database.
func (r *Registry) Path() string {
	return r.path
}

// Register inserts the instance if it is not already present and returns
// the stored row. Re-registering an existing name keeps the original row
// untouched, preserving its registration order.
func (r *Registry) Register(ctx context.Context, name, version, variant string) (Instance, error) {
	if r.readOnly {
		return Instance{}, fmt.Errorf("registry: register instance %s: opened read-only", name)
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO instances (id, name, version, variant)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, uuid.NewString(), name, version, variant); err != nil {
		return Instance{}, fmt.Errorf("registry: register instance %s: %w", name, err)
	}

	return r.Get(ctx, name)
}

// RecordStart stores the allocated ports and stamps the last start time.
func (r *Registry) RecordStart(ctx context.Context, name string, ldapPort, ldapsPort int) error {
	if r.readOnly {
		return fmt.Errorf("registry: record start of %s: opened read-only", name)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE instances
		SET ldap_port = ?, ldaps_port = ?, last_started_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`, ldapPort, ldapsPort, name)
	if err != nil {
		return fmt.Errorf("registry: record start of %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFoundError{Entity: "instance", Key: name}
	}
	return nil
}

// Get returns the registry row for name.
func (r *Registry) Get(ctx context.Context, name string) (Instance, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, version, variant, ldap_port, ldaps_port,
		       created_at, COALESCE(last_started_at, '')
		FROM instances
		WHERE name = ?
	`, name)

	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Instance{}, NotFoundError{Entity: "instance", Key: name}
	}
	if err != nil {
		return Instance{}, fmt.Errorf("registry: load instance %s: %w", name, err)
	}
	return inst, nil
}

// First returns the earliest-registered instance. Ties on the
// second-granularity timestamp break on insertion order.
func (r *Registry) First(ctx context.Context) (Instance, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, version, variant, ldap_port, ldaps_port,
		       created_at, COALESCE(last_started_at, '')
		FROM instances
		ORDER BY created_at, rowid
		LIMIT 1
	`)

	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Instance{}, NotFoundError{Entity: "instance"}
	}
	if err != nil {
		return Instance{}, fmt.Errorf("registry: load first instance: %w", err)
	}
	return inst, nil
}

// IsFirst reports whether name is the earliest-registered instance. An
// empty registry counts as first: the instance about to register will be.
func (r *Registry) IsFirst(ctx context.Context, name string) (bool, error) {
	first, err := r.First(ctx)
	if IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return first.Name == name, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (Instance, error) {
	var (
		inst      Instance
		createdAt string
		startedAt string
	)
	if err := row.Scan(&inst.ID, &inst.Name, &inst.Version, &inst.Variant,
		&inst.LDAPPort, &inst.LDAPSPort, &createdAt, &startedAt); err != nil {
		return Instance{}, err
	}

	if ts, err := time.Parse(timeLayout, createdAt); err == nil {
		inst.CreatedAt = ts
	}
	if startedAt != "" {
		if ts, err := time.Parse(timeLayout, startedAt); err == nil {
			inst.LastStartedAt = ts
		}
	}

	return inst, nil
}
