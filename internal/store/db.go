// Package store provides SQL persistence for the coverage graph.
// Three backends share one schema: an embedded SQLite file (the default),
// an embedded Dolt repository with version history, and PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hargabyte/jacograph/internal/config"

	_ "github.com/dolthub/driver"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNotVersioned is returned by Snapshot on backends without history.
var ErrNotVersioned = errors.New("storage backend has no version history")

// dialect captures the SQL differences between backends.
type dialect struct {
	name   string
	driver string
	// dollar placeholders ($1, $2) instead of ?
	dollar bool
	// inline KEY clauses instead of CREATE INDEX IF NOT EXISTS
	inlineIndexes bool
	upsertFile    string
}

var (
	sqliteDialect = dialect{
		name:   config.BackendSQLite,
		driver: "sqlite",
		upsertFile: `INSERT INTO file_index (file_path, scan_hash, scanned_at) VALUES (?, ?, ?)
        ON CONFLICT(file_path) DO UPDATE SET scan_hash = excluded.scan_hash, scanned_at = excluded.scanned_at`,
	}
	doltDialect = dialect{
		name:          config.BackendDolt,
		driver:        "dolt",
		inlineIndexes: true,
		upsertFile:    `REPLACE INTO file_index (file_path, scan_hash, scanned_at) VALUES (?, ?, ?)`,
	}
	postgresDialect = dialect{
		name:   config.BackendPostgres,
		driver: "pgx",
		dollar: true,
		upsertFile: `INSERT INTO file_index (file_path, scan_hash, scanned_at) VALUES (?, ?, ?)
        ON CONFLICT (file_path) DO UPDATE SET scan_hash = EXCLUDED.scan_hash, scanned_at = EXCLUDED.scanned_at`,
	}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store manages the coverage graph database.
type Store struct {
	db      *sql.DB
	dialect dialect
	dbPath  string // file or repo path for embedded backends, empty for postgres
}

// Open opens or creates the store for cfg. Embedded backends keep their
// data under dataDir (normally the .jcg directory). The schema is created
// if the database is new.
func Open(cfg config.StorageConfig, dataDir string) (*Store, error) {
	var (
		s   *Store
		err error
	)
	switch cfg.Backend {
	case config.BackendSQLite, "":
		s, err = openSQLite(dataDir)
	case config.BackendDolt:
		s, err = openDolt(dataDir)
	case config.BackendPostgres:
		s, err = openPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := s.initSchema(); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

func openSQLite(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "graph.db")

	db, err := sql.Open(sqliteDialect.driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// One connection: SQLite has a single writer, and sessions hold it for
	// the length of a report.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	return &Store{db: db, dialect: sqliteDialect, dbPath: dbPath}, nil
}

func openDolt(dataDir string) (*Store, error) {
	// Dolt repo lives in <dataDir>/graph/
	dbPath := filepath.Join(dataDir, "graph")
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("create dolt directory: %w", err)
	}

	// First, connect without specifying database to create it if needed
	initDSN := fmt.Sprintf("file://%s?commitname=Jacograph&commitemail=jcg@local", dbPath)
	initDB, err := sql.Open(doltDialect.driver, initDSN)
	if err != nil {
		return nil, fmt.Errorf("open dolt for init: %w", err)
	}
	if _, err := initDB.Exec("CREATE DATABASE IF NOT EXISTS jacograph"); err != nil {
		initDB.Close()
		return nil, fmt.Errorf("create database: %w", err)
	}
	initDB.Close()

	dsn := fmt.Sprintf("file://%s?commitname=Jacograph&commitemail=jcg@local&database=jacograph", dbPath)
	db, err := sql.Open(doltDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open dolt db: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &Store{db: db, dialect: doltDialect, dbPath: dbPath}, nil
}

func openPostgres(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: storage.dsn is required for the postgres backend", config.ErrInvalidConfig)
	}
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: db, dialect: postgresDialect}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for advanced operations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path, empty for server backends.
func (s *Store) Path() string {
	return s.dbPath
}

// Backend returns the name of the storage backend in use.
func (s *Store) Backend() string {
	return s.dialect.name
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

// Snapshot records the current state as a Dolt commit and returns its hash.
// Other backends return ErrNotVersioned.
func (s *Store) Snapshot(ctx context.Context, message string) (string, error) {
	if s.dialect.name != config.BackendDolt {
		return "", ErrNotVersioned
	}
	if _, err := s.db.ExecContext(ctx, "CALL DOLT_COMMIT('-Am', ?)", message); err != nil {
		if strings.Contains(err.Error(), "nothing to commit") {
			return "", nil
		}
		return "", fmt.Errorf("dolt commit: %w", err)
	}

	var hash string
	if err := s.db.QueryRowContext(ctx, "SELECT commit_hash FROM dolt_log LIMIT 1").Scan(&hash); err != nil {
		return "", nil
	}
	return hash, nil
}
