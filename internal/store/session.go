package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hargabyte/jacograph/internal/graph"
)

// ErrSessionClosed is returned when a session is used after Commit or Rollback.
var ErrSessionClosed = errors.New("store session already closed")

// Session is one transaction against the store, normally covering a single
// report file. It implements graph.Sink and ingest.Host. A Session is not
// safe for concurrent use; open one per worker.
type Session struct {
	store *Store
	tx    *sql.Tx
	ctx   context.Context

	filePath  string
	kinds     map[graph.Handle]graph.Kind
	attached  map[graph.Handle]bool
	positions map[graph.Handle]int
	created   int
	now       string
	closed    bool
}

// Begin starts a session. The caller must end it with Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Session{
		store:     s,
		tx:        tx,
		ctx:       ctx,
		kinds:     make(map[graph.Handle]graph.Kind),
		attached:  make(map[graph.Handle]bool),
		positions: make(map[graph.Handle]int),
		now:       time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (ss *Session) exec(query string, args ...any) (sql.Result, error) {
	if ss.closed {
		return nil, ErrSessionClosed
	}
	return ss.tx.ExecContext(ss.ctx, ss.store.dialect.rebind(query), args...)
}

// Report creates the root node for the report at r.FilePath. Every node
// created afterwards in this session is tagged with the same file path so
// that DeleteReport can remove the whole subgraph.
func (ss *Session) Report(r graph.Report) (graph.Handle, error) {
	ss.filePath = r.FilePath
	return ss.Create(r)
}

// Create inserts e as a new node with a fresh uuid.
func (ss *Session) Create(e graph.Entity) (graph.Handle, error) {
	if e == nil {
		return "", fmt.Errorf("create node: nil entity")
	}

	row := nodeRow{
		ID:       uuid.NewString(),
		Kind:     e.Kind(),
		FilePath: nullString(ss.filePath),
	}
	switch v := e.(type) {
	case graph.Report:
		row.Name = nullString(v.Name)
		row.FilePath = nullString(v.FilePath)
	case graph.Package:
		row.Name = nullString(v.Name)
	case graph.Class:
		row.Name = nullString(v.Name)
		row.FQN = nullString(v.FullyQualifiedName)
		row.SourceFile = nullString(v.SourceFileName)
	case graph.Method:
		row.Name = nullString(v.Name)
		row.Signature = nullString(v.Signature)
		row.Line = nullString(v.Line)
	case graph.Counter:
		row.CounterType = nullString(string(v.Type))
		row.Missed = sql.NullInt64{Int64: v.Missed, Valid: true}
		row.Covered = sql.NullInt64{Int64: v.Covered, Valid: true}
	default:
		return "", fmt.Errorf("create node: unsupported entity %T", e)
	}

	_, err := ss.exec(`
        INSERT INTO nodes (id, kind, name, fqn, source_file, signature, line,
            counter_type, missed, covered, file_path, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, string(row.Kind), row.Name, row.FQN, row.SourceFile, row.Signature, row.Line,
		row.CounterType, row.Missed, row.Covered, row.FilePath, ss.now)
	if err != nil {
		return "", fmt.Errorf("insert %s node: %w", row.Kind, err)
	}

	h := graph.Handle(row.ID)
	ss.kinds[h] = row.Kind
	ss.created++
	return h, nil
}

// Attach inserts the edge parent -[rel]-> child. Both nodes must have been
// created in this session.
func (ss *Session) Attach(parent, child graph.Handle, rel graph.Relation) error {
	pk, ok := ss.kinds[parent]
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrUnknownHandle, parent)
	}
	ck, ok := ss.kinds[child]
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrUnknownHandle, child)
	}
	if err := graph.CheckRelation(pk, ck, rel); err != nil {
		return err
	}
	if ss.attached[child] {
		return fmt.Errorf("%w: %s", graph.ErrAlreadyAttached, child)
	}

	pos := ss.positions[parent]
	_, err := ss.exec(`
        INSERT INTO edges (parent_id, child_id, relation, position)
        VALUES (?, ?, ?, ?)`, string(parent), string(child), string(rel), pos)
	if err != nil {
		return fmt.Errorf("insert %s edge: %w", rel, err)
	}

	ss.positions[parent] = pos + 1
	ss.attached[child] = true
	return nil
}

// Created returns the number of nodes inserted by this session.
func (ss *Session) Created() int {
	return ss.created
}

// DeleteReport removes every node and edge previously stored for the
// report file at path. It returns the number of nodes removed.
func (ss *Session) DeleteReport(path string) (int64, error) {
	_, err := ss.exec(`
        DELETE FROM edges WHERE child_id IN (SELECT id FROM nodes WHERE file_path = ?)`, path)
	if err != nil {
		return 0, fmt.Errorf("delete edges of %s: %w", path, err)
	}

	res, err := ss.exec("DELETE FROM nodes WHERE file_path = ?", path)
	if err != nil {
		return 0, fmt.Errorf("delete nodes of %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// SetFileScanned records that a file has been scanned with the given hash.
func (ss *Session) SetFileScanned(path, hash string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := ss.exec(ss.store.dialect.upsertFile, path, hash, now); err != nil {
		return fmt.Errorf("set file scanned %s: %w", path, err)
	}
	return nil
}

// Commit makes the session's writes visible.
func (ss *Session) Commit() error {
	if ss.closed {
		return ErrSessionClosed
	}
	ss.closed = true
	if err := ss.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the session's writes. It is a no-op after Commit, so it
// can be deferred.
func (ss *Session) Rollback() error {
	if ss.closed {
		return nil
	}
	ss.closed = true
	return ss.tx.Rollback()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
