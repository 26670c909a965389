package scan

import (
	"context"
	"sync"

	"github.com/hargabyte/jacograph/internal/graph"
	"github.com/hargabyte/jacograph/internal/ingest"
	"github.com/hargabyte/jacograph/internal/store"
)

// Target is where a scan writes its graph.
type Target interface {
	IsFileChanged(ctx context.Context, path, hash string) (bool, error)
	Begin(ctx context.Context) (Session, error)
}

// Session is the per-file unit of work of a Target. Writes become visible
// on Commit; Rollback after Commit is a no-op.
type Session interface {
	ingest.Host
	DeleteReport(path string) (int64, error)
	SetFileScanned(path, hash string) error
	Created() int
	Commit() error
	Rollback() error
}

// StoreTarget writes into a SQL store.
type StoreTarget struct {
	Store *store.Store
}

// IsFileChanged implements Target.
func (t StoreTarget) IsFileChanged(ctx context.Context, path, hash string) (bool, error) {
	return t.Store.IsFileChanged(ctx, path, hash)
}

// Begin implements Target.
func (t StoreTarget) Begin(ctx context.Context) (Session, error) {
	sess, err := t.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// MemoryTarget keeps every committed report in its own in-memory graph.
// It backs dry runs: nothing is persisted and every file counts as changed.
type MemoryTarget struct {
	mu     sync.Mutex
	graphs map[string]*graph.Memory
	roots  map[string]graph.Handle
}

// NewMemoryTarget returns an empty MemoryTarget.
func NewMemoryTarget() *MemoryTarget {
	return &MemoryTarget{
		graphs: make(map[string]*graph.Memory),
		roots:  make(map[string]graph.Handle),
	}
}

// IsFileChanged implements Target.
func (t *MemoryTarget) IsFileChanged(context.Context, string, string) (bool, error) {
	return true, nil
}

// Begin implements Target.
func (t *MemoryTarget) Begin(context.Context) (Session, error) {
	return &memorySession{target: t, host: ingest.NewMemoryHost()}, nil
}

// Graph returns the committed graph and report root for path.
func (t *MemoryTarget) Graph(path string) (*graph.Memory, graph.Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.graphs[path]
	return g, t.roots[path], ok
}

// Len returns the number of committed reports.
func (t *MemoryTarget) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.graphs)
}

// memorySession builds one report in a private graph and publishes it to
// the target on Commit.
type memorySession struct {
	target *MemoryTarget
	host   ingest.MemoryHost
	path   string
	root   graph.Handle
	done   bool
}

func (s *memorySession) Report(r graph.Report) (graph.Handle, error) {
	h, err := s.host.Report(r)
	if err != nil {
		return "", err
	}
	s.path, s.root = r.FilePath, h
	return h, nil
}

func (s *memorySession) Create(e graph.Entity) (graph.Handle, error) {
	return s.host.Create(e)
}

func (s *memorySession) Attach(parent, child graph.Handle, rel graph.Relation) error {
	return s.host.Attach(parent, child, rel)
}

// DeleteReport reports how many nodes the previous graph for path holds.
// The graph itself is replaced on Commit.
func (s *memorySession) DeleteReport(path string) (int64, error) {
	s.target.mu.Lock()
	defer s.target.mu.Unlock()
	if g, ok := s.target.graphs[path]; ok {
		return int64(g.NodeCount()), nil
	}
	return 0, nil
}

func (s *memorySession) SetFileScanned(string, string) error { return nil }

func (s *memorySession) Created() int { return s.host.NodeCount() }

func (s *memorySession) Commit() error {
	if s.done {
		return store.ErrSessionClosed
	}
	s.done = true
	if s.path == "" && s.root == "" {
		return nil
	}
	s.target.mu.Lock()
	defer s.target.mu.Unlock()
	s.target.graphs[s.path] = s.host.Memory
	s.target.roots[s.path] = s.root
	return nil
}

func (s *memorySession) Rollback() error {
	s.done = true
	return nil
}
