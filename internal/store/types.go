package store

import (
	"database/sql"
	"time"

	"github.com/hargabyte/jacograph/internal/graph"
)

// Node is a stored graph node with its decoded entity.
type Node struct {
	ID        string       `json:"id" yaml:"id"`
	Kind      graph.Kind   `json:"kind" yaml:"kind"`
	Entity    graph.Entity `json:"entity" yaml:"entity"`
	FilePath  string       `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
}

// FileIndex tracks file scan state for incremental scanning
type FileIndex struct {
	FilePath  string    `json:"file_path" yaml:"file_path"`
	ScanHash  string    `json:"scan_hash" yaml:"scan_hash"`
	ScannedAt time.Time `json:"scanned_at" yaml:"scanned_at"`
}

// nodeRow mirrors the nodes table; columns that do not apply to a kind are NULL.
type nodeRow struct {
	ID          string
	Kind        graph.Kind
	Name        sql.NullString
	FQN         sql.NullString
	SourceFile  sql.NullString
	Signature   sql.NullString
	Line        sql.NullString
	CounterType sql.NullString
	Missed      sql.NullInt64
	Covered     sql.NullInt64
	FilePath    sql.NullString
	CreatedAt   string
}

const nodeColumns = `id, kind, name, fqn, source_file, signature, line,
    counter_type, missed, covered, file_path, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(sc scanner) (*Node, error) {
	var (
		r    nodeRow
		kind string
	)
	err := sc.Scan(&r.ID, &kind, &r.Name, &r.FQN, &r.SourceFile, &r.Signature, &r.Line,
		&r.CounterType, &r.Missed, &r.Covered, &r.FilePath, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Kind = graph.Kind(kind)

	n := &Node{ID: r.ID, Kind: r.Kind, FilePath: r.FilePath.String, Entity: r.entity()}
	n.CreatedAt, _ = time.Parse(time.RFC3339, r.CreatedAt)
	return n, nil
}

func (r nodeRow) entity() graph.Entity {
	switch r.Kind {
	case graph.KindReport:
		return graph.Report{Name: r.Name.String, FilePath: r.FilePath.String}
	case graph.KindPackage:
		return graph.Package{Name: r.Name.String}
	case graph.KindClass:
		return graph.Class{Name: r.Name.String, FullyQualifiedName: r.FQN.String, SourceFileName: r.SourceFile.String}
	case graph.KindMethod:
		return graph.Method{Name: r.Name.String, Signature: r.Signature.String, Line: r.Line.String}
	case graph.KindCounter:
		return graph.Counter{Type: graph.CounterType(r.CounterType.String), Missed: r.Missed.Int64, Covered: r.Covered.Int64}
	}
	return nil
}
