package store

import (
	"context"
	"fmt"

	"github.com/hargabyte/jacograph/internal/graph"
)

// CountByKind returns the number of stored nodes per kind. Kinds with no
// nodes are present with a zero count.
func (s *Store) CountByKind(ctx context.Context) (map[graph.Kind]int, error) {
	counts := make(map[graph.Kind]int, len(graph.Kinds))
	for _, k := range graph.Kinds {
		counts[k] = 0
	}

	rows, err := s.query(ctx, "SELECT kind, COUNT(*) FROM nodes GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("count nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[graph.Kind(kind)] = n
	}
	return counts, rows.Err()
}

// Reports returns the stored report nodes ordered by file path.
func (s *Store) Reports(ctx context.Context) ([]*Node, error) {
	return s.nodes(ctx, `
        SELECT `+nodeColumns+` FROM nodes WHERE kind = ? ORDER BY file_path, created_at`,
		string(graph.KindReport))
}

// Children returns the children of the node id in attach order.
func (s *Store) Children(ctx context.Context, id string) ([]*Node, error) {
	return s.nodes(ctx, `
        SELECT n.id, n.kind, n.name, n.fqn, n.source_file, n.signature, n.line,
            n.counter_type, n.missed, n.covered, n.file_path, n.created_at
        FROM edges e JOIN nodes n ON n.id = e.child_id
        WHERE e.parent_id = ?
        ORDER BY e.position`, id)
}

// GetNode returns the node with the given id, or sql.ErrNoRows.
func (s *Store) GetNode(ctx context.Context, id string) (*Node, error) {
	return scanNode(s.queryRow(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id))
}

// Walk visits the subtree rooted at id depth-first in attach order.
func (s *Store) Walk(ctx context.Context, id string, fn func(n *Node, depth int) error) error {
	root, err := s.GetNode(ctx, id)
	if err != nil {
		return fmt.Errorf("get node %s: %w", id, err)
	}
	return s.walk(ctx, root, 0, fn)
}

func (s *Store) walk(ctx context.Context, n *Node, depth int, fn func(*Node, int) error) error {
	if err := fn(n, depth); err != nil {
		return err
	}
	children, err := s.Children(ctx, n.ID)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := s.walk(ctx, c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) nodes(ctx context.Context, query string, args ...any) ([]*Node, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
