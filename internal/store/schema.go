package store

import (
	"fmt"
	"strings"
)

// Column types are chosen to be valid in SQLite, Dolt (MySQL) and
// PostgreSQL alike. Keyed text columns are VARCHAR because MySQL cannot
// index unbounded TEXT.
const nodesTable = `
CREATE TABLE IF NOT EXISTS nodes (
    id VARCHAR(64) PRIMARY KEY,       -- uuid
    kind VARCHAR(16) NOT NULL,        -- report, package, class, method, counter
    name TEXT,
    fqn TEXT,                         -- classes only: org.acme.Foo
    source_file TEXT,                 -- classes only: Foo.java
    signature TEXT,                   -- methods only: void bar(int)
    line VARCHAR(32),                 -- methods only, as written in the report
    counter_type VARCHAR(32),         -- counters only: LINE, BRANCH, ...
    missed BIGINT,
    covered BIGINT,
    file_path VARCHAR(512),           -- report file every node belongs to
    created_at VARCHAR(32) NOT NULL%s
)`

// child_id is the key: a node has at most one parent.
const edgesTable = `
CREATE TABLE IF NOT EXISTS edges (
    parent_id VARCHAR(64) NOT NULL,
    child_id VARCHAR(64) NOT NULL PRIMARY KEY,
    relation VARCHAR(16) NOT NULL,    -- HAS_PACKAGE, HAS_CLASS, HAS_METHOD, HAS_COUNTER
    position INTEGER NOT NULL%s
)`

const fileIndexTable = `
CREATE TABLE IF NOT EXISTS file_index (
    file_path VARCHAR(512) PRIMARY KEY,
    scan_hash VARCHAR(32) NOT NULL,
    scanned_at VARCHAR(32) NOT NULL
)`

type index struct {
	name, table, column string
}

var indexes = []index{
	{"idx_nodes_kind", "nodes", "kind"},
	{"idx_nodes_file", "nodes", "file_path"},
	{"idx_edges_parent", "edges", "parent_id"},
}

// schemaStatements returns the DDL for d, one statement per entry. They are
// executed one at a time since not every driver accepts multi-statement Exec.
func schemaStatements(d dialect) []string {
	inline := func(table string) string {
		if !d.inlineIndexes {
			return ""
		}
		var b strings.Builder
		for _, idx := range indexes {
			if idx.table == table {
				fmt.Fprintf(&b, ",\n    KEY %s (%s)", idx.name, idx.column)
			}
		}
		return b.String()
	}

	stmts := []string{
		fmt.Sprintf(nodesTable, inline("nodes")),
		fmt.Sprintf(edgesTable, inline("edges")),
		fileIndexTable,
	}
	if !d.inlineIndexes {
		for _, idx := range indexes {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.name, idx.table, idx.column))
		}
	}
	return stmts
}

// initSchema creates the database tables and indexes if they don't exist.
func (s *Store) initSchema() error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return strings.TrimSuffix(stmt[:i], " (")
	}
	return stmt
}
