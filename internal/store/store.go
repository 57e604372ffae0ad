// Package store persists forests in a SQL nodes table. The same code
// serves SQLite (modernc.org/sqlite) and PostgreSQL (pgx stdlib driver);
// only placeholders, column types and upsert syntax differ.
//
// A DB is both the snapshot provider and the persistence gateway for the
// mutation engine.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/graph"
	"github.com/agentic-research/arbor/internal/mutation"
)

type dialect struct {
	name        string
	schema      string
	placeholder func(n int) string
	upsert      string
}

// DB is a nodes table behind database/sql.
type DB struct {
	db      *sql.DB
	dialect dialect
}

// Open dispatches on driver name: "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case "sqlite", "":
		return OpenSQLite(ctx, dsn)
	case "postgres", "pgx":
		return OpenPostgres(ctx, dsn)
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

func (s *DB) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("create %s schema: %w", s.dialect.name, err)
	}
	return nil
}

// LoadForest reads every node.
func (s *DB) LoadForest(ctx context.Context) ([]api.NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, parent_id, level, ord, payload FROM nodes ORDER BY level, ord, id")
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []api.NodeRecord
	for rows.Next() {
		var (
			r        api.NodeRecord
			parentID sql.NullString
			payload  []byte
		)
		if err := rows.Scan(&r.ID, &parentID, &r.Level, &r.Order, &payload); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		r.ParentID = parentID.String
		if len(payload) > 0 {
			r.Payload = append([]byte(nil), payload...)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateNodes writes a diff in one transaction. Only the fields present in
// each change are touched. A change for a missing row aborts the whole
// transaction with graph.ErrNotFound.
func (s *DB) UpdateNodes(ctx context.Context, changes []api.Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range changes {
		query, args, err := s.updateStatement(c)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update %s: %w", c.ID, err)
		}
		n, _ := result.RowsAffected()
		if n == 0 {
			return fmt.Errorf("update %s: %w", c.ID, graph.ErrNotFound)
		}
	}
	return tx.Commit()
}

func (s *DB) updateStatement(c api.Change) (string, []any, error) {
	f := c.Fields
	if f.Empty() {
		return "", nil, fmt.Errorf("update %s: empty change: %w", c.ID, mutation.ErrRejected)
	}
	if f.Level != nil && *f.Level < 0 {
		return "", nil, fmt.Errorf("update %s: negative level %d: %w", c.ID, *f.Level, mutation.ErrRejected)
	}

	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = "+s.dialect.placeholder(len(args)))
	}
	if f.ParentID != nil {
		add("parent_id", nullable(*f.ParentID))
	}
	if f.Level != nil {
		add("level", *f.Level)
	}
	if f.Order != nil {
		add("ord", *f.Order)
	}
	args = append(args, c.ID)
	query := "UPDATE nodes SET " + strings.Join(sets, ", ") + " WHERE id = " + s.dialect.placeholder(len(args))
	return query, args, nil
}

// Insert creates or replaces nodes. This is how owning features (and the
// importer) create nodes; the engine itself never inserts.
func (s *DB) Insert(ctx context.Context, records []api.NodeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.dialect.upsert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		var payload any
		if len(r.Payload) > 0 {
			payload = string(r.Payload)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, nullable(r.ParentID), r.Level, r.Order, payload); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// Verify interface compliance at compile time.
var (
	_ mutation.Gateway          = (*DB)(nil)
	_ mutation.SnapshotProvider = (*DB)(nil)
)
