package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		level INTEGER NOT NULL DEFAULT 0 CHECK (level >= 0),
		ord REAL NOT NULL DEFAULT 0,
		payload JSON
	);
	CREATE INDEX IF NOT EXISTS idx_parent_ord ON nodes(parent_id, ord);
	`,
	placeholder: func(int) string { return "?" },
	upsert: `
		INSERT OR REPLACE INTO nodes (id, parent_id, level, ord, payload)
		VALUES (?, ?, ?, ?, ?)
	`,
}

// OpenSQLite opens (or creates) a SQLite forest database at path.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single writer keeps transactions from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}

	s := &DB{db: db, dialect: sqliteDialect}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
