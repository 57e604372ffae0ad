package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		level INTEGER NOT NULL DEFAULT 0 CHECK (level >= 0),
		ord DOUBLE PRECISION NOT NULL DEFAULT 0,
		payload JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_parent_ord ON nodes(parent_id, ord);
	`,
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	upsert: `
		INSERT INTO nodes (id, parent_id, level, ord, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			level = EXCLUDED.level,
			ord = EXCLUDED.ord,
			payload = EXCLUDED.payload
	`,
}

// OpenPostgres connects through the pgx stdlib driver and ensures the
// nodes table exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &DB{db: db, dialect: postgresDialect}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
