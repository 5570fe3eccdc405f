// Package databasetest provides a per-test in-memory database carrying the
// engine schema. sqlite stands in for PostgreSQL; every statement the stores
// run (conditional updates, RETURNING, multi-VALUES inserts) is valid on both.
package databasetest

import (
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE coupon_batches (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	size       INTEGER NOT NULL,
	created_by TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE coupons (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	code        TEXT NOT NULL UNIQUE,
	batch_id    INTEGER,
	status      TEXT NOT NULL DEFAULT 'ACTIVE',
	expires_at  TIMESTAMP,
	created_by  TEXT NOT NULL DEFAULT '',
	gen_method  TEXT NOT NULL DEFAULT '',
	metadata    TEXT,
	redeemed_at TIMESTAMP,
	redeemed_by TEXT,
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE submissions (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	coupon_id          INTEGER NOT NULL UNIQUE REFERENCES coupons(id),
	contact            TEXT NOT NULL,
	experience         TEXT,
	preference         TEXT,
	client_meta        TEXT,
	assigned_reward_id INTEGER,
	assigned_at        TIMESTAMP,
	assigned_by        TEXT,
	created_at         TIMESTAMP NOT NULL
);

CREATE TABLE reward_accounts (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	category             TEXT NOT NULL,
	service_name         TEXT NOT NULL,
	status               TEXT NOT NULL DEFAULT 'AVAILABLE',
	holder_submission_id INTEGER,
	assigned_at          TIMESTAMP,
	created_at           TIMESTAMP NOT NULL
);

CREATE TABLE audit_entries (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_id     TEXT NOT NULL,
	action       TEXT NOT NULL,
	entity_type  TEXT NOT NULL,
	entity_id    INTEGER NOT NULL,
	before_state TEXT NOT NULL,
	after_state  TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
`

// New opens a fresh in-memory database for one test and applies the schema.
// The pool is capped at a single connection so concurrent test goroutines
// serialize their statements the way row-level isolation would in Postgres.
func New(t *testing.T) *sqlx.DB {
	t.Helper()

	// Use a per-test in-memory database to avoid cross-test interference
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}
