package testsupport

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// schema mirrors the MySQL migrations in internal/database using SQLite
// types, so repositories can be exercised without a MySQL server.
var schema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE todos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		completed_at DATETIME NULL,
		deleted_at DATETIME NULL
	)`,
	`CREATE TABLE sites (
		id INTEGER PRIMARY KEY,
		domain TEXT NOT NULL,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE provider_registrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		client_id TEXT NOT NULL,
		secret TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE provider_sites (
		provider_registration_id INTEGER NOT NULL REFERENCES provider_registrations (id) ON DELETE CASCADE,
		site_id INTEGER NOT NULL REFERENCES sites (id) ON DELETE CASCADE,
		PRIMARY KEY (provider_registration_id, site_id)
	)`,
	`CREATE TABLE social_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		provider TEXT NOT NULL,
		uid TEXT NOT NULL,
		extra_data TEXT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (provider, uid)
	)`,
}

// OpenSQLite returns a fresh in-memory database with the application
// schema and foreign keys enforced.  It is closed when the test ends.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

// InsertUser adds a user row directly and returns its id.
func InsertUser(t testing.TB, db *sql.DB, username, email string) uint64 {
	t.Helper()

	now := time.Now().UTC()
	var mail any
	if email != "" {
		mail = email
	}
	res, err := db.Exec(
		"INSERT INTO users (username, email, password_hash, is_active, created_at, updated_at) VALUES (?, ?, '', 1, ?, ?)",
		username, mail, now, now)
	if err != nil {
		t.Fatalf("insert user %s: %v", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("insert user %s: %v", username, err)
	}
	return uint64(id)
}

// Count returns the number of rows in table matching where.
func Count(t testing.TB, db *sql.DB, table, where string, args ...any) int {
	t.Helper()

	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
