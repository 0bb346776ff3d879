// Package duckstore is the durable storage.Store backend, built on DuckDB
// via database/sql. Every mutation and its commit-log entry are written in
// the same sql.Tx so a crash mid-write never leaves one without the other.
package duckstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/chatmesh/chatmesh/internal/storage"
)

// Store is a storage.Store backed by a DuckDB file (or :memory:).
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the DuckDB file at path.
func Open(path string) (*sql.DB, error) {
	return sql.Open("duckdb", path)
}

// New wraps an already-open *sql.DB. Call Ensure before using it.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("duckstore: nil db")
	}
	return &Store{db: db}, nil
}

// Ensure creates the schema if it does not already exist. Safe to call
// repeatedly.
func (s *Store) Ensure(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS commits (
			seq BIGINT PRIMARY KEY,
			id VARCHAR NOT NULL,
			request_json VARCHAR NOT NULL,
			checksum BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username VARCHAR PRIMARY KEY,
			password_hash VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id VARCHAR PRIMARY KEY,
			sender VARCHAR NOT NULL,
			recipient VARCHAR NOT NULL,
			body VARCHAR NOT NULL,
			timestamp DOUBLE NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS messages_recipient_idx ON messages(recipient)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("duckstore: ensure schema: %w", err)
		}
	}
	return nil
}

// DB returns the underlying *sql.DB, mainly for tests and migrations.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func checksum(blob []byte) []byte {
	sum := blake2b.Sum256(blob)
	return sum[:]
}

var _ storage.Store = (*Store)(nil)
