// ABOUTME: Repository over the outreach database
// ABOUTME: Store exposes context-aware reads and writes used by the engine and CLI
package db

import (
	"database/sql"
	"strings"
)

// Store provides the engine's persistence operations on top of *sql.DB.
type Store struct {
	db *sql.DB
}

// NewStore creates a new store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
