// Package store provides the data access layer for the pepite database.
//
// The store receives an already-opened *sql.DB (see dbopen) and exposes
// plain CRUD per entity. It never owns connection lifecycle.
package store

import "database/sql"

// Store wraps the pepite database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}
