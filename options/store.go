// Package options implements a key-value option store over SQLite.
//
// Each key is an independent slot holding one JSON document. Get/Set/Delete
// are atomic per key; there are no cross-key transactions. This is the
// persistence substrate for the scan engine's job record, settings, last-run
// snapshot, and history ledger.
package options

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/avenlon/sitepulse/errors"
)

// Store handles persistence of JSON option values
type Store struct {
	db *sql.DB
}

// NewStore creates a new option store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get unmarshals the value stored under key into dest.
// Returns false when the key is absent; dest is left untouched.
func (s *Store) Get(key string, dest interface{}) (bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM options WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to get option %s", key)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, errors.Wrapf(err, "failed to unmarshal option %s", key)
	}
	return true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal option %s", key)
	}

	query := `
		INSERT INTO options (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, key, string(raw), time.Now()); err != nil {
		return errors.Wrapf(err, "failed to set option %s", key)
	}
	return nil
}

// Delete removes the value stored under key. Deleting an absent key is not
// an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM options WHERE key = ?`, key); err != nil {
		return errors.Wrapf(err, "failed to delete option %s", key)
	}
	return nil
}

// Has reports whether key is present.
func (s *Store) Has(key string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM options WHERE key = ?)`, key).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check option %s", key)
	}
	return exists, nil
}
