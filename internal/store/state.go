package store

import (
	"database/sql"
)

// SetState upserts a key/value pair.
func (s *Store) SetState(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO client_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetState returns the value for key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetState(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// DeleteState removes the given keys in one transaction. Missing keys are ignored.
func (s *Store) DeleteState(keys ...string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.Exec(`DELETE FROM client_state WHERE key = ?`, k); err != nil {
			return err
		}
	}
	return tx.Commit()
}
