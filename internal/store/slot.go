package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SlotStore is a key-value table holding named durable storage slots.
type SlotStore struct {
	db *sql.DB
}

func NewSlotStore(db *sql.DB) *SlotStore {
	return &SlotStore{db: db}
}

// Get returns the value stored under key. ok is false when the slot is empty.
func (s *SlotStore) Get(key string) (value string, ok bool, err error) {
	err = s.db.QueryRow(`SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get slot %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SlotStore) Put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put slot %q: %w", key, err)
	}
	return nil
}
