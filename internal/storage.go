package internal

import (
	"database/sql"
	"errors"
	"sync"
	"time"
)

// KeyValueStore is a durable string slot store
type KeyValueStore interface {
	Get(key string) (value string, ok bool, err error)
	Put(key, value string) error
	Delete(key string) error
}

// Storage is a KeyValueStore backed by the clientKV table
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance
func NewStorage(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Get returns the value stored under key
func (s *Storage) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM clientKV WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Path: key, Op: "read", Err: err}
	}
	return value, true, nil
}

// Put overwrites key with a single upsert statement
func (s *Storage) Put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO clientKV (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return &StorageError{Path: key, Op: "write", Err: err}
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *Storage) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM clientKV WHERE key = ?", key); err != nil {
		return &StorageError{Path: key, Op: "delete", Err: err}
	}
	return nil
}

// Keys lists stored keys matching a LIKE pattern
func (s *Storage) Keys(pattern string) ([]string, error) {
	pairs, err := QueryClientKV(s.db, pattern)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, p.Key)
	}
	return keys, nil
}

// MemoryStorage is an in-process KeyValueStore
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStorage) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
