package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS clientKV (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// OpenDatabase opens (creating if needed) the client's SQLite database and
// makes sure the key-value table exists. Pass ":memory:" for a throwaway store.
func OpenDatabase(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, &StorageError{Path: path, Op: "open", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps writes serialized and lets :memory: behave as a single database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "migrate", Err: err}
	}

	return db, nil
}

// KeyValuePair represents a key-value pair from clientKV
type KeyValuePair struct {
	Key   string
	Value string
}

// Redacted returns the value with every token field masked, for display.
// Values that are not JSON objects are returned unchanged.
func (p KeyValuePair) Redacted() string {
	var fields map[string]any
	if err := json.Unmarshal([]byte(p.Value), &fields); err != nil {
		return p.Value
	}
	for k, v := range fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(k), "token") {
			fields[k] = maskToken(s)
		}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return p.Value
	}
	return string(out)
}

// QueryClientKV queries the clientKV table with a LIKE pattern
func QueryClientKV(db *sql.DB, pattern string) ([]KeyValuePair, error) {
	rows, err := db.Query("SELECT key, value FROM clientKV WHERE key LIKE ? ORDER BY key", pattern)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var pairs []KeyValuePair
	for rows.Next() {
		var pair KeyValuePair
		if err := rows.Scan(&pair.Key, &pair.Value); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		pairs = append(pairs, pair)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return pairs, nil
}
