package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ConfigValue returns the stored value for key. ok is false when the key
// has never been set.
func (s *Store) ConfigValue(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.queryRow(ctx, s.db, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read config %q: %w", key, err)
	}
	return value, true, nil
}

// SetConfig inserts or overwrites a config value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write config %q: %w", key, err)
	}
	return nil
}

// AllConfig returns every stored config value.
func (s *Store) AllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.query(ctx, s.db, `SELECT key, value FROM config ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("query config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config: %w", err)
	}
	return out, nil
}
