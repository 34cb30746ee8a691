/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS sessions (
	couple_id TEXT NOT NULL,
	game TEXT NOT NULL,
	doc TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (couple_id, game)
)`

// SQLite is a durable Backend keeping one JSON document per session key,
// so rounds survive a server restart.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the session database at path.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping session db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Read implements Backend.
func (s *SQLite) Read(ctx context.Context, key Key) (Document, bool, error) {
	var raw string

	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM sessions WHERE couple_id = ? AND game = ?`,
		key.CoupleID, string(key.Game),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("read session %s/%s: %w", key.CoupleID, key.Game, err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Document{}, false, fmt.Errorf("decode session %s/%s: %w", key.CoupleID, key.Game, err)
	}
	return doc, true, nil
}

// Write implements Backend. Upsert of the whole document; the row-level
// conflict clause gives last-writer-wins at the storage layer.
func (s *SQLite) Write(ctx context.Context, key Key, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode session %s/%s: %w", key.CoupleID, key.Game, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (couple_id, game, doc, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (couple_id, game) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		key.CoupleID, string(key.Game), string(raw), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write session %s/%s: %w", key.CoupleID, key.Game, err)
	}
	return nil
}

// Close implements Backend.
func (s *SQLite) Close() error {
	return s.db.Close()
}
