package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session_state (
	id         TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps session states in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, st *SessionState) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_state (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		st.ID, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*SessionState, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM session_state WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session state: %w", err)
	}
	return Decode(data)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_state WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*SessionState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM session_state ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list session states: %w", err)
	}
	defer rows.Close()

	var states []*SessionState
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan session state: %w", err)
		}
		st, err := Decode(data)
		if err != nil {
			continue
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
