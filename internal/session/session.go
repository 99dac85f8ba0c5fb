// Package session provides SQLite-backed admin sessions. A session is an
// opaque token resolved against the sessions table with an explicit expiry,
// never trusted on presence alone.
package session

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
`

// CookieName is the session cookie name.
const CookieName = "session"

// Store wraps a sql.DB with session operations.
type Store struct {
	conn *sql.DB
	ttl  time.Duration
}

// Open opens (or creates) the session database and applies the schema.
func Open(dsn string, ttl time.Duration) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("session: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: apply schema: %w", err)
	}
	return &Store{conn: conn, ttl: ttl}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Issue creates a new session and returns its token. Expired rows are purged
// on the way in so the table stays small.
func (s *Store) Issue() (string, error) {
	_, _ = s.conn.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())

	token := uuid.NewString()
	expires := time.Now().UTC().Add(s.ttl)
	_, err := s.conn.Exec(`INSERT INTO sessions (token, expires_at) VALUES (?, ?)`, token, expires)
	if err != nil {
		return "", fmt.Errorf("session: issue: %w", err)
	}
	return token, nil
}

// Verify reports whether token identifies a live session. An empty or unknown
// token degrades to false, never to an error the caller must handle.
func (s *Store) Verify(token string) bool {
	if token == "" {
		return false
	}
	var n int
	err := s.conn.QueryRow(
		`SELECT COUNT(1) FROM sessions WHERE token = ? AND expires_at > ?`,
		token, time.Now().UTC(),
	).Scan(&n)
	if err != nil {
		return false
	}
	return n > 0
}

// Revoke deletes a session. Revoking an unknown token is a no-op.
func (s *Store) Revoke(token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.conn.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("session: revoke: %w", err)
	}
	return nil
}
