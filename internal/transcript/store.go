// Package transcript persists the durable story record. Only accepted
// narrative ever lands here: the session writes user guidance when it is
// frozen into the window and assistant prose when the writer accepts it.
// Reasoning extracted from a response is stored alongside the entry for
// later inspection but is never part of the story text.
package transcript

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Session is one story.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry is one accepted turn of a session.
type Entry struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	Reasoning string
	CreatedAt time.Time
}

// Store is a SQLite-backed transcript store. It takes an injected
// database handle so tests can run against an in-memory driver.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) a transcript database at path and returns a
// store backed by it.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open transcript database: %w", err)
	}
	s, err := NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore creates a transcript store on an existing database connection
// and ensures the schema exists.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("transcript migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT NOT NULL PRIMARY KEY,
			title      TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS entries (
			id         TEXT NOT NULL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			reasoning  TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_session
			ON entries(session_id, created_at);
	`)
	return err
}

// CreateSession starts a new story and returns it.
func (s *Store) CreateSession(title string) (Session, error) {
	if title == "" {
		title = "Untitled"
	}
	sess := Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	sess.UpdatedAt = sess.CreatedAt

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, sess.ID, sess.Title, timestamp(sess.CreatedAt), timestamp(sess.UpdatedAt))
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(id string) (Session, error) {
	var sess Session
	var created, updated string
	err := s.db.QueryRow(`
		SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Title, &created, &updated)
	if err == sql.ErrNoRows {
		return Session{}, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt = s.parseTimestamp(created)
	sess.UpdatedAt = s.parseTimestamp(updated)
	return sess, nil
}

// Sessions lists all sessions, most recently updated first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, title, created_at, updated_at FROM sessions
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var created, updated string
		if err := rows.Scan(&sess.ID, &sess.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt = s.parseTimestamp(created)
		sess.UpdatedAt = s.parseTimestamp(updated)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AppendEntry records one accepted turn and bumps the session's
// updated_at.
func (s *Store) AppendEntry(sessionID, role, content, reasoning string) (Entry, error) {
	e := Entry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Reasoning: reasoning,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Entry{}, fmt.Errorf("append entry: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO entries (id, session_id, role, content, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.Role, e.Content, e.Reasoning, timestamp(e.CreatedAt))
	if err != nil {
		return Entry{}, fmt.Errorf("append entry: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE sessions SET updated_at = ? WHERE id = ?
	`, timestamp(e.CreatedAt), e.SessionID)
	if err != nil {
		return Entry{}, fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("append entry: %w", err)
	}
	return e, nil
}

// Entries returns all entries of a session in insertion order.
func (s *Store) Entries(sessionID string) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, reasoning, created_at
		FROM entries WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return s.scanEntries(rows)
}

// RecentEntries returns the last n entries of a session in insertion
// order. Used to seed a fresh conversation window when resuming a story.
func (s *Store) RecentEntries(sessionID string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, reasoning, created_at
		FROM entries WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	defer rows.Close()

	entries, err := s.scanEntries(rows)
	if err != nil {
		return nil, err
	}
	// Query walked backwards; restore insertion order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// DeleteSession removes a session and all its entries.
func (s *Store) DeleteSession(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entries WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}

func (s *Store) scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Role, &e.Content, &e.Reasoning, &created); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CreatedAt = s.parseTimestamp(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp returns the zero time for a value that does not parse.
// The row is still served; a mangled timestamp should not make a story
// unreadable.
func (s *Store) parseTimestamp(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.logger.Warn("corrupt timestamp in transcript row", "value", raw, "error", err)
	}
	return t
}
