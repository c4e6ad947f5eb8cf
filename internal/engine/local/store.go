// Package local is an offline engine backed by a sqlite file. It keeps
// accounts, contacts, chats and messages locally and emits the same events
// as the networked engine, which makes it useful for demos and tests.
package local

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/logging"
)

const eventBuffer = 1024

// Engine implements engine.Engine on top of sqlite.
type Engine struct {
	db     *sql.DB
	logger zerolog.Logger

	mu     sync.Mutex
	events chan engine.Event
	closed bool
}

var _ engine.Engine = (*Engine)(nil)

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Engine, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}
	// One connection serialises writers; callers never hold rows open
	// across queries.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to local database: %w", err)
	}

	e := &Engine{
		db:     db,
		logger: logging.Component("local-engine").With().Str("path", path).Logger(),
		events: make(chan engine.Event, eventBuffer),
	}
	if err := e.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS account_config (
			account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (account_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			id INTEGER NOT NULL,
			address TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (account_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS chats (
			account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			id INTEGER NOT NULL,
			name TEXT NOT NULL,
			chat_type TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			is_protected INTEGER NOT NULL DEFAULT 0,
			is_device INTEGER NOT NULL DEFAULT 0,
			is_self_talk INTEGER NOT NULL DEFAULT 0,
			is_muted INTEGER NOT NULL DEFAULT 0,
			is_contact_request INTEGER NOT NULL DEFAULT 0,
			is_pinned INTEGER NOT NULL DEFAULT 0,
			is_archived INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (account_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS chat_members (
			account_id INTEGER NOT NULL,
			chat_id INTEGER NOT NULL,
			contact_id INTEGER NOT NULL,
			PRIMARY KEY (account_id, chat_id, contact_id),
			FOREIGN KEY (account_id, chat_id) REFERENCES chats(account_id, id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			account_id INTEGER NOT NULL,
			id INTEGER NOT NULL,
			chat_id INTEGER NOT NULL,
			from_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			state INTEGER NOT NULL,
			is_info INTEGER NOT NULL DEFAULT 0,
			show_padlock INTEGER NOT NULL DEFAULT 0,
			file_name TEXT NOT NULL DEFAULT '',
			override_sender_name TEXT NOT NULL DEFAULT '',
			quote_id INTEGER,
			rfc724_mid TEXT NOT NULL,
			PRIMARY KEY (account_id, id),
			FOREIGN KEY (account_id, chat_id) REFERENCES chats(account_id, id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS messages_chat_idx ON messages(account_id, chat_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS messages_state_idx ON messages(account_id, state)`,
	}

	for _, stmt := range statements {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize local schema: %w", err)
		}
	}
	return nil
}

// Events returns the engine's event stream. It closes on Close.
func (e *Engine) Events() <-chan engine.Event {
	return e.events
}

func (e *Engine) emit(ev engine.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.logger.Warn().Stringer("kind", ev.Kind).Int("chat_id", ev.ChatID).Msg("event buffer full, dropping event")
	}
}

// Close closes the database and the event stream.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.events)
	e.mu.Unlock()
	return e.db.Close()
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.ErrClosed
	}
	return nil
}
