package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cybergenix/niva/backend/internal/model/chat"
)

// SQLiteStore keeps every conversation in a single turns table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database file at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// sqlite 只允许单写者
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.Printf("[history] sqlite store ready at %s", path)
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id          TEXT PRIMARY KEY,
		created_at  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		date            INTEGER NOT NULL,
		user_text       TEXT NOT NULL,
		assistant_json  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conv ON turns(conversation_id, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create registers the conversation if it is new.
func (s *SQLiteStore) Create(ctx context.Context, id string) error {
	if err := ValidateConversationID(id); err != nil {
		return err
	}
	return s.create(ctx, s.db, id)
}

// Append inserts a turn, registering the conversation on first write.
func (s *SQLiteStore) Append(ctx context.Context, id string, turn chat.Turn) error {
	if err := ValidateConversationID(id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.create(ctx, tx, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, date, user_text, assistant_json) VALUES (?, ?, ?, ?)`,
		id, turn.Date, turn.User, turn.Assistant,
	); err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	return tx.Commit()
}

// Recent returns the newest limit turns, oldest first.
func (s *SQLiteStore) Recent(ctx context.Context, id string, limit int) ([]chat.Turn, error) {
	if err := ValidateConversationID(id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []chat.Turn{}, nil
	}

	turns, err := s.query(ctx,
		`SELECT date, user_text, assistant_json FROM turns WHERE conversation_id = ?
		 ORDER BY date DESC, id DESC LIMIT ?`, id, limit,
	)
	if err != nil {
		return nil, err
	}
	reverse(turns)
	return turns, nil
}

// All returns the full transcript in insertion order.
func (s *SQLiteStore) All(ctx context.Context, id string) ([]chat.Turn, error) {
	if err := ValidateConversationID(id); err != nil {
		return nil, err
	}

	return s.query(ctx,
		`SELECT date, user_text, assistant_json FROM turns WHERE conversation_id = ?
		 ORDER BY date ASC, id ASC`, id,
	)
}

// Conversations lists ids in lexical order.
func (s *SQLiteStore) Conversations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM conversations ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) create(ctx context.Context, exec execer, id string) error {
	_, err := exec.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id, created_at) VALUES (?, ?)`,
		id, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("register conversation %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]chat.Turn, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := make([]chat.Turn, 0)
	for rows.Next() {
		var t chat.Turn
		if err := rows.Scan(&t.Date, &t.User, &t.Assistant); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
