package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"

	"github.com/google/uuid"

	"github.com/cybergenix/niva/backend/internal/config"
	"github.com/cybergenix/niva/backend/internal/model/chat"
)

var ErrInvalidConversationID = errors.New("invalid conversation id")

var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Store persists conversation turns per conversation id. Turns are append-only.
type Store interface {
	// Create registers an empty conversation so it shows up in Conversations.
	Create(ctx context.Context, id string) error
	Append(ctx context.Context, id string, turn chat.Turn) error
	// Recent returns at most limit of the newest turns, oldest first.
	Recent(ctx context.Context, id string, limit int) ([]chat.Turn, error)
	// All returns every turn in insertion order.
	All(ctx context.Context, id string) ([]chat.Turn, error)
	// Conversations lists known ids in lexical order on every backend.
	Conversations(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ValidateConversationID rejects ids that are unsafe as collection or key names.
func ValidateConversationID(id string) error {
	if !conversationIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidConversationID, id)
	}
	return nil
}

// NewConversationID issues a fresh conversation id.
func NewConversationID() string {
	return uuid.NewString()
}

// Open builds the configured backend and verifies it is reachable.
func Open(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case config.HistoryMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.HistorySQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case config.HistoryMemory:
		log.Println("[history] using in-memory store, turns are lost on restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported history backend %q", cfg.Backend)
	}
}

// reverse flips newest-first query results into chronological order.
func reverse(turns []chat.Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
