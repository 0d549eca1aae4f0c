package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybergenix/niva/backend/internal/model/chat"
)

func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	factories := map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
			require.NoError(t, err)
			return store
		},
	}

	if uri := os.Getenv("MONGODB_TEST_URI"); uri != "" {
		factories["mongo"] = func() Store {
			store, err := NewMongoStore(context.Background(), uri, "niva_test_"+NewConversationID()[:8])
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.db.Drop(context.Background()) })
			return store
		}
	}
	return factories
}

func TestStoreFreshConversationIsEmpty(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close(ctx)

			turns, err := store.All(ctx, NewConversationID())
			require.NoError(t, err)
			assert.Empty(t, turns)
			assert.NotNil(t, turns)

			recent, err := store.Recent(ctx, "never-used", 20)
			require.NoError(t, err)
			assert.Empty(t, recent)
		})
	}
}

func TestStoreKeepsInsertionOrder(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close(ctx)

			const n = 5
			for i := 0; i < n; i++ {
				// 相同时间戳也要保持插入顺序
				turn := chat.Turn{Date: 1000, User: fmt.Sprintf("q%d", i), Assistant: "[]"}
				require.NoError(t, store.Append(ctx, "conv-a", turn))
			}
			require.NoError(t, store.Append(ctx, "conv-b", chat.Turn{Date: 1, User: "other", Assistant: "[]"}))

			turns, err := store.All(ctx, "conv-a")
			require.NoError(t, err)
			require.Len(t, turns, n)
			for i, turn := range turns {
				assert.Equal(t, fmt.Sprintf("q%d", i), turn.User)
			}
		})
	}
}

func TestStoreRecentReturnsNewestOldestFirst(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close(ctx)

			for i := 0; i < 25; i++ {
				turn := chat.Turn{Date: int64(i), User: fmt.Sprintf("q%d", i), Assistant: "[]"}
				require.NoError(t, store.Append(ctx, "conv", turn))
			}

			turns, err := store.Recent(ctx, "conv", 20)
			require.NoError(t, err)
			require.Len(t, turns, 20)
			assert.Equal(t, "q5", turns[0].User)
			assert.Equal(t, "q24", turns[19].User)

			none, err := store.Recent(ctx, "conv", 0)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStoreConversations(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close(ctx)

			require.NoError(t, store.Create(ctx, "charlie"))
			require.NoError(t, store.Create(ctx, "alpha"))
			require.NoError(t, store.Create(ctx, "alpha"))
			require.NoError(t, store.Append(ctx, "beta", chat.NewTurn("hi", "[]")))

			ids, err := store.Conversations(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha", "beta", "charlie"}, ids, "ids are listed in lexical order")
			assert.NoError(t, store.Ping(ctx))
		})
	}
}

func TestStoreRejectsInvalidIDs(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close(ctx)

			err := store.Append(ctx, "system.users", chat.NewTurn("hi", "[]"))
			assert.ErrorIs(t, err, ErrInvalidConversationID)

			_, err = store.All(ctx, "")
			assert.ErrorIs(t, err, ErrInvalidConversationID)
		})
	}
}

func TestValidateConversationID(t *testing.T) {
	assert.NoError(t, ValidateConversationID("default"))
	assert.NoError(t, ValidateConversationID(NewConversationID()))
	assert.Error(t, ValidateConversationID("a/b"))
	assert.Error(t, ValidateConversationID("$cmd"))
	assert.Error(t, ValidateConversationID(string(make([]byte, 65))))
}
