package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/cybergenix/niva/backend/internal/model/chat"
)

const mongoNamespaceExists = 48

// MongoStore keeps one collection per conversation id, documents shaped
// {date, user, assistant}.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects and pings the server, failing when it is unreachable.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	log.Printf("[history] connected to mongodb database=%s", database)
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Create makes the conversation collection so it is listed before the first turn.
func (s *MongoStore) Create(ctx context.Context, id string) error {
	if err := ValidateConversationID(id); err != nil {
		return err
	}

	err := s.db.CreateCollection(ctx, id)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HasErrorCode(mongoNamespaceExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create collection %s: %w", id, err)
	}
	return nil
}

// Append inserts one turn document.
func (s *MongoStore) Append(ctx context.Context, id string, turn chat.Turn) error {
	if err := ValidateConversationID(id); err != nil {
		return err
	}

	if _, err := s.db.Collection(id).InsertOne(ctx, turn); err != nil {
		return fmt.Errorf("insert turn into %s: %w", id, err)
	}
	return nil
}

// Recent reads the newest limit documents and returns them oldest first.
func (s *MongoStore) Recent(ctx context.Context, id string, limit int) ([]chat.Turn, error) {
	if err := ValidateConversationID(id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []chat.Turn{}, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	turns, err := s.find(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	reverse(turns)
	return turns, nil
}

// All returns the whole collection in insertion order.
func (s *MongoStore) All(ctx context.Context, id string) ([]chat.Turn, error) {
	if err := ValidateConversationID(id); err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	return s.find(ctx, id, opts)
}

// Conversations lists the collections that look like conversation ids, in
// lexical order. Mongo keeps no creation order for collections.
func (s *MongoStore) Conversations(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if ValidateConversationID(name) == nil {
			ids = append(ids, name)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) find(ctx context.Context, id string, opts *options.FindOptions) ([]chat.Turn, error) {
	cursor, err := s.db.Collection(id).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", id, err)
	}

	turns := make([]chat.Turn, 0)
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return turns, nil
}
