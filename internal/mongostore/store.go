// Package mongostore persists wardrobes in MongoDB, one document per session.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/stylesync/internal/wardrobe"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultDatabase is used when no database name is configured
	DefaultDatabase = "stylesync"
	// CollectionName holds one record per session
	CollectionName = "wardrobes"
)

// record is the stored form of a session's wardrobe. Document holds the
// versioned JSON wardrobe document exactly as the file store writes it.
type record struct {
	SessionID string    `bson:"_id"`
	Version   int       `bson:"version"`
	ItemCount int       `bson:"item_count"`
	Document  string    `bson:"document"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store implements wardrobe.Store on a MongoDB collection
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

var _ wardrobe.Store = (*Store)(nil)

// Connect opens a client for uri and verifies it with a ping
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	if database == "" {
		database = DefaultDatabase
	}
	return &Store{
		client:     client,
		collection: client.Database(database).Collection(CollectionName),
		now:        time.Now,
	}, nil
}

// Load returns the session's collection, or an empty one
func (s *Store) Load(ctx context.Context, sessionID string) (*wardrobe.Collection, error) {
	if err := wardrobe.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	var rec record
	err := s.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return wardrobe.NewCollection(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wardrobe: %w", err)
	}
	return decodeRecord(&rec)
}

// Save upserts the session's document
func (s *Store) Save(ctx context.Context, sessionID string, c *wardrobe.Collection) error {
	if err := wardrobe.ValidateSessionID(sessionID); err != nil {
		return err
	}
	rec, err := encodeRecord(sessionID, c, s.now())
	if err != nil {
		return err
	}

	_, err = s.collection.ReplaceOne(ctx, bson.M{"_id": sessionID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save wardrobe: %w", err)
	}
	return nil
}

// Delete removes the session's document
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := wardrobe.ValidateSessionID(sessionID); err != nil {
		return err
	}
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete wardrobe: %w", err)
	}
	return nil
}

// Ping checks the server is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func encodeRecord(sessionID string, c *wardrobe.Collection, now time.Time) (*record, error) {
	doc := wardrobe.NewDocument(sessionID, c)
	data, err := wardrobe.Encode(doc)
	if err != nil {
		return nil, err
	}
	return &record{
		SessionID: sessionID,
		Version:   doc.Version,
		ItemCount: c.Len(),
		Document:  string(data),
		UpdatedAt: now.UTC(),
	}, nil
}

func decodeRecord(rec *record) (*wardrobe.Collection, error) {
	doc, err := wardrobe.Decode([]byte(rec.Document))
	if err != nil {
		return nil, fmt.Errorf("stored wardrobe for %s: %w", rec.SessionID, err)
	}
	return wardrobe.FromDocument(doc)
}
