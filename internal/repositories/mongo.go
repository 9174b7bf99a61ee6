package repositories

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultMongoDatabase = "keytrack"
	usersCollection      = "users"
	mongoTimeout         = 10 * time.Second
)

// MongoStore is the MongoDB [DocumentStore]. Documents are keyed by user ID.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongoStore connects to uri and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: mongo uri is required", shared.ErrInvalidConfig)
	}
	if database == "" {
		database = defaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo instance: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo instance: %w", err)
	}

	return &MongoStore{client: client, users: client.Database(database).Collection(usersCollection)}, nil
}

// Get loads the user's document.
func (s *MongoStore) Get(ctx context.Context, userID string) (*models.UserDocument, error) {
	var doc models.UserDocument
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", shared.ErrDocumentNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user document: %w", err)
	}

	if doc.ChordProgressions == nil {
		doc.ChordProgressions = make(map[string]string)
	}
	return &doc, nil
}

// Put replaces the progressions map, creating the document when missing.
func (s *MongoStore) Put(ctx context.Context, doc *models.UserDocument) error {
	if err := validDocument(doc); err != nil {
		return err
	}

	progressions := make(map[string]string, len(doc.ChordProgressions))
	for trackID, text := range doc.ChordProgressions {
		if strings.TrimSpace(text) != "" {
			progressions[trackID] = text
		}
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"chordProgressions": progressions, "updatedAt": now}}
	if _, err := s.users.UpdateOne(ctx, bson.M{"_id": doc.UserID}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save user document: %w", err)
	}
	doc.UpdatedAt = now
	return nil
}

// SetProgression sets or unsets a single field of the progressions map.
func (s *MongoStore) SetProgression(ctx context.Context, userID, trackID, text string) error {
	if userID == "" || trackID == "" {
		return fmt.Errorf("%w: user and track ids are required", shared.ErrMissingArgument)
	}

	update := progressionUpdate(trackID, text, time.Now().UTC())
	if _, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save chord progression for %s: %w", trackID, err)
	}
	return nil
}

// progressionUpdate builds the update document for one track.
func progressionUpdate(trackID, text string, now time.Time) bson.M {
	field := "chordProgressions." + trackID
	if strings.TrimSpace(text) == "" {
		return bson.M{
			"$unset": bson.M{field: ""},
			"$set":   bson.M{"updatedAt": now},
		}
	}
	return bson.M{"$set": bson.M{field: text, "updatedAt": now}}
}

// Users lists the IDs of every stored document, sorted.
func (s *MongoStore) Users(ctx context.Context) ([]string, error) {
	values, err := s.users.Distinct(ctx, "_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list user documents: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Delete removes the user's document.
func (s *MongoStore) Delete(ctx context.Context, userID string) error {
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete user document: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", shared.ErrDocumentNotFound, userID)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
