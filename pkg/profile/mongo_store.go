package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const usersCollection = "users"

type profileDocument struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	FullName  string    `bson:"full_name"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoStore is a Store backed by a MongoDB collection, one document per
// identity id.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a profile store over the database's users
// collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(usersCollection)}
}

func (s *MongoStore) Get(ctx context.Context, id string) (*UserProfile, error) {
	var doc profileDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return &UserProfile{
		ID:        doc.ID,
		Email:     doc.Email,
		FullName:  doc.FullName,
		Role:      doc.Role,
		CreatedAt: doc.CreatedAt,
	}, nil
}

// Upsert writes the profile with merge semantics: mutable fields are
// set, created_at is only written on insert. Re-upserting an existing
// document leaves exactly one document and returns no error.
func (s *MongoStore) Upsert(ctx context.Context, p *UserProfile) error {
	update := bson.M{
		"$set": bson.M{
			"email":     p.Email,
			"full_name": p.FullName,
			"role":      p.Role,
		},
		"$setOnInsert": bson.M{
			"created_at": p.CreatedAt,
		},
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": p.ID}, update,
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

var _ Store = (*MongoStore)(nil)
