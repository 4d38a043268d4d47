package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"authgate/internal/session/domain"
)

const sessionCollection = "sessions"

type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns a session repository backed by the "sessions"
// collection of the given database.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(sessionCollection)}
}

// Create persists the session. The session must have ID set.
func (r *MongoRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.coll.InsertOne(ctx, s)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for store failures, not for missing documents.
func (r *MongoRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Update replaces the stored document with s. Sessions have a single
// writer, so a plain replace is sufficient.
func (r *MongoRepository) Update(ctx context.Context, s *domain.Session) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": s.ID}, s)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errors.New("session: update matched no document")
	}
	return nil
}

// ListActiveByAccount returns all ACTIVE sessions belonging to accountID.
func (r *MongoRepository) ListActiveByAccount(ctx context.Context, accountID string) ([]*domain.Session, error) {
	cur, err := r.coll.Find(ctx, bson.M{
		"account_id": accountID,
		"state":      domain.StateActive,
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domain.Session
	for cur.Next(ctx) {
		var s domain.Session
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, cur.Err()
}
