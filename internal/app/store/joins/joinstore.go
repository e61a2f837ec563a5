// internal/app/store/joins/joinstore.go
package joinstore

import (
	"context"
	"time"

	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store holds the append-only join records.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("join_records")}
}

// Insert appends a record. ID and Timestamp are filled in when zero.
func (s *Store) Insert(ctx context.Context, rec models.JoinRecord) (models.JoinRecord, error) {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, rec); err != nil {
		return models.JoinRecord{}, err
	}
	return rec, nil
}

// ListByEntry returns up to limit records for an entry, newest first.
func (s *Store) ListByEntry(ctx context.Context, entryID primitive.ObjectID, limit int64) ([]models.JoinRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"entry_id": entryID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.JoinRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Scope selects the records a count applies to.
type Scope struct {
	EntryID *primitive.ObjectID
	GroupID *primitive.ObjectID
}

// Count returns the number of records in scope. A zero since counts all time.
func (s *Store) Count(ctx context.Context, scope Scope, since time.Time) (int64, error) {
	q := bson.M{}
	if scope.EntryID != nil {
		q["entry_id"] = *scope.EntryID
	}
	if scope.GroupID != nil {
		q["group_id"] = *scope.GroupID
	}
	if !since.IsZero() {
		q["timestamp"] = bson.M{"$gte": since}
	}
	return s.c.CountDocuments(ctx, q)
}

// DeleteBefore removes records older than cutoff and returns how many went.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
