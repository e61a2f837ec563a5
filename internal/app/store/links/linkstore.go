// internal/app/store/links/linkstore.go
package linkstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no link matches the id.
	ErrNotFound = errors.New("link not found")
	// ErrNoHeadroom is returned by Claim when the link filled up or was
	// marked exhausted after it was read.
	ErrNoHeadroom = errors.New("link has no headroom")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("links")}
}

// scanOrder is the allocation order: priority, then creation time, then id.
var scanOrder = bson.D{
	{Key: "priority", Value: 1},
	{Key: "created_at", Value: 1},
	{Key: "_id", Value: 1},
}

func (s *Store) Create(ctx context.Context, l models.Link) (models.Link, error) {
	now := time.Now().UTC()
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	l.CreatedAt = now
	l.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, l); err != nil {
		return models.Link{}, err
	}
	return l, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Link, error) {
	var l models.Link
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Link{}, ErrNotFound
		}
		return models.Link{}, err
	}
	return l, nil
}

// ListByGroup returns the group's links in allocation order.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Link, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID}, options.Find().SetSort(scanOrder))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Link{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MaxPriority returns the highest priority among the group's links, or 0 when it has none.
func (s *Store) MaxPriority(ctx context.Context, groupID primitive.ObjectID) (int, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "priority", Value: -1}}).
		SetProjection(bson.M{"priority": 1})
	var l models.Link
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID}, opts).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return l.Priority, nil
}

// SetCounts overwrites member_count and/or max_members. exhausted is not touched.
func (s *Store) SetCounts(ctx context.Context, id primitive.ObjectID, memberCount, maxMembers *int) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if memberCount != nil {
		set["member_count"] = *memberCount
	}
	if maxMembers != nil {
		set["max_members"] = *maxMembers
	}
	return s.set(ctx, id, set)
}

func (s *Store) SetExhausted(ctx context.Context, id primitive.ObjectID, v bool) error {
	return s.set(ctx, id, bson.M{"exhausted": v, "updated_at": time.Now().UTC()})
}

func (s *Store) SetTarget(ctx context.Context, id primitive.ObjectID, target string) error {
	return s.set(ctx, id, bson.M{"target": target, "updated_at": time.Now().UTC()})
}

// SetPriority updates the priority of a link that belongs to groupID.
// It reports whether a link was matched; links of other groups are left alone.
func (s *Store) SetPriority(ctx context.Context, groupID, id primitive.ObjectID, priority int) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "group_id": groupID},
		bson.M{"$set": bson.M{"priority": priority, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) set(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim takes one seat on the link if it still has headroom, and marks it
// exhausted when that seat was the last one. The check and the increment are
// a single document update, so two callers can never both take the last seat.
// Returns the link as it is after the claim, or ErrNoHeadroom.
func (s *Store) Claim(ctx context.Context, id primitive.ObjectID) (models.Link, error) {
	filter := bson.M{
		"_id":       id,
		"exhausted": false,
		"$expr":     bson.M{"$lt": bson.A{"$member_count", "$max_members"}},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"member_count": bson.M{"$add": bson.A{"$member_count", 1}},
			"updated_at":   time.Now().UTC(),
		}}},
		{{Key: "$set", Value: bson.M{
			"exhausted": bson.M{"$gte": bson.A{"$member_count", "$max_members"}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var l models.Link
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Link{}, ErrNoHeadroom
		}
		return models.Link{}, err
	}
	return l, nil
}

// Delete removes a link by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByGroup removes every link of a group.
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
