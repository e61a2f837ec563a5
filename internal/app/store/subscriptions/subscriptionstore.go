// internal/app/store/subscriptions/subscriptionstore.go
package subscriptionstore

import (
	"context"
	"errors"

	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when the owner has no subscription document.
var ErrNotFound = errors.New("subscription not found")

// Store reads billing state. Writes belong to the billing integration.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("subscriptions")}
}

func (s *Store) GetByOwner(ctx context.Context, owner string) (models.Subscription, error) {
	var sub models.Subscription
	if err := s.c.FindOne(ctx, bson.M{"owner_id": owner}).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Subscription{}, ErrNotFound
		}
		return models.Subscription{}, err
	}
	return sub, nil
}
