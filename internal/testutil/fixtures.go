package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	gatewaystore "github.com/dalemusser/joinlink/internal/app/store/gateways"
	groupstore "github.com/dalemusser/joinlink/internal/app/store/groups"
	linkstore "github.com/dalemusser/joinlink/internal/app/store/links"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that call a handler method without a router.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data in a real database.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateGroup creates an active group with a link capacity default of 10.
func (f *Fixtures) CreateGroup(ctx context.Context, owner, name string) models.Group {
	f.t.Helper()
	g, err := groupstore.New(f.db).Create(ctx, models.Group{
		OwnerID:           owner,
		Name:              name,
		MaxMembersDefault: 10,
		Active:            true,
	})
	if err != nil {
		f.t.Fatalf("failed to create group: %v", err)
	}
	return g
}

// CreateLink creates a link in g with the given priority and counts.
func (f *Fixtures) CreateLink(ctx context.Context, g models.Group, target string, priority, memberCount, maxMembers int) models.Link {
	f.t.Helper()
	l, err := linkstore.New(f.db).Create(ctx, models.Link{
		GroupID:     g.ID,
		OwnerID:     g.OwnerID,
		Target:      target,
		Priority:    priority,
		MemberCount: memberCount,
		MaxMembers:  maxMembers,
	})
	if err != nil {
		f.t.Fatalf("failed to create link: %v", err)
	}
	return l
}

// CreateEntry creates an active gateway entry. groupID may be nil.
func (f *Fixtures) CreateEntry(ctx context.Context, owner, slug string, groupID *primitive.ObjectID) models.GatewayEntry {
	f.t.Helper()
	e, err := gatewaystore.New(f.db).Create(ctx, models.GatewayEntry{
		OwnerID: owner,
		Slug:    slug,
		GroupID: groupID,
		Active:  true,
	})
	if err != nil {
		f.t.Fatalf("failed to create entry: %v", err)
	}
	return e
}

// CreateSubscription writes a subscription document the way the billing
// integration would.
func (f *Fixtures) CreateSubscription(ctx context.Context, owner, plan, status string, periodEnd *time.Time) models.Subscription {
	f.t.Helper()
	sub := models.Subscription{
		OwnerID:          owner,
		Plan:             plan,
		Status:           status,
		CurrentPeriodEnd: periodEnd,
		UpdatedAt:        time.Now().UTC(),
	}
	if _, err := f.db.Collection("subscriptions").InsertOne(ctx, sub); err != nil {
		f.t.Fatalf("failed to create subscription: %v", err)
	}
	return sub
}
