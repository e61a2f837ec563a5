package indexes_test

import (
	"context"
	"testing"

	"github.com/dalemusser/joinlink/internal/app/system/indexes"
	"github.com/dalemusser/joinlink/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexNames(t *testing.T, ctx context.Context, c *mongo.Collection) map[string]bson.M {
	t.Helper()
	cur, err := c.Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	out := make(map[string]bson.M)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			out[name] = idx
		}
	}
	return out
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesExpectedIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	tests := []struct {
		collection string
		names      []string
	}{
		{"groups", []string{"idx_groups_owner_created__id"}},
		{"links", []string{indexes.LinkScanOrder, "idx_links_owner"}},
		{"gateway_entries", []string{indexes.UniqueEntrySlug, "idx_gateway_entries_owner_active", "idx_gateway_entries_owner_slug", "idx_gateway_entries_group"}},
		{"join_records", []string{"idx_join_records_entry_ts", "idx_join_records_group_ts", "idx_join_records_ts"}},
		{"subscriptions", []string{"idx_subscriptions_owner"}},
		{"audit_events", []string{"idx_audit_ts", "idx_audit_actor_ts", "idx_audit_category_type_ts"}},
	}
	for _, tt := range tests {
		t.Run(tt.collection, func(t *testing.T) {
			got := indexNames(t, ctx, db.Collection(tt.collection))
			for _, name := range tt.names {
				if _, ok := got[name]; !ok {
					t.Errorf("expected index %q on %s", name, tt.collection)
				}
			}
		})
	}
}

func TestEnsureAll_SlugIndexIsUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	idx := indexNames(t, ctx, db.Collection("gateway_entries"))[indexes.UniqueEntrySlug]
	if u, _ := idx["unique"].(bool); !u {
		t.Errorf("expected %s to be unique, got %v", indexes.UniqueEntrySlug, idx)
	}
}

func TestEnsureAll_RenamesIndexWithSameKeys(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Same keys as the desired slug index, but a legacy name.
	_, err := db.Collection("gateway_entries").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("slug_1_legacy"),
	})
	if err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	got := indexNames(t, ctx, db.Collection("gateway_entries"))
	if _, ok := got["slug_1_legacy"]; ok {
		t.Error("legacy index should have been replaced")
	}
	if _, ok := got[indexes.UniqueEntrySlug]; !ok {
		t.Errorf("expected %s after rename", indexes.UniqueEntrySlug)
	}
}
