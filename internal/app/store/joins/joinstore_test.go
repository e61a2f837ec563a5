package joinstore_test

import (
	"testing"
	"time"

	joinstore "github.com/dalemusser/joinlink/internal/app/store/joins"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"github.com/dalemusser/joinlink/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_InsertFillsDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := joinstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec, err := store.Insert(ctx, models.JoinRecord{
		EntryID: primitive.NewObjectID(),
		GroupID: primitive.NewObjectID(),
		LinkID:  primitive.NewObjectID(),
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if rec.ID.IsZero() || rec.Timestamp.IsZero() {
		t.Errorf("Insert did not fill id and timestamp: %+v", rec)
	}
}

func TestStore_ListByEntry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := joinstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	entry, group := primitive.NewObjectID(), primitive.NewObjectID()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 4 {
		if _, err := store.Insert(ctx, models.JoinRecord{
			EntryID:     entry,
			GroupID:     group,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			VisitorHash: "v",
			RequestID:   string(rune('a' + i)),
		}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if _, err := store.Insert(ctx, models.JoinRecord{EntryID: primitive.NewObjectID(), GroupID: group}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	recs, err := store.ListByEntry(ctx, entry, 3)
	if err != nil {
		t.Fatalf("ListByEntry failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].RequestID != "d" || recs[2].RequestID != "b" {
		t.Errorf("order = %s %s %s, want newest first", recs[0].RequestID, recs[1].RequestID, recs[2].RequestID)
	}
}

func TestStore_Count(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := joinstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	e1, e2, group := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	now := time.Now().UTC()
	for _, r := range []models.JoinRecord{
		{EntryID: e1, GroupID: group, Timestamp: now.Add(-time.Hour)},
		{EntryID: e1, GroupID: group, Timestamp: now.Add(-48 * time.Hour)},
		{EntryID: e2, GroupID: group, Timestamp: now.Add(-2 * time.Hour)},
		{EntryID: e2, GroupID: primitive.NewObjectID(), Timestamp: now},
	} {
		if _, err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	day := now.Add(-24 * time.Hour)
	tests := []struct {
		name  string
		scope joinstore.Scope
		since time.Time
		want  int64
	}{
		{"entry all time", joinstore.Scope{EntryID: &e1}, time.Time{}, 2},
		{"entry last day", joinstore.Scope{EntryID: &e1}, day, 1},
		{"group all time", joinstore.Scope{GroupID: &group}, time.Time{}, 3},
		{"group last day", joinstore.Scope{GroupID: &group}, day, 2},
		{"entry within group", joinstore.Scope{EntryID: &e2, GroupID: &group}, time.Time{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := store.Count(ctx, tt.scope, tt.since)
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if n != tt.want {
				t.Errorf("Count = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestStore_DeleteBefore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := joinstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	entry := primitive.NewObjectID()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{cutoff.Add(-48 * time.Hour), cutoff.Add(-time.Second), cutoff, cutoff.Add(time.Hour)} {
		if _, err := store.Insert(ctx, models.JoinRecord{EntryID: entry, Timestamp: ts}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	n, err := store.DeleteBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
	left, err := store.Count(ctx, joinstore.Scope{EntryID: &entry}, time.Time{})
	if err != nil || left != 2 {
		t.Errorf("Count = %d, %v; want 2", left, err)
	}
}
