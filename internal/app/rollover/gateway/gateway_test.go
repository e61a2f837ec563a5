package gateway_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dalemusser/joinlink/internal/app/rollover"
	"github.com/dalemusser/joinlink/internal/app/rollover/allocation"
	"github.com/dalemusser/joinlink/internal/app/rollover/gateway"
	groupstore "github.com/dalemusser/joinlink/internal/app/store/groups"
	"github.com/dalemusser/joinlink/internal/app/system/paging"
	"github.com/dalemusser/joinlink/internal/app/system/planlimits"
	"github.com/dalemusser/joinlink/internal/app/system/txn"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"github.com/dalemusser/joinlink/internal/testutil/memstore"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const owner = "owner-1"

type countingMetrics struct{ outcomes map[string]int }

func (m *countingMetrics) ObserveOutcome(o string) { m.outcomes[o]++ }
func (m *countingMetrics) ObserveRetry()           {}

type fixture struct {
	svc     *gateway.Service
	db      *memstore.DB
	group   models.Group
	metrics *countingMetrics
}

func setup(t *testing.T, limits planlimits.Policy) fixture {
	t.Helper()
	db := memstore.New()
	g, err := db.Groups().Create(context.Background(), models.Group{
		OwnerID:     owner,
		Name:        "Book Club",
		Description: "monthly",
		Active:      true,
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	m := &countingMetrics{outcomes: map[string]int{}}
	engine := allocation.New(db.Groups(), db.Links(), db.Joins(), txn.Direct{}, zap.NewNop(), allocation.WithMetrics(m))
	svc := gateway.New(db.Entries(), db.Groups(), db.Links(), engine, limits, zap.NewNop())
	return fixture{svc: svc, db: db, group: g, metrics: m}
}

func (f fixture) addLink(t *testing.T, target string, priority, count, max int) models.Link {
	t.Helper()
	l, err := f.db.Links().Create(context.Background(), models.Link{
		GroupID:     f.group.ID,
		OwnerID:     owner,
		Target:      target,
		Priority:    priority,
		MemberCount: count,
		MaxMembers:  max,
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	return l
}

func (f fixture) entry(t *testing.T, slug string) models.GatewayEntry {
	t.Helper()
	gid := f.group.ID
	e, err := f.svc.CreateEntry(context.Background(), owner, slug, &gid)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	return e
}

func boolp(v bool) *bool     { return &v }
func strp(v string) *string { return &v }

func TestNormalizeSlug(t *testing.T) {
	max := strings.Repeat("a", gateway.MaxSlugLen)
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"book-club", "book-club", true},
		{"  Book_Club ", "book_club", true},
		{"a", "a", true},
		{"9lives", "9lives", true},
		{max, max, true},
		{max + "a", "", false},
		{"", "", false},
		{"   ", "", false},
		{"-club", "", false},
		{"_club", "", false},
		{"book club", "", false},
		{"book.club", "", false},
		{"café", "", false},
	}
	for _, tt := range tests {
		got, err := gateway.NormalizeSlug(tt.in)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("NormalizeSlug(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, rollover.ErrInvalidSlug) {
			t.Errorf("NormalizeSlug(%q) err = %v, want ErrInvalidSlug", tt.in, err)
		}
	}
}

func TestResolve(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.addLink(t, "https://chat.whatsapp.com/A", 1, 5, 5)
	f.addLink(t, "https://chat.whatsapp.com/B", 2, 3, 10)
	f.entry(t, "book-club")

	res, err := f.svc.Resolve(ctx, "BOOK-CLUB")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Found || !res.Available {
		t.Fatalf("res = %+v, want found and available", res)
	}
	if res.Slug != "book-club" || res.Group == nil {
		t.Fatalf("res = %+v", res)
	}
	if res.Group.Name != "Book Club" || res.Group.Description != "monthly" || res.Group.TotalMembers != 8 {
		t.Errorf("group = %+v", res.Group)
	}
}

func TestResolve_FullGroupIsFoundButUnavailable(t *testing.T) {
	f := setup(t, nil)
	f.addLink(t, "https://chat.whatsapp.com/A", 1, 5, 5)
	f.entry(t, "full")

	res, err := f.svc.Resolve(context.Background(), "full")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Found || res.Available {
		t.Errorf("res = %+v, want found and unavailable", res)
	}
}

func TestResolve_NotFoundCases(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	f.entry(t, "inactive-entry")
	e := f.entry(t, "unrouted")
	if _, err := f.svc.UpdateEntry(ctx, owner, e.ID, gateway.EntryPatch{ClearGroup: true}); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	ie, _ := f.db.Entries().GetBySlug(ctx, "inactive-entry")
	if _, err := f.svc.UpdateEntry(ctx, owner, ie.ID, gateway.EntryPatch{Active: boolp(false)}); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}

	other, _ := f.db.Groups().Create(ctx, models.Group{OwnerID: owner, Name: "Closed", Active: false})
	oid := other.ID
	if _, err := f.svc.CreateEntry(ctx, owner, "closed", &oid); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	for _, slug := range []string{"missing", "inactive-entry", "unrouted", "closed", "not a slug", ""} {
		res, err := f.svc.Resolve(ctx, slug)
		if err != nil {
			t.Errorf("Resolve(%q): %v", slug, err)
			continue
		}
		if res.Found || res.Group != nil {
			t.Errorf("Resolve(%q) = %+v, want not found", slug, res)
		}
	}
}

func TestResolve_StorageError(t *testing.T) {
	f := setup(t, nil)
	f.entry(t, "book-club")
	f.db.Fail("links.ListByGroup", errors.New("boom"))

	if _, err := f.svc.Resolve(context.Background(), "book-club"); err == nil {
		t.Error("expected error")
	}
}

func TestAttemptJoin_Rolls(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	a := f.addLink(t, "https://chat.whatsapp.com/A", 1, 0, 1)
	b := f.addLink(t, "https://chat.whatsapp.com/B", 2, 0, 1)
	e := f.entry(t, "book-club")

	caller := allocation.Caller{VisitorHash: "v", UserAgent: "ua", RequestID: "r"}
	first, err := f.svc.AttemptJoin(ctx, "book-club", caller)
	if err != nil || first.Outcome != allocation.OutcomeOK || first.LinkID != a.ID {
		t.Fatalf("first = %+v, %v", first, err)
	}
	second, err := f.svc.AttemptJoin(ctx, "book-club", caller)
	if err != nil || second.Outcome != allocation.OutcomeOK || second.LinkID != b.ID {
		t.Fatalf("second = %+v, %v", second, err)
	}
	third, err := f.svc.AttemptJoin(ctx, "book-club", caller)
	if err != nil || third.Outcome != allocation.OutcomeNoCapacity {
		t.Fatalf("third = %+v, %v", third, err)
	}

	recs := f.db.JoinRecords()
	if len(recs) != 2 {
		t.Fatalf("join records = %d, want 2", len(recs))
	}
	if recs[0].EntryID != e.ID || recs[0].GroupID != f.group.ID {
		t.Errorf("record = %+v", recs[0])
	}
	if f.metrics.outcomes["ok"] != 2 || f.metrics.outcomes["no_capacity"] != 1 {
		t.Errorf("metrics = %v", f.metrics.outcomes)
	}
}

func TestAttemptJoin_NotFoundIsObserved(t *testing.T) {
	f := setup(t, nil)
	res, err := f.svc.AttemptJoin(context.Background(), "nope", allocation.Caller{})
	if err != nil {
		t.Fatalf("AttemptJoin: %v", err)
	}
	if res.Outcome != allocation.OutcomeNotFound {
		t.Errorf("outcome = %s", res.Outcome)
	}
	if f.metrics.outcomes["not_found"] != 1 {
		t.Errorf("metrics = %v", f.metrics.outcomes)
	}
}

func TestAttemptJoin_InactiveGroup(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.addLink(t, "https://chat.whatsapp.com/A", 1, 0, 10)
	f.entry(t, "book-club")
	inactive := false
	if err := f.db.Groups().Update(ctx, f.group.ID, groupstore.Patch{Active: &inactive}); err != nil {
		t.Fatalf("update group: %v", err)
	}

	res, err := f.svc.AttemptJoin(ctx, "book-club", allocation.Caller{})
	if err != nil {
		t.Fatalf("AttemptJoin: %v", err)
	}
	if res.Outcome != allocation.OutcomeGroupInactive {
		t.Errorf("outcome = %s, want group_inactive", res.Outcome)
	}
}

func TestAttemptJoin_LookupFailure(t *testing.T) {
	f := setup(t, nil)
	f.entry(t, "book-club")
	f.db.Fail("entries.GetBySlug", errors.New("boom"))

	res, err := f.svc.AttemptJoin(context.Background(), "book-club", allocation.Caller{})
	if err == nil || res.Outcome != allocation.OutcomeStorageError {
		t.Errorf("res = %+v, err = %v; want storage error", res, err)
	}
	if f.metrics.outcomes["storage_error"] != 1 {
		t.Errorf("metrics = %v", f.metrics.outcomes)
	}
}

func TestSlugAvailable(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.entry(t, "taken")

	tests := map[string]bool{
		"taken":    false,
		"TAKEN":    false,
		"free":     true,
		"bad slug": false,
	}
	for slug, want := range tests {
		got, err := f.svc.SlugAvailable(ctx, slug)
		if err != nil {
			t.Fatalf("SlugAvailable(%q): %v", slug, err)
		}
		if got != want {
			t.Errorf("SlugAvailable(%q) = %v, want %v", slug, got, want)
		}
	}
}

func TestCreateEntry_Errors(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.entry(t, "taken")

	stranger, _ := f.db.Groups().Create(ctx, models.Group{OwnerID: "someone-else", Name: "X", Active: true})
	sid := stranger.ID
	missing := primitive.NewObjectID()

	tests := []struct {
		name  string
		owner string
		slug  string
		group *primitive.ObjectID
		want  error
	}{
		{"unauthenticated", "", "new", nil, rollover.ErrUnauthenticated},
		{"bad slug", owner, "no spaces", nil, rollover.ErrInvalidSlug},
		{"taken", owner, "Taken", nil, rollover.ErrSlugTaken},
		{"foreign group", owner, "new", &sid, rollover.ErrNotOwner},
		{"missing group", owner, "new", &missing, rollover.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateEntry(ctx, tt.owner, tt.slug, tt.group)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateEntry_Unrouted(t *testing.T) {
	f := setup(t, nil)
	e, err := f.svc.CreateEntry(context.Background(), owner, "Later", nil)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if e.Slug != "later" || e.GroupID != nil || !e.Active {
		t.Errorf("entry = %+v", e)
	}
}

func TestCreateEntry_PlanLimit(t *testing.T) {
	f := setup(t, planlimits.NewSubscription(memstore.New().Subscriptions()))
	ctx := context.Background()

	first := f.entry(t, "first")
	if _, err := f.svc.CreateEntry(ctx, owner, "second", nil); !errors.Is(err, rollover.ErrPlanLimit) {
		t.Fatalf("err = %v, want ErrPlanLimit", err)
	}

	// Deactivating frees the slot; reactivating the first is then refused.
	if _, err := f.svc.UpdateEntry(ctx, owner, first.ID, gateway.EntryPatch{Active: boolp(false)}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := f.svc.CreateEntry(ctx, owner, "second", nil); err != nil {
		t.Fatalf("CreateEntry after deactivate: %v", err)
	}
	if _, err := f.svc.UpdateEntry(ctx, owner, first.ID, gateway.EntryPatch{Active: boolp(true)}); !errors.Is(err, rollover.ErrPlanLimit) {
		t.Errorf("reactivate err = %v, want ErrPlanLimit", err)
	}
}

func TestUpdateEntry(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	e := f.entry(t, "old")
	f.entry(t, "other")

	if _, err := f.svc.UpdateEntry(ctx, owner, e.ID, gateway.EntryPatch{Slug: strp("other")}); !errors.Is(err, rollover.ErrSlugTaken) {
		t.Errorf("err = %v, want ErrSlugTaken", err)
	}
	if _, err := f.svc.UpdateEntry(ctx, owner, e.ID, gateway.EntryPatch{Slug: strp("bad slug")}); !errors.Is(err, rollover.ErrInvalidSlug) {
		t.Errorf("err = %v, want ErrInvalidSlug", err)
	}
	if _, err := f.svc.UpdateEntry(ctx, "intruder", e.ID, gateway.EntryPatch{Slug: strp("mine")}); !errors.Is(err, rollover.ErrNotOwner) {
		t.Errorf("err = %v, want ErrNotOwner", err)
	}

	// Same slug in different case is a no-op rename.
	got, err := f.svc.UpdateEntry(ctx, owner, e.ID, gateway.EntryPatch{Slug: strp("OLD")})
	if err != nil || got.Slug != "old" {
		t.Fatalf("same-slug update = %+v, %v", got, err)
	}

	got, err = f.svc.UpdateEntry(ctx, owner, e.ID, gateway.EntryPatch{Slug: strp("New"), ClearGroup: true})
	if err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	if got.Slug != "new" || got.GroupID != nil {
		t.Errorf("entry = %+v", got)
	}

	gid := f.group.ID
	got, err = f.svc.UpdateEntry(ctx, owner, e.ID, gateway.EntryPatch{GroupID: &gid})
	if err != nil || got.GroupID == nil || *got.GroupID != gid {
		t.Errorf("reroute = %+v, %v", got, err)
	}
}

func TestDeleteEntry_KeepsJoinRecords(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.addLink(t, "https://chat.whatsapp.com/A", 1, 0, 10)
	e := f.entry(t, "book-club")
	if _, err := f.svc.AttemptJoin(ctx, "book-club", allocation.Caller{}); err != nil {
		t.Fatalf("AttemptJoin: %v", err)
	}

	if err := f.svc.DeleteEntry(ctx, "intruder", e.ID); !errors.Is(err, rollover.ErrNotOwner) {
		t.Errorf("err = %v, want ErrNotOwner", err)
	}
	if err := f.svc.DeleteEntry(ctx, owner, e.ID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if _, err := f.svc.GetEntry(ctx, owner, e.ID); !errors.Is(err, rollover.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if len(f.db.JoinRecords()) != 1 {
		t.Error("join records should survive entry deletion")
	}
}

func TestListEntries_IncludesGroupName(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.entry(t, "routed")
	if _, err := f.svc.CreateEntry(ctx, owner, "unrouted", nil); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	page, err := f.svc.ListEntries(ctx, owner, paging.Params{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	views := page.Entries
	if len(views) != 2 {
		t.Fatalf("got %d entries, want 2", len(views))
	}
	// slug order
	if views[0].Slug != "routed" || views[0].GroupName != "Book Club" {
		t.Errorf("views[0] = %+v", views[0])
	}
	if views[1].Slug != "unrouted" || views[1].GroupName != "" {
		t.Errorf("views[1] = %+v", views[1])
	}
	if page.Prev != "" || page.Next != "" {
		t.Errorf("single page has cursors: %+v", page)
	}

	if _, err := f.svc.ListEntries(ctx, "", paging.Params{}); !errors.Is(err, rollover.ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestListEntries_Pages(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	total := paging.PageSize + 5
	for i := range total {
		if _, err := f.svc.CreateEntry(ctx, owner, fmt.Sprintf("e%03d", i), nil); err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
	}

	first, err := f.svc.ListEntries(ctx, owner, paging.Params{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(first.Entries) != paging.PageSize || first.Prev != "" || first.Next == "" {
		t.Fatalf("first page: %d entries, prev=%q next=%q", len(first.Entries), first.Prev, first.Next)
	}

	second, err := f.svc.ListEntries(ctx, owner, paging.Params{After: first.Next})
	if err != nil {
		t.Fatalf("ListEntries(after): %v", err)
	}
	if len(second.Entries) != 5 || second.Entries[0].Slug != fmt.Sprintf("e%03d", paging.PageSize) {
		t.Fatalf("second page: %d entries starting at %q", len(second.Entries), second.Entries[0].Slug)
	}
	if second.Prev == "" || second.Next != "" {
		t.Errorf("second page cursors: prev=%q next=%q", second.Prev, second.Next)
	}

	back, err := f.svc.ListEntries(ctx, owner, paging.Params{Before: second.Prev})
	if err != nil {
		t.Fatalf("ListEntries(before): %v", err)
	}
	if len(back.Entries) != paging.PageSize || back.Entries[0].Slug != "e000" {
		t.Errorf("back page: %d entries starting at %q", len(back.Entries), back.Entries[0].Slug)
	}
}

func TestDetachGroup(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.entry(t, "a")
	f.entry(t, "b")

	n, err := f.svc.DetachGroup(ctx, f.group.ID)
	if err != nil {
		t.Fatalf("DetachGroup: %v", err)
	}
	if n != 2 {
		t.Errorf("detached = %d, want 2", n)
	}
	res, _ := f.svc.Resolve(ctx, "a")
	if res.Found {
		t.Error("detached entry should not resolve")
	}
}
