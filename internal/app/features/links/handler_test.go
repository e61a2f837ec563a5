package links_test

import (
	"context"
	"net/http"
	"testing"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/features/links"
	"github.com/dalemusser/joinlink/internal/app/rollover/ledger"
	"github.com/dalemusser/joinlink/internal/app/system/auditlog"
	"github.com/dalemusser/joinlink/internal/app/system/auth"
	"github.com/dalemusser/joinlink/internal/app/system/txn"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"github.com/dalemusser/joinlink/internal/testutil"
	"github.com/dalemusser/joinlink/internal/testutil/memstore"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type env struct {
	db     *memstore.DB
	router http.Handler
	owner  testutil.TestUser
	group  models.Group
}

func setup(t *testing.T) env {
	t.Helper()
	db := memstore.New()
	logger := zap.NewNop()
	owner := testutil.Owner()

	g, err := db.Groups().Create(context.Background(), models.Group{OwnerID: owner.ID, Name: "G", MaxMembersDefault: 20, Active: true})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	led := ledger.New(db.Groups(), db.Links(), txn.Direct{}, logger, 0)
	h := links.NewHandler(led, auditlog.New(nil, logger, auditlog.Config{Admin: auditlog.Off}), errorsfeature.NewErrorLogger(logger), logger)

	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Mount("/api/groups/{id}/links", links.GroupRoutes(h))
		pr.Mount("/api/links", links.Routes(h))
	})
	return env{db: db, router: r, owner: owner, group: g}
}

func (e env) do(method, target string, body any) *testutil.ResponseRecorder {
	return testutil.Serve(e.router, testutil.NewAuthenticatedRequest(method, target, body, e.owner))
}

func (e env) groupPath() string { return "/api/groups/" + e.group.ID.Hex() + "/links" }

func (e env) add(t *testing.T, target string) models.Link {
	t.Helper()
	rec := e.do("POST", e.groupPath(), map[string]any{"target": target})
	rec.AssertStatus(t, http.StatusCreated)
	var l models.Link
	rec.Decode(t, &l)
	return l
}

func TestAddAndList(t *testing.T) {
	e := setup(t)
	a := e.add(t, "https://chat.whatsapp.com/A")
	b := e.add(t, "https://chat.whatsapp.com/B")

	if a.Priority != 1 || b.Priority != 2 || a.MaxMembers != 20 {
		t.Errorf("a = %+v, b = %+v", a, b)
	}

	rec := e.do("GET", e.groupPath(), nil)
	rec.AssertStatus(t, http.StatusOK)
	var list struct {
		Links []models.Link `json:"links"`
	}
	rec.Decode(t, &list)
	if len(list.Links) != 2 || list.Links[0].ID != a.ID {
		t.Errorf("list = %+v", list.Links)
	}
}

func TestAdd_Validation(t *testing.T) {
	e := setup(t)
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"not whatsapp", map[string]any{"target": "https://example.com/x"}, http.StatusBadRequest},
		{"no code", map[string]any{"target": "https://chat.whatsapp.com/"}, http.StatusBadRequest},
		{"zero capacity", map[string]any{"target": "https://chat.whatsapp.com/A", "max_members": 0}, http.StatusBadRequest},
		{"malformed", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.do("POST", e.groupPath(), tt.body).AssertStatus(t, tt.status)
		})
	}
}

func TestAdd_ForeignGroup(t *testing.T) {
	e := setup(t)
	intruder := e
	intruder.owner = testutil.Owner()
	intruder.do("POST", e.groupPath(), map[string]any{"target": "https://chat.whatsapp.com/A"}).AssertStatus(t, http.StatusForbidden)

	// Listing someone else's group is just empty.
	rec := intruder.do("GET", e.groupPath(), nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"links":[]`)
}

func TestUpdate(t *testing.T) {
	e := setup(t)
	l := e.add(t, "https://chat.whatsapp.com/A")
	path := "/api/links/" + l.ID.Hex()

	rec := e.do("PATCH", path, map[string]any{
		"target":       "https://chat.whatsapp.com/Z",
		"member_count": 25,
		"max_members":  0,
	})
	rec.AssertStatus(t, http.StatusOK)
	var got models.Link
	rec.Decode(t, &got)
	if got.Target != "https://chat.whatsapp.com/Z" || got.MemberCount != 25 || got.MaxMembers != 1 {
		t.Errorf("link = %+v", got)
	}
	if got.Exhausted {
		t.Error("count edits must not flip exhausted")
	}

	rec = e.do("PATCH", path, map[string]any{"exhausted": true})
	rec.Decode(t, &got)
	if !got.Exhausted {
		t.Error("exhausted not set")
	}

	e.do("PATCH", path, map[string]any{}).AssertStatus(t, http.StatusBadRequest)
	e.do("PATCH", path, map[string]any{"target": "nope"}).AssertStatus(t, http.StatusBadRequest)
	e.do("PATCH", "/api/links/000000000000000000000000", map[string]any{"exhausted": false}).AssertStatus(t, http.StatusNotFound)
}

func TestReorder(t *testing.T) {
	e := setup(t)
	a := e.add(t, "https://chat.whatsapp.com/A")
	b := e.add(t, "https://chat.whatsapp.com/B")
	c := e.add(t, "https://chat.whatsapp.com/C")

	rec := e.do("PUT", e.groupPath()+"/order", map[string]any{
		"ids": []string{c.ID.Hex(), "garbage", a.ID.Hex(), b.ID.Hex()},
	})
	rec.AssertStatus(t, http.StatusOK)
	var resp struct {
		Updated int `json:"updated"`
	}
	rec.Decode(t, &resp)
	if resp.Updated != 3 {
		t.Errorf("updated = %d, want 3", resp.Updated)
	}

	links, _ := e.db.Links().ListByGroup(context.Background(), e.group.ID)
	if links[0].ID != c.ID || links[1].ID != a.ID || links[2].ID != b.ID {
		t.Errorf("order = %s %s %s", links[0].Target, links[1].Target, links[2].Target)
	}
	// The malformed id held position 2.
	if links[1].Priority != 3 {
		t.Errorf("a priority = %d, want 3", links[1].Priority)
	}
}

func TestDelete(t *testing.T) {
	e := setup(t)
	l := e.add(t, "https://chat.whatsapp.com/A")

	intruder := e
	intruder.owner = testutil.Owner()
	intruder.do("DELETE", "/api/links/"+l.ID.Hex(), nil).AssertStatus(t, http.StatusForbidden)

	e.do("DELETE", "/api/links/"+l.ID.Hex(), nil).AssertStatus(t, http.StatusNoContent)
	e.do("DELETE", "/api/links/"+l.ID.Hex(), nil).AssertStatus(t, http.StatusNotFound)
}
