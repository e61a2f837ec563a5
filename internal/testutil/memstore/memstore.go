// Package memstore is an in-memory stand-in for the Mongo stores, with the same
// sentinel errors and the same atomic claim semantics. Tests use it to drive
// the ledger, allocation engine, gateway and handlers without a database.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	gatewaystore "github.com/dalemusser/joinlink/internal/app/store/gateways"
	groupstore "github.com/dalemusser/joinlink/internal/app/store/groups"
	joinstore "github.com/dalemusser/joinlink/internal/app/store/joins"
	linkstore "github.com/dalemusser/joinlink/internal/app/store/links"
	subscriptionstore "github.com/dalemusser/joinlink/internal/app/store/subscriptions"
	"github.com/dalemusser/joinlink/internal/app/system/paging"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DB holds every collection behind one mutex.
type DB struct {
	mu            sync.Mutex
	groups        map[primitive.ObjectID]models.Group
	links         map[primitive.ObjectID]models.Link
	entries       map[primitive.ObjectID]models.GatewayEntry
	joins         []models.JoinRecord
	subscriptions map[string]models.Subscription
	failures      map[string]error
	seq           time.Time

	// BeforeClaim, when set, runs before each claim is applied (without the lock held).
	BeforeClaim func(linkID primitive.ObjectID)
}

func New() *DB {
	return &DB{
		groups:        map[primitive.ObjectID]models.Group{},
		links:         map[primitive.ObjectID]models.Link{},
		entries:       map[primitive.ObjectID]models.GatewayEntry{},
		subscriptions: map[string]models.Subscription{},
		failures:      map[string]error{},
		seq:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Fail makes every later call of op return err until cleared with a nil err.
// Op names are "<collection>.<method>", e.g. "links.Claim".
func (db *DB) Fail(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.failures, op)
		return
	}
	db.failures[op] = err
}

func (db *DB) failure(op string) error {
	return db.failures[op]
}

// tick returns strictly increasing timestamps so creation order is stable.
func (db *DB) tick() time.Time {
	db.seq = db.seq.Add(time.Millisecond)
	return db.seq
}

func (db *DB) Groups() *Groups               { return &Groups{db} }
func (db *DB) Links() *Links                 { return &Links{db} }
func (db *DB) Entries() *Entries             { return &Entries{db} }
func (db *DB) Joins() *Joins                 { return &Joins{db} }
func (db *DB) Subscriptions() *Subscriptions { return &Subscriptions{db} }

// PutSubscription stores sub for its owner.
func (db *DB) PutSubscription(sub models.Subscription) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.subscriptions[sub.OwnerID] = sub
}

// JoinRecords returns a copy of every stored join record in insertion order.
func (db *DB) JoinRecords() []models.JoinRecord {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]models.JoinRecord(nil), db.joins...)
}

/* ---------------------------------- groups --------------------------------- */

type Groups struct{ db *DB }

func (s *Groups) Create(_ context.Context, g models.Group) (models.Group, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("groups.Create"); err != nil {
		return models.Group{}, err
	}
	now := s.db.tick()
	g.ID = primitive.NewObjectID()
	g.NameCI = strings.ToLower(g.Name)
	g.CreatedAt, g.UpdatedAt = now, now
	s.db.groups[g.ID] = g
	return g, nil
}

func (s *Groups) GetByID(_ context.Context, id primitive.ObjectID) (models.Group, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("groups.GetByID"); err != nil {
		return models.Group{}, err
	}
	g, ok := s.db.groups[id]
	if !ok {
		return models.Group{}, groupstore.ErrNotFound
	}
	return g, nil
}

func (s *Groups) GetMany(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Group, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := map[primitive.ObjectID]models.Group{}
	for _, id := range ids {
		if g, ok := s.db.groups[id]; ok {
			out[id] = g
		}
	}
	return out, nil
}

func (s *Groups) ListByOwner(_ context.Context, owner string) ([]models.Group, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Group{}
	for _, g := range s.db.groups {
		if g.OwnerID == owner {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Groups) CountByOwner(ctx context.Context, owner string) (int64, error) {
	gs, _ := s.ListByOwner(ctx, owner)
	return int64(len(gs)), nil
}

func (s *Groups) Update(_ context.Context, id primitive.ObjectID, p groupstore.Patch) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	g, ok := s.db.groups[id]
	if !ok {
		return groupstore.ErrNotFound
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
		g.Name = *p.Name
		g.NameCI = strings.ToLower(*p.Name)
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.MaxMembersDefault != nil {
		g.MaxMembersDefault = *p.MaxMembersDefault
	}
	if p.Active != nil {
		g.Active = *p.Active
	}
	g.UpdatedAt = s.db.tick()
	s.db.groups[id] = g
	return nil
}

func (s *Groups) SetCurrentMembers(_ context.Context, id primitive.ObjectID, n int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	g, ok := s.db.groups[id]
	if !ok {
		return groupstore.ErrNotFound
	}
	if n < 0 {
		n = 0
	}
	g.CurrentMembers = n
	s.db.groups[id] = g
	return nil
}

func (s *Groups) IncCurrentMembers(_ context.Context, id primitive.ObjectID, delta int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("groups.IncCurrentMembers"); err != nil {
		return err
	}
	if g, ok := s.db.groups[id]; ok {
		g.CurrentMembers += delta
		s.db.groups[id] = g
	}
	return nil
}

func (s *Groups) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("groups.Delete"); err != nil {
		return 0, err
	}
	if _, ok := s.db.groups[id]; !ok {
		return 0, nil
	}
	delete(s.db.groups, id)
	return 1, nil
}

/* ---------------------------------- links ---------------------------------- */

type Links struct{ db *DB }

func (s *Links) Create(_ context.Context, l models.Link) (models.Link, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("links.Create"); err != nil {
		return models.Link{}, err
	}
	now := s.db.tick()
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	l.CreatedAt, l.UpdatedAt = now, now
	s.db.links[l.ID] = l
	return l, nil
}

func (s *Links) GetByID(_ context.Context, id primitive.ObjectID) (models.Link, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.links[id]
	if !ok {
		return models.Link{}, linkstore.ErrNotFound
	}
	return l, nil
}

func (s *Links) ListByGroup(_ context.Context, groupID primitive.ObjectID) ([]models.Link, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("links.ListByGroup"); err != nil {
		return nil, err
	}
	out := []models.Link{}
	for _, l := range s.db.links {
		if l.GroupID == groupID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.Hex() < b.ID.Hex()
	})
	return out, nil
}

func (s *Links) MaxPriority(ctx context.Context, groupID primitive.ObjectID) (int, error) {
	ls, err := s.ListByGroup(ctx, groupID)
	if err != nil || len(ls) == 0 {
		return 0, err
	}
	return ls[len(ls)-1].Priority, nil
}

func (s *Links) update(id primitive.ObjectID, fn func(*models.Link)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.links[id]
	if !ok {
		return linkstore.ErrNotFound
	}
	fn(&l)
	l.UpdatedAt = s.db.tick()
	s.db.links[id] = l
	return nil
}

func (s *Links) SetCounts(_ context.Context, id primitive.ObjectID, memberCount, maxMembers *int) error {
	return s.update(id, func(l *models.Link) {
		if memberCount != nil {
			l.MemberCount = *memberCount
		}
		if maxMembers != nil {
			l.MaxMembers = *maxMembers
		}
	})
}

func (s *Links) SetExhausted(_ context.Context, id primitive.ObjectID, v bool) error {
	return s.update(id, func(l *models.Link) { l.Exhausted = v })
}

func (s *Links) SetTarget(_ context.Context, id primitive.ObjectID, target string) error {
	return s.update(id, func(l *models.Link) { l.Target = target })
}

func (s *Links) SetPriority(_ context.Context, groupID, id primitive.ObjectID, priority int) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.links[id]
	if !ok || l.GroupID != groupID {
		return false, nil
	}
	l.Priority = priority
	s.db.links[id] = l
	return true, nil
}

// Claim mirrors the conditional FindOneAndUpdate of the Mongo store.
func (s *Links) Claim(_ context.Context, id primitive.ObjectID) (models.Link, error) {
	if hook := s.db.BeforeClaim; hook != nil {
		hook(id)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("links.Claim"); err != nil {
		return models.Link{}, err
	}
	l, ok := s.db.links[id]
	if !ok || !l.HasHeadroom() {
		return models.Link{}, linkstore.ErrNoHeadroom
	}
	l.MemberCount++
	l.Exhausted = l.MemberCount >= l.MaxMembers
	s.db.links[id] = l
	return l, nil
}

func (s *Links) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.links[id]; !ok {
		return 0, nil
	}
	delete(s.db.links, id)
	return 1, nil
}

func (s *Links) DeleteByGroup(_ context.Context, groupID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("links.DeleteByGroup"); err != nil {
		return 0, err
	}
	var n int64
	for id, l := range s.db.links {
		if l.GroupID == groupID {
			delete(s.db.links, id)
			n++
		}
	}
	return n, nil
}

/* --------------------------------- entries --------------------------------- */

type Entries struct{ db *DB }

func (s *Entries) slugTaken(slug string, except primitive.ObjectID) bool {
	for id, e := range s.db.entries {
		if e.Slug == slug && id != except {
			return true
		}
	}
	return false
}

func (s *Entries) Create(_ context.Context, e models.GatewayEntry) (models.GatewayEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.slugTaken(e.Slug, primitive.NilObjectID) {
		return models.GatewayEntry{}, gatewaystore.ErrSlugTaken
	}
	now := s.db.tick()
	e.ID = primitive.NewObjectID()
	e.CreatedAt, e.UpdatedAt = now, now
	s.db.entries[e.ID] = e
	return e, nil
}

func (s *Entries) GetByID(_ context.Context, id primitive.ObjectID) (models.GatewayEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.entries[id]
	if !ok {
		return models.GatewayEntry{}, gatewaystore.ErrNotFound
	}
	return e, nil
}

func (s *Entries) GetBySlug(_ context.Context, slug string) (models.GatewayEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("entries.GetBySlug"); err != nil {
		return models.GatewayEntry{}, err
	}
	for _, e := range s.db.entries {
		if e.Slug == slug {
			return e, nil
		}
	}
	return models.GatewayEntry{}, gatewaystore.ErrNotFound
}

func (s *Entries) SlugExists(_ context.Context, slug string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.slugTaken(slug, primitive.NilObjectID), nil
}

// ListPageByOwner mirrors the Mongo keyset query: slug then _id, in the
// direction of ks, limited to one look-ahead row past a page.
func (s *Entries) ListPageByOwner(_ context.Context, owner string, ks paging.KeysetConfig) ([]models.GatewayEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	less := func(a, b models.GatewayEntry) bool {
		if a.Slug != b.Slug {
			return a.Slug < b.Slug
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	}
	out := []models.GatewayEntry{}
	for _, e := range s.db.entries {
		if e.OwnerID != owner {
			continue
		}
		if c := ks.Cursor; c != nil {
			pivot := models.GatewayEntry{Slug: c.CI, ID: c.ID}
			if ks.Direction == paging.Forward && !less(pivot, e) {
				continue
			}
			if ks.Direction == paging.Backward && !less(e, pivot) {
				continue
			}
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if ks.Direction == paging.Backward {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	if limit := int(paging.LimitPlusOne()); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Entries) CountActiveByOwner(_ context.Context, owner string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, e := range s.db.entries {
		if e.OwnerID == owner && e.Active {
			n++
		}
	}
	return n, nil
}

func (s *Entries) Update(_ context.Context, id primitive.ObjectID, p gatewaystore.Patch) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.entries[id]
	if !ok {
		return gatewaystore.ErrNotFound
	}
	if p.Slug != nil {
		if s.slugTaken(*p.Slug, id) {
			return gatewaystore.ErrSlugTaken
		}
		e.Slug = *p.Slug
	}
	if p.Active != nil {
		e.Active = *p.Active
	}
	if p.ClearGroup {
		e.GroupID = nil
	} else if p.GroupID != nil {
		gid := *p.GroupID
		e.GroupID = &gid
	}
	e.UpdatedAt = s.db.tick()
	s.db.entries[id] = e
	return nil
}

func (s *Entries) DetachGroup(_ context.Context, groupID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("entries.DetachGroup"); err != nil {
		return 0, err
	}
	var n int64
	for id, e := range s.db.entries {
		if e.GroupID != nil && *e.GroupID == groupID {
			e.GroupID = nil
			s.db.entries[id] = e
			n++
		}
	}
	return n, nil
}

func (s *Entries) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.entries[id]; !ok {
		return 0, nil
	}
	delete(s.db.entries, id)
	return 1, nil
}

/* ---------------------------------- joins ---------------------------------- */

type Joins struct{ db *DB }

func (s *Joins) Insert(_ context.Context, rec models.JoinRecord) (models.JoinRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("joins.Insert"); err != nil {
		return models.JoinRecord{}, err
	}
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	s.db.joins = append(s.db.joins, rec)
	return rec, nil
}

func (s *Joins) ListByEntry(_ context.Context, entryID primitive.ObjectID, limit int64) ([]models.JoinRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.JoinRecord{}
	for i := len(s.db.joins) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if s.db.joins[i].EntryID == entryID {
			out = append(out, s.db.joins[i])
		}
	}
	return out, nil
}

func (s *Joins) Count(_ context.Context, scope joinstore.Scope, since time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("joins.Count"); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range s.db.joins {
		if scope.EntryID != nil && r.EntryID != *scope.EntryID {
			continue
		}
		if scope.GroupID != nil && r.GroupID != *scope.GroupID {
			continue
		}
		if !since.IsZero() && r.Timestamp.Before(since) {
			continue
		}
		n++
	}
	return n, nil
}

/* ------------------------------ subscriptions ------------------------------ */

type Subscriptions struct{ db *DB }

func (s *Subscriptions) GetByOwner(_ context.Context, owner string) (models.Subscription, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sub, ok := s.db.subscriptions[owner]
	if !ok {
		return models.Subscription{}, subscriptionstore.ErrNotFound
	}
	return sub, nil
}
