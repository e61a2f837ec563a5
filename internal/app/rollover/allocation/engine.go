// Package allocation hands out one seat on a group's backing links per join.
//
// A join picks the first link, in (priority, created_at, _id) order, that is not
// exhausted and has member_count < max_members, then claims a seat with a
// conditional update. If another join took the last seat first, the claim
// matches nothing and the engine rescans, up to MaxAttempts times.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	groupstore "github.com/dalemusser/joinlink/internal/app/store/groups"
	linkstore "github.com/dalemusser/joinlink/internal/app/store/links"
	"github.com/dalemusser/joinlink/internal/app/system/txn"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds the claim/rescan loop.
const DefaultMaxAttempts = 5

// ErrContention is returned with OutcomeStorageError when every attempt lost its race.
var ErrContention = errors.New("allocation: too many concurrent claims")

// Outcome is the result class of one join attempt.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeGroupInactive Outcome = "group_inactive"
	OutcomeNoCapacity    Outcome = "no_capacity"
	OutcomeStorageError  Outcome = "storage_error"
)

// Caller is what is recorded about whoever asked to join.
type Caller struct {
	VisitorHash string
	UserAgent   string
	RequestID   string
}

// Request asks for one seat in GroupID on behalf of the gateway entry EntryID.
type Request struct {
	EntryID primitive.ObjectID
	GroupID primitive.ObjectID
	Caller  Caller
}

// Result reports what happened. Target and the ids are set only for OutcomeOK.
type Result struct {
	Outcome Outcome
	Target  string
	LinkID  primitive.ObjectID
	JoinID  primitive.ObjectID
}

// Groups is the group storage the engine reads and updates.
type Groups interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	IncCurrentMembers(ctx context.Context, id primitive.ObjectID, delta int) error
}

// Links is the link storage. Claim must be a single atomic check-and-increment
// that returns linkstore.ErrNoHeadroom when the link cannot take a seat.
type Links interface {
	ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Link, error)
	Claim(ctx context.Context, id primitive.ObjectID) (models.Link, error)
}

// Joins stores join records.
type Joins interface {
	Insert(ctx context.Context, rec models.JoinRecord) (models.JoinRecord, error)
}

// Metrics receives outcome and retry counts.
type Metrics interface {
	ObserveOutcome(outcome string)
	ObserveRetry()
}

type nopMetrics struct{}

func (nopMetrics) ObserveOutcome(string) {}
func (nopMetrics) ObserveRetry()         {}

// Engine performs allocations. It is safe for concurrent use.
type Engine struct {
	groups      Groups
	links       Links
	joins       Joins
	tx          txn.Runner
	log         *zap.Logger
	metrics     Metrics
	maxAttempts int
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxAttempts sets the claim/rescan bound. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.maxAttempts = n
		}
	}
}

// WithMetrics routes outcome counts to m.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func New(groups Groups, links Links, joins Joins, tx txn.Runner, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		groups:      groups,
		links:       links,
		joins:       joins,
		tx:          tx,
		log:         log,
		metrics:     nopMetrics{},
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Metrics returns the sink outcomes are reported to, so callers that reject
// a join before reaching the engine can count it the same way.
func (e *Engine) Metrics() Metrics { return e.metrics }

// Allocate claims one seat for req. Every outcome other than
// OutcomeStorageError comes back with a nil error; a storage error carries
// the cause.
func (e *Engine) Allocate(ctx context.Context, req Request) (Result, error) {
	res, err := e.allocate(ctx, req)
	e.metrics.ObserveOutcome(string(res.Outcome))
	return res, err
}

func (e *Engine) allocate(ctx context.Context, req Request) (Result, error) {
	g, err := e.groups.GetByID(ctx, req.GroupID)
	if errors.Is(err, groupstore.ErrNotFound) {
		return Result{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return e.storageError(req, "load group", err)
	}
	if !g.Active {
		return Result{Outcome: OutcomeGroupInactive}, nil
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return e.storageError(req, "allocate", err)
		}

		links, err := e.links.ListByGroup(ctx, req.GroupID)
		if err != nil {
			return e.storageError(req, "scan links", err)
		}
		cand, ok := firstWithHeadroom(links)
		if !ok {
			return Result{Outcome: OutcomeNoCapacity}, nil
		}

		res, err := e.commit(ctx, req, cand)
		if errors.Is(err, linkstore.ErrNoHeadroom) {
			// Someone else took the last seat, or the owner just edited the link.
			e.metrics.ObserveRetry()
			e.log.Debug("claim lost race; rescanning",
				zap.String("group_id", req.GroupID.Hex()),
				zap.String("link_id", cand.ID.Hex()),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return e.storageError(req, "commit", err)
		}
		return res, nil
	}
	return e.storageError(req, "allocate", fmt.Errorf("%w after %d attempts", ErrContention, e.maxAttempts))
}

// commit claims the seat, bumps the advisory group total and writes the join
// record as one unit of work.
func (e *Engine) commit(ctx context.Context, req Request, cand models.Link) (Result, error) {
	var res Result
	err := e.tx.Run(ctx, func(ctx context.Context) error {
		l, err := e.links.Claim(ctx, cand.ID)
		if err != nil {
			return err
		}
		if err := e.groups.IncCurrentMembers(ctx, req.GroupID, 1); err != nil {
			return fmt.Errorf("inc current_members: %w", err)
		}
		rec, err := e.joins.Insert(ctx, models.JoinRecord{
			EntryID:     req.EntryID,
			GroupID:     req.GroupID,
			LinkID:      l.ID,
			Timestamp:   e.now().UTC(),
			VisitorHash: req.Caller.VisitorHash,
			UserAgent:   req.Caller.UserAgent,
			RequestID:   req.Caller.RequestID,
		})
		if err != nil {
			return fmt.Errorf("insert join record: %w", err)
		}
		res = Result{Outcome: OutcomeOK, Target: l.Target, LinkID: l.ID, JoinID: rec.ID}
		return nil
	})
	return res, err
}

func (e *Engine) storageError(req Request, op string, err error) (Result, error) {
	e.log.Error("allocation failed",
		zap.String("op", op),
		zap.String("group_id", req.GroupID.Hex()),
		zap.String("entry_id", req.EntryID.Hex()),
		zap.String("request_id", req.Caller.RequestID),
		zap.Error(err))
	return Result{Outcome: OutcomeStorageError}, fmt.Errorf("%s: %w", op, err)
}

// firstWithHeadroom returns the first selectable link. links must already be
// in allocation order.
func firstWithHeadroom(links []models.Link) (models.Link, bool) {
	for _, l := range links {
		if l.HasHeadroom() {
			return l, true
		}
	}
	return models.Link{}, false
}

// HasHeadroom reports whether any link can take a seat.
func HasHeadroom(links []models.Link) bool {
	_, ok := firstWithHeadroom(links)
	return ok
}
