// internal/app/features/joins/handler.go
package joins

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/rollover"
	groupstore "github.com/dalemusser/joinlink/internal/app/store/groups"
	joinstore "github.com/dalemusser/joinlink/internal/app/store/joins"
	"github.com/dalemusser/joinlink/internal/app/system/auth"
	"github.com/dalemusser/joinlink/internal/app/system/timeouts"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type Records interface {
	ListByEntry(ctx context.Context, entryID primitive.ObjectID, limit int64) ([]models.JoinRecord, error)
	Count(ctx context.Context, scope joinstore.Scope, since time.Time) (int64, error)
}

// EntryOwner resolves one of the owner's gateway entries.
type EntryOwner interface {
	GetEntry(ctx context.Context, owner string, id primitive.ObjectID) (models.GatewayEntry, error)
}

type Groups interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
}

// Handler serves the join reports.
type Handler struct {
	Records Records
	Entries EntryOwner
	Groups  Groups
	ErrLog  *errorsfeature.ErrorLogger
	Log     *zap.Logger

	// Now is the clock the report windows are measured from.
	Now func() time.Time
}

func NewHandler(records Records, entries EntryOwner, groups Groups, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Records: records,
		Entries: entries,
		Groups:  groups,
		ErrLog:  errLog,
		Log:     logger,
		Now:     time.Now,
	}
}

// Stats are join totals over fixed trailing windows.
type Stats struct {
	Total   int64 `json:"total"`
	Last24h int64 `json:"last_24h"`
	Last7d  int64 `json:"last_7d"`
	Last30d int64 `json:"last_30d"`
}

type listResponse struct {
	Joins []models.JoinRecord `json:"joins"`
}

// parseLimit reads ?limit=, falling back to the default and capping at the max.
func parseLimit(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", errorsfeature.ErrBadRequest)
	}
	return int64(min(n, maxListLimit)), nil
}

// stats counts scope over every window concurrently.
func (h *Handler) stats(ctx context.Context, scope joinstore.Scope) (Stats, error) {
	now := h.Now().UTC()
	var s Stats
	windows := []struct {
		since time.Time
		dst   *int64
	}{
		{time.Time{}, &s.Total},
		{now.Add(-24 * time.Hour), &s.Last24h},
		{now.AddDate(0, 0, -7), &s.Last7d},
		{now.AddDate(0, 0, -30), &s.Last30d},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, win := range windows {
		g.Go(func() error {
			n, err := h.Records.Count(gctx, scope, win.since)
			if err != nil {
				return fmt.Errorf("count joins: %w", err)
			}
			*win.dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// ServeEntryJoins handles GET /api/entries/{id}/joins, newest first.
func (h *Handler) ServeEntryJoins(w http.ResponseWriter, r *http.Request) {
	id, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	if _, err := h.Entries.GetEntry(ctx, auth.OwnerID(r), id); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	recs, err := h.Records.ListByEntry(ctx, id, limit)
	if err != nil {
		h.ErrLog.Write(w, r, fmt.Errorf("list joins: %w", err))
		return
	}
	errorsfeature.JSON(w, http.StatusOK, listResponse{Joins: recs})
}

// ServeEntryStats handles GET /api/entries/{id}/joins/stats.
func (h *Handler) ServeEntryStats(w http.ResponseWriter, r *http.Request) {
	id, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	if _, err := h.Entries.GetEntry(ctx, auth.OwnerID(r), id); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	s, err := h.stats(ctx, joinstore.Scope{EntryID: &id})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, s)
}

// ServeGroupStats handles GET /api/groups/{id}/joins/stats. Joins stay
// attributed to the group even after the entry that produced them is gone.
func (h *Handler) ServeGroupStats(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r)
	id, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	g, err := h.Groups.GetByID(ctx, id)
	switch {
	case errors.Is(err, groupstore.ErrNotFound):
		err = rollover.ErrNotFound
	case err == nil && g.OwnerID != owner:
		err = rollover.ErrNotOwner
	}
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	s, err := h.stats(ctx, joinstore.Scope{GroupID: &id})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, s)
}
