// internal/app/features/links/handler.go
package links

import (
	"context"
	"net/http"
	"strings"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/system/auditlog"
	"github.com/dalemusser/joinlink/internal/app/system/auth"
	"github.com/dalemusser/joinlink/internal/app/system/limits"
	"github.com/dalemusser/joinlink/internal/app/system/timeouts"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Ledger is the capacity ledger as used by the handlers.
type Ledger interface {
	AddLink(ctx context.Context, owner string, groupID primitive.ObjectID, target string, maxMembers *int) (models.Link, error)
	Get(ctx context.Context, owner string, linkID primitive.ObjectID) (models.Link, error)
	SetCounts(ctx context.Context, owner string, linkID primitive.ObjectID, memberCount, maxMembers *int) error
	SetExhausted(ctx context.Context, owner string, linkID primitive.ObjectID, v bool) error
	SetTarget(ctx context.Context, owner string, linkID primitive.ObjectID, target string) error
	Reorder(ctx context.Context, owner string, groupID primitive.ObjectID, orderedIDs []primitive.ObjectID) (int, error)
	RemoveLink(ctx context.Context, owner string, linkID primitive.ObjectID) error
	List(ctx context.Context, owner string, groupID primitive.ObjectID) ([]models.Link, error)
}

// Handler serves the owner's link management endpoints.
type Handler struct {
	Ledger Ledger
	Audit  *auditlog.Logger
	ErrLog *errorsfeature.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(ledger Ledger, audit *auditlog.Logger, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Ledger: ledger,
		Audit:  audit,
		ErrLog: errLog,
		Log:    logger,
	}
}

type addRequest struct {
	Target     string `json:"target"`
	MaxMembers *int   `json:"max_members"`
}

type updateRequest struct {
	Target      *string `json:"target"`
	MemberCount *int    `json:"member_count"`
	MaxMembers  *int    `json:"max_members"`
	Exhausted   *bool   `json:"exhausted"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type listResponse struct {
	Links []models.Link `json:"links"`
}

type reorderResponse struct {
	Updated int `json:"updated"`
}

// ServeList handles GET /api/groups/{id}/links in allocation order.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	groupID, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	links, err := h.Ledger.List(ctx, auth.OwnerID(r), groupID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if links == nil {
		links = []models.Link{}
	}
	errorsfeature.JSON(w, http.StatusOK, listResponse{Links: links})
}

// HandleAdd handles POST /api/groups/{id}/links.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r)
	groupID, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var req addRequest
	if err := errorsfeature.Decode(w, r, limits.MaxJSONBody, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	l, err := h.Ledger.AddLink(ctx, owner, groupID, req.Target, req.MaxMembers)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.LinkAdded(ctx, r, owner, groupID, l.ID)
	errorsfeature.JSON(w, http.StatusCreated, l)
}

// HandleReorder handles PUT /api/groups/{id}/links/order. Ids that are not
// links of the group are skipped.
func (h *Handler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r)
	groupID, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var req reorderRequest
	if err := errorsfeature.Decode(w, r, limits.MaxReorderBody, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if len(req.IDs) > limits.MaxReorderIDs {
		errorsfeature.Message(w, http.StatusBadRequest, "too many ids")
		return
	}

	// Malformed ids keep their slot so positions match the request.
	ids := make([]primitive.ObjectID, len(req.IDs))
	for i, s := range req.IDs {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			ids[i] = oid
		}
	}

	ctx, cancel := timeouts.WithLong(r.Context())
	defer cancel()

	n, err := h.Ledger.Reorder(ctx, owner, groupID, ids)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.LinksReordered(ctx, r, owner, groupID, n)
	errorsfeature.JSON(w, http.StatusOK, reorderResponse{Updated: n})
}

// HandleUpdate handles PATCH /api/links/{id}. Fields are applied in the
// order target, counts, exhausted; a failure stops at that field.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r)
	linkID, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var req updateRequest
	if err := errorsfeature.Decode(w, r, limits.MaxJSONBody, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if req.Target == nil && req.MemberCount == nil && req.MaxMembers == nil && req.Exhausted == nil {
		errorsfeature.Message(w, http.StatusBadRequest, "nothing to update")
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	var changed []string
	if req.Target != nil {
		if err := h.Ledger.SetTarget(ctx, owner, linkID, *req.Target); err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		changed = append(changed, "target")
	}
	if req.MemberCount != nil || req.MaxMembers != nil {
		if err := h.Ledger.SetCounts(ctx, owner, linkID, req.MemberCount, req.MaxMembers); err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		changed = append(changed, "counts")
	}
	if req.Exhausted != nil {
		if err := h.Ledger.SetExhausted(ctx, owner, linkID, *req.Exhausted); err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		changed = append(changed, "exhausted")
	}

	l, err := h.Ledger.Get(ctx, owner, linkID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.LinkUpdated(ctx, r, owner, linkID, strings.Join(changed, ","))
	errorsfeature.JSON(w, http.StatusOK, l)
}

// HandleDelete handles DELETE /api/links/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r)
	linkID, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	if err := h.Ledger.RemoveLink(ctx, owner, linkID); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.LinkRemoved(ctx, r, owner, linkID)
	w.WriteHeader(http.StatusNoContent)
}
