// internal/app/features/public/handler.go
package public

import (
	"context"
	"net/http"
	"unicode/utf8"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/rollover/allocation"
	"github.com/dalemusser/joinlink/internal/app/rollover/gateway"
	"github.com/dalemusser/joinlink/internal/app/system/ratelimit"
	"github.com/dalemusser/joinlink/internal/app/system/timeouts"
	"github.com/dalemusser/joinlink/internal/app/system/visitor"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxUserAgent caps what is copied from the User-Agent header into a join record.
const maxUserAgent = 512

// Gateway is the part of the rollover gateway the public pages use.
type Gateway interface {
	Resolve(ctx context.Context, slug string) (gateway.Resolution, error)
	AttemptJoin(ctx context.Context, slug string, caller allocation.Caller) (allocation.Result, error)
	SlugAvailable(ctx context.Context, slug string) (bool, error)
}

// Handler serves the unauthenticated join surface.
type Handler struct {
	Gateway  Gateway
	Visitors *visitor.Hasher
	Log      *zap.Logger
}

func NewHandler(gw Gateway, visitors *visitor.Hasher, logger *zap.Logger) *Handler {
	return &Handler{
		Gateway:  gw,
		Visitors: visitors,
		Log:      logger,
	}
}

type joinResponse struct {
	OK     bool   `json:"ok"`
	Target string `json:"target,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type notFoundResponse struct {
	Found bool `json:"found"`
}

type availableResponse struct {
	Available bool `json:"available"`
}

// outcomeStatus is the HTTP status reported for each join outcome.
func outcomeStatus(o allocation.Outcome) int {
	switch o {
	case allocation.OutcomeOK:
		return http.StatusOK
	case allocation.OutcomeNotFound:
		return http.StatusNotFound
	case allocation.OutcomeGroupInactive, allocation.OutcomeNoCapacity:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func (h *Handler) caller(r *http.Request) allocation.Caller {
	return allocation.Caller{
		VisitorHash: h.Visitors.Hash(ratelimit.ClientIP(r)),
		UserAgent:   truncateUserAgent(r.UserAgent()),
		RequestID:   uuid.NewString(),
	}
}

// truncateUserAgent cuts ua to at most maxUserAgent bytes without splitting
// a multi-byte character.
func truncateUserAgent(ua string) string {
	if len(ua) <= maxUserAgent {
		return ua
	}
	n := maxUserAgent
	for n > 0 && !utf8.RuneStart(ua[n]) {
		n--
	}
	return ua[:n]
}

// ServeResolve handles GET /api/public/{slug}.
func (h *Handler) ServeResolve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	res, err := h.Gateway.Resolve(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.Log.Error("resolve failed", zap.String("slug", chi.URLParam(r, "slug")), zap.Error(err))
		errorsfeature.Message(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	if !res.Found {
		errorsfeature.JSON(w, http.StatusOK, notFoundResponse{})
		return
	}
	errorsfeature.JSON(w, http.StatusOK, res)
}

// HandleJoin handles POST /api/public/{slug}/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	res, err := h.Gateway.AttemptJoin(ctx, chi.URLParam(r, "slug"), h.caller(r))
	if err != nil {
		// Logged where it happened.
		h.Log.Debug("join failed", zap.Error(err))
	}
	if res.Outcome == allocation.OutcomeOK {
		errorsfeature.JSON(w, http.StatusOK, joinResponse{OK: true, Target: res.Target})
		return
	}
	errorsfeature.JSON(w, outcomeStatus(res.Outcome), joinResponse{Reason: string(res.Outcome)})
}

// ServeRedirect handles GET /j/{slug}: a successful join redirects straight
// to the invite link.
func (h *Handler) ServeRedirect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	res, err := h.Gateway.AttemptJoin(ctx, chi.URLParam(r, "slug"), h.caller(r))
	if err != nil {
		h.Log.Debug("join failed", zap.Error(err))
	}
	if res.Outcome == allocation.OutcomeOK {
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, res.Target, http.StatusFound)
		return
	}
	errorsfeature.JSON(w, outcomeStatus(res.Outcome), joinResponse{Reason: string(res.Outcome)})
}

// ServeSlugAvailable handles GET /api/public/slugs/{slug}/available.
func (h *Handler) ServeSlugAvailable(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	ok, err := h.Gateway.SlugAvailable(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.Log.Error("slug availability failed", zap.Error(err))
		errorsfeature.Message(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	errorsfeature.JSON(w, http.StatusOK, availableResponse{Available: ok})
}
