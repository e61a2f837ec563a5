// internal/app/features/groups/groupview.go
package groups

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/rollover"
	groupstore "github.com/dalemusser/joinlink/internal/app/store/groups"
	"github.com/dalemusser/joinlink/internal/app/system/auth"
	"github.com/dalemusser/joinlink/internal/app/system/timeouts"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ownedGroup loads a group and checks it belongs to owner.
func (h *Handler) ownedGroup(ctx context.Context, owner string, id primitive.ObjectID) (models.Group, error) {
	if owner == "" {
		return models.Group{}, rollover.ErrUnauthenticated
	}
	g, err := h.Groups.GetByID(ctx, id)
	if errors.Is(err, groupstore.ErrNotFound) {
		return models.Group{}, rollover.ErrNotFound
	}
	if err != nil {
		return models.Group{}, fmt.Errorf("load group: %w", err)
	}
	if g.OwnerID != owner {
		return models.Group{}, rollover.ErrNotOwner
	}
	return g, nil
}

// ServeGroup handles GET /api/groups/{id}.
func (h *Handler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	id, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	g, err := h.ownedGroup(ctx, auth.OwnerID(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, g)
}
