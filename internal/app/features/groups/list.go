// internal/app/features/groups/list.go
package groups

import (
	"net/http"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/system/auth"
	"github.com/dalemusser/joinlink/internal/app/system/timeouts"
	"github.com/dalemusser/joinlink/internal/domain/models"
)

type listResponse struct {
	Groups []models.Group `json:"groups"`
}

// ServeGroupsList handles GET /api/groups: the owner's groups, newest first.
func (h *Handler) ServeGroupsList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	groups, err := h.Groups.ListByOwner(ctx, auth.OwnerID(r))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	errorsfeature.JSON(w, http.StatusOK, listResponse{Groups: groups})
}
