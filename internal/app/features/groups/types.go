// internal/app/features/groups/types.go
package groups

import (
	"fmt"
	"unicode/utf8"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/system/htmlsanitize"
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 500
)

type createRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	MaxMembersDefault *int   `json:"max_members_default"`
}

type updateRequest struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	MaxMembersDefault *int    `json:"max_members_default"`
	Active            *bool   `json:"active"`
}

type currentMembersRequest struct {
	CurrentMembers *int `json:"current_members"`
}

type deleteResponse struct {
	Deleted         bool  `json:"deleted"`
	LinksDeleted    int64 `json:"links_deleted"`
	EntriesDetached int64 `json:"entries_detached"`
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errorsfeature.ErrBadRequest}, args...)...)
}

// cleanName strips markup and checks the length of a group name.
func cleanName(raw string) (string, error) {
	name := htmlsanitize.Name(raw)
	if name == "" {
		return "", badRequest("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", badRequest("name must be at most %d characters", maxNameLen)
	}
	return name, nil
}

func cleanDescription(raw string) (string, error) {
	desc := htmlsanitize.PlainText(raw)
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return "", badRequest("description must be at most %d characters", maxDescriptionLen)
	}
	return desc, nil
}

func checkCapacity(v *int) error {
	if v != nil && *v < 1 {
		return badRequest("max_members_default must be at least 1")
	}
	return nil
}
