package tags

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/inkpress/inkpress/internal/shared"
)

// Tag is a free-form label attached to posts.
type Tag struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest is the payload of POST /tags.
type CreateRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=40"`
	Description string `json:"description" validate:"max=300"`
}

// UpdateRequest is a partial tag update.
type UpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=40"`
	Description *string `json:"description" validate:"omitempty,max=300"`
}

// NormalizeName folds a tag name to its NFC, lower-case, single-spaced
// form. Names that differ only in composition or case collide.
func NormalizeName(raw string) (string, error) {
	name := strings.ToLower(strings.Join(strings.Fields(norm.NFC.String(raw)), " "))
	if name == "" {
		return "", shared.NewValidationError("name", "is required")
	}
	return name, nil
}
