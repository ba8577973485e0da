package categories

import (
	"strings"

	"github.com/inkpress/inkpress/internal/shared"
)

func normalizeName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return "", shared.NewValidationError("name", "is required")
	}
	return name, nil
}
