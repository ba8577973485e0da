package users

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/inkpress/inkpress/internal/shared"
)

func TestTranslate(t *testing.T) {
	err := translate(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Contains(t, err.Error(), "username already taken")

	err = translate(&pgconn.PgError{Code: "40P01"})
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Contains(t, err.Error(), "retry")

	assert.NoError(t, translate(nil))
}
