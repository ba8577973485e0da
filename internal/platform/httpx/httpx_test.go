package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpress/inkpress/internal/shared"
)

func TestRespondErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("load post: %w", shared.ErrNotFound), http.StatusNotFound},
		{shared.ErrForbidden, http.StatusForbidden},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("email taken: %w", shared.ErrConflict), http.StatusConflict},
		{shared.NewValidationError("title", "is required"), http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestRespondErrorValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, shared.NewValidationError("title", "is required"))

	var body ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "is required", body.Errors["title"])
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("pq: password authentication failed"))
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Title string `json:"title"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x","status":"published"}`))
	err := DecodeJSON(httptest.NewRecorder(), req, &target)
	assert.ErrorIs(t, err, shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"ok"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &target))
	assert.Equal(t, "ok", target.Title)
}

func TestValidatorUsesJSONNames(t *testing.T) {
	type form struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"min=8"`
	}
	err := NewValidator().Struct(form{Email: "nope", Password: "short"})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "must be a valid email", ve.Fields["email"])
	assert.Equal(t, "must be at least 8 characters", ve.Fields["password"])
}
