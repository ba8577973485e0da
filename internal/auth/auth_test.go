package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/jobs"
	_ "github.com/inkpress/inkpress/testing"
)

type memRepo struct {
	mu       sync.Mutex
	accounts map[int64]*auth.Account
}

func newMemRepo(accounts ...auth.Account) *memRepo {
	repo := &memRepo{accounts: map[int64]*auth.Account{}}
	for i := range accounts {
		a := accounts[i]
		repo.accounts[a.ID] = &a
	}
	return repo
}

func (m *memRepo) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) && a.Status != policy.AccountDeleted {
			cp := *a
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) FindByID(_ context.Context, id int64) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.PasswordHash = hash
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []jobs.SendEmailPayload
}

func (r *recordingNotifier) Notify(_ context.Context, p jobs.SendEmailPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
}

func (r *recordingNotifier) last() jobs.SendEmailPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return jobs.SendEmailPayload{}
	}
	return r.sent[len(r.sent)-1]
}

type fixture struct {
	repo     *memRepo
	notifier *recordingNotifier
	service  *auth.Service
	tokens   *auth.TokenIssuer
	redis    *miniredis.Miniredis
	router   chi.Router
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	hash, err := auth.HashPassword(pw)
	require.NoError(t, err)
	return hash
}

func newFixture(t *testing.T, accounts ...auth.Account) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemRepo(accounts...)
	notifier := &recordingNotifier{}
	tokens := auth.NewTokenIssuer("test-secret", "inkpress", time.Hour)
	service := auth.NewService(auth.ServiceConfig{
		Repo:        repo,
		Tokens:      tokens,
		OTPs:        shared.NewTokenStore(client, "otp", 10*time.Minute),
		ResetTokens: shared.NewTokenStore(client, "reset_token", 15*time.Minute),
		Notifier:    notifier,
	})

	r := chi.NewRouter()
	r.Use(auth.Middleware{Service: service}.Authenticate)
	r.Route("/auth", auth.NewHandler(nil, service).MountRoutes)
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		actor := auth.ActorFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]any{"id": actor.ID, "role": actor.Role})
	})
	return &fixture{repo: repo, notifier: notifier, service: service, tokens: tokens, redis: mr, router: r}
}

func (f *fixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func jane(t *testing.T) auth.Account {
	return auth.Account{ID: 7, Username: "jane", Email: "jane@example.com", PasswordHash: mustHash(t, "correct-horse"), Role: policy.RoleAuthor, Status: policy.AccountActive, Verified: true}
}

func TestLoginJSONAndForm(t *testing.T) {
	f := newFixture(t, jane(t))

	rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"JANE@example.com","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok auth.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tok))
	assert.Equal(t, "bearer", tok.TokenType)

	rec = f.do(t, http.MethodGet, "/whoami", "", tok.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"role":"author"}`, rec.Body.String())

	form := url.Values{"username": {"jane@example.com"}, "password": {"correct-horse"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	formRec := httptest.NewRecorder()
	f.router.ServeHTTP(formRec, req)
	assert.Equal(t, http.StatusOK, formRec.Code)
}

func TestLoginRejectsBadCredentialsAndBlockedAccounts(t *testing.T) {
	suspended := jane(t)
	suspended.ID, suspended.Email, suspended.Status = 8, "sus@example.com", policy.AccountSuspended
	pending := jane(t)
	pending.ID, pending.Email, pending.Status = 9, "new@example.com", policy.AccountPendingVerification
	f := newFixture(t, jane(t), suspended, pending)

	rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"wrong-pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", `{"email":"nobody@example.com","password":"correct-horse"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", `{"email":"sus@example.com","password":"correct-horse"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", `{"email":"new@example.com","password":"correct-horse"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRejectsInvalidAndBlockedTokens(t *testing.T) {
	f := newFixture(t, jane(t))

	rec := f.do(t, http.MethodGet, "/whoami", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":0,"role":""}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/whoami", "", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := f.tokens.Issue(7)
	require.NoError(t, err)
	f.repo.accounts[7].Status = policy.AccountSuspended
	rec = f.do(t, http.MethodGet, "/whoami", "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.repo.accounts[7].Status = policy.AccountDeleted
	rec = f.do(t, http.MethodGet, "/whoami", "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := auth.NewTokenIssuer("other-secret", "inkpress", time.Hour)
	forged, _, err := other.Issue(7)
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/whoami", "", forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t, jane(t))

	rec := f.do(t, http.MethodPost, "/auth/password/request-reset", `{"email":"unknown@example.com"}`, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, f.notifier.sent)

	rec = f.do(t, http.MethodPost, "/auth/password/request-reset", `{"email":"jane@example.com"}`, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	mail := f.notifier.last()
	assert.Equal(t, "jane@example.com", mail.To)
	otp, _ := mail.Data["otp"].(string)
	require.Len(t, otp, 6)
	assert.Equal(t, 10, mail.Data["ttl_minutes"])
	assert.Equal(t, 10*time.Minute, f.redis.TTL("otp:jane@example.com"))

	rec = f.do(t, http.MethodPost, "/auth/password/validate-otp", `{"email":"jane@example.com","otp":"000000x"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/password/validate-otp", `{"email":"jane@example.com","otp":"`+otp+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	resetToken := body["reset_token"]
	require.NotEmpty(t, resetToken)
	assert.False(t, f.redis.Exists("otp:jane@example.com"), "otp must be single use")

	rec = f.do(t, http.MethodPost, "/auth/password/reset", `{"email":"jane@example.com","reset_token":"wrong","new_password":"battery-staple"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/password/reset", `{"email":"jane@example.com","reset_token":"`+resetToken+`","new_password":"battery-staple"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, f.redis.Exists("reset_token:jane@example.com"))

	_, err := f.service.Authenticate(context.Background(), "jane@example.com", "battery-staple")
	assert.NoError(t, err)
	assert.Equal(t, "password_change_confirmation.html", f.notifier.last().Template)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, jane(t))
	token, _, err := f.tokens.Issue(7)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/auth/password/change", `{"current_password":"x","new_password":"battery-staple"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/password/change", `{"current_password":"wrong-pass","new_password":"battery-staple"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/password/change", `{"current_password":"correct-horse","new_password":"short"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/password/change", `{"current_password":"correct-horse","new_password":"battery-staple"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = f.service.Authenticate(context.Background(), "jane@example.com", "battery-staple")
	assert.NoError(t, err)
}
