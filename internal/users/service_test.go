package users

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/jobs"
	_ "github.com/inkpress/inkpress/testing"
)

// memRepo keeps users in memory. WithTx works on a copy that replaces the
// committed state only when the callback succeeds.
type memRepo struct {
	mu     sync.Mutex
	users  map[int64]User
	audits []shared.AuditLog
	nextID int64
}

func newMemRepo(users ...User) *memRepo {
	m := &memRepo{users: map[int64]User{}, nextID: 100}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memRepo) Get(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []User
	for _, u := range m.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := min(f.Page.Offset(), len(all))
	end := min(start+f.Page.Limit(), len(all))
	return all[start:end], len(all), nil
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{users: make(map[int64]User, len(m.users)), nextID: m.nextID}
	for id, u := range m.users {
		tx.users[id] = u
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.users, m.nextID = tx.users, tx.nextID
	m.audits = append(m.audits, tx.audits...)
	return nil
}

type memTx struct {
	users  map[int64]User
	audits []shared.AuditLog
	nextID int64
}

func (t *memTx) Create(_ context.Context, u User) (User, error) {
	t.nextID++
	u.ID = t.nextID
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	t.users[u.ID] = u
	return u, nil
}

func (t *memTx) Lock(_ context.Context, id int64) (*User, error) {
	u, ok := t.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (t *memTx) EmailTaken(_ context.Context, email string, exceptID int64) (bool, error) {
	for _, u := range t.users {
		if u.ID != exceptID && u.Status != policy.AccountDeleted && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) UsernameTaken(_ context.Context, username string, exceptID int64) (bool, error) {
	for _, u := range t.users {
		if u.ID != exceptID && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) Update(_ context.Context, id int64, c Changes) (User, error) {
	u, ok := t.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	c.Apply(&u)
	for _, other := range t.users {
		if other.ID != id && other.Username == u.Username {
			return User{}, shared.ErrConflict
		}
	}
	u.UpdatedAt = time.Now()
	t.users[id] = u
	return u, nil
}

func (t *memTx) RecordAudit(_ context.Context, log shared.AuditLog) error {
	t.audits = append(t.audits, log)
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

type memFiles struct {
	saved   []string
	removed []string
}

func (f *memFiles) Save(_ context.Context, subdir, filename string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	p := "/media/" + subdir + "/" + filename
	f.saved = append(f.saved, p)
	return p, nil
}

func (f *memFiles) Remove(_ context.Context, p string) error {
	f.removed = append(f.removed, p)
	return nil
}

type denials map[string]int

func (d denials) PolicyDenied(action, reason string) { d[action+"/"+reason]++ }

var (
	adminUser  = User{ID: 1, Username: "admin", Email: "admin@example.com", Role: policy.RoleAdmin, Status: policy.AccountActive, Verified: true}
	authorUser = User{ID: 2, Username: "writer", Email: "writer@example.com", Role: policy.RoleAuthor, Status: policy.AccountActive, Verified: true}
	readerUser = User{ID: 3, Username: "reader", Email: "reader@example.com", Phone: "55501234", ImageURL: "/media/users/old.png", Role: policy.RoleUser, Status: policy.AccountPendingVerification}
)

func actorOf(u User) policy.Actor {
	return policy.Actor{ID: u.ID, Role: u.Role, Status: u.Status, Verified: u.Verified}
}

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T) (*Service, *memRepo, *recordingNotifier, *memFiles, denials) {
	t.Helper()
	repo := newMemRepo(adminUser, authorUser, readerUser)
	notifier := &recordingNotifier{}
	files := &memFiles{}
	d := denials{}
	return NewService(repo, files, notifier, d, nil), repo, notifier, files, d
}

func TestRegister(t *testing.T) {
	svc, repo, notifier, _, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{Username: "  Café ", Email: "New@Example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "Café", u.Username)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, policy.RoleUser, u.Role)
	assert.Equal(t, policy.AccountPendingVerification, u.Status)
	assert.NotEqual(t, "password123", u.PasswordHash)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "new@example.com", notifier.sent[0].To)

	_, err = svc.Register(ctx, RegisterRequest{Username: "other", Email: "READER@example.com", Password: "password123"})
	assert.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.Register(ctx, RegisterRequest{Username: "Café", Email: "x@example.com", Password: "password123"})
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Len(t, repo.users, 4)
	assert.Len(t, notifier.sent, 1)
}

func TestGetVisibility(t *testing.T) {
	svc, _, _, _, d := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, actorOf(readerUser), readerUser.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, actorOf(adminUser), readerUser.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, actorOf(readerUser), authorUser.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Get(ctx, actorOf(readerUser), 999)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 1, d["user.view/not_owner"])
}

func TestUpdateSelfIdentityFields(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	u, err := svc.Update(context.Background(), actorOf(readerUser), readerUser.ID, UpdateRequest{
		Username: strPtr("reader2"),
		Phone:    strPtr("55509999"),
		Password: strPtr("newpassword1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "reader2", u.Username)
	assert.Equal(t, "55509999", u.Phone)
	assert.NotEmpty(t, u.PasswordHash)
}

func TestUpdateDeniedLeavesStateUnchanged(t *testing.T) {
	svc, repo, _, _, d := newTestService(t)
	ctx := context.Background()
	before := repo.users[readerUser.ID]

	cases := []struct {
		name   string
		actor  policy.Actor
		target int64
		req    UpdateRequest
		err    error
	}{
		{"self role escalation", actorOf(readerUser), readerUser.ID, UpdateRequest{Username: strPtr("sneaky"), Role: strPtr("admin")}, shared.ErrForbidden},
		{"self verified flag", actorOf(readerUser), readerUser.ID, UpdateRequest{Verified: new(bool)}, shared.ErrForbidden},
		{"other user", actorOf(authorUser), readerUser.ID, UpdateRequest{Phone: strPtr("55500000")}, shared.ErrForbidden},
		{"email conflict", actorOf(readerUser), readerUser.ID, UpdateRequest{Phone: strPtr("55500000"), Email: strPtr("WRITER@example.com")}, shared.ErrConflict},
		{"missing target", actorOf(adminUser), 999, UpdateRequest{Phone: strPtr("55500000")}, shared.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Update(ctx, tc.actor, tc.target, tc.req)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, before, repo.users[readerUser.ID])
		})
	}
	assert.Equal(t, 2, d["user.update/insufficient_role"])
	assert.Equal(t, 1, d["user.update/not_owner"])
}

func TestUpdateEmailMayKeepOwnAddress(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	u, err := svc.Update(context.Background(), actorOf(readerUser), readerUser.ID, UpdateRequest{Email: strPtr("Reader@Example.com")})
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", u.Email)
}

func TestAdminUpdatesPrivilegedFields(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	verified := true
	u, err := svc.Update(context.Background(), actorOf(adminUser), readerUser.ID, UpdateRequest{
		Role:     strPtr("author"),
		Status:   strPtr("suspended"),
		Verified: &verified,
	})
	require.NoError(t, err)
	assert.Equal(t, policy.RoleAuthor, u.Role)
	assert.Equal(t, policy.AccountSuspended, u.Status)
	assert.True(t, u.Verified)

	_, err = svc.Update(context.Background(), actorOf(adminUser), readerUser.ID, UpdateRequest{Status: strPtr("deleted")})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteAnonymizes(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, actorOf(readerUser), readerUser.ID))
	got := repo.users[readerUser.ID]
	assert.Equal(t, policy.AccountDeleted, got.Status)
	assert.False(t, got.Verified)
	assert.Equal(t, "deleted-3", got.Username)
	assert.Empty(t, got.Phone)
	assert.Empty(t, got.PasswordHash)
	assert.Empty(t, got.ImageURL)
	assert.NotContains(t, got.Email, "reader")
	require.Len(t, repo.audits, 1)
	assert.Equal(t, shared.AuditUserDeleted, repo.audits[0].Action)

	require.NoError(t, svc.Delete(ctx, actorOf(adminUser), readerUser.ID))
	assert.Len(t, repo.audits, 1)

	_, err := svc.Get(ctx, actorOf(readerUser), readerUser.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeletedUsernameNamespaceIsReserved(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "deleted-3", Email: "squat@example.com", Password: "password123"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Update(ctx, actorOf(authorUser), authorUser.ID, UpdateRequest{Username: strPtr(" Deleted-3")})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, authorUser, repo.users[authorUser.ID])

	require.NoError(t, svc.Delete(ctx, actorOf(readerUser), readerUser.ID))
	assert.Equal(t, "deleted-3", repo.users[readerUser.ID].Username)
}

func TestDeleteOtherUserDenied(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	err := svc.Delete(context.Background(), actorOf(authorUser), readerUser.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, readerUser, repo.users[readerUser.ID])
	assert.Empty(t, repo.audits)
}

func TestVerify(t *testing.T) {
	svc, repo, notifier, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Verify(ctx, actorOf(authorUser), readerUser.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Empty(t, notifier.sent)

	u, err := svc.Verify(ctx, actorOf(adminUser), readerUser.ID)
	require.NoError(t, err)
	assert.True(t, u.Verified)
	assert.Equal(t, policy.AccountActive, u.Status)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, readerUser.Email, notifier.sent[0].To)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, shared.AuditUserVerified, repo.audits[0].Action)
}

func TestListRequiresAdmin(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, actorOf(authorUser), ListFilter{})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	page, err := svc.List(ctx, actorOf(adminUser), ListFilter{Role: policy.RoleUser, Page: shared.PageRequest{Page: 1, PerPage: 10}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, readerUser.ID, page.Items[0].ID)
	assert.Equal(t, 1, page.Pagination.Total)
}

func TestSetImageReplacesFile(t *testing.T) {
	svc, repo, _, files, _ := newTestService(t)
	u, err := svc.SetImage(context.Background(), actorOf(readerUser), readerUser.ID, "me.png", bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	assert.Equal(t, "/media/users/me.png", u.ImageURL)
	assert.Equal(t, "/media/users/me.png", repo.users[readerUser.ID].ImageURL)
	assert.Equal(t, []string{"/media/users/old.png"}, files.removed)

	_, err = svc.SetImage(context.Background(), actorOf(authorUser), readerUser.ID, "x.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Len(t, files.saved, 1)
}
