package comments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
)

type memRepo struct {
	posts    map[int64]policy.Post
	comments map[int64]Comment
	nextID   int64
}

func (m *memRepo) PostSnapshot(_ context.Context, id int64) (policy.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return policy.Post{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memRepo) List(_ context.Context, postID int64, _ shared.PageRequest) ([]Comment, int, error) {
	var out []Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (m *memRepo) Get(_ context.Context, postID, id int64) (Comment, error) {
	c, ok := m.comments[id]
	if !ok || c.PostID != postID {
		return Comment{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memRepo) Create(_ context.Context, c Comment) (Comment, error) {
	m.nextID++
	c.ID = m.nextID
	m.comments[c.ID] = c
	return c, nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	delete(m.comments, id)
	return nil
}

func TestCommentFlow(t *testing.T) {
	repo := &memRepo{
		posts: map[int64]policy.Post{
			1: {ID: 1, AuthorID: 2, Status: policy.PostPublished},
			2: {ID: 2, AuthorID: 2, Status: policy.PostDraft},
		},
		comments: map[int64]Comment{},
	}
	svc := NewService(repo, nil)
	ctx := context.Background()

	admin := policy.Actor{ID: 1, Role: policy.RoleAdmin}
	author := policy.Actor{ID: 2, Role: policy.RoleAuthor}
	reader := policy.Actor{ID: 4, Role: policy.RoleUser}
	other := policy.Actor{ID: 5, Role: policy.RoleUser}

	c, err := svc.Create(ctx, reader, 1, CreateRequest{Message: "  nice post "})
	require.NoError(t, err)
	assert.Equal(t, "nice post", c.Message)
	assert.Equal(t, reader.ID, c.UserID)

	_, err = svc.Create(ctx, policy.Anonymous(), 1, CreateRequest{Message: "hi"})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Create(ctx, reader, 2, CreateRequest{Message: "hi"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Create(ctx, author, 2, CreateRequest{Message: "hi"})
	assert.ErrorIs(t, err, shared.ErrForbidden, "drafts take no comments")

	page, err := svc.List(ctx, policy.Anonymous(), 1, shared.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	_, err = svc.List(ctx, reader, 2, shared.PageRequest{})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, other, 1, c.ID), shared.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, reader, 2, c.ID), shared.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, admin, 1, c.ID))
	assert.Empty(t, repo.comments)
}
