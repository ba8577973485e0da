package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpress/inkpress/internal/shared"
)

var (
	admin     = Actor{ID: 1, Role: RoleAdmin, Status: AccountActive, Verified: true}
	author    = Actor{ID: 2, Role: RoleAuthor, Status: AccountActive, Verified: true}
	author2   = Actor{ID: 3, Role: RoleAuthor, Status: AccountActive, Verified: true}
	reader    = Actor{ID: 4, Role: RoleUser, Status: AccountActive}
	anonymous = Anonymous()

	allStatuses = []PostStatus{PostDraft, PostPendingReview, PostPublished, PostArchived}
)

func TestPublishedPostsVisibleToEveryone(t *testing.T) {
	post := Post{ID: 10, AuthorID: author.ID, Status: PostPublished}
	for _, actor := range []Actor{admin, author, author2, reader, anonymous} {
		assert.True(t, CanView(actor, post), "actor %d role %q", actor.ID, actor.Role)
	}
}

func TestUnpublishedPostsVisibleOnlyToAdminAndOwner(t *testing.T) {
	for _, status := range allStatuses {
		if status == PostPublished {
			continue
		}
		post := Post{ID: 10, AuthorID: author.ID, Status: status}
		assert.True(t, CanView(admin, post), status)
		assert.True(t, CanView(author, post), status)
		assert.False(t, CanView(author2, post), status)
		assert.False(t, CanView(reader, post), status)
		assert.False(t, CanView(anonymous, post), status)
	}
}

func TestVisibilityFilterMatchesSinglePredicate(t *testing.T) {
	actors := []Actor{admin, author, author2, reader, anonymous}
	for _, actor := range actors {
		vis := VisibilityFor(actor)
		for _, status := range allStatuses {
			for _, owner := range []int64{author.ID, author2.ID} {
				post := Post{AuthorID: owner, Status: status}
				assert.Equal(t, CanView(actor, post), vis.Includes(post))
			}
		}
	}
	assert.Equal(t, Visibility{All: true}, VisibilityFor(admin))
	assert.Equal(t, Visibility{OwnerID: author.ID}, VisibilityFor(author))
	assert.Equal(t, Visibility{}, VisibilityFor(reader))
	assert.Equal(t, Visibility{}, VisibilityFor(anonymous))
}

func TestCreatePost(t *testing.T) {
	assert.True(t, CanCreatePost(admin).Allowed)
	assert.True(t, CanCreatePost(author).Allowed)
	assert.Equal(t, Deny(ReasonInsufficientRole), CanCreatePost(reader))
	assert.Equal(t, Deny(ReasonInsufficientRole), CanCreatePost(anonymous))

	assert.Equal(t, PostPublished, InitialStatus(admin))
	assert.Equal(t, PostPendingReview, InitialStatus(author))
}

func TestCanUpdatePost(t *testing.T) {
	published := Post{ID: 10, AuthorID: author.ID, Status: PostPublished}
	pending := Post{ID: 11, AuthorID: author.ID, Status: PostPendingReview}
	content := NewPostFields(PostFieldTitle, PostFieldContent, PostFieldTags)

	cases := []struct {
		name   string
		actor  Actor
		post   Post
		fields PostFields
		want   Decision
	}{
		{"owner edits content and tags", author, published, content, Allow()},
		{"owner edits image", author, pending, NewPostFields(PostFieldImage), Allow()},
		{"admin edits anything but status", admin, pending, content | NewPostFields(PostFieldCategory), Allow()},
		{"owner cannot reassign category", author, published, content | NewPostFields(PostFieldCategory), Deny(ReasonInsufficientRole)},
		{"other author on published post", author2, published, content, Deny(ReasonNotOwner)},
		{"reader on published post", reader, published, content, Deny(ReasonNotOwner)},
		{"anonymous on published post", anonymous, published, content, Deny(ReasonNotOwner)},
		{"other author on hidden post", author2, pending, content, Deny(ReasonNotVisible)},
		{"outer check precedes category check", author2, published, NewPostFields(PostFieldCategory), Deny(ReasonNotOwner)},
		{"status never via general update", admin, published, NewPostFields(PostFieldStatus), Deny(ReasonStatusRequiresTransition)},
		{"owner status via general update", author, published, NewPostFields(PostFieldStatus), Deny(ReasonStatusRequiresTransition)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanUpdatePost(tc.actor, tc.post, tc.fields))
		})
	}
}

func TestCanSetStatus(t *testing.T) {
	assert.True(t, CanSetStatus(admin).Allowed)
	for _, actor := range []Actor{author, reader, anonymous} {
		assert.Equal(t, Deny(ReasonInsufficientRole), CanSetStatus(actor))
	}
}

func TestCanDeletePost(t *testing.T) {
	published := Post{ID: 10, AuthorID: author.ID, Status: PostPublished}
	draft := Post{ID: 11, AuthorID: author.ID, Status: PostDraft}

	assert.True(t, CanDeletePost(admin, draft).Allowed)
	assert.True(t, CanDeletePost(author, draft).Allowed)
	assert.True(t, CanDeletePost(author, published).Allowed)
	assert.Equal(t, Deny(ReasonNotOwner), CanDeletePost(author2, published))
	assert.Equal(t, Deny(ReasonNotOwner), CanDeletePost(reader, published))
	assert.Equal(t, Deny(ReasonNotVisible), CanDeletePost(author2, draft))
}

func TestDecisionErrors(t *testing.T) {
	require.NoError(t, Allow().Err())

	err := Deny(ReasonNotOwner).Err()
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.NotErrorIs(t, err, shared.ErrNotFound)
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, ReasonNotOwner, denied.Reason)

	hidden := Deny(ReasonNotVisible).Err()
	assert.ErrorIs(t, hidden, shared.ErrNotFound)
	assert.NotErrorIs(t, hidden, shared.ErrForbidden)
	assert.Equal(t, shared.ErrNotFound.Error(), hidden.Error())
}

func TestParseHelpers(t *testing.T) {
	s, ok := ParsePostStatus(" Published ")
	assert.True(t, ok)
	assert.Equal(t, PostPublished, s)
	_, ok = ParsePostStatus("deleted")
	assert.False(t, ok)

	r, ok := ParseRole("AUTHOR")
	assert.True(t, ok)
	assert.Equal(t, RoleAuthor, r)

	as, ok := ParseAccountStatus("pending_verification")
	assert.True(t, ok)
	assert.True(t, as.CanAuthenticate())
	assert.False(t, AccountSuspended.CanAuthenticate())
	assert.False(t, AccountInactive.CanAuthenticate())
	assert.False(t, AccountDeleted.CanAuthenticate())
}
