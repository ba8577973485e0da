package comments

import (
	"context"
	"strings"

	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
)

// DenialRecorder counts refused policy decisions.
type DenialRecorder interface {
	PolicyDenied(action, reason string)
}

// Service implements comment use cases. Comments inherit the visibility
// of their post.
type Service struct {
	repo    Repository
	denials DenialRecorder
}

// NewService constructs a Service.
func NewService(repo Repository, denials DenialRecorder) *Service {
	return &Service{repo: repo, denials: denials}
}

// List returns the comments of a post visible to actor.
func (s *Service) List(ctx context.Context, actor policy.Actor, postID int64, page shared.PageRequest) (shared.Page[Comment], error) {
	post, err := s.repo.PostSnapshot(ctx, postID)
	if err != nil {
		return shared.Page[Comment]{}, err
	}
	if !policy.CanView(actor, post) {
		return shared.Page[Comment]{}, s.check("comment.list", policy.Deny(policy.ReasonNotVisible))
	}
	items, total, err := s.repo.List(ctx, postID, page)
	if err != nil {
		return shared.Page[Comment]{}, err
	}
	return shared.NewPage(items, page, total), nil
}

// Create adds a comment to a published post.
func (s *Service) Create(ctx context.Context, actor policy.Actor, postID int64, req CreateRequest) (Comment, error) {
	post, err := s.repo.PostSnapshot(ctx, postID)
	if err != nil {
		return Comment{}, err
	}
	if err := s.check("comment.create", policy.CanComment(actor, post)); err != nil {
		return Comment{}, err
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Comment{}, shared.NewValidationError("message", "is required")
	}
	return s.repo.Create(ctx, Comment{PostID: postID, UserID: actor.ID, Message: message})
}

// Delete removes a comment. Its writer and admins may delete it.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, postID, id int64) error {
	post, err := s.repo.PostSnapshot(ctx, postID)
	if err != nil {
		return err
	}
	comment, err := s.repo.Get(ctx, postID, id)
	if err != nil {
		return err
	}
	if err := s.check("comment.delete", policy.CanDeleteComment(actor, post, comment.UserID)); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) check(action string, d policy.Decision) error {
	if !d.Allowed && s.denials != nil {
		s.denials.PolicyDenied(action, string(d.Reason))
	}
	return d.Err()
}
