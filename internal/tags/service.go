package tags

import (
	"context"

	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
)

// DenialRecorder counts refused policy decisions.
type DenialRecorder interface {
	PolicyDenied(action, reason string)
}

// Service implements tag use cases.
type Service struct {
	repo    Repository
	denials DenialRecorder
}

// NewService constructs a Service.
func NewService(repo Repository, denials DenialRecorder) *Service {
	return &Service{repo: repo, denials: denials}
}

func (s *Service) List(ctx context.Context, q shared.ListQuery) (shared.Page[Tag], error) {
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return shared.Page[Tag]{}, err
	}
	return shared.NewPage(items, q.Page, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Tag, error) {
	return s.repo.Get(ctx, id)
}

// Create adds a tag. Authors and admins.
func (s *Service) Create(ctx context.Context, actor policy.Actor, req CreateRequest) (Tag, error) {
	if err := s.check("tag.create", policy.CanCreateTag(actor)); err != nil {
		return Tag{}, err
	}
	name, err := NormalizeName(req.Name)
	if err != nil {
		return Tag{}, err
	}
	return s.repo.Create(ctx, Tag{Name: name, Description: req.Description})
}

// Update edits a tag. Admin only.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id int64, req UpdateRequest) (Tag, error) {
	if err := s.check("tag.manage", policy.CanManageTags(actor)); err != nil {
		return Tag{}, err
	}
	if req.Name != nil {
		name, err := NormalizeName(*req.Name)
		if err != nil {
			return Tag{}, err
		}
		req.Name = &name
	}
	return s.repo.Update(ctx, id, req)
}

// Delete removes a tag and detaches it from every post. Admin only.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	if err := s.check("tag.manage", policy.CanManageTags(actor)); err != nil {
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
