package audit

import (
	"context"
	"errors"

	"github.com/inkpress/inkpress/internal/policy"
)

// DenialRecorder counts policy denials.
type DenialRecorder interface {
	PolicyDenied(action, reason string)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo    Repository
	denials DenialRecorder
}

// NewService constructs a Service.
func NewService(repo Repository, denials DenialRecorder) *Service {
	return &Service{repo: repo, denials: denials}
}

// Timeline returns one page of the audit timeline.
func (s *Service) Timeline(ctx context.Context, actor policy.Actor, filters TimelineFilters) (Result, error) {
	if err := s.authorize(actor); err != nil {
		return Result{}, err
	}
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	filters = filters.normalized()
	offset := (filters.Page - 1) * filters.PageSize
	rows, err := s.repo.Window(ctx, filters, offset, filters.PageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > filters.PageSize
	if hasNext {
		rows = rows[:filters.PageSize]
	}
	paging := PagingInfo{Page: filters.Page, PageSize: filters.PageSize, HasNext: hasNext}
	if filters.Page > 1 {
		paging.PrevPage = filters.Page - 1
	}
	if hasNext {
		paging.NextPage = filters.Page + 1
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every row matching filters.
func (s *Service) Export(ctx context.Context, actor policy.Actor, filters TimelineFilters) ([]TimelineRow, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.All(ctx, filters)
}

func (s *Service) authorize(actor policy.Actor) error {
	d := policy.CanViewAudit(actor)
	if !d.Allowed && s.denials != nil {
		s.denials.PolicyDenied("audit.view", string(d.Reason))
	}
	return d.Err()
}
