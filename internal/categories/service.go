package categories

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/internal/storage"
)

// DenialRecorder counts refused policy decisions.
type DenialRecorder interface {
	PolicyDenied(action, reason string)
}

// Service implements category use cases.
type Service struct {
	repo    Repository
	files   storage.Store
	denials DenialRecorder
	logger  *slog.Logger
}

// NewService constructs a Service. files and denials may be nil.
func NewService(repo Repository, files storage.Store, denials DenialRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, files: files, denials: denials, logger: logger}
}

// List returns a page of categories. Public.
func (s *Service) List(ctx context.Context, q shared.ListQuery) (shared.Page[Category], error) {
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return shared.Page[Category]{}, err
	}
	return shared.NewPage(items, q.Page, total), nil
}

// Get returns one category. Public.
func (s *Service) Get(ctx context.Context, id int64) (Category, error) {
	return s.repo.Get(ctx, id)
}

// Create adds a category. Admin only.
func (s *Service) Create(ctx context.Context, actor policy.Actor, req CreateRequest) (Category, error) {
	if err := s.authorize(actor); err != nil {
		return Category{}, err
	}
	name, err := normalizeName(req.Name)
	if err != nil {
		return Category{}, err
	}
	return s.repo.Create(ctx, Category{Name: name, Description: req.Description})
}

// Update edits name and description. Admin only.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id int64, req UpdateRequest) (Category, error) {
	if err := s.authorize(actor); err != nil {
		return Category{}, err
	}
	if req.Name != nil {
		name, err := normalizeName(*req.Name)
		if err != nil {
			return Category{}, err
		}
		req.Name = &name
	}
	return s.repo.Update(ctx, id, req)
}

// Delete removes a category. Categories still referenced by posts yield
// ErrConflict. Admin only.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if current.ImageURL != "" && s.files != nil {
		s.removeFile(ctx, current.ImageURL)
	}
	return nil
}

// SetImage stores a category image. Admin only.
func (s *Service) SetImage(ctx context.Context, actor policy.Actor, id int64, filename string, r io.Reader) (Category, error) {
	if err := s.authorize(actor); err != nil {
		return Category{}, err
	}
	if s.files == nil {
		return Category{}, fmt.Errorf("categories: no file store configured")
	}
	urlPath, err := s.files.Save(ctx, storage.DirCategories, filename, r)
	if err != nil {
		return Category{}, err
	}
	previous, err := s.repo.SetImage(ctx, id, urlPath)
	if err != nil {
		s.removeFile(ctx, urlPath)
		return Category{}, err
	}
	if previous != "" && previous != urlPath {
		s.removeFile(ctx, previous)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) authorize(actor policy.Actor) error {
	d := policy.CanManageCategories(actor)
	if !d.Allowed && s.denials != nil {
		s.denials.PolicyDenied("category.manage", string(d.Reason))
	}
	return d.Err()
}

func (s *Service) removeFile(ctx context.Context, urlPath string) {
	if err := s.files.Remove(ctx, urlPath); err != nil {
		s.logger.Warn("remove category image", slog.String("path", urlPath), slog.Any("error", err))
	}
}
