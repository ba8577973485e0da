package posts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/internal/storage"
	"github.com/inkpress/inkpress/internal/view"
	"github.com/inkpress/inkpress/jobs"
)

// Notifier queues transactional emails.
type Notifier interface {
	Notify(ctx context.Context, payload jobs.SendEmailPayload)
}

// DenialRecorder counts refused policy decisions.
type DenialRecorder interface {
	PolicyDenied(action, reason string)
}

// Service implements the post workflow. Every mutation evaluates the
// policy on the row locked inside its transaction.
type Service struct {
	repo     RepositoryPort
	files    storage.Store
	notifier Notifier
	denials  DenialRecorder
	logger   *slog.Logger
}

// NewService constructs a Service. files, notifier and denials may be nil.
func NewService(repo RepositoryPort, files storage.Store, notifier Notifier, denials DenialRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = jobs.NewNotifier(nil, logger, nil)
	}
	return &Service{repo: repo, files: files, notifier: notifier, denials: denials, logger: logger}
}

// Create stores a new post. Its status derives from the creator's role.
func (s *Service) Create(ctx context.Context, actor policy.Actor, req CreateRequest) (*Post, error) {
	if err := s.check("post.create", policy.CanCreatePost(actor)); err != nil {
		return nil, err
	}
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := requireCategory(ctx, tx, req.CategoryID); err != nil {
			return err
		}
		created, err := tx.Create(ctx, Post{
			AuthorID:    actor.ID,
			CategoryID:  req.CategoryID,
			Status:      policy.InitialStatus(actor),
			Title:       req.Title,
			Description: req.Description,
			Content:     req.Content,
		})
		if err != nil {
			return err
		}
		id = created.ID
		return tx.ReplaceTags(ctx, id, req.TagIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Get returns a post visible to actor. Posts outside the actor's visible
// set are reported as missing.
func (s *Service) Get(ctx context.Context, actor policy.Actor, id int64) (*Post, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(actor, p.Snapshot()) {
		return nil, s.check("post.view", policy.Deny(policy.ReasonNotVisible))
	}
	return p, nil
}

// List returns the page of posts visible to actor that match filter.
func (s *Service) List(ctx context.Context, actor policy.Actor, filter ListFilter) (shared.Page[Post], error) {
	filter.Visibility = policy.VisibilityFor(actor)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[Post]{}, err
	}
	return shared.NewPage(items, filter.Page, total), nil
}

// Update applies a general update. Either every requested field group is
// allowed and written, or nothing is.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id int64, req UpdateRequest) (*Post, error) {
	fields := req.Fields()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := s.check("post.update", policy.CanUpdatePost(actor, current.Snapshot(), fields)); err != nil {
			return err
		}
		if req.CategoryID != nil {
			if err := requireCategory(ctx, tx, *req.CategoryID); err != nil {
				return err
			}
		}
		changes := Changes{
			Title:       req.Title,
			Description: req.Description,
			Content:     req.Content,
			CategoryID:  req.CategoryID,
		}
		if !changes.Empty() {
			if err := tx.Update(ctx, id, changes); err != nil {
				return err
			}
		}
		if req.TagIDs != nil {
			return tx.ReplaceTags(ctx, id, *req.TagIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// SetStatus assigns any status. Admin only; the actor is checked before
// the post is loaded. Setting the current status is a no-op. The author
// is emailed after a real change commits.
func (s *Service) SetStatus(ctx context.Context, actor policy.Actor, id int64, raw string) (*Post, error) {
	if err := s.check("post.status", policy.CanSetStatus(actor)); err != nil {
		return nil, err
	}
	status, ok := policy.ParsePostStatus(raw)
	if !ok {
		return nil, shared.NewValidationError("status", "must be one of [draft pending_review published archived]")
	}

	var (
		previous policy.PostStatus
		post     Post
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		previous, post = current.Status, *current
		if current.Status == status {
			return nil
		}
		if err := tx.SetStatus(ctx, id, status); err != nil {
			return err
		}
		post.Status = status
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditPostStatusChanged,
			Entity:   "post",
			EntityID: id,
			Meta:     map[string]any{"from": string(previous), "to": string(status)},
		})
	})
	if err != nil {
		return nil, err
	}
	if previous != status {
		s.notifyStatusChange(ctx, post, previous)
	}
	return s.repo.Get(ctx, id)
}

// Delete archives a post. Archiving an archived post succeeds without writing.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := s.check("post.delete", policy.CanDeletePost(actor, current.Snapshot())); err != nil {
			return err
		}
		if current.Status == policy.PostArchived {
			return nil
		}
		if err := tx.SetStatus(ctx, id, policy.PostArchived); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditPostArchived,
			Entity:   "post",
			EntityID: id,
			Meta:     map[string]any{"from": string(current.Status)},
		})
	})
}

// SetImage stores a new cover image. The file is written before the row
// update and removed again when the transaction fails; the replaced image
// is removed after commit.
func (s *Service) SetImage(ctx context.Context, actor policy.Actor, id int64, filename string, r io.Reader) (*Post, error) {
	if s.files == nil {
		return nil, errors.New("posts: no file store configured")
	}
	imageOnly := policy.NewPostFields(policy.PostFieldImage)

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.check("post.update", policy.CanUpdatePost(actor, current.Snapshot(), imageOnly)); err != nil {
		return nil, err
	}

	urlPath, err := s.files.Save(ctx, storage.DirPosts, filename, r)
	if err != nil {
		return nil, err
	}

	var previous string
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := s.check("post.update", policy.CanUpdatePost(actor, locked.Snapshot(), imageOnly)); err != nil {
			return err
		}
		previous = locked.ImageURL
		return tx.Update(ctx, id, Changes{ImageURL: &urlPath})
	})
	if err != nil {
		s.removeFile(ctx, urlPath)
		return nil, err
	}
	if previous != "" && previous != urlPath {
		s.removeFile(ctx, previous)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) notifyStatusChange(ctx context.Context, post Post, previous policy.PostStatus) {
	contact, err := s.repo.AuthorContact(ctx, post.AuthorID)
	if err != nil {
		s.logger.Warn("post author lookup", slog.Int64("post_id", post.ID), slog.Any("error", err))
		return
	}
	if contact.Status == policy.AccountDeleted || contact.Email == "" {
		return
	}
	s.notifier.Notify(ctx, jobs.SendEmailPayload{
		To:       contact.Email,
		Subject:  fmt.Sprintf("Your post %q is now %s", post.Title, post.Status),
		Template: view.TemplatePostStatusChanged,
		Data: map[string]any{
			"user_name":  contact.Username,
			"post_title": post.Title,
			"old_status": string(previous),
			"new_status": string(post.Status),
		},
	})
}

func requireCategory(ctx context.Context, tx TxRepository, id int64) error {
	ok, err := tx.CategoryExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewValidationError("category_id", "does not exist")
	}
	return nil
}

func (s *Service) check(action string, d policy.Decision) error {
	if !d.Allowed && s.denials != nil {
		s.denials.PolicyDenied(action, string(d.Reason))
	}
	return d.Err()
}

func (s *Service) removeFile(ctx context.Context, urlPath string) {
	if err := s.files.Remove(ctx, urlPath); err != nil {
		s.logger.Warn("remove post image", slog.String("path", urlPath), slog.Any("error", err))
	}
}
