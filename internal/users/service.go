package users

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/inkpress/inkpress/internal/auth"
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

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	files    storage.Store
	notifier Notifier
	denials  DenialRecorder
	logger   *slog.Logger
}

// NewService builds Service instance. files, notifier and denials may be nil.
func NewService(repo RepositoryPort, files storage.Store, notifier Notifier, denials DenialRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = jobs.NewNotifier(nil, logger, nil)
	}
	return &Service{repo: repo, files: files, notifier: notifier, denials: denials, logger: logger}
}

// Register creates a regular account awaiting verification and sends the
// welcome email once the row is committed.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	username := NormalizeUsername(req.Username)
	if err := checkUsernameAvailable(username); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	candidate := User{
		Username:     username,
		Email:        NormalizeEmail(req.Email),
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         policy.RoleUser,
		Status:       policy.AccountPendingVerification,
	}

	var created User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureUnique(ctx, tx, &candidate.Username, &candidate.Email, 0); err != nil {
			return err
		}
		created, err = tx.Create(ctx, candidate)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, jobs.SendEmailPayload{
		To:       created.Email,
		Subject:  "Welcome aboard",
		Template: view.TemplateRegister,
		Data: map[string]any{
			"user_name":  created.Username,
			"user_email": created.Email,
			"user_role":  string(created.Role),
		},
	})
	return &created, nil
}

// Get returns a user visible to actor.
func (s *Service) Get(ctx context.Context, actor policy.Actor, id int64) (*User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.check("user.view", policy.CanViewUser(actor, u.Snapshot())); err != nil {
		return nil, err
	}
	return u, nil
}

// List returns a page of users. Admin only.
func (s *Service) List(ctx context.Context, actor policy.Actor, filter ListFilter) (shared.Page[User], error) {
	if err := s.check("user.list", policy.CanListUsers(actor)); err != nil {
		return shared.Page[User]{}, err
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[User]{}, err
	}
	return shared.NewPage(items, filter.Page, total), nil
}

// Update applies a partial update. The policy runs on the locked row and
// any denial or conflict leaves the row untouched.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id int64, req UpdateRequest) (*User, error) {
	changes, err := s.changesFor(req)
	if err != nil {
		return nil, err
	}
	fields := req.Fields()

	var updated User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := s.check("user.update", policy.CanUpdateUser(actor, current.Snapshot(), fields)); err != nil {
			return err
		}
		if current.Status == policy.AccountDeleted {
			return fmt.Errorf("%w: account is deleted", shared.ErrConflict)
		}
		if fields.Empty() {
			updated = *current
			return nil
		}
		if err := ensureUnique(ctx, tx, changes.Username, changes.Email, id); err != nil {
			return err
		}
		updated, err = tx.Update(ctx, id, changes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete anonymizes the account in place. Deleting an already deleted
// account succeeds without writing.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := s.check("user.delete", policy.CanDeleteUser(actor, current.Snapshot())); err != nil {
			return err
		}
		if current.Status == policy.AccountDeleted {
			return nil
		}
		if _, err := tx.Update(ctx, id, anonymized(id)); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditUserDeleted,
			Entity:   "user",
			EntityID: id,
			Meta:     map[string]any{"self": actor.ID == id},
		})
	})
}

// Verify marks the account verified and active, then emails the owner.
func (s *Service) Verify(ctx context.Context, actor policy.Actor, id int64) (*User, error) {
	if err := s.check("user.verify", policy.CanVerifyUser(actor)); err != nil {
		return nil, err
	}
	verified := true
	active := policy.AccountActive

	var updated User
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == policy.AccountDeleted {
			return shared.ErrNotFound
		}
		updated, err = tx.Update(ctx, id, Changes{Verified: &verified, Status: &active})
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditUserVerified,
			Entity:   "user",
			EntityID: id,
			Meta:     map[string]any{"previous_status": string(current.Status)},
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, jobs.SendEmailPayload{
		To:       updated.Email,
		Subject:  "Your account has been verified",
		Template: view.TemplateAccountVerified,
		Data:     map[string]any{"user_name": updated.Username},
	})
	return &updated, nil
}

// SetImage stores a new profile image for id. The file is written before
// the row update and removed again when the transaction fails; the
// replaced image is removed after commit.
func (s *Service) SetImage(ctx context.Context, actor policy.Actor, id int64, filename string, r io.Reader) (*User, error) {
	if s.files == nil {
		return nil, fmt.Errorf("users: no file store configured")
	}
	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.check("user.update", policy.CanUpdateUser(actor, target.Snapshot(), 0)); err != nil {
		return nil, err
	}

	urlPath, err := s.files.Save(ctx, storage.DirUsers, filename, r)
	if err != nil {
		return nil, err
	}

	var previous string
	var updated User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := s.check("user.update", policy.CanUpdateUser(actor, current.Snapshot(), 0)); err != nil {
			return err
		}
		previous = current.ImageURL
		updated, err = tx.Update(ctx, id, Changes{ImageURL: &urlPath})
		return err
	})
	if err != nil {
		s.removeFile(ctx, urlPath)
		return nil, err
	}
	if previous != "" && previous != urlPath {
		s.removeFile(ctx, previous)
	}
	return &updated, nil
}

func (s *Service) changesFor(req UpdateRequest) (Changes, error) {
	var c Changes
	if req.Username != nil {
		name := NormalizeUsername(*req.Username)
		if err := checkUsernameAvailable(name); err != nil {
			return Changes{}, err
		}
		c.Username = &name
	}
	if req.Email != nil {
		email := NormalizeEmail(*req.Email)
		c.Email = &email
	}
	c.Phone = req.Phone
	c.Verified = req.Verified
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return Changes{}, err
		}
		c.PasswordHash = &hash
	}
	if req.Role != nil {
		role, ok := policy.ParseRole(*req.Role)
		if !ok {
			return Changes{}, shared.NewValidationError("role", "must be one of [user author admin]")
		}
		c.Role = &role
	}
	if req.Status != nil {
		status, ok := policy.ParseAccountStatus(*req.Status)
		if !ok || status == policy.AccountDeleted {
			return Changes{}, shared.NewValidationError("status", "is not an assignable status")
		}
		c.Status = &status
	}
	return c, nil
}

func ensureUnique(ctx context.Context, tx TxRepository, username, email *string, exceptID int64) error {
	if username != nil {
		taken, err := tx.UsernameTaken(ctx, *username, exceptID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: username already taken", shared.ErrConflict)
		}
	}
	if email != nil {
		taken, err := tx.EmailTaken(ctx, *email, exceptID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: email already registered", shared.ErrConflict)
		}
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
		s.logger.Warn("remove image", slog.String("path", urlPath), slog.Any("error", err))
	}
}
