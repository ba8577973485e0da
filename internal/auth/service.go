package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/internal/view"
	"github.com/inkpress/inkpress/jobs"
)

// Notifier queues transactional emails.
type Notifier interface {
	Notify(ctx context.Context, payload jobs.SendEmailPayload)
}

// SecretStore keeps short-lived secrets per email.
type SecretStore interface {
	Put(ctx context.Context, subject, value string) error
	Verify(ctx context.Context, subject, candidate string) (bool, error)
	Delete(ctx context.Context, subject string) error
	TTL() time.Duration
}

// ServiceConfig collects the collaborators of Service.
type ServiceConfig struct {
	Repo        Repository
	Tokens      *TokenIssuer
	OTPs        SecretStore
	ResetTokens SecretStore
	Notifier    Notifier
	Logger      *slog.Logger
}

// Service wraps authentication business rules.
type Service struct {
	repo        Repository
	tokens      *TokenIssuer
	otps        SecretStore
	resetTokens SecretStore
	notifier    Notifier
	logger      *slog.Logger
}

// NewService constructs a new Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = jobs.NewNotifier(nil, logger, nil)
	}
	return &Service{
		repo:        cfg.Repo,
		tokens:      cfg.Tokens,
		otps:        cfg.OTPs,
		resetTokens: cfg.ResetTokens,
		notifier:    notifier,
		logger:      logger,
	}
}

// Authenticate validates email/password credentials. Unknown emails,
// wrong passwords and accounts that may not sign in all fail the same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(account.PasswordHash, password) {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.Status.CanAuthenticate() {
		return nil, shared.ErrInvalidCredentials
	}
	return account, nil
}

// Login authenticates and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (TokenResponse, error) {
	account, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return TokenResponse{}, err
	}
	token, expires, err := s.tokens.Issue(account.ID)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{AccessToken: token, TokenType: "bearer", ExpiresAt: expires}, nil
}

// ResolveActor turns a bearer token into the actor behind it. Accounts
// whose status forbids authentication are rejected here, before any
// policy decision sees them.
func (s *Service) ResolveActor(ctx context.Context, token string) (policy.Actor, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return policy.Anonymous(), err
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return policy.Anonymous(), fmt.Errorf("%w: unknown account", shared.ErrUnauthorized)
		}
		return policy.Anonymous(), err
	}
	if !account.Status.CanAuthenticate() {
		return policy.Anonymous(), fmt.Errorf("%w: account %s", shared.ErrUnauthorized, account.Status)
	}
	return account.Actor(), nil
}

// RequestPasswordReset stores a fresh OTP and emails it. The outcome is
// indistinguishable for unknown emails.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) {
	email = normalizeEmail(email)
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("password reset lookup", slog.Any("error", err))
		}
		return
	}
	otp, err := GenerateOTP()
	if err != nil {
		s.logger.Error("password reset otp", slog.Any("error", err))
		return
	}
	if err := s.otps.Put(ctx, email, otp); err != nil {
		s.logger.Error("password reset store otp", slog.Any("error", err))
		return
	}
	s.notifier.Notify(ctx, jobs.SendEmailPayload{
		To:       account.Email,
		Subject:  "Your Password Reset OTP",
		Template: view.TemplatePasswordOTP,
		Data:     map[string]any{"user_name": account.Username, "otp": otp, "ttl_minutes": int(s.otps.TTL() / time.Minute)},
	})
}

// ValidateOTP consumes a matching OTP and returns a reset token.
func (s *Service) ValidateOTP(ctx context.Context, email, otp string) (string, error) {
	email = normalizeEmail(email)
	ok, err := s.otps.Verify(ctx, email, otp)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", shared.NewValidationError("otp", "is invalid or expired")
	}
	if err := s.otps.Delete(ctx, email); err != nil {
		return "", err
	}
	token, err := GenerateResetToken()
	if err != nil {
		return "", err
	}
	if err := s.resetTokens.Put(ctx, email, token); err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword replaces the password of the account owning a valid
// reset token. The token is single use.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	email = normalizeEmail(email)
	ok, err := s.resetTokens.Verify(ctx, email, token)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewValidationError("reset_token", "is invalid or expired")
	}
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return err
	}
	if err := s.resetTokens.Delete(ctx, email); err != nil {
		s.logger.Warn("delete reset token", slog.Any("error", err))
	}
	return nil
}

// ChangePassword replaces the actor's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, actor policy.Actor, current, newPassword string) error {
	if actor.IsAnonymous() {
		return shared.ErrUnauthorized
	}
	account, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !CheckPassword(account.PasswordHash, current) {
		return shared.NewValidationError("current_password", "is incorrect")
	}
	return s.setPassword(ctx, account, newPassword)
}

func (s *Service) setPassword(ctx context.Context, account *Account, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, account.ID, hash); err != nil {
		return err
	}
	s.notifier.Notify(ctx, jobs.SendEmailPayload{
		To:       account.Email,
		Subject:  "Your Password Has Been Changed",
		Template: view.TemplatePasswordConfirmation,
		Data:     map[string]any{"user_name": account.Username},
	})
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
