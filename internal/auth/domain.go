package auth

import (
	"time"

	"github.com/inkpress/inkpress/internal/policy"
)

// Account is the credential view of a user row.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         policy.Role
	Status       policy.AccountStatus
	Verified     bool
	UpdatedAt    time.Time
}

// Actor converts the account into a policy actor snapshot.
func (a Account) Actor() policy.Actor {
	return policy.Actor{ID: a.ID, Role: a.Role, Status: a.Status, Verified: a.Verified}
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
