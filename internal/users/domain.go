package users

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
)

// User is a stored account.
type User struct {
	ID           int64
	Username     string
	Email        string
	Phone        string
	PasswordHash string
	ImageURL     string
	Role         policy.Role
	Status       policy.AccountStatus
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot returns the view of u the policy decides on.
func (u User) Snapshot() policy.User {
	return policy.User{ID: u.ID, Role: u.Role, Status: u.Status}
}

// UserResponse is the public JSON shape of a user.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterRequest is the payload of POST /users/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=2,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,min=8,max=15,numeric"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateRequest is a partial user update. Nil fields are left untouched.
type UpdateRequest struct {
	Username *string `json:"username" validate:"omitempty,min=2,max=30"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,min=8,max=15,numeric"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
	Role     *string `json:"role" validate:"omitempty,oneof=user author admin"`
	Status   *string `json:"status" validate:"omitempty,oneof=active inactive suspended pending_verification"`
	Verified *bool   `json:"verified"`
}

// Fields reports which field groups the request touches.
func (r UpdateRequest) Fields() policy.UserFields {
	var fields []policy.UserField
	if r.Username != nil {
		fields = append(fields, policy.UserFieldUsername)
	}
	if r.Email != nil {
		fields = append(fields, policy.UserFieldEmail)
	}
	if r.Phone != nil {
		fields = append(fields, policy.UserFieldPhone)
	}
	if r.Password != nil {
		fields = append(fields, policy.UserFieldPassword)
	}
	if r.Role != nil {
		fields = append(fields, policy.UserFieldRole)
	}
	if r.Status != nil {
		fields = append(fields, policy.UserFieldStatus)
	}
	if r.Verified != nil {
		fields = append(fields, policy.UserFieldVerified)
	}
	return policy.NewUserFields(fields...)
}

// Changes is the set of column updates applied to a user row.
type Changes struct {
	Username     *string
	Email        *string
	Phone        *string
	PasswordHash *string
	ImageURL     *string
	Role         *policy.Role
	Status       *policy.AccountStatus
	Verified     *bool
}

// Apply copies the non-nil changes onto u.
func (c Changes) Apply(u *User) {
	if c.Username != nil {
		u.Username = *c.Username
	}
	if c.Email != nil {
		u.Email = *c.Email
	}
	if c.Phone != nil {
		u.Phone = *c.Phone
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
	if c.ImageURL != nil {
		u.ImageURL = *c.ImageURL
	}
	if c.Role != nil {
		u.Role = *c.Role
	}
	if c.Status != nil {
		u.Status = *c.Status
	}
	if c.Verified != nil {
		u.Verified = *c.Verified
	}
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	Role   policy.Role
	Status policy.AccountStatus
	Page   shared.PageRequest
}

// NormalizeUsername trims and NFC-normalizes a username so visually equal
// names collide on the unique index.
func NormalizeUsername(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// deletedUsernamePrefix is reserved for anonymized accounts so a live user
// can never hold the name a later deletion needs.
const deletedUsernamePrefix = "deleted-"

// checkUsernameAvailable rejects names in the reserved namespace.
func checkUsernameAvailable(username string) error {
	if strings.HasPrefix(strings.ToLower(username), deletedUsernamePrefix) {
		return shared.NewValidationError("username", "uses a reserved prefix")
	}
	return nil
}

// anonymized returns the scrubbed column values of a deleted account.
func anonymized(id int64) Changes {
	username := deletedUsernamePrefix + strconv.FormatInt(id, 10)
	email := username + "@deleted.invalid"
	empty := ""
	status := policy.AccountDeleted
	verified := false
	return Changes{
		Username:     &username,
		Email:        &email,
		Phone:        &empty,
		PasswordHash: &empty,
		ImageURL:     &empty,
		Status:       &status,
		Verified:     &verified,
	}
}
