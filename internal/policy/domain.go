// Package policy provides authorization and lifecycle decisions for
// posts, users and taxonomy. Every function is pure: callers hand in
// snapshots of the actor and the resource and get a Decision back.
package policy

import "strings"

// Role is the coarse permission level of an account.
type Role string

const (
	RoleUser   Role = "user"
	RoleAuthor Role = "author"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAuthor, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// AccountStatus is the lifecycle state of a user account.
type AccountStatus string

const (
	AccountActive              AccountStatus = "active"
	AccountInactive            AccountStatus = "inactive"
	AccountSuspended           AccountStatus = "suspended"
	AccountPendingVerification AccountStatus = "pending_verification"
	AccountDeleted             AccountStatus = "deleted"
)

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountActive, AccountInactive, AccountSuspended, AccountPendingVerification, AccountDeleted:
		return true
	}
	return false
}

// CanAuthenticate reports whether an account in this status may act at all.
func (s AccountStatus) CanAuthenticate() bool {
	return s == AccountActive || s == AccountPendingVerification
}

// ParseAccountStatus converts raw input into an AccountStatus.
func ParseAccountStatus(raw string) (AccountStatus, bool) {
	s := AccountStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostDraft         PostStatus = "draft"
	PostPendingReview PostStatus = "pending_review"
	PostPublished     PostStatus = "published"
	PostArchived      PostStatus = "archived"
)

// Valid reports whether s is a known post status.
func (s PostStatus) Valid() bool {
	switch s {
	case PostDraft, PostPendingReview, PostPublished, PostArchived:
		return true
	}
	return false
}

// ParsePostStatus converts raw input into a PostStatus.
func ParsePostStatus(raw string) (PostStatus, bool) {
	s := PostStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Actor is the identity issuing a request. The zero value is anonymous.
type Actor struct {
	ID       int64
	Role     Role
	Status   AccountStatus
	Verified bool
}

// Anonymous returns the unauthenticated actor.
func Anonymous() Actor {
	return Actor{}
}

// IsAnonymous reports whether no credential was presented.
func (a Actor) IsAnonymous() bool {
	return a.ID == 0
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return !a.IsAnonymous() && a.Role == RoleAdmin
}

// IsAuthor reports whether the actor holds the author role.
func (a Actor) IsAuthor() bool {
	return !a.IsAnonymous() && a.Role == RoleAuthor
}

// Owns reports whether ownerID identifies the actor.
func (a Actor) Owns(ownerID int64) bool {
	return !a.IsAnonymous() && a.ID == ownerID
}

// Post is the snapshot of a post needed for decisions.
type Post struct {
	ID       int64
	AuthorID int64
	Status   PostStatus
}

// User is the snapshot of a target user needed for decisions.
type User struct {
	ID     int64
	Role   Role
	Status AccountStatus
}
