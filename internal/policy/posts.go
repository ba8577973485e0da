package policy

// PostField names a field group of a post update request.
type PostField uint8

const (
	PostFieldTitle PostField = 1 << iota
	PostFieldDescription
	PostFieldContent
	PostFieldImage
	PostFieldCategory
	PostFieldTags
	PostFieldStatus
)

// PostFields is a set of requested post fields.
type PostFields uint8

// NewPostFields builds a set from individual fields.
func NewPostFields(fields ...PostField) PostFields {
	var set PostFields
	for _, f := range fields {
		set |= PostFields(f)
	}
	return set
}

// Has reports whether f is part of the set.
func (s PostFields) Has(f PostField) bool {
	return s&PostFields(f) != 0
}

// Empty reports whether no field was requested.
func (s PostFields) Empty() bool {
	return s == 0
}

// Visibility describes the set of posts an actor may read. A post is
// visible when All is set, when it is published, or when OwnerID is
// non-zero and equals the post's author.
type Visibility struct {
	All     bool
	OwnerID int64
}

// Includes applies the visibility predicate to a single post.
func (v Visibility) Includes(p Post) bool {
	if v.All || p.Status == PostPublished {
		return true
	}
	return v.OwnerID != 0 && p.AuthorID == v.OwnerID
}

// VisibilityFor returns the read filter for actor.
func VisibilityFor(actor Actor) Visibility {
	switch {
	case actor.IsAdmin():
		return Visibility{All: true}
	case actor.IsAuthor():
		return Visibility{OwnerID: actor.ID}
	default:
		return Visibility{}
	}
}

// CanView reports whether actor may read post.
func CanView(actor Actor, post Post) bool {
	return VisibilityFor(actor).Includes(post)
}

// CanCreatePost allows authors and admins.
func CanCreatePost(actor Actor) Decision {
	if actor.IsAdmin() || actor.IsAuthor() {
		return Allow()
	}
	return Deny(ReasonInsufficientRole)
}

// InitialStatus is the status a newly created post starts in.
func InitialStatus(actor Actor) PostStatus {
	if actor.IsAdmin() {
		return PostPublished
	}
	return PostPendingReview
}

// CanUpdatePost gates a general update. The outer owner-or-admin check
// runs before any field group; status is never changed here and a
// category change by a non-admin denies the whole request.
func CanUpdatePost(actor Actor, post Post, fields PostFields) Decision {
	if !CanView(actor, post) {
		return Deny(ReasonNotVisible)
	}
	if !actor.IsAdmin() && !actor.Owns(post.AuthorID) {
		return Deny(ReasonNotOwner)
	}
	if fields.Has(PostFieldStatus) {
		return Deny(ReasonStatusRequiresTransition)
	}
	if fields.Has(PostFieldCategory) && !actor.IsAdmin() {
		return Deny(ReasonInsufficientRole)
	}
	return Allow()
}

// CanSetStatus allows admins to assign any status.
func CanSetStatus(actor Actor) Decision {
	if actor.IsAdmin() {
		return Allow()
	}
	return Deny(ReasonInsufficientRole)
}

// CanDeletePost allows admins to archive any post and authors their own.
func CanDeletePost(actor Actor, post Post) Decision {
	if !CanView(actor, post) {
		return Deny(ReasonNotVisible)
	}
	if actor.IsAdmin() {
		return Allow()
	}
	if actor.IsAuthor() && actor.Owns(post.AuthorID) {
		return Allow()
	}
	return Deny(ReasonNotOwner)
}
