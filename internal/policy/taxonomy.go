package policy

// CanManageCategories allows admins to create, edit and delete categories.
func CanManageCategories(actor Actor) Decision {
	return adminOnly(actor)
}

// CanCreateTag allows authors and admins.
func CanCreateTag(actor Actor) Decision {
	return CanCreatePost(actor)
}

// CanManageTags allows admins to edit and delete tags.
func CanManageTags(actor Actor) Decision {
	return adminOnly(actor)
}

// CanComment allows any authenticated actor on a visible, published post.
func CanComment(actor Actor, post Post) Decision {
	if !CanView(actor, post) {
		return Deny(ReasonNotVisible)
	}
	if actor.IsAnonymous() {
		return Deny(ReasonInsufficientRole)
	}
	if post.Status != PostPublished {
		return Deny(ReasonInsufficientRole)
	}
	return Allow()
}

// CanDeleteComment allows the comment's writer and admins.
func CanDeleteComment(actor Actor, post Post, commenterID int64) Decision {
	if !CanView(actor, post) {
		return Deny(ReasonNotVisible)
	}
	if actor.IsAdmin() || actor.Owns(commenterID) {
		return Allow()
	}
	return Deny(ReasonNotOwner)
}
