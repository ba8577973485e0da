package policy

// UserField names a field of a user profile update.
type UserField uint8

const (
	UserFieldUsername UserField = 1 << iota
	UserFieldEmail
	UserFieldPhone
	UserFieldPassword
	UserFieldRole
	UserFieldStatus
	UserFieldVerified
)

// UserFields is a set of requested user fields.
type UserFields uint8

// NewUserFields builds a set from individual fields.
func NewUserFields(fields ...UserField) UserFields {
	var set UserFields
	for _, f := range fields {
		set |= UserFields(f)
	}
	return set
}

// Has reports whether f is part of the set.
func (s UserFields) Has(f UserField) bool {
	return s&UserFields(f) != 0
}

// Empty reports whether no field was requested.
func (s UserFields) Empty() bool {
	return s == 0
}

const privilegedUserFields = UserFields(UserFieldRole) | UserFields(UserFieldStatus) | UserFields(UserFieldVerified)

// canSeeUser hides deleted accounts from everyone but admins.
func canSeeUser(actor Actor, target User) bool {
	return actor.IsAdmin() || target.Status != AccountDeleted
}

// CanViewUser allows self access and admins.
func CanViewUser(actor Actor, target User) Decision {
	if !canSeeUser(actor, target) {
		return Deny(ReasonNotVisible)
	}
	if actor.IsAdmin() || actor.Owns(target.ID) {
		return Allow()
	}
	return Deny(ReasonNotOwner)
}

// CanUpdateUser gates a profile update. Identity fields are open to self
// and admins; role, status and verified are admin only.
func CanUpdateUser(actor Actor, target User, fields UserFields) Decision {
	if !canSeeUser(actor, target) {
		return Deny(ReasonNotVisible)
	}
	if !actor.IsAdmin() && !actor.Owns(target.ID) {
		return Deny(ReasonNotOwner)
	}
	if fields&privilegedUserFields != 0 && !actor.IsAdmin() {
		return Deny(ReasonInsufficientRole)
	}
	return Allow()
}

// CanDeleteUser allows self deletion and admins.
func CanDeleteUser(actor Actor, target User) Decision {
	if actor.IsAdmin() || actor.Owns(target.ID) {
		return Allow()
	}
	if !canSeeUser(actor, target) {
		return Deny(ReasonNotVisible)
	}
	return Deny(ReasonNotOwner)
}

// CanListUsers allows admins.
func CanListUsers(actor Actor) Decision {
	return adminOnly(actor)
}

// CanVerifyUser allows admins.
func CanVerifyUser(actor Actor) Decision {
	return adminOnly(actor)
}

// CanViewAudit allows admins to read the audit timeline.
func CanViewAudit(actor Actor) Decision {
	return adminOnly(actor)
}

func adminOnly(actor Actor) Decision {
	if actor.IsAdmin() {
		return Allow()
	}
	return Deny(ReasonInsufficientRole)
}
