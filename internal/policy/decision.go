package policy

import "github.com/inkpress/inkpress/internal/shared"

// Reason explains why a Decision denies.
type Reason string

const (
	ReasonNone                     Reason = ""
	ReasonInsufficientRole         Reason = "insufficient_role"
	ReasonNotOwner                 Reason = "not_owner"
	ReasonNotVisible               Reason = "not_visible"
	ReasonStatusRequiresTransition Reason = "status_requires_transition"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow returns a permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a refusing decision with the given reason.
func Deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Err returns nil for allowed decisions and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Reason: d.Reason}
}

// DeniedError carries the reason of a denial. It unwraps to
// shared.ErrNotFound for ReasonNotVisible and to shared.ErrForbidden
// otherwise.
type DeniedError struct {
	Reason Reason
}

func (e *DeniedError) Error() string {
	if e.Reason == ReasonNotVisible {
		return shared.ErrNotFound.Error()
	}
	if e.Reason == ReasonNone {
		return shared.ErrForbidden.Error()
	}
	return shared.ErrForbidden.Error() + ": " + string(e.Reason)
}

func (e *DeniedError) Unwrap() error {
	if e.Reason == ReasonNotVisible {
		return shared.ErrNotFound
	}
	return shared.ErrForbidden
}
