package domain

import (
	"errors"
	"fmt"
)

// Reason is a machine-readable guard failure code carried by
// PreconditionFailedError. Callers branch on these, never on message text.
type Reason string

// Guard failure reasons.
const (
	ReasonNotAvailable      Reason = "NOT_AVAILABLE"
	ReasonNoOpenLoan        Reason = "NO_OPEN_LOAN"
	ReasonCartEmpty         Reason = "CART_EMPTY"
	ReasonAlreadyPaid       Reason = "ALREADY_PAID"
	ReasonNotConfirmed      Reason = "NOT_CONFIRMED"
	ReasonPaymentNotSuccess Reason = "PAYMENT_NOT_SUCCESS"
	ReasonOpenRecord        Reason = "OPEN_RECORD"
)

// NotFoundError reports an absent entity.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InvalidTransitionError reports a transition that is not declared for the
// resource's current state, including any transition out of a terminal state.
type InvalidTransitionError struct {
	Workflow   string
	Transition string
	State      State
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s.%s is not defined from state %s", e.Workflow, e.Transition, e.State)
}

// PreconditionFailedError reports a guard that evaluated false.
type PreconditionFailedError struct {
	Reason Reason
	Detail string
}

func (e PreconditionFailedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("precondition failed: %s", e.Reason)
	}
	return fmt.Sprintf("precondition failed: %s (%s)", e.Reason, e.Detail)
}

// ForbiddenError reports a failed capability check.
type ForbiddenError struct {
	ActorID    string
	Capability string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s lacks capability %s", e.ActorID, e.Capability)
}

// ConflictError reports a concurrent or referential conflict, such as deleting
// a resource that an unresolved transaction record still references.
type ConflictError struct {
	Entity EntityType
	ID     string
	Detail string
}

func (e ConflictError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("conflict on %s %s", e.Entity, e.ID)
	}
	return fmt.Sprintf("conflict on %s %s: %s", e.Entity, e.ID, e.Detail)
}

// BusyError reports that the per-resource exclusion could not be acquired
// before the caller's deadline. Busy is retryable with a bounded count.
type BusyError struct {
	Scope []ResourceKey
}

func (e BusyError) Error() string {
	return fmt.Sprintf("resource busy: could not lock %d key(s) before deadline", len(e.Scope))
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var it InvalidTransitionError
	return errors.As(err, &it)
}

// IsPreconditionFailed reports whether err is a PreconditionFailedError, and
// returns its reason code when it is.
func IsPreconditionFailed(err error) (Reason, bool) {
	var pf PreconditionFailedError
	if errors.As(err, &pf) {
		return pf.Reason, true
	}
	return "", false
}

// IsForbidden reports whether err is a ForbiddenError.
func IsForbidden(err error) bool {
	var f ForbiddenError
	return errors.As(err, &f)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c ConflictError
	return errors.As(err, &c)
}

// IsBusy reports whether err is a BusyError.
func IsBusy(err error) bool {
	var b BusyError
	return errors.As(err, &b)
}

// Retryable reports whether the caller may retry the command. Only Conflict
// and Busy qualify.
func Retryable(err error) bool {
	return IsConflict(err) || IsBusy(err)
}
