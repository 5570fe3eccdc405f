// Package engine defines the error taxonomy shared by the redemption and
// assignment coordinators. Callers branch on Kind and Reason instead of
// matching error strings.
package engine

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for propagation policy purposes.
type Kind int

const (
	// KindNotFound means a referenced entity does not exist.
	KindNotFound Kind = iota
	// KindInvalidState means the entity exists but is not in the state the
	// requested transition needs.
	KindInvalidState
	// KindConflict means a concurrent operation won the race. Expected under
	// normal concurrent load; not exceptional.
	KindConflict
	// KindInconsistent means an internal invariant was violated. Fatal,
	// must be surfaced loudly.
	KindInconsistent
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindConflict:
		return "conflict"
	case KindInconsistent:
		return "inconsistent"
	}
	return "unknown"
}

// Reason is a machine-readable cause carried alongside the Kind, so callers
// can tell e.g. "already redeemed" apart from "invalid code".
type Reason string

const (
	ReasonInvalidCode         Reason = "invalid_code"
	ReasonNotActive           Reason = "not_active"
	ReasonExpired             Reason = "expired"
	ReasonDeactivated         Reason = "deactivated"
	ReasonAlreadyRedeemed     Reason = "already_redeemed"
	ReasonAlreadyAssigned     Reason = "already_assigned"
	ReasonNotAssigned         Reason = "not_assigned"
	ReasonNotAvailable        Reason = "not_available"
	ReasonHolderMismatch      Reason = "holder_mismatch"
	ReasonSubmissionMissing   Reason = "submission_missing"
	ReasonRewardMissing       Reason = "reward_missing"
	ReasonDuplicateSubmission Reason = "duplicate_submission"
)

// Error is the tagged error type returned by coordinator operations.
type Error struct {
	Kind   Kind
	Reason Reason
	Op     string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an engine error.
func E(op string, kind Kind, reason Reason, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Op: op, Err: err}
}

// KindOf extracts the Kind of err, or KindInconsistent if err is not an
// engine error (unknown failures are treated as the loud case).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInconsistent
}

// ReasonOf extracts the Reason of err, or "" for non-engine errors.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
