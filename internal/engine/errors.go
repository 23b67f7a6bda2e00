package engine

import (
	"fmt"

	"commerce-agent/internal/domain"
)

// Code classifies transition failures for the caller.
type Code string

const (
	// CodeInvalidTransition means no rule matches the current state and
	// event. Non-retryable; the caller shows fallback guidance.
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	// CodeGuardFailed means a named guard rejected the transition.
	CodeGuardFailed Code = "GUARD_FAILED"
	// CodeActionFailed means the bound action faulted, or persistence
	// conflicts could not be resolved within the retry budget.
	CodeActionFailed Code = "ACTION_FAILED"
)

// Error is the typed failure returned by Transition. From, To and Event echo
// the attempted transition; Reason names the guard or action involved.
type Error struct {
	Code   Code
	Reason string
	From   domain.State
	To     domain.State
	Event  domain.Event
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("engine: %s (%s) state=%s event=%s", e.Code, e.Reason, e.From, e.Event)
	}
	return fmt.Sprintf("engine: %s (%s) state=%s event=%s: %v", e.Code, e.Reason, e.From, e.Event, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
