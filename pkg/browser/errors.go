package browser

import "fmt"

// SessionError indicates the authenticated profile is invalid or unrecoverable.
// By the time a SessionError surfaces, the offending profile directory has
// already been deleted; the caller's only recourse is a fresh first-time setup.
type SessionError struct {
	Reason string
	Err    error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: %s: %v", e.Reason, e.Err)
	}
	return "session: " + e.Reason
}

func (e *SessionError) Unwrap() error { return e.Err }

// InteractionError indicates a UI action could not be completed after every
// cascade tier was exhausted. Recoverable: the caller may retry or abort.
type InteractionError struct {
	Action string
	Err    error
}

func (e *InteractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("interaction: %s: %v", e.Action, e.Err)
	}
	return "interaction: " + e.Action
}

func (e *InteractionError) Unwrap() error { return e.Err }

// GenerationError indicates a generation request was rejected twice by prompt
// validation, or produced no artifacts and the screenshot fallback also failed.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation: %s: %v", e.Reason, e.Err)
	}
	return "generation: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ReconciliationError indicates a required model or LoRA search yielded no
// usable result. Fatal for the current task only; the session stays usable.
type ReconciliationError struct {
	Target string
	Err    error
}

func (e *ReconciliationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reconcile: %s: %v", e.Target, e.Err)
	}
	return "reconcile: " + e.Target
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
