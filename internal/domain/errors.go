package domain

import "fmt"

// Error taxonomy for the document and billing engine. Handlers map these onto
// HTTP status codes; services never return raw strings for business failures.

// ValidationError reports malformed input: a missing required merge field, a
// bad line item, a currency mismatch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// StateError reports a transition that is invalid for the document's current
// status, such as signing an expired contract.
type StateError struct {
	Entity    string
	Current   string
	Attempted string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s in status %q cannot %s", e.Entity, e.Current, e.Attempted)
}

// ConflictError reports a lost optimistic-concurrency race. The caller may
// retry after re-reading state.
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent update on %s %s", e.Entity, e.ID)
}

// ResolutionError reports an unresolvable or cyclic merge-field reference.
type ResolutionError struct {
	Key    string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("merge field %q: %s", e.Key, e.Reason)
}

// ReconciliationError reports a payment event that cannot be applied to the
// ledger: an unknown payment identity, or a refund exceeding recorded
// payments. It indicates upstream data inconsistency and must be surfaced.
type ReconciliationError struct {
	IntentID string
	Reason   string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation of %s: %s", e.IntentID, e.Reason)
}

// CollaboratorError wraps a PDF or email collaborator failure. It is never
// fatal to the transition that triggered the collaborator.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
