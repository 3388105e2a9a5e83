package usecase

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidationError is a malformed or semantically invalid request.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Message
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError is a referenced record that does not exist (or is not
// visible to the caller).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// CapacityExceededError lists the requested seats that are taken, missing
// from the grid, or otherwise unavailable.
type CapacityExceededError struct {
	ShowtimeID  uuid.UUID
	Unavailable []string
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("seats unavailable for showtime %s: %s", e.ShowtimeID, strings.Join(e.Unavailable, ", "))
}

// ExternalServiceError wraps a failed or timed-out processor call. It is
// safe to retry the operation.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("payment processor %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// ConsistencyError marks an approved payment whose seats could not be
// committed. The ledger entry stays APPROVED without a ticket and needs an
// operator.
type ConsistencyError struct {
	PaymentID uuid.UUID
	Reason    string
	Err       error
}

func (e *ConsistencyError) Error() string {
	msg := fmt.Sprintf("payment %s approved but not fulfilled: %s", e.PaymentID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

// UnknownStatusWarning records a processor status string that did not map
// onto the enum. It never aborts processing.
type UnknownStatusWarning struct {
	Raw string
}

func (w *UnknownStatusWarning) Error() string {
	return fmt.Sprintf("unknown processor status %q treated as PENDING", w.Raw)
}
