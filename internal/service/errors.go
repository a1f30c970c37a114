package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/courtbook/courtbook/internal/model"
)

var (
	// ErrNotFound is returned when an entity does not exist under the
	// caller's organization. Cross-tenant references return the same
	// error so callers cannot probe for entities of other tenants.
	ErrNotFound = errors.New("not found")

	// ErrCourtBusy is returned when a court lock cannot be acquired in
	// time or storage keeps failing transiently. Safe to retry.
	ErrCourtBusy = errors.New("court is busy, retry later")
)

// ValidationError reports a static input problem. Never retried.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Code, e.Message)
}

func validationErrorf(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports an active overlapping reservation. The earlier
// booking always wins; the conflicting interval is surfaced to the caller.
type ConflictError struct {
	ReservationID int64
	Start         time.Time
	End           time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicts with reservation %d (%s–%s)",
		e.ReservationID,
		e.Start.Format("15:04"),
		e.End.Format("15:04"))
}

// StateError reports an illegal operation for the reservation's current
// status, e.g. cancelling a completed reservation.
type StateError struct {
	Status model.ReservationStatus
	Action string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s reservation in status %q", e.Action, e.Status)
}
