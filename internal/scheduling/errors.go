package scheduling

import (
	"errors"
	"fmt"
)

var (
	ErrLocationNotFound    = errors.New("location not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPeriodNotFound      = errors.New("unavailable period not found")

	// ErrSlotUnavailable is returned when a booking loses the capacity race or
	// targets a full slot. Callers must re-fetch the day's slots and retry with
	// a different slot; the engine never picks a fallback.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrDayBlocked marks a date covered by an unavailable period, so callers
	// can distinguish "doctor unavailable" from "no slots configured".
	ErrDayBlocked = errors.New("day is blocked")

	// ErrInvalidTransition is returned for status changes the appointment
	// lifecycle does not permit (e.g. cancelling a completed appointment).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDailyLimitReached is returned when the location's configured per-day
	// appointment cap is exhausted.
	ErrDailyLimitReached = errors.New("daily appointment limit reached")

	// ErrTransactionAborted wraps a partial failure inside the emergency-block
	// unit of work. The whole operation has been rolled back; the operator must
	// resubmit explicitly, never retry automatically.
	ErrTransactionAborted = errors.New("transaction aborted")
)

// ValidationError rejects malformed input synchronously.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
