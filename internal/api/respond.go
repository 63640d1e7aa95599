package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinicore/scheduling-engine/internal/redisclient"
	"github.com/clinicore/scheduling-engine/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleDomainError maps engine errors onto the HTTP taxonomy. Conflicts
// (capacity races, blocked days, lock contention) are 409s the caller resolves
// by re-querying; transaction aborts are 500s the operator must resubmit.
func handleDomainError(w http.ResponseWriter, err error) {
	var ve *scheduling.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.Is(err, scheduling.ErrLocationNotFound):
		writeError(w, http.StatusNotFound, "location_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPeriodNotFound):
		writeError(w, http.StatusNotFound, "period_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrDayBlocked):
		writeError(w, http.StatusConflict, "day_blocked", err.Error())
	case errors.Is(err, scheduling.ErrDailyLimitReached):
		writeError(w, http.StatusConflict, "daily_limit_reached", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "locked_retry", "resource is busy, please retry shortly")
	case errors.Is(err, scheduling.ErrTransactionAborted):
		writeError(w, http.StatusInternalServerError, "transaction_aborted", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
	}
}
