package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/auditlog"
	"github.com/clinicore/scheduling-engine/internal/scheduling"
)

func listPeriodsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location_id", "id must be a valid UUID")
			return
		}

		from, err := parseDateQuery(r, "start_date", time.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "start_date must be YYYY-MM-DD")
			return
		}
		to, err := parseDateQuery(r, "end_date", from.AddDate(0, 3, 0))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "end_date must be YYYY-MM-DD")
			return
		}

		periods, err := svc.ActivePeriods(r.Context(), locationID, from, to)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]PeriodResponse, 0, len(periods))
		for _, p := range periods {
			resp = append(resp, toPeriodResponse(p))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func blockRangeHandler(svc *scheduling.Service, rec auditlog.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockRangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		locationID, err := uuid.Parse(req.LocationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location_id", "location_id must be a valid UUID")
			return
		}
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "start_date must be YYYY-MM-DD")
			return
		}
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "end_date must be YYYY-MM-DD")
			return
		}

		period, err := svc.BlockRange(r.Context(), locationID, start, end, req.Reason, actor(r))
		if err != nil {
			handleDomainError(w, err)
			return
		}

		recordAudit(rec, r, "unavailable_periods", "block_range", "period", period.ID.String(), map[string]any{
			"location_id": req.LocationID,
			"start_date":  req.StartDate,
			"end_date":    req.EndDate,
			"reason":      req.Reason,
		})
		writeJSON(w, http.StatusCreated, toPeriodResponse(*period))
	}
}

func unblockPeriodHandler(svc *scheduling.Service, rec auditlog.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		periodID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_period_id", "id must be a valid UUID")
			return
		}

		if err := svc.Unblock(r.Context(), periodID); err != nil {
			handleDomainError(w, err)
			return
		}

		recordAudit(rec, r, "unavailable_periods", "unblock", "period", periodID.String(), nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

func emergencyBlockHandler(svc *scheduling.Service, rec auditlog.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EmergencyBlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		locationID, err := uuid.Parse(req.LocationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location_id", "location_id must be a valid UUID")
			return
		}
		date, err := time.Parse("2006-01-02", req.BlockDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "block_date must be YYYY-MM-DD")
			return
		}

		cancelled, err := svc.EmergencyBlock(r.Context(), locationID, date, req.Reason, actor(r))
		if err != nil {
			handleDomainError(w, err)
			return
		}

		recordAudit(rec, r, "unavailable_periods", "emergency_block", "location", req.LocationID, map[string]any{
			"block_date": req.BlockDate,
			"reason":     req.Reason,
			"cancelled":  len(cancelled),
		})

		resp := make([]AppointmentResponse, 0, len(cancelled))
		for _, a := range cancelled {
			resp = append(resp, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func parseDateQuery(r *http.Request, key string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return scheduling.Midnight(def), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
