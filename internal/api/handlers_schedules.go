package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/auditlog"
	"github.com/clinicore/scheduling-engine/internal/scheduling"
)

func getWeeklyScheduleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location_id", "id must be a valid UUID")
			return
		}

		week, err := svc.WeeklySchedule(r.Context(), locationID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		days := make([]int, 0, len(week))
		for day := range week {
			days = append(days, day)
		}
		sort.Ints(days)

		resp := make([]ScheduleEntryResponse, 0, len(days))
		for _, day := range days {
			resp = append(resp, toScheduleEntryResponse(week[day]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func replaceWeeklyScheduleHandler(svc *scheduling.Service, rec auditlog.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location_id", "id must be a valid UUID")
			return
		}

		var reqs []ScheduleEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		entries := make([]scheduling.WeeklyScheduleEntry, 0, len(reqs))
		for _, req := range reqs {
			entries = append(entries, req.toEntry())
		}

		if err := svc.ReplaceWeeklySchedule(r.Context(), locationID, entries); err != nil {
			handleDomainError(w, err)
			return
		}

		recordAudit(rec, r, "schedules", "replace_week", "location", locationID.String(), map[string]any{
			"entries": len(entries),
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func updateScheduleDayHandler(svc *scheduling.Service, rec auditlog.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID, err := uuid.Parse(chi.URLParam(r, "locationID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location_id", "locationID must be a valid UUID")
			return
		}
		dayOfWeek, err := strconv.Atoi(chi.URLParam(r, "dayOfWeek"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_day_of_week", "dayOfWeek must be an integer")
			return
		}

		var req ScheduleEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		entry, err := svc.UpdateDay(r.Context(), locationID, dayOfWeek, req.toEntry())
		if err != nil {
			handleDomainError(w, err)
			return
		}

		recordAudit(rec, r, "schedules", "update_day", "location", locationID.String(), map[string]any{
			"day_of_week": dayOfWeek,
		})
		writeJSON(w, http.StatusOK, toScheduleEntryResponse(*entry))
	}
}

func getSchedulingConfigHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.SchedulingDefaults(r.Context())
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SchedulingConfigResponse{
			AppointmentIntervalMinutes: d.AppointmentIntervalMinutes,
			AppointmentDailyLimit:      d.AppointmentDailyLimit,
		})
	}
}

func setSchedulingConfigHandler(svc *scheduling.Service, rec auditlog.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.SchedulingDefaults(r.Context())
		if err != nil {
			handleDomainError(w, err)
			return
		}

		if v := r.URL.Query().Get("appointment_interval_minutes"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_error", "appointment_interval_minutes must be an integer")
				return
			}
			d.AppointmentIntervalMinutes = n
		}
		if v := r.URL.Query().Get("appointment_daily_limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_error", "appointment_daily_limit must be an integer")
				return
			}
			d.AppointmentDailyLimit = n
		}

		if err := svc.SetSchedulingDefaults(r.Context(), d); err != nil {
			handleDomainError(w, err)
			return
		}

		recordAudit(rec, r, "schedules", "set_config", "settings", "", map[string]any{
			"appointment_interval_minutes": d.AppointmentIntervalMinutes,
			"appointment_daily_limit":      d.AppointmentDailyLimit,
		})
		writeJSON(w, http.StatusOK, SchedulingConfigResponse{
			AppointmentIntervalMinutes: d.AppointmentIntervalMinutes,
			AppointmentDailyLimit:      d.AppointmentDailyLimit,
		})
	}
}
