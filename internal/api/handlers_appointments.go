package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/auditlog"
	"github.com/clinicore/scheduling-engine/internal/scheduling"
)

func createAppointmentHandler(svc *scheduling.Service, rec auditlog.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		locationID, err := uuid.Parse(req.LocationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location_id", "location_id must be a valid UUID")
			return
		}

		in := scheduling.CreateAppointmentInput{
			LocationID: locationID,
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
			Reason:     req.Reason,
			IsWalkIn:   req.IsWalkIn,
		}
		if req.PatientID != "" {
			patientID, err := uuid.Parse(req.PatientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			in.PatientID = &patientID
		}
		if req.NewPatient != nil {
			in.NewPatient = &scheduling.NewPatientInput{
				Name:  req.NewPatient.Name,
				Email: req.NewPatient.Email,
			}
		}

		appt, err := svc.CreateAppointment(r.Context(), in)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		recordAudit(rec, r, "appointments", "create", "appointment", appt.ID.String(), map[string]any{
			"location_id": req.LocationID,
			"is_walk_in":  req.IsWalkIn,
		})
		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func cancelAppointmentHandler(svc *scheduling.Service, rec auditlog.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		if err := svc.CancelAppointment(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}

		recordAudit(rec, r, "appointments", "cancel", "appointment", id.String(), nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

func completeAppointmentHandler(svc *scheduling.Service, rec auditlog.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		if err := svc.CompleteAppointment(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}

		recordAudit(rec, r, "appointments", "complete", "appointment", id.String(), nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

// actor identifies the operator behind a mutation for the audit trail.
// Authentication itself lives outside this service.
func actor(r *http.Request) string {
	return r.Header.Get("X-Actor")
}

func recordAudit(rec auditlog.Recorder, r *http.Request, category, action, resourceType, resourceID string, detail map[string]any) {
	if rec == nil {
		return
	}
	rec.Record(r.Context(), auditlog.Entry{
		Category:     category,
		Action:       action,
		Actor:        actor(r),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Detail:       detail,
	})
}
