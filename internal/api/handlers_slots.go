package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/scheduling"
)

func getSlotsForDayHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID, err := uuid.Parse(chi.URLParam(r, "locationID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location_id", "locationID must be a valid UUID")
			return
		}
		date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.SlotsForDay(r.Context(), locationID, date)
		if err != nil {
			// A blocked day is a successful, distinguishable answer for the
			// slot listing, not a failure.
			if errors.Is(err, scheduling.ErrDayBlocked) {
				writeJSON(w, http.StatusOK, SlotsResponse{Slots: []SlotResponse{}, DayBlocked: true})
				return
			}
			handleDomainError(w, err)
			return
		}

		resp := SlotsResponse{Slots: make([]SlotResponse, 0, len(slots))}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
