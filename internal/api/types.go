package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/scheduling"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type ScheduleEntryRequest struct {
	DayOfWeek           int    `json:"day_of_week"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
	IsAvailable         bool   `json:"is_available"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	MaxAppointments     *int   `json:"max_appointments,omitempty"`
}

func (r ScheduleEntryRequest) toEntry() scheduling.WeeklyScheduleEntry {
	return scheduling.WeeklyScheduleEntry{
		DayOfWeek:           r.DayOfWeek,
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
		IsAvailable:         r.IsAvailable,
		SlotDurationMinutes: r.SlotDurationMinutes,
		MaxAppointments:     r.MaxAppointments,
	}
}

type ScheduleEntryResponse struct {
	ID                  uuid.UUID `json:"id"`
	LocationID          uuid.UUID `json:"location_id"`
	DayOfWeek           int       `json:"day_of_week"`
	StartTime           string    `json:"start_time"`
	EndTime             string    `json:"end_time"`
	IsAvailable         bool      `json:"is_available"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	MaxAppointments     *int      `json:"max_appointments,omitempty"`
}

func toScheduleEntryResponse(e scheduling.WeeklyScheduleEntry) ScheduleEntryResponse {
	return ScheduleEntryResponse{
		ID:                  e.ID,
		LocationID:          e.LocationID,
		DayOfWeek:           e.DayOfWeek,
		StartTime:           e.StartTime,
		EndTime:             e.EndTime,
		IsAvailable:         e.IsAvailable,
		SlotDurationMinutes: e.SlotDurationMinutes,
		MaxAppointments:     e.MaxAppointments,
	}
}

type SchedulingConfigResponse struct {
	AppointmentIntervalMinutes int `json:"appointment_interval_minutes"`
	AppointmentDailyLimit      int `json:"appointment_daily_limit"`
}

type SlotResponse struct {
	ID                        uuid.UUID `json:"id"`
	LocationID                uuid.UUID `json:"location_id"`
	Date                      string    `json:"date"`
	StartTime                 time.Time `json:"start_time"`
	EndTime                   time.Time `json:"end_time"`
	Status                    string    `json:"status"`
	CurrentStrictAppointments int       `json:"current_strict_appointments"`
	MaxStrictCapacity         int       `json:"max_strict_capacity"`
}

func toSlotResponse(s scheduling.Slot) SlotResponse {
	return SlotResponse{
		ID:                        s.ID,
		LocationID:                s.LocationID,
		Date:                      s.Date.Format("2006-01-02"),
		StartTime:                 s.StartTime,
		EndTime:                   s.EndTime,
		Status:                    string(s.Status),
		CurrentStrictAppointments: s.CurrentStrictAppointments,
		MaxStrictCapacity:         s.MaxStrictCapacity,
	}
}

type SlotsResponse struct {
	Slots      []SlotResponse `json:"slots"`
	DayBlocked bool           `json:"day_blocked"`
}

type BlockRangeRequest struct {
	LocationID string `json:"location_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Reason     string `json:"reason"`
}

type EmergencyBlockRequest struct {
	LocationID string `json:"location_id"`
	BlockDate  string `json:"block_date"`
	Reason     string `json:"reason"`
}

type PeriodResponse struct {
	ID            uuid.UUID `json:"id"`
	LocationID    uuid.UUID `json:"location_id"`
	StartDatetime time.Time `json:"start_datetime"`
	EndDatetime   time.Time `json:"end_datetime"`
	Reason        string    `json:"reason"`
	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toPeriodResponse(p scheduling.UnavailablePeriod) PeriodResponse {
	return PeriodResponse{
		ID:            p.ID,
		LocationID:    p.LocationID,
		StartDatetime: p.StartDatetime,
		EndDatetime:   p.EndDatetime,
		Reason:        p.Reason,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt,
	}
}

type NewPatientRequest struct {
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
}

type CreateAppointmentRequest struct {
	LocationID string             `json:"location_id"`
	StartTime  time.Time          `json:"start_time"`
	EndTime    time.Time          `json:"end_time"`
	Reason     string             `json:"reason"`
	PatientID  string             `json:"patient_id,omitempty"`
	NewPatient *NewPatientRequest `json:"new_patient,omitempty"`
	IsWalkIn   bool               `json:"is_walk_in,omitempty"`
}

type AppointmentResponse struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	LocationID uuid.UUID  `json:"location_id"`
	SlotID     *uuid.UUID `json:"slot_id,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	IsWalkIn   bool       `json:"is_walk_in"`
}

func toAppointmentResponse(a scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		LocationID: a.LocationID,
		SlotID:     a.SlotID,
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
		Status:     string(a.Status),
		Reason:     a.Reason,
		IsWalkIn:   a.IsWalkIn,
	}
}
