package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "available"
	SlotBooked      SlotStatus = "booked"
	SlotUnavailable SlotStatus = "unavailable"
)

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

type Location struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeeklyScheduleEntry is the recurring availability template for one
// day-of-week (0=Sunday..6=Saturday) at one location. Start and end are local
// wall-clock "HH:MM" strings.
type WeeklyScheduleEntry struct {
	ID                  uuid.UUID
	LocationID          uuid.UUID
	DayOfWeek           int
	StartTime           string
	EndTime             string
	IsAvailable         bool
	SlotDurationMinutes int
	MaxAppointments     *int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// UnavailablePeriod overrides the weekly template for every date it covers.
type UnavailablePeriod struct {
	ID            uuid.UUID
	LocationID    uuid.UUID
	StartDatetime time.Time
	EndDatetime   time.Time
	Reason        string
	CreatedBy     string
	CreatedAt     time.Time
}

// Covers reports whether any instant of the given calendar date falls inside
// the period. Periods are date-range precise, not time-of-day precise.
func (p UnavailablePeriod) Covers(date time.Time) bool {
	day := Midnight(date)
	return !day.Before(Midnight(p.StartDatetime)) && !day.After(Midnight(p.EndDatetime))
}

// Slot is the atomic bookable unit. CurrentStrictAppointments counts live
// (booked) appointments referencing it; it is a denormalized view over the
// appointments table, reconciled by the anomaly auditor.
type Slot struct {
	ID                        uuid.UUID
	LocationID                uuid.UUID
	Date                      time.Time
	StartTime                 time.Time
	EndTime                   time.Time
	Status                    SlotStatus
	CurrentStrictAppointments int
	MaxStrictCapacity         int
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

type Appointment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	LocationID uuid.UUID
	SlotID     *uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	Status     AppointmentStatus
	Reason     string
	IsWalkIn   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Defaults are the global knobs consumed when a weekly schedule entry leaves
// duration or capacity unset, plus the per-day appointment cap.
type Defaults struct {
	AppointmentIntervalMinutes int
	AppointmentDailyLimit      int // 0 means uncapped
}

// Scope filters an audit run. Zero value means everything.
type Scope struct {
	LocationID *uuid.UUID
	From       *time.Time
	To         *time.Time
}

// AnomalyReport is the ephemeral output of one audit run.
type AnomalyReport struct {
	FixedSlots    []uuid.UUID `json:"fixed_slots"`
	FixedCounters []uuid.UUID `json:"fixed_counters"`
	Errors        []string    `json:"errors"`
}

// Empty reports whether the run found nothing to repair.
func (r AnomalyReport) Empty() bool {
	return len(r.FixedSlots) == 0 && len(r.FixedCounters) == 0 && len(r.Errors) == 0
}

// Midnight truncates a timestamp to its UTC calendar date.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseClock parses a zero-padded 24h "HH:MM" wall-clock string into the
// minute offset from midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid wall-clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ClockOnDate combines a calendar date with an "HH:MM" wall-clock string.
func ClockOnDate(date time.Time, clock string) (time.Time, error) {
	mins, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return Midnight(date).Add(time.Duration(mins) * time.Minute), nil
}
