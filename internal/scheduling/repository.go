package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
//
// WithTx runs fn against a transaction-bound Repository; every write inside
// commits or rolls back as one unit. The booking and emergency-block paths
// depend on it.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	GetLocationByID(ctx context.Context, id uuid.UUID) (*Location, error)

	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	CreatePatient(ctx context.Context, p *Patient) error

	// Weekly schedule template
	ListScheduleEntries(ctx context.Context, locationID uuid.UUID) ([]WeeklyScheduleEntry, error)
	GetScheduleEntry(ctx context.Context, locationID uuid.UUID, dayOfWeek int) (*WeeklyScheduleEntry, error)
	UpsertScheduleEntry(ctx context.Context, e *WeeklyScheduleEntry) error
	DeleteScheduleEntries(ctx context.Context, locationID uuid.UUID) error

	// Unavailability overlay
	InsertPeriod(ctx context.Context, p *UnavailablePeriod) error
	ListPeriods(ctx context.Context, locationID uuid.UUID, from, to time.Time) ([]UnavailablePeriod, error)
	PeriodsCovering(ctx context.Context, locationID uuid.UUID, date time.Time) ([]UnavailablePeriod, error)
	DeletePeriod(ctx context.Context, id uuid.UUID) error

	// Slots
	SlotsForDate(ctx context.Context, locationID uuid.UUID, date time.Time) ([]Slot, error)
	InsertSlots(ctx context.Context, slots []Slot) error
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// GetSlotForUpdate row-locks the slot for the duration of the enclosing
	// transaction so the capacity check and increment are not separated by a
	// race window.
	GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error)
	UpdateSlotState(ctx context.Context, id uuid.UUID, count int, status SlotStatus) error
	// DeleteInvalidatedSlots removes future slots for a (location, weekday)
	// that hold no capacity and were never referenced by an appointment.
	DeleteInvalidatedSlots(ctx context.Context, locationID uuid.UUID, dayOfWeek int, from time.Time) error
	ListSlots(ctx context.Context, scope Scope) ([]Slot, error)

	// Appointments
	InsertAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateAppointmentStatus is a compare-and-swap: it only applies when the
	// row still has the expected from status.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	ListBookedAppointments(ctx context.Context, locationID uuid.UUID, date time.Time) ([]Appointment, error)
	CountLiveAppointmentsForSlot(ctx context.Context, slotID uuid.UUID) (int, error)
	CountAppointmentsForDay(ctx context.Context, locationID uuid.UUID, date time.Time) (int, error)

	// Global scheduling defaults (key/value settings)
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}
