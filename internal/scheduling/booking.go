package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/metrics"
)

// AppointmentDraft carries the caller-supplied fields of a booking.
type AppointmentDraft struct {
	PatientID uuid.UUID
	Reason    string
}

// NewPatientInput creates the patient inline with the booking when the caller
// has no patient id yet.
type NewPatientInput struct {
	Name  string
	Email *string
}

// CreateAppointmentInput is the REST-facing shape: the UI submits times, not
// slot ids, and the engine resolves the slot.
type CreateAppointmentInput struct {
	LocationID uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	Reason     string
	PatientID  *uuid.UUID
	NewPatient *NewPatientInput
	IsWalkIn   bool
}

// BookSlot atomically transitions capacity on a slot and creates the booked
// appointment. The capacity check and increment run under a row lock in a
// single transaction: of two concurrent calls against the last capacity unit,
// exactly one succeeds and the other gets ErrSlotUnavailable.
func (s *Service) BookSlot(ctx context.Context, slotID uuid.UUID, draft AppointmentDraft) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, draft.PatientID); err != nil {
		return nil, err
	}

	defaults, err := s.SchedulingDefaults(ctx)
	if err != nil {
		return nil, err
	}

	var created *Appointment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		slot, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.Status == SlotUnavailable {
			return ErrSlotUnavailable
		}
		if slot.CurrentStrictAppointments >= slot.MaxStrictCapacity {
			return ErrSlotUnavailable
		}

		if defaults.AppointmentDailyLimit > 0 {
			n, err := tx.CountAppointmentsForDay(ctx, slot.LocationID, slot.Date)
			if err != nil {
				return err
			}
			if n >= defaults.AppointmentDailyLimit {
				return ErrDailyLimitReached
			}
		}

		count := slot.CurrentStrictAppointments + 1
		if err := tx.UpdateSlotState(ctx, slot.ID, count, SlotBooked); err != nil {
			return err
		}

		slotID := slot.ID
		appt := &Appointment{
			ID:         uuid.New(),
			PatientID:  draft.PatientID,
			LocationID: slot.LocationID,
			SlotID:     &slotID,
			StartTime:  slot.StartTime,
			EndTime:    slot.EndTime,
			Status:     StatusBooked,
			Reason:     draft.Reason,
		}
		if err := tx.InsertAppointment(ctx, appt); err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) || errors.Is(err, ErrDailyLimitReached) {
			metrics.IncBookingConflict()
		}
		return nil, err
	}

	metrics.IncAppointmentBooked("slot")
	s.log.Info("slot booked",
		zap.String("slot_id", slotID.String()),
		zap.String("appointment_id", created.ID.String()))
	return created, nil
}

// CreateAppointment resolves the patient and the slot from the REST payload
// and books it. Walk-ins bypass slot allocation entirely and do not
// participate in capacity accounting, but still count against the daily cap.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*Appointment, error) {
	if _, err := s.repo.GetLocationByID(ctx, in.LocationID); err != nil {
		return nil, err
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return nil, validationf("start_time", "start_time and end_time are required")
	}
	if !in.StartTime.Before(in.EndTime) {
		return nil, validationf("start_time", "must be before end_time")
	}

	patientID, err := s.resolvePatient(ctx, in)
	if err != nil {
		return nil, err
	}

	if in.IsWalkIn {
		return s.createWalkIn(ctx, in, patientID)
	}

	slots, err := s.SlotsForDay(ctx, in.LocationID, in.StartTime)
	if err != nil {
		return nil, err
	}

	for _, slot := range slots {
		if slot.StartTime.Equal(in.StartTime.UTC()) {
			return s.BookSlot(ctx, slot.ID, AppointmentDraft{
				PatientID: patientID,
				Reason:    in.Reason,
			})
		}
	}
	return nil, ErrSlotNotFound
}

func (s *Service) resolvePatient(ctx context.Context, in CreateAppointmentInput) (uuid.UUID, error) {
	switch {
	case in.PatientID != nil:
		if _, err := s.repo.GetPatientByID(ctx, *in.PatientID); err != nil {
			return uuid.Nil, err
		}
		return *in.PatientID, nil
	case in.NewPatient != nil:
		if in.NewPatient.Name == "" {
			return uuid.Nil, validationf("new_patient.name", "is required")
		}
		p := &Patient{
			ID:    uuid.New(),
			Name:  in.NewPatient.Name,
			Email: in.NewPatient.Email,
		}
		if err := s.repo.CreatePatient(ctx, p); err != nil {
			return uuid.Nil, fmt.Errorf("create patient: %w", err)
		}
		return p.ID, nil
	default:
		return uuid.Nil, validationf("patient_id", "patient_id or new_patient is required")
	}
}

func (s *Service) createWalkIn(ctx context.Context, in CreateAppointmentInput, patientID uuid.UUID) (*Appointment, error) {
	periods, err := s.repo.PeriodsCovering(ctx, in.LocationID, in.StartTime)
	if err != nil {
		return nil, fmt.Errorf("check unavailable periods: %w", err)
	}
	if len(periods) > 0 {
		return nil, ErrDayBlocked
	}

	defaults, err := s.SchedulingDefaults(ctx)
	if err != nil {
		return nil, err
	}

	var created *Appointment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if defaults.AppointmentDailyLimit > 0 {
			n, err := tx.CountAppointmentsForDay(ctx, in.LocationID, in.StartTime)
			if err != nil {
				return err
			}
			if n >= defaults.AppointmentDailyLimit {
				return ErrDailyLimitReached
			}
		}

		appt := &Appointment{
			ID:         uuid.New(),
			PatientID:  patientID,
			LocationID: in.LocationID,
			SlotID:     nil,
			StartTime:  in.StartTime.UTC(),
			EndTime:    in.EndTime.UTC(),
			Status:     StatusBooked,
			Reason:     in.Reason,
			IsWalkIn:   true,
		}
		if err := tx.InsertAppointment(ctx, appt); err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncAppointmentBooked("walk_in")
	s.log.Info("walk-in appointment created",
		zap.String("appointment_id", created.ID.String()))
	return created, nil
}

// GetAppointment loads one appointment by id.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// CancelAppointment sets the appointment cancelled and releases its slot
// capacity. Cancelling an already-cancelled appointment is a no-op, not an
// error; cancelling a completed one is rejected.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		appt, err := tx.GetAppointmentByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		switch appt.Status {
		case StatusCancelled:
			return nil
		case StatusCompleted:
			return ErrInvalidTransition
		}
		return s.releaseLocked(ctx, tx, appt, StatusCancelled)
	})
	if err != nil {
		return err
	}

	metrics.IncAppointmentCancelled()
	s.log.Info("appointment cancelled", zap.String("appointment_id", appointmentID.String()))
	return nil
}

// CompleteAppointment marks a booked appointment completed. Completed
// appointments are no longer live, so the slot capacity is released the same
// way cancellation releases it.
func (s *Service) CompleteAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		appt, err := tx.GetAppointmentByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		switch appt.Status {
		case StatusCompleted:
			return nil
		case StatusCancelled:
			return ErrInvalidTransition
		}
		return s.releaseLocked(ctx, tx, appt, StatusCompleted)
	})
	if err != nil {
		return err
	}

	s.log.Info("appointment completed", zap.String("appointment_id", appointmentID.String()))
	return nil
}

// releaseLocked transitions a booked appointment to a terminal status and
// decrements the slot counter inside the caller's transaction. Shared by
// cancellation, completion and the emergency block coordinator.
func (s *Service) releaseLocked(ctx context.Context, tx Repository, appt *Appointment, to AppointmentStatus) error {
	if appt.SlotID != nil {
		slot, err := tx.GetSlotForUpdate(ctx, *appt.SlotID)
		if err != nil {
			return err
		}
		count := slot.CurrentStrictAppointments - 1
		if count < 0 {
			count = 0
		}
		status := SlotBooked
		if count == 0 {
			status = SlotAvailable
		}
		if err := tx.UpdateSlotState(ctx, slot.ID, count, status); err != nil {
			return err
		}
	}

	if _, err := tx.UpdateAppointmentStatus(ctx, appt.ID, StatusBooked, to); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost the compare-and-swap: someone else transitioned it first.
			return ErrInvalidTransition
		}
		return err
	}
	return nil
}
