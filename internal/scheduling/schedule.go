package scheduling

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	settingIntervalMinutes = "appointment_interval_minutes"
	settingDailyLimit      = "appointment_daily_limit"
)

// WeeklySchedule returns the recurring template for a location keyed by
// day-of-week (0=Sunday..6=Saturday). Days with no entry are absent.
func (s *Service) WeeklySchedule(ctx context.Context, locationID uuid.UUID) (map[int]WeeklyScheduleEntry, error) {
	if _, err := s.repo.GetLocationByID(ctx, locationID); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListScheduleEntries(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}

	week := make(map[int]WeeklyScheduleEntry, len(entries))
	for _, e := range entries {
		week[e.DayOfWeek] = e
	}
	return week, nil
}

// ReplaceWeeklySchedule swaps the full week's entries for a location in one
// transaction. Partial updates are rejected: the submitted set must be
// internally consistent (no two entries for the same day, each entry valid).
// Pristine future slots for the affected weekdays are invalidated; slots that
// ever held a booking are never retroactively altered.
func (s *Service) ReplaceWeeklySchedule(ctx context.Context, locationID uuid.UUID, entries []WeeklyScheduleEntry) error {
	if _, err := s.repo.GetLocationByID(ctx, locationID); err != nil {
		return err
	}

	seen := make(map[int]bool, len(entries))
	for i := range entries {
		e := &entries[i]
		if seen[e.DayOfWeek] {
			return validationf("day_of_week", "duplicate entry for day %d", e.DayOfWeek)
		}
		seen[e.DayOfWeek] = true
		if err := s.normalizeEntry(ctx, e); err != nil {
			return err
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.DeleteScheduleEntries(ctx, locationID); err != nil {
			return fmt.Errorf("clear week: %w", err)
		}
		today := Midnight(time.Now())
		for i := range entries {
			e := entries[i]
			e.ID = uuid.New()
			e.LocationID = locationID
			if err := tx.UpsertScheduleEntry(ctx, &e); err != nil {
				return err
			}
			if err := tx.DeleteInvalidatedSlots(ctx, locationID, e.DayOfWeek, today); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("weekly schedule replaced",
		zap.String("location_id", locationID.String()),
		zap.Int("entries", len(entries)))
	return nil
}

// UpdateDay upserts the template for a single day-of-week.
func (s *Service) UpdateDay(ctx context.Context, locationID uuid.UUID, dayOfWeek int, entry WeeklyScheduleEntry) (*WeeklyScheduleEntry, error) {
	if _, err := s.repo.GetLocationByID(ctx, locationID); err != nil {
		return nil, err
	}

	entry.DayOfWeek = dayOfWeek
	entry.LocationID = locationID
	if err := s.normalizeEntry(ctx, &entry); err != nil {
		return nil, err
	}
	entry.ID = uuid.New()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.UpsertScheduleEntry(ctx, &entry); err != nil {
			return err
		}
		return tx.DeleteInvalidatedSlots(ctx, locationID, dayOfWeek, Midnight(time.Now()))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("schedule day updated",
		zap.String("location_id", locationID.String()),
		zap.Int("day_of_week", dayOfWeek))
	return &entry, nil
}

// normalizeEntry validates an entry and fills unset knobs from the global
// scheduling defaults.
func (s *Service) normalizeEntry(ctx context.Context, e *WeeklyScheduleEntry) error {
	if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
		return validationf("day_of_week", "must be 0..6, got %d", e.DayOfWeek)
	}
	if e.MaxAppointments != nil && *e.MaxAppointments < 0 {
		return validationf("max_appointments", "must not be negative")
	}
	if e.SlotDurationMinutes < 0 {
		return validationf("slot_duration_minutes", "must not be negative")
	}

	if !e.IsAvailable {
		return nil
	}

	start, err := ParseClock(e.StartTime)
	if err != nil {
		return validationf("start_time", "%v", err)
	}
	end, err := ParseClock(e.EndTime)
	if err != nil {
		return validationf("end_time", "%v", err)
	}
	if start >= end {
		return validationf("start_time", "must be before end_time")
	}

	if e.SlotDurationMinutes == 0 {
		defaults, err := s.SchedulingDefaults(ctx)
		if err != nil {
			return err
		}
		e.SlotDurationMinutes = defaults.AppointmentIntervalMinutes
	}
	return nil
}

// SchedulingDefaults returns the global knobs, falling back to the process
// configuration when nothing is stored.
func (s *Service) SchedulingDefaults(ctx context.Context) (Defaults, error) {
	d := Defaults{
		AppointmentIntervalMinutes: s.cfg.DefaultSlotMinutes,
		AppointmentDailyLimit:      s.cfg.DefaultDailyLimit,
	}

	if v, ok, err := s.repo.GetSetting(ctx, settingIntervalMinutes); err != nil {
		return Defaults{}, fmt.Errorf("get %s: %w", settingIntervalMinutes, err)
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			d.AppointmentIntervalMinutes = n
		}
	}

	if v, ok, err := s.repo.GetSetting(ctx, settingDailyLimit); err != nil {
		return Defaults{}, fmt.Errorf("get %s: %w", settingDailyLimit, err)
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			d.AppointmentDailyLimit = n
		}
	}

	return d, nil
}

// SetSchedulingDefaults persists the global knobs consumed by schedule
// creation and the per-day appointment cap.
func (s *Service) SetSchedulingDefaults(ctx context.Context, d Defaults) error {
	if d.AppointmentIntervalMinutes <= 0 {
		return validationf("appointment_interval_minutes", "must be positive")
	}
	if d.AppointmentDailyLimit < 0 {
		return validationf("appointment_daily_limit", "must not be negative")
	}

	if err := s.repo.SetSetting(ctx, settingIntervalMinutes, strconv.Itoa(d.AppointmentIntervalMinutes)); err != nil {
		return err
	}
	return s.repo.SetSetting(ctx, settingDailyLimit, strconv.Itoa(d.AppointmentDailyLimit))
}
