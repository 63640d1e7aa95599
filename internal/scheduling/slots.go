package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/redisclient"
)

// SlotsForDay returns the ordered slots for a location on a concrete date,
// materializing them on first read. It is the single source of truth for both
// the booking read path and the emergency-block read path.
//
// Returns ErrDayBlocked when the date is covered by an unavailable period; the
// weekly template is not consulted and no slots are created.
func (s *Service) SlotsForDay(ctx context.Context, locationID uuid.UUID, date time.Time) ([]Slot, error) {
	if _, err := s.repo.GetLocationByID(ctx, locationID); err != nil {
		return nil, err
	}

	periods, err := s.repo.PeriodsCovering(ctx, locationID, date)
	if err != nil {
		return nil, fmt.Errorf("check unavailable periods: %w", err)
	}
	if len(periods) > 0 {
		return nil, ErrDayBlocked
	}

	entry, err := s.repo.GetScheduleEntry(ctx, locationID, int(Midnight(date).Weekday()))
	if err != nil {
		return nil, fmt.Errorf("load schedule entry: %w", err)
	}
	if entry == nil || !entry.IsAvailable {
		return []Slot{}, nil
	}

	// Idempotent read: existing rows may already be booked and must never be
	// recomputed away.
	existing, err := s.repo.SlotsForDate(ctx, locationID, date)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	err = s.locker.WithLock(ctx, dayLockKey(locationID, date), func(lockCtx context.Context) error {
		// Another first-read may have won the lock before us.
		inLock, err := s.repo.SlotsForDate(lockCtx, locationID, date)
		if err != nil {
			return err
		}
		if len(inLock) > 0 {
			return nil
		}

		generated, err := materializeDay(locationID, date, *entry)
		if err != nil {
			return err
		}
		if len(generated) == 0 {
			return nil
		}
		return s.repo.InsertSlots(lockCtx, generated)
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// The winner is materializing right now; whatever it has committed
			// is what this reader gets.
			slots, rerr := s.repo.SlotsForDate(ctx, locationID, date)
			if rerr == nil && len(slots) > 0 {
				return slots, nil
			}
			return nil, err
		}
		return nil, fmt.Errorf("materialize day: %w", err)
	}

	slots, err := s.repo.SlotsForDate(ctx, locationID, date)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	if len(slots) > 0 {
		s.log.Debug("day materialized",
			zap.String("location_id", locationID.String()),
			zap.String("date", Midnight(date).Format("2006-01-02")),
			zap.Int("slots", len(slots)))
	}
	return slots, nil
}

// materializeDay expands a weekly template entry into discrete slots for one
// date, stepping by the slot duration. A final window shorter than the
// duration is dropped, not truncated.
func materializeDay(locationID uuid.UUID, date time.Time, entry WeeklyScheduleEntry) ([]Slot, error) {
	start, err := ClockOnDate(date, entry.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := ClockOnDate(date, entry.EndTime)
	if err != nil {
		return nil, err
	}
	if entry.SlotDurationMinutes <= 0 {
		return nil, validationf("slot_duration_minutes", "must be positive")
	}

	capacity := 1
	if entry.MaxAppointments != nil && *entry.MaxAppointments > 0 {
		capacity = *entry.MaxAppointments
	}

	step := time.Duration(entry.SlotDurationMinutes) * time.Minute
	day := Midnight(date)

	var slots []Slot
	for cursor := start; !cursor.Add(step).After(end); cursor = cursor.Add(step) {
		slots = append(slots, Slot{
			ID:                        uuid.New(),
			LocationID:                locationID,
			Date:                      day,
			StartTime:                 cursor,
			EndTime:                   cursor.Add(step),
			Status:                    SlotAvailable,
			CurrentStrictAppointments: 0,
			MaxStrictCapacity:         capacity,
		})
	}
	return slots, nil
}
