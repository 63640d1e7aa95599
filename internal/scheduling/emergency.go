package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/metrics"
	"github.com/clinicore/scheduling-engine/internal/redisclient"
)

// EmergencyBlock cancels every booked appointment at a location on the given
// date and marks the day unavailable, as one atomic unit of work. It returns
// the manifest of cancelled appointments for downstream notification.
//
// If anything fails partway, the whole operation rolls back: no unavailable
// period is left committed and no appointment is left half-cancelled. The
// caller sees the failure wrapped in ErrTransactionAborted and must resubmit
// explicitly; the engine never retries, so notification dispatch cannot
// observe the same cancellation twice.
func (s *Service) EmergencyBlock(ctx context.Context, locationID uuid.UUID, date time.Time, reason, createdBy string) ([]Appointment, error) {
	if _, err := s.repo.GetLocationByID(ctx, locationID); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, validationf("block_date", "is required")
	}
	if reason == "" {
		return nil, validationf("reason", "is required")
	}

	day := Midnight(date)
	var cancelled []Appointment

	err := s.locker.WithLock(ctx, dayLockKey(locationID, day), func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(ctx context.Context, tx Repository) error {
			period := &UnavailablePeriod{
				ID:            uuid.New(),
				LocationID:    locationID,
				StartDatetime: day,
				EndDatetime:   day.Add(24*time.Hour - time.Second),
				Reason:        reason,
				CreatedBy:     createdBy,
			}
			if err := tx.InsertPeriod(ctx, period); err != nil {
				return fmt.Errorf("block day: %w", err)
			}

			appts, err := tx.ListBookedAppointments(ctx, locationID, day)
			if err != nil {
				return fmt.Errorf("list booked appointments: %w", err)
			}

			cancelled = cancelled[:0]
			for i := range appts {
				if err := s.releaseLocked(ctx, tx, &appts[i], StatusCancelled); err != nil {
					return fmt.Errorf("cancel appointment %s: %w", appts[i].ID, err)
				}
				appts[i].Status = StatusCancelled
				cancelled = append(cancelled, appts[i])
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrTransactionAborted, err)
	}

	metrics.IncEmergencyBlock()
	s.log.Warn("emergency block applied",
		zap.String("location_id", locationID.String()),
		zap.String("date", day.Format("2006-01-02")),
		zap.String("reason", reason),
		zap.Int("cancelled", len(cancelled)))

	if cancelled == nil {
		cancelled = []Appointment{}
	}
	return cancelled, nil
}
