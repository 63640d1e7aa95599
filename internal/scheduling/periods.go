package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BlockRange records a planned unavailable period for a location. Overlapping
// periods are permitted; a date is blocked if at least one period covers it.
func (s *Service) BlockRange(ctx context.Context, locationID uuid.UUID, startDate, endDate time.Time, reason, createdBy string) (*UnavailablePeriod, error) {
	if _, err := s.repo.GetLocationByID(ctx, locationID); err != nil {
		return nil, err
	}
	if Midnight(startDate).After(Midnight(endDate)) {
		return nil, validationf("start_date", "must not be after end_date")
	}

	p := &UnavailablePeriod{
		ID:            uuid.New(),
		LocationID:    locationID,
		StartDatetime: Midnight(startDate),
		EndDatetime:   Midnight(endDate).Add(24*time.Hour - time.Second),
		Reason:        reason,
		CreatedBy:     createdBy,
	}
	if err := s.repo.InsertPeriod(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info("period blocked",
		zap.String("location_id", locationID.String()),
		zap.Time("start", p.StartDatetime),
		zap.Time("end", p.EndDatetime),
		zap.String("reason", reason))
	return p, nil
}

// ActivePeriods lists the periods touching the given date range.
func (s *Service) ActivePeriods(ctx context.Context, locationID uuid.UUID, from, to time.Time) ([]UnavailablePeriod, error) {
	if _, err := s.repo.GetLocationByID(ctx, locationID); err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, validationf("start_date", "must not be after end_date")
	}

	periods, err := s.repo.ListPeriods(ctx, locationID, Midnight(from), Midnight(to).Add(24*time.Hour-time.Second))
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// Unblock lifts a previously created block.
func (s *Service) Unblock(ctx context.Context, periodID uuid.UUID) error {
	if err := s.repo.DeletePeriod(ctx, periodID); err != nil {
		return err
	}
	s.log.Info("period unblocked", zap.String("period_id", periodID.String()))
	return nil
}
