package scheduling

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/metrics"
)

// AuditAndRepair scans the slots in scope for drift between their derived
// fields and the ground-truth set of live appointments referencing them, and
// applies idempotent corrections. Appointment status is authoritative; slot
// status and counters are the derived view and are never trusted during
// repair. The auditor never creates or deletes rows.
//
// Per-slot failures are collected into the report and do not abort the scan.
// Running twice with no intervening writes yields an empty second report.
func (s *Service) AuditAndRepair(ctx context.Context, scope Scope) (*AnomalyReport, error) {
	slots, err := s.repo.ListSlots(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	report := &AnomalyReport{}
	for _, slot := range slots {
		if err := s.repairSlot(ctx, slot, report); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("slot %s: %v", slot.ID, err))
		}
	}

	metrics.AddAnomaliesRepaired("status", len(report.FixedSlots))
	metrics.AddAnomaliesRepaired("counter", len(report.FixedCounters))

	if !report.Empty() {
		s.log.Info("anomaly audit repaired drift",
			zap.Int("fixed_slots", len(report.FixedSlots)),
			zap.Int("fixed_counters", len(report.FixedCounters)),
			zap.Int("errors", len(report.Errors)))
	}
	return report, nil
}

func (s *Service) repairSlot(ctx context.Context, slot Slot, report *AnomalyReport) error {
	live, err := s.repo.CountLiveAppointmentsForSlot(ctx, slot.ID)
	if err != nil {
		return err
	}

	statusFixed := false
	counterFixed := false
	newStatus := slot.Status

	// Booked slot with no live appointment backing it.
	if slot.Status == SlotBooked && live == 0 {
		newStatus = SlotAvailable
		statusFixed = true
	}
	// Available slot that a live appointment references.
	if slot.Status == SlotAvailable && live > 0 {
		newStatus = SlotBooked
		counterFixed = true
	}
	// Stale counter.
	if slot.CurrentStrictAppointments != live {
		counterFixed = true
	}

	if !statusFixed && !counterFixed {
		return nil
	}

	if err := s.repo.UpdateSlotState(ctx, slot.ID, live, newStatus); err != nil {
		return err
	}
	if statusFixed {
		report.FixedSlots = append(report.FixedSlots, slot.ID)
	}
	if counterFixed {
		report.FixedCounters = append(report.FixedCounters, slot.ID)
	}
	return nil
}
