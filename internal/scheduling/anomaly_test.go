package scheduling

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepairsGhostBookedSlot(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "09:30", 30, nil)
	slots := mustSlots(t, svc, loc)

	// Corrupt: slot claims a booking that no appointment backs.
	require.NoError(t, repo.UpdateSlotState(context.Background(), slots[0].ID, 1, SlotBooked))

	report, err := svc.AuditAndRepair(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Contains(t, report.FixedSlots, slots[0].ID)
	assert.Contains(t, report.FixedCounters, slots[0].ID)
	assert.Empty(t, report.Errors)

	slot, err := repo.GetSlotByID(context.Background(), slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, SlotAvailable, slot.Status)
	assert.Equal(t, 0, slot.CurrentStrictAppointments)
}

func TestAuditRepairsStaleCounter(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	patient := addPatient(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "09:30", 30, intPtr(3))
	slots := mustSlots(t, svc, loc)

	_, err := svc.BookSlot(context.Background(), slots[0].ID, AppointmentDraft{PatientID: patient})
	require.NoError(t, err)

	// Corrupt: counter drifted above the one live appointment.
	require.NoError(t, repo.UpdateSlotState(context.Background(), slots[0].ID, 2, SlotBooked))

	report, err := svc.AuditAndRepair(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Empty(t, report.FixedSlots)
	assert.Contains(t, report.FixedCounters, slots[0].ID)

	slot, err := repo.GetSlotByID(context.Background(), slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, slot.Status)
	assert.Equal(t, 1, slot.CurrentStrictAppointments)
}

func TestAuditRepairsAvailableSlotWithLiveAppointment(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	patient := addPatient(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "09:30", 30, nil)
	slots := mustSlots(t, svc, loc)

	_, err := svc.BookSlot(context.Background(), slots[0].ID, AppointmentDraft{PatientID: patient})
	require.NoError(t, err)

	// Corrupt: slot reset while its appointment is still live.
	require.NoError(t, repo.UpdateSlotState(context.Background(), slots[0].ID, 0, SlotAvailable))

	report, err := svc.AuditAndRepair(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Contains(t, report.FixedCounters, slots[0].ID)

	slot, err := repo.GetSlotByID(context.Background(), slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, slot.Status)
	assert.Equal(t, 1, slot.CurrentStrictAppointments)
}

func TestAuditIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "10:00", 30, nil)
	slots := mustSlots(t, svc, loc)

	require.NoError(t, repo.UpdateSlotState(context.Background(), slots[0].ID, 1, SlotBooked))

	first, err := svc.AuditAndRepair(context.Background(), Scope{})
	require.NoError(t, err)
	assert.False(t, first.Empty())

	second, err := svc.AuditAndRepair(context.Background(), Scope{})
	require.NoError(t, err)
	assert.True(t, second.Empty())
}

func TestAuditCleanStateUntouched(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	patient := addPatient(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "10:00", 30, nil)
	slots := mustSlots(t, svc, loc)

	appt, err := svc.BookSlot(context.Background(), slots[0].ID, AppointmentDraft{PatientID: patient})
	require.NoError(t, err)
	require.NoError(t, svc.CancelAppointment(context.Background(), appt.ID))

	report, err := svc.AuditAndRepair(context.Background(), Scope{})
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestAuditScopeFiltersLocation(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	locA := addLocation(t, repo)
	locB := addLocation(t, repo)
	addEntry(t, repo, locA, 1, "09:00", "09:30", 30, nil)
	addEntry(t, repo, locB, 1, "09:00", "09:30", 30, nil)
	slotsA := mustSlots(t, svc, locA)
	slotsB := mustSlots(t, svc, locB)

	require.NoError(t, repo.UpdateSlotState(context.Background(), slotsA[0].ID, 1, SlotBooked))
	require.NoError(t, repo.UpdateSlotState(context.Background(), slotsB[0].ID, 1, SlotBooked))

	report, err := svc.AuditAndRepair(context.Background(), Scope{LocationID: &locA})
	require.NoError(t, err)
	assert.Contains(t, report.FixedSlots, slotsA[0].ID)
	assert.NotContains(t, report.FixedSlots, slotsB[0].ID)

	// The out-of-scope corruption is still there for the next full run.
	slotB, err := repo.GetSlotByID(context.Background(), slotsB[0].ID)
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, slotB.Status)
}

func TestAuditCompletedAppointmentIsNotLive(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	patient := addPatient(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "09:30", 30, nil)
	slots := mustSlots(t, svc, loc)

	appt, err := svc.BookSlot(context.Background(), slots[0].ID, AppointmentDraft{PatientID: patient})
	require.NoError(t, err)
	require.NoError(t, svc.CompleteAppointment(context.Background(), appt.ID))

	// Corrupt the slot back to booked: the completed appointment must not
	// count as backing it.
	require.NoError(t, repo.UpdateSlotState(context.Background(), slots[0].ID, 1, SlotBooked))

	report, err := svc.AuditAndRepair(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Contains(t, report.FixedSlots, slots[0].ID)

	slot, err := repo.GetSlotByID(context.Background(), slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, SlotAvailable, slot.Status)
	assert.Equal(t, 0, slot.CurrentStrictAppointments)
}

func TestAuditNoSlots(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	report, err := svc.AuditAndRepair(context.Background(), Scope{LocationID: ptrUUID(uuid.New())})
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }
