package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/config"
	"github.com/clinicore/scheduling-engine/internal/redisclient"
)

func TestSlotsForDayMaterializesTemplate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "17:00", 30, nil)

	slots, err := svc.SlotsForDay(context.Background(), loc, monday)
	require.NoError(t, err)
	require.Len(t, slots, 16)

	first := slots[0]
	assert.Equal(t, monday.Add(9*time.Hour), first.StartTime)
	assert.Equal(t, monday.Add(9*time.Hour+30*time.Minute), first.EndTime)
	assert.Equal(t, SlotAvailable, first.Status)
	assert.Equal(t, 0, first.CurrentStrictAppointments)
	assert.Equal(t, 1, first.MaxStrictCapacity)

	last := slots[len(slots)-1]
	assert.Equal(t, monday.Add(17*time.Hour), last.EndTime)
}

func TestSlotsForDayTwoSlotWindow(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "10:00", 30, nil)

	slots, err := svc.SlotsForDay(context.Background(), loc, monday)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, monday.Add(9*time.Hour), slots[0].StartTime)
	assert.Equal(t, monday.Add(9*time.Hour+30*time.Minute), slots[1].StartTime)
}

func TestSlotsForDayDropsPartialFinalWindow(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "10:10", 45, nil)

	slots, err := svc.SlotsForDay(context.Background(), loc, monday)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, monday.Add(9*time.Hour+45*time.Minute), slots[0].EndTime)
}

func TestSlotsForDayIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "12:00", 30, nil)

	first, err := svc.SlotsForDay(context.Background(), loc, monday)
	require.NoError(t, err)
	second, err := svc.SlotsForDay(context.Background(), loc, monday)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].StartTime, second[i].StartTime)
	}
}

func TestSlotsForDayPreservesBookedSlots(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	patient := addPatient(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "10:00", 30, nil)

	slots, err := svc.SlotsForDay(context.Background(), loc, monday)
	require.NoError(t, err)
	_, err = svc.BookSlot(context.Background(), slots[0].ID, AppointmentDraft{PatientID: patient})
	require.NoError(t, err)

	again, err := svc.SlotsForDay(context.Background(), loc, monday)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, slots[0].ID, again[0].ID)
	assert.Equal(t, SlotBooked, again[0].Status)
	assert.Equal(t, 1, again[0].CurrentStrictAppointments)
}

func TestSlotsForDayBlockedDay(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "17:00", 30, nil)

	_, err := svc.EmergencyBlock(context.Background(), loc, monday, "burst pipe", "admin")
	require.NoError(t, err)

	_, err = svc.SlotsForDay(context.Background(), loc, monday)
	assert.ErrorIs(t, err, ErrDayBlocked)
}

func TestSlotsForDayNoTemplate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)

	slots, err := svc.SlotsForDay(context.Background(), loc, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsForDayClosedDay(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	repo.st.entries[entryKey{loc, 1}] = WeeklyScheduleEntry{
		LocationID:  loc,
		DayOfWeek:   1,
		IsAvailable: false,
	}

	slots, err := svc.SlotsForDay(context.Background(), loc, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsForDayUnknownLocation(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	_, err := svc.SlotsForDay(context.Background(), uuid.New(), monday)
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestSlotsForDayCapacityFromTemplate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	loc := addLocation(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "10:00", 30, intPtr(3))

	slots, err := svc.SlotsForDay(context.Background(), loc, monday)
	require.NoError(t, err)
	for _, s := range slots {
		assert.Equal(t, 3, s.MaxStrictCapacity)
	}
}

// racedLocker simulates losing the day lock to a concurrent reader that
// commits its slots before this caller gives up.
type racedLocker struct {
	commit func(ctx context.Context)
}

func (l racedLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.commit(ctx)
	return redisclient.ErrLockNotAcquired
}

func TestSlotsForDayLockContentionFallsBackToCommittedRows(t *testing.T) {
	repo := newMemRepo()
	loc := addLocation(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "10:00", 30, nil)

	winner := newTestService(repo)
	locker := racedLocker{commit: func(ctx context.Context) {
		_, err := winner.SlotsForDay(ctx, loc, monday)
		require.NoError(t, err)
	}}

	loser := NewService(repo, locker, config.Config{DefaultSlotMinutes: 30}, zap.NewNop())
	slots, err := loser.SlotsForDay(context.Background(), loc, monday)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestSlotsForDayLockContentionNoRowsPropagates(t *testing.T) {
	repo := newMemRepo()
	loc := addLocation(t, repo)
	addEntry(t, repo, loc, 1, "09:00", "10:00", 30, nil)

	svc := NewService(repo, busyLocker{}, config.Config{DefaultSlotMinutes: 30}, zap.NewNop())
	_, err := svc.SlotsForDay(context.Background(), loc, monday)
	assert.ErrorIs(t, err, redisclient.ErrLockNotAcquired)
}

// busyLocker always reports the lock as held elsewhere.
type busyLocker struct{}

func (busyLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}
