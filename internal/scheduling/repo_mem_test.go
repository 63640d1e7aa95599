package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/config"
)

// memRepo is an in-memory Repository used by the service tests. WithTx holds
// the mutex for the whole critical section and restores a snapshot on error,
// mirroring the row-locked transactions of the pg implementation closely
// enough to exercise the concurrency and rollback properties for real.
type memRepo struct {
	parent *memRepo // non-nil when transaction-bound
	mu     sync.Mutex
	st     *memState

	// failure injection: fail the Nth booked→cancelled status swap
	failCancelAt int
	cancelCalls  int
}

type entryKey struct {
	loc uuid.UUID
	day int
}

type memState struct {
	locations    map[uuid.UUID]Location
	patients     map[uuid.UUID]Patient
	entries      map[entryKey]WeeklyScheduleEntry
	periods      map[uuid.UUID]UnavailablePeriod
	slots        map[uuid.UUID]Slot
	appointments map[uuid.UUID]Appointment
	settings     map[string]string
}

func newMemRepo() *memRepo {
	return &memRepo{st: &memState{
		locations:    map[uuid.UUID]Location{},
		patients:     map[uuid.UUID]Patient{},
		entries:      map[entryKey]WeeklyScheduleEntry{},
		periods:      map[uuid.UUID]UnavailablePeriod{},
		slots:        map[uuid.UUID]Slot{},
		appointments: map[uuid.UUID]Appointment{},
		settings:     map[string]string{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		locations:    make(map[uuid.UUID]Location, len(s.locations)),
		patients:     make(map[uuid.UUID]Patient, len(s.patients)),
		entries:      make(map[entryKey]WeeklyScheduleEntry, len(s.entries)),
		periods:      make(map[uuid.UUID]UnavailablePeriod, len(s.periods)),
		slots:        make(map[uuid.UUID]Slot, len(s.slots)),
		appointments: make(map[uuid.UUID]Appointment, len(s.appointments)),
		settings:     make(map[string]string, len(s.settings)),
	}
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.periods {
		c.periods[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	return c
}

func (r *memRepo) root() *memRepo {
	if r.parent != nil {
		return r.parent
	}
	return r
}

// lock is a no-op on a transaction-bound repo: WithTx already holds the mutex.
func (r *memRepo) lock() func() {
	if r.parent != nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if r.parent != nil {
		return fn(ctx, r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.st.clone()
	tx := &memRepo{parent: r, st: r.st}
	if err := fn(ctx, tx); err != nil {
		*r.st = *snap
		return err
	}
	return nil
}

func (r *memRepo) GetLocationByID(ctx context.Context, id uuid.UUID) (*Location, error) {
	defer r.lock()()
	if l, ok := r.st.locations[id]; ok {
		return &l, nil
	}
	return nil, ErrLocationNotFound
}

func (r *memRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	defer r.lock()()
	if p, ok := r.st.patients[id]; ok {
		return &p, nil
	}
	return nil, ErrPatientNotFound
}

func (r *memRepo) CreatePatient(ctx context.Context, p *Patient) error {
	defer r.lock()()
	r.st.patients[p.ID] = *p
	return nil
}

func (r *memRepo) ListScheduleEntries(ctx context.Context, locationID uuid.UUID) ([]WeeklyScheduleEntry, error) {
	defer r.lock()()
	var out []WeeklyScheduleEntry
	for k, e := range r.st.entries {
		if k.loc == locationID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

func (r *memRepo) GetScheduleEntry(ctx context.Context, locationID uuid.UUID, dayOfWeek int) (*WeeklyScheduleEntry, error) {
	defer r.lock()()
	if e, ok := r.st.entries[entryKey{locationID, dayOfWeek}]; ok {
		return &e, nil
	}
	return nil, nil
}

func (r *memRepo) UpsertScheduleEntry(ctx context.Context, e *WeeklyScheduleEntry) error {
	defer r.lock()()
	r.st.entries[entryKey{e.LocationID, e.DayOfWeek}] = *e
	return nil
}

func (r *memRepo) DeleteScheduleEntries(ctx context.Context, locationID uuid.UUID) error {
	defer r.lock()()
	for k := range r.st.entries {
		if k.loc == locationID {
			delete(r.st.entries, k)
		}
	}
	return nil
}

func (r *memRepo) InsertPeriod(ctx context.Context, p *UnavailablePeriod) error {
	defer r.lock()()
	r.st.periods[p.ID] = *p
	return nil
}

func (r *memRepo) ListPeriods(ctx context.Context, locationID uuid.UUID, from, to time.Time) ([]UnavailablePeriod, error) {
	defer r.lock()()
	var out []UnavailablePeriod
	for _, p := range r.st.periods {
		if p.LocationID == locationID && !p.StartDatetime.After(to) && !p.EndDatetime.Before(from) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDatetime.Before(out[j].StartDatetime) })
	return out, nil
}

func (r *memRepo) PeriodsCovering(ctx context.Context, locationID uuid.UUID, date time.Time) ([]UnavailablePeriod, error) {
	day := Midnight(date)
	return r.ListPeriods(ctx, locationID, day, day.Add(24*time.Hour-time.Nanosecond))
}

func (r *memRepo) DeletePeriod(ctx context.Context, id uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.st.periods[id]; !ok {
		return ErrPeriodNotFound
	}
	delete(r.st.periods, id)
	return nil
}

func (r *memRepo) SlotsForDate(ctx context.Context, locationID uuid.UUID, date time.Time) ([]Slot, error) {
	defer r.lock()()
	day := Midnight(date)
	var out []Slot
	for _, s := range r.st.slots {
		if s.LocationID == locationID && s.Date.Equal(day) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *memRepo) InsertSlots(ctx context.Context, slots []Slot) error {
	defer r.lock()()
	for _, s := range slots {
		dup := false
		for _, existing := range r.st.slots {
			if existing.LocationID == s.LocationID && existing.Date.Equal(s.Date) && existing.StartTime.Equal(s.StartTime) {
				dup = true
				break
			}
		}
		if !dup {
			r.st.slots[s.ID] = s
		}
	}
	return nil
}

func (r *memRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	defer r.lock()()
	if s, ok := r.st.slots[id]; ok {
		return &s, nil
	}
	return nil, ErrSlotNotFound
}

func (r *memRepo) GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.GetSlotByID(ctx, id)
}

func (r *memRepo) UpdateSlotState(ctx context.Context, id uuid.UUID, count int, status SlotStatus) error {
	defer r.lock()()
	s, ok := r.st.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	s.CurrentStrictAppointments = count
	s.Status = status
	s.UpdatedAt = time.Now()
	r.st.slots[id] = s
	return nil
}

func (r *memRepo) DeleteInvalidatedSlots(ctx context.Context, locationID uuid.UUID, dayOfWeek int, from time.Time) error {
	defer r.lock()()
	for id, s := range r.st.slots {
		if s.LocationID != locationID || int(s.Date.Weekday()) != dayOfWeek || s.Date.Before(Midnight(from)) {
			continue
		}
		if s.CurrentStrictAppointments != 0 {
			continue
		}
		referenced := false
		for _, a := range r.st.appointments {
			if a.SlotID != nil && *a.SlotID == id {
				referenced = true
				break
			}
		}
		if !referenced {
			delete(r.st.slots, id)
		}
	}
	return nil
}

func (r *memRepo) ListSlots(ctx context.Context, scope Scope) ([]Slot, error) {
	defer r.lock()()
	var out []Slot
	for _, s := range r.st.slots {
		if scope.LocationID != nil && s.LocationID != *scope.LocationID {
			continue
		}
		if scope.From != nil && s.Date.Before(Midnight(*scope.From)) {
			continue
		}
		if scope.To != nil && s.Date.After(Midnight(*scope.To)) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (r *memRepo) InsertAppointment(ctx context.Context, a *Appointment) error {
	defer r.lock()()
	r.st.appointments[a.ID] = *a
	return nil
}

func (r *memRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	defer r.lock()()
	if a, ok := r.st.appointments[id]; ok {
		return &a, nil
	}
	return nil, ErrAppointmentNotFound
}

func (r *memRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	defer r.lock()()
	if from == StatusBooked && to == StatusCancelled {
		root := r.root()
		root.cancelCalls++
		if root.failCancelAt > 0 && root.cancelCalls == root.failCancelAt {
			return nil, fmt.Errorf("injected cancel failure")
		}
	}
	a, ok := r.st.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.st.appointments[id] = a
	return &a, nil
}

func (r *memRepo) ListBookedAppointments(ctx context.Context, locationID uuid.UUID, date time.Time) ([]Appointment, error) {
	defer r.lock()()
	day := Midnight(date)
	var out []Appointment
	for _, a := range r.st.appointments {
		if a.LocationID == locationID && a.Status == StatusBooked &&
			!a.StartTime.Before(day) && a.StartTime.Before(day.Add(24*time.Hour)) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *memRepo) CountLiveAppointmentsForSlot(ctx context.Context, slotID uuid.UUID) (int, error) {
	defer r.lock()()
	count := 0
	for _, a := range r.st.appointments {
		if a.SlotID != nil && *a.SlotID == slotID && a.Status == StatusBooked {
			count++
		}
	}
	return count, nil
}

func (r *memRepo) CountAppointmentsForDay(ctx context.Context, locationID uuid.UUID, date time.Time) (int, error) {
	defer r.lock()()
	day := Midnight(date)
	count := 0
	for _, a := range r.st.appointments {
		if a.LocationID == locationID && a.Status == StatusBooked &&
			!a.StartTime.Before(day) && a.StartTime.Before(day.Add(24*time.Hour)) {
			count++
		}
	}
	return count, nil
}

func (r *memRepo) GetSetting(ctx context.Context, key string) (string, bool, error) {
	defer r.lock()()
	v, ok := r.st.settings[key]
	return v, ok, nil
}

func (r *memRepo) SetSetting(ctx context.Context, key, value string) error {
	defer r.lock()()
	r.st.settings[key] = value
	return nil
}

// nopLocker runs the critical section inline; the mem repo's mutex already
// serializes state access.
type nopLocker struct{}

func (nopLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Fixtures

func newTestService(repo *memRepo) *Service {
	cfg := config.Config{DefaultSlotMinutes: 30}
	return NewService(repo, nopLocker{}, cfg, zap.NewNop())
}

func addLocation(t *testing.T, repo *memRepo) uuid.UUID {
	t.Helper()
	id := uuid.New()
	repo.st.locations[id] = Location{ID: id, Name: "Test Clinic"}
	return id
}

func addPatient(t *testing.T, repo *memRepo) uuid.UUID {
	t.Helper()
	id := uuid.New()
	repo.st.patients[id] = Patient{ID: id, Name: "Test Patient"}
	return id
}

func addEntry(t *testing.T, repo *memRepo, locationID uuid.UUID, dayOfWeek int, start, end string, durationMinutes int, maxAppointments *int) {
	t.Helper()
	repo.st.entries[entryKey{locationID, dayOfWeek}] = WeeklyScheduleEntry{
		ID:                  uuid.New(),
		LocationID:          locationID,
		DayOfWeek:           dayOfWeek,
		StartTime:           start,
		EndTime:             end,
		IsAvailable:         true,
		SlotDurationMinutes: durationMinutes,
		MaxAppointments:     maxAppointments,
	}
}

func intPtr(n int) *int { return &n }

// monday is a reference date at least a week in the future, so that slot
// invalidation (which only touches today onward) applies to it.
var monday = func() time.Time {
	d := Midnight(time.Now())
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7)
}()
