package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same queries
// run inside or outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if r.pool == nil {
		// Already transaction-bound; join the enclosing transaction.
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	bound := &PgRepository{q: tx}
	if err := fn(ctx, bound); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Helpers

func scanLocation(row pgx.Row) (*Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.Name, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}
	return &l, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanScheduleEntry(row pgx.Row) (*WeeklyScheduleEntry, error) {
	var e WeeklyScheduleEntry
	err := row.Scan(
		&e.ID,
		&e.LocationID,
		&e.DayOfWeek,
		&e.StartTime,
		&e.EndTime,
		&e.IsAvailable,
		&e.SlotDurationMinutes,
		&e.MaxAppointments,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanPeriod(row pgx.Row) (*UnavailablePeriod, error) {
	var p UnavailablePeriod
	err := row.Scan(
		&p.ID,
		&p.LocationID,
		&p.StartDatetime,
		&p.EndDatetime,
		&p.Reason,
		&p.CreatedBy,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPeriodNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID,
		&s.LocationID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.CurrentStrictAppointments,
		&s.MaxStrictCapacity,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.LocationID,
		&a.SlotID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Reason,
		&a.IsWalkIn,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Locations

func (r *PgRepository) GetLocationByID(ctx context.Context, id uuid.UUID) (*Location, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM locations
		WHERE id = $1
	`, id)
	return scanLocation(row)
}

// Patients

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO patients (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`, p.ID, p.Name, p.Email)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// Weekly schedule template

func (r *PgRepository) ListScheduleEntries(ctx context.Context, locationID uuid.UUID) ([]WeeklyScheduleEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, location_id, day_of_week, start_time, end_time, is_available,
		       slot_duration_minutes, max_appointments, created_at, updated_at
		FROM weekly_schedule_entries
		WHERE location_id = $1
		ORDER BY day_of_week
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WeeklyScheduleEntry
	for rows.Next() {
		e, err := scanScheduleEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetScheduleEntry(ctx context.Context, locationID uuid.UUID, dayOfWeek int) (*WeeklyScheduleEntry, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, location_id, day_of_week, start_time, end_time, is_available,
		       slot_duration_minutes, max_appointments, created_at, updated_at
		FROM weekly_schedule_entries
		WHERE location_id = $1 AND day_of_week = $2
	`, locationID, dayOfWeek)

	e, err := scanScheduleEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *PgRepository) UpsertScheduleEntry(ctx context.Context, e *WeeklyScheduleEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO weekly_schedule_entries
			(id, location_id, day_of_week, start_time, end_time, is_available,
			 slot_duration_minutes, max_appointments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (location_id, day_of_week) DO UPDATE SET
			start_time            = EXCLUDED.start_time,
			end_time              = EXCLUDED.end_time,
			is_available          = EXCLUDED.is_available,
			slot_duration_minutes = EXCLUDED.slot_duration_minutes,
			max_appointments      = EXCLUDED.max_appointments,
			updated_at            = now()
	`, e.ID, e.LocationID, e.DayOfWeek, e.StartTime, e.EndTime, e.IsAvailable,
		e.SlotDurationMinutes, e.MaxAppointments)
	if err != nil {
		return fmt.Errorf("upsert schedule entry: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteScheduleEntries(ctx context.Context, locationID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
		DELETE FROM weekly_schedule_entries WHERE location_id = $1
	`, locationID)
	return err
}

// Unavailability overlay

func (r *PgRepository) InsertPeriod(ctx context.Context, p *UnavailablePeriod) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO unavailable_periods
			(id, location_id, start_datetime, end_datetime, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, p.ID, p.LocationID, p.StartDatetime, p.EndDatetime, p.Reason, p.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert unavailable period: %w", err)
	}
	return nil
}

func (r *PgRepository) ListPeriods(ctx context.Context, locationID uuid.UUID, from, to time.Time) ([]UnavailablePeriod, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, location_id, start_datetime, end_datetime, reason, created_by, created_at
		FROM unavailable_periods
		WHERE location_id = $1
		  AND start_datetime <= $3
		  AND end_datetime >= $2
		ORDER BY start_datetime
	`, locationID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []UnavailablePeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) PeriodsCovering(ctx context.Context, locationID uuid.UUID, date time.Time) ([]UnavailablePeriod, error) {
	day := Midnight(date)
	return r.ListPeriods(ctx, locationID, day, day.Add(24*time.Hour-time.Nanosecond))
}

func (r *PgRepository) DeletePeriod(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM unavailable_periods WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

// Slots

func (r *PgRepository) SlotsForDate(ctx context.Context, locationID uuid.UUID, date time.Time) ([]Slot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, location_id, date, start_time, end_time, status,
		       current_strict_appointments, max_strict_capacity, created_at, updated_at
		FROM slots
		WHERE location_id = $1 AND date = $2
		ORDER BY start_time
	`, locationID, Midnight(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertSlots(ctx context.Context, slots []Slot) error {
	for _, s := range slots {
		// ON CONFLICT DO NOTHING keeps materialization idempotent under
		// concurrent first reads of the same day.
		_, err := r.q.Exec(ctx, `
			INSERT INTO slots
				(id, location_id, date, start_time, end_time, status,
				 current_strict_appointments, max_strict_capacity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (location_id, date, start_time) DO NOTHING
		`, s.ID, s.LocationID, s.Date, s.StartTime, s.EndTime, s.Status,
			s.CurrentStrictAppointments, s.MaxStrictCapacity)
		if err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
	}
	return nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, location_id, date, start_time, end_time, status,
		       current_strict_appointments, max_strict_capacity, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, location_id, date, start_time, end_time, status,
		       current_strict_appointments, max_strict_capacity, created_at, updated_at
		FROM slots
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) UpdateSlotState(ctx context.Context, id uuid.UUID, count int, status SlotStatus) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE slots
		SET current_strict_appointments = $2,
		    status = $3,
		    updated_at = now()
		WHERE id = $1
	`, id, count, status)
	if err != nil {
		return fmt.Errorf("update slot state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) DeleteInvalidatedSlots(ctx context.Context, locationID uuid.UUID, dayOfWeek int, from time.Time) error {
	// Slots once referenced by any appointment are retained for the audit
	// trail; only pristine future slots are regenerated after a template edit.
	_, err := r.q.Exec(ctx, `
		DELETE FROM slots s
		WHERE s.location_id = $1
		  AND EXTRACT(DOW FROM s.date) = $2
		  AND s.date >= $3
		  AND s.current_strict_appointments = 0
		  AND NOT EXISTS (
			SELECT 1 FROM appointments a WHERE a.slot_id = s.id
		  )
	`, locationID, dayOfWeek, Midnight(from))
	if err != nil {
		return fmt.Errorf("delete invalidated slots: %w", err)
	}
	return nil
}

func (r *PgRepository) ListSlots(ctx context.Context, scope Scope) ([]Slot, error) {
	query := `
		SELECT id, location_id, date, start_time, end_time, status,
		       current_strict_appointments, max_strict_capacity, created_at, updated_at
		FROM slots
		WHERE 1=1`
	args := []any{}
	n := 0

	if scope.LocationID != nil {
		n++
		query += fmt.Sprintf(" AND location_id = $%d", n)
		args = append(args, *scope.LocationID)
	}
	if scope.From != nil {
		n++
		query += fmt.Sprintf(" AND date >= $%d", n)
		args = append(args, Midnight(*scope.From))
	}
	if scope.To != nil {
		n++
		query += fmt.Sprintf(" AND date <= $%d", n)
		args = append(args, Midnight(*scope.To))
	}
	query += " ORDER BY date, start_time"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// Appointments

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO appointments
			(id, patient_id, location_id, slot_id, start_time, end_time,
			 status, reason, is_walk_in, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
	`, a.ID, a.PatientID, a.LocationID, a.SlotID, a.StartTime, a.EndTime,
		a.Status, a.Reason, a.IsWalkIn)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, patient_id, location_id, slot_id, start_time, end_time,
		       status, reason, is_walk_in, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, patient_id, location_id, slot_id, start_time, end_time,
		          status, reason, is_walk_in, created_at, updated_at
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) ListBookedAppointments(ctx context.Context, locationID uuid.UUID, date time.Time) ([]Appointment, error) {
	day := Midnight(date)
	rows, err := r.q.Query(ctx, `
		SELECT id, patient_id, location_id, slot_id, start_time, end_time,
		       status, reason, is_walk_in, created_at, updated_at
		FROM appointments
		WHERE location_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		  AND status = 'booked'
		ORDER BY start_time
	`, locationID, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) CountLiveAppointmentsForSlot(ctx context.Context, slotID uuid.UUID) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE slot_id = $1 AND status = 'booked'
	`, slotID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count live appointments: %w", err)
	}
	return count, nil
}

func (r *PgRepository) CountAppointmentsForDay(ctx context.Context, locationID uuid.UUID, date time.Time) (int, error) {
	day := Midnight(date)
	var count int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE location_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		  AND status = 'booked'
	`, locationID, day, day.Add(24*time.Hour)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count day appointments: %w", err)
	}
	return count, nil
}

// Settings

func (r *PgRepository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.q.QueryRow(ctx, `
		SELECT value FROM scheduling_settings WHERE key = $1
	`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (r *PgRepository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO scheduling_settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}
