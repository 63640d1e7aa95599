package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/scheduling-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	locations, err := seedLocations(context.Background(), pool, 5)
	if err != nil {
		log.Fatalf("seed locations: %v", err)
	}
	if err := seedWeeklySchedules(context.Background(), pool, locations); err != nil {
		log.Fatalf("seed weekly schedules: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedLocations(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d locations", count)

	kinds := []string{"Clinic", "Hospital", "Medical Center", "Health Hub"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.City() + " " + kinds[gofakeit.Number(0, len(kinds)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO locations (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("locations seeded")
	return ids, nil
}

func seedWeeklySchedules(ctx context.Context, pool *pgxpool.Pool, locations []uuid.UUID) error {
	log.Printf("seeding weekly schedules for %d locations", len(locations))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, locationID := range locations {
		for day := 0; day <= 6; day++ {
			// Clinics are closed on Sundays, shorter hours on Saturdays.
			available := day != 0
			start, end := "09:00", "17:00"
			if day == 6 {
				end = "13:00"
			}
			duration := []int{15, 20, 30}[gofakeit.Number(0, 2)]

			_, err := tx.Exec(ctx, `
				INSERT INTO weekly_schedule_entries
					(id, location_id, day_of_week, start_time, end_time, is_available,
					 slot_duration_minutes, max_appointments, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, now(), now())
			`, uuid.New(), locationID, day, start, end, available, duration)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("weekly schedules seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
