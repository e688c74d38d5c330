// Package db persists the pet between runs in a local SQLite database:
// the single pet_state row, the daily statistics rollups and the care
// and gesture event logs. Timestamps are stored as absolute unix nanos
// and reloaded verbatim, so a reboot resumes the hunger, dirty and
// sleep clocks instead of resetting them.
package db

import (
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/jaspreeeet/kaku/internal/gesture"
	"github.com/jaspreeeet/kaku/internal/pet"
)

type DB struct {
	*sql.DB
}

// OpenDB opens the database without touching the schema. Used by the
// migrate CLI; NewDB is the production entry point.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writes itself, but a single connection
	// avoids SQLITE_BUSY between the task engine and HTTP handlers.
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	return &DB{sqlDB}, nil
}

// NewDB opens the database and brings the schema up to date.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(migrationsFS()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// SavePetState upserts the single pet_state row. Implements pet.Store.
func (db *DB) SavePetState(ctx context.Context, s pet.State) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO pet_state (
			id, stage, age, hunger_level, feed_capacity, health_score,
			discipline, cleanliness, is_hungry, is_dirty, is_sick, is_fatty,
			auto_sleep, total_steps, daily_steps, steps_since_clean,
			overfeed_count, last_feed_ns, hunger_start_ns, next_hunger_ns,
			escalated_ns, dirty_start_ns, last_clean_ns, last_medicate_ns,
			last_walk_ns, sleep_start_ns, next_sleep_ns, last_wake_ns,
			sick_start_ns, last_rollup_day, created_ns, updated_ns
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stage=excluded.stage, age=excluded.age,
			hunger_level=excluded.hunger_level, feed_capacity=excluded.feed_capacity,
			health_score=excluded.health_score, discipline=excluded.discipline,
			cleanliness=excluded.cleanliness, is_hungry=excluded.is_hungry,
			is_dirty=excluded.is_dirty, is_sick=excluded.is_sick,
			is_fatty=excluded.is_fatty, auto_sleep=excluded.auto_sleep,
			total_steps=excluded.total_steps, daily_steps=excluded.daily_steps,
			steps_since_clean=excluded.steps_since_clean,
			overfeed_count=excluded.overfeed_count,
			last_feed_ns=excluded.last_feed_ns,
			hunger_start_ns=excluded.hunger_start_ns,
			next_hunger_ns=excluded.next_hunger_ns,
			escalated_ns=excluded.escalated_ns,
			dirty_start_ns=excluded.dirty_start_ns,
			last_clean_ns=excluded.last_clean_ns,
			last_medicate_ns=excluded.last_medicate_ns,
			last_walk_ns=excluded.last_walk_ns,
			sleep_start_ns=excluded.sleep_start_ns,
			next_sleep_ns=excluded.next_sleep_ns,
			last_wake_ns=excluded.last_wake_ns,
			sick_start_ns=excluded.sick_start_ns,
			last_rollup_day=excluded.last_rollup_day,
			created_ns=excluded.created_ns, updated_ns=excluded.updated_ns`,
		s.Stage.String(), s.Age, s.HungerLevel, s.FeedCapacity, s.HealthScore,
		s.Discipline, s.Cleanliness, s.IsHungry, s.IsDirty, s.IsSick, s.IsFatty,
		s.AutoSleep, s.TotalSteps, s.DailySteps, s.StepsSinceClean,
		s.OverfeedCount, nanos(s.LastFeedTime), nanos(s.HungerStartTime),
		nanos(s.NextHungerAt), nanos(s.EscalatedAt), nanos(s.DirtyStartTime),
		nanos(s.LastCleanTime), nanos(s.LastMedicateTime), nanos(s.LastWalkTime),
		nanos(s.SleepStartTime), nanos(s.NextSleepAt), nanos(s.LastWakeTime),
		nanos(s.SickStartTime), s.LastRollupDay, nanos(s.CreatedAt), nanos(s.UpdatedAt),
	)
	return err
}

// LoadPetState reads the persisted state. The bool is false when no pet
// has ever been saved.
func (db *DB) LoadPetState(ctx context.Context) (pet.State, bool, error) {
	var (
		s        pet.State
		stage    string
		nsFields [14]int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT stage, age, hunger_level, feed_capacity, health_score,
			discipline, cleanliness, is_hungry, is_dirty, is_sick, is_fatty,
			auto_sleep, total_steps, daily_steps, steps_since_clean,
			overfeed_count, last_feed_ns, hunger_start_ns, next_hunger_ns,
			escalated_ns, dirty_start_ns, last_clean_ns, last_medicate_ns,
			last_walk_ns, sleep_start_ns, next_sleep_ns, last_wake_ns,
			sick_start_ns, last_rollup_day, created_ns, updated_ns
		FROM pet_state WHERE id = 1`).Scan(
		&stage, &s.Age, &s.HungerLevel, &s.FeedCapacity, &s.HealthScore,
		&s.Discipline, &s.Cleanliness, &s.IsHungry, &s.IsDirty, &s.IsSick,
		&s.IsFatty, &s.AutoSleep, &s.TotalSteps, &s.DailySteps,
		&s.StepsSinceClean, &s.OverfeedCount,
		&nsFields[0], &nsFields[1], &nsFields[2], &nsFields[3], &nsFields[4],
		&nsFields[5], &nsFields[6], &nsFields[7], &nsFields[8], &nsFields[9],
		&nsFields[10], &nsFields[11], &s.LastRollupDay,
		&nsFields[12], &nsFields[13],
	)
	if err == sql.ErrNoRows {
		return pet.State{}, false, nil
	}
	if err != nil {
		return pet.State{}, false, err
	}

	parsed, err := pet.ParseLifeStage(stage)
	if err != nil {
		return pet.State{}, false, fmt.Errorf("stored pet state is corrupt: %w", err)
	}
	s.Stage = parsed
	s.LastFeedTime = fromNanos(nsFields[0])
	s.HungerStartTime = fromNanos(nsFields[1])
	s.NextHungerAt = fromNanos(nsFields[2])
	s.EscalatedAt = fromNanos(nsFields[3])
	s.DirtyStartTime = fromNanos(nsFields[4])
	s.LastCleanTime = fromNanos(nsFields[5])
	s.LastMedicateTime = fromNanos(nsFields[6])
	s.LastWalkTime = fromNanos(nsFields[7])
	s.SleepStartTime = fromNanos(nsFields[8])
	s.NextSleepAt = fromNanos(nsFields[9])
	s.LastWakeTime = fromNanos(nsFields[10])
	s.SickStartTime = fromNanos(nsFields[11])
	s.CreatedAt = fromNanos(nsFields[12])
	s.UpdatedAt = fromNanos(nsFields[13])
	return s, true, nil
}

// SaveDailyStats upserts one closed day. Implements pet.Store.
func (db *DB) SaveDailyStats(ctx context.Context, rec pet.DailyRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO daily_stats (day, steps, health_score, activity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			steps=excluded.steps, health_score=excluded.health_score,
			activity=excluded.activity`,
		rec.Day, rec.Steps, rec.HealthScore, rec.Activity.String())
	return err
}

// ListDailyStats returns the most recent closed days, newest first.
func (db *DB) ListDailyStats(ctx context.Context, days int) ([]pet.DailyRecord, error) {
	if days < 1 {
		days = 1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT day, steps, health_score, activity
		FROM daily_stats ORDER BY day DESC LIMIT ?`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pet.DailyRecord
	for rows.Next() {
		var (
			rec      pet.DailyRecord
			activity string
		)
		if err := rows.Scan(&rec.Day, &rec.Steps, &rec.HealthScore, &activity); err != nil {
			return nil, err
		}
		rec.Activity = parseActivity(activity)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func parseActivity(name string) pet.ActivityLevel {
	for _, lvl := range []pet.ActivityLevel{
		pet.ActivityInactive, pet.ActivityLow, pet.ActivityModerate,
		pet.ActivityHigh, pet.ActivityVeryHigh,
	} {
		if lvl.String() == name {
			return lvl
		}
	}
	return pet.ActivityInactive
}

// CareEvent is one logged care action.
type CareEvent struct {
	ID   uuid.UUID `json:"id"`
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}

// RecordCareEvent logs a care action for the history endpoint.
func (db *DB) RecordCareEvent(ctx context.Context, kind string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO care_events (id, kind, at_ns) VALUES (?, ?, ?)`,
		uuid.NewString(), kind, at.UnixNano())
	return err
}

// RecentCareEvents returns the latest care actions, newest first.
func (db *DB) RecentCareEvents(ctx context.Context, limit int) ([]CareEvent, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, kind, at_ns FROM care_events ORDER BY at_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CareEvent
	for rows.Next() {
		var (
			id string
			ev CareEvent
			ns int64
		)
		if err := rows.Scan(&id, &ev.Kind, &ns); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("stored care event id is corrupt: %w", err)
		}
		ev.ID = parsed
		ev.At = fromNanos(ns)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RecordGestureEvent logs a recognized gesture. Implements the signal
// loop's event sink.
func (db *DB) RecordGestureEvent(ctx context.Context, ev gesture.Event) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO gesture_events (id, kind, magnitude, duration_ms, at_ns) VALUES (?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.Kind.String(), ev.Magnitude, ev.Duration.Milliseconds(), ev.At.UnixNano())
	return err
}

// CountGestureEvents returns per-kind counts since the given instant.
func (db *DB) CountGestureEvents(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM gesture_events WHERE at_ns >= ? GROUP BY kind`,
		nanos(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			kind  string
			count int64
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		out[kind] = count
	}
	return out, rows.Err()
}

// AttachAdminRoutes mounts the tailsql live-SQL console and a one-shot
// backup download under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://kaku.db", db.DB, &tailsql.DBOptions{
		Label: "Pet DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
