package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domainMetrics "github.com/vitalsync/vitalsync/domains/metrics"
)

// SQLGoalRepository stores per-user daily targets in a plain SQL table.
// It works against sqlite3 or postgres; the driver name picks the
// placeholder style.
type SQLGoalRepository struct {
	db     *sql.DB
	driver string
}

func NewSQLGoalRepository(db *sql.DB, driver string) *SQLGoalRepository {
	return &SQLGoalRepository{db: db, driver: driver}
}

// Init creates the goals table when missing.
func (r *SQLGoalRepository) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS user_goals (
		user_id TEXT PRIMARY KEY,
		daily_steps INTEGER NOT NULL,
		sleep_hours REAL NOT NULL,
		active_minutes INTEGER NOT NULL,
		daily_calories INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to init user_goals table: %w", err)
	}
	return nil
}

// GetUserGoals returns the user's stored targets, or DefaultGoals when the
// user never configured any.
func (r *SQLGoalRepository) GetUserGoals(ctx context.Context, userID string) (domainMetrics.Goals, error) {
	goals := domainMetrics.DefaultGoals
	goals.UserID = userID

	row := r.db.QueryRowContext(ctx,
		r.bind(`SELECT daily_steps, sleep_hours, active_minutes, daily_calories FROM user_goals WHERE user_id = ?`),
		userID,
	)
	err := row.Scan(&goals.DailySteps, &goals.SleepHours, &goals.ActiveMinutes, &goals.DailyCalories)
	if errors.Is(err, sql.ErrNoRows) {
		return goals, nil
	}
	if err != nil {
		return goals, fmt.Errorf("failed to read goals for %s: %w", userID, err)
	}
	return goals, nil
}

func (r *SQLGoalRepository) UpsertUserGoals(ctx context.Context, goals domainMetrics.Goals) error {
	_, err := r.db.ExecContext(ctx,
		r.bind(`INSERT INTO user_goals (user_id, daily_steps, sleep_hours, active_minutes, daily_calories)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				daily_steps = excluded.daily_steps,
				sleep_hours = excluded.sleep_hours,
				active_minutes = excluded.active_minutes,
				daily_calories = excluded.daily_calories`),
		goals.UserID, goals.DailySteps, goals.SleepHours, goals.ActiveMinutes, goals.DailyCalories,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert goals for %s: %w", goals.UserID, err)
	}
	return nil
}

// bind rewrites ? placeholders to $n for postgres.
func (r *SQLGoalRepository) bind(query string) string {
	if r.driver != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
