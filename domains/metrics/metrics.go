package metrics

import (
	"context"
	"time"
)

// WearableReading is one raw sample from a user's wearable. Rows only grow;
// the engine never writes back to this table.
type WearableReading struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	UserID           string    `json:"user_id" gorm:"index:idx_readings_user_time"`
	RecordedAt       time.Time `json:"recorded_at" gorm:"index:idx_readings_user_time"`
	SleepHours       float64   `json:"sleep_hours"`
	Steps            int       `json:"steps"`
	ActiveMinutes    int       `json:"active_minutes"`
	HRV              float64   `json:"hrv" gorm:"column:hrv"`
	RestingHeartRate int       `json:"resting_heart_rate"`
	CaloriesConsumed int       `json:"calories_consumed"`
}

func (WearableReading) TableName() string { return "wearable_readings" }

// Assessment is a submitted wellness assessment with the derived ages.
type Assessment struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	UserID           string    `json:"user_id" gorm:"index"`
	TakenAt          time.Time `json:"taken_at"`
	BiologicalAge    float64   `json:"biological_age"`
	ChronologicalAge float64   `json:"chronological_age"`
	WellnessScore    int       `json:"wellness_score"`
}

func (Assessment) TableName() string { return "assessments" }

// Goals are the per-user daily targets used for goal-progress calculations.
type Goals struct {
	UserID        string  `json:"user_id"`
	DailySteps    int     `json:"daily_steps"`
	SleepHours    float64 `json:"sleep_hours"`
	ActiveMinutes int     `json:"active_minutes"`
	DailyCalories int     `json:"daily_calories"`
}

// DefaultGoals applies when a user has never configured targets.
var DefaultGoals = Goals{
	DailySteps:    10000,
	SleepHours:    8,
	ActiveMinutes: 30,
	DailyCalories: 2200,
}

// IRawDataRepository is the engine's read-only view of the system of record.
type IRawDataRepository interface {
	GetRecordsInRange(ctx context.Context, userID string, start, end time.Time) ([]WearableReading, error)
	GetAllRecords(ctx context.Context, userID string, limit int) ([]WearableReading, error)
	GetLatestAssessment(ctx context.Context, userID string) (*Assessment, error)
	GetAssessmentHistory(ctx context.Context, userID string, limit int) ([]Assessment, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// IGoalRepository resolves a user's targets, falling back to DefaultGoals.
type IGoalRepository interface {
	GetUserGoals(ctx context.Context, userID string) (Goals, error)
	UpsertUserGoals(ctx context.Context, goals Goals) error
}

// LifetimeMode selects how the lifetime section is produced.
const (
	LifetimeModeFull        = "full"
	LifetimeModeIncremental = "incremental"
)

// IMetricsUsecase is the sole entry point collaborators call to (re)populate
// a user's cache. It is invoked after data-ingestion events and lazily on a
// cold cache miss from the dashboard read path.
type IMetricsUsecase interface {
	CalculateAndCacheUserMetrics(ctx context.Context, userID string) error
}
