package cache

import "time"

// TrendDirection classifies how a component score moved across a window.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// ScoreSet holds the four component scores plus the rounded overall mean.
// All scores are 0-100.
type ScoreSet struct {
	Sleep     int `json:"sleep"`
	Activity  int `json:"activity"`
	Nutrition int `json:"nutrition"`
	Stress    int `json:"stress"`
	Overall   int `json:"overall"`
}

// GoalProgress compares a window aggregate against the user's stored target.
type GoalProgress struct {
	Metric  string  `json:"metric"`
	Target  float64 `json:"target"`
	Actual  float64 `json:"actual"`
	Percent int     `json:"percent"`
}

// CorrelationInsight is one discovered relationship between two tracked
// factors. CreatedAt orders the compactable monthly insight list.
type CorrelationInsight struct {
	FactorA     string    `json:"factorA"`
	FactorB     string    `json:"factorB"`
	Coefficient float64   `json:"coefficient"`
	Strength    string    `json:"strength"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Achievement is an earned recognition. AchievedAt orders the compactable
// recent-achievement lists.
type Achievement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AchievedAt  time.Time `json:"achievedAt"`
}

// Milestone is an all-time threshold crossing. AchievedAt orders the
// compactable lifetime milestone list.
type Milestone struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	AchievedAt time.Time `json:"achievedAt"`
}

// PersonalBest records the single best observed value for one metric.
type PersonalBest struct {
	Metric     string  `json:"metric"`
	Value      float64 `json:"value"`
	AchievedOn string  `json:"achievedOn"`
}

// BioAgePoint is one sample of the biological-age time series.
type BioAgePoint struct {
	Date          string  `json:"date"`
	BiologicalAge float64 `json:"biologicalAge"`
}

// DailyData is today's derived scores and raw counters.
type DailyData struct {
	Date          string   `json:"date"`
	Scores        ScoreSet `json:"scores"`
	Steps         int      `json:"steps"`
	ActiveMinutes int      `json:"activeMinutes"`
	SleepHours    float64  `json:"sleepHours"`
	AvgHRV        float64  `json:"avgHrv"`
	RecoveryIndex int      `json:"recoveryIndex"`
	SampleCount   int      `json:"sampleCount"`
}

// WeeklyData is the 7-day rolling aggregate.
type WeeklyData struct {
	WindowStart  string                    `json:"windowStart"`
	WindowEnd    string                    `json:"windowEnd"`
	Averages     ScoreSet                  `json:"averages"`
	Trends       map[string]TrendDirection `json:"trends"`
	GoalProgress []GoalProgress            `json:"goalProgress"`
	TopInsights  []string                  `json:"topInsights"`
	DaysTracked  int                       `json:"daysTracked"`
}

// MonthlyData is the 30-day aggregate plus correlation insights and the
// achievements earned in the window.
type MonthlyData struct {
	WindowStart         string                    `json:"windowStart"`
	WindowEnd           string                    `json:"windowEnd"`
	Averages            ScoreSet                  `json:"averages"`
	Trends              map[string]TrendDirection `json:"trends"`
	GoalProgress        []GoalProgress            `json:"goalProgress"`
	CorrelationInsights []CorrelationInsight      `json:"correlationInsights"`
	RecentAchievements  []Achievement             `json:"recentAchievements"`
	DaysTracked         int                       `json:"daysTracked"`
}

// LifetimeData is the cumulative, never-expiring section. LastTrackedDate
// marks the most recent day folded into the totals; incremental updates
// resume from the day after it.
type LifetimeData struct {
	TotalDaysTracked   int            `json:"totalDaysTracked"`
	TotalSteps         int64          `json:"totalSteps"`
	TotalActiveMinutes int64          `json:"totalActiveMinutes"`
	LongestStreaks     map[string]int `json:"longestStreaks"`
	PersonalBests      []PersonalBest `json:"personalBests"`
	BioAgeHistory      []BioAgePoint  `json:"bioAgeHistory"`
	Milestones         []Milestone    `json:"milestones"`
	LastTrackedDate    string         `json:"lastTrackedDate,omitempty"`
}

// DashboardData is the hero view assembled from the other cached sections.
type DashboardData struct {
	BiologicalAge         float64            `json:"biologicalAge"`
	LongevityScore        int                `json:"longevityScore"`
	TodayScore            int                `json:"todayScore"`
	WeeklyAverage         int                `json:"weeklyAverage"`
	QuickStats            map[string]float64 `json:"quickStats"`
	RecentAchievements    []Achievement      `json:"recentAchievements"`
	NextActions           []string           `json:"nextActions"`
	CorrelationHighlights []string           `json:"correlationHighlights"`
}
