package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainCache "github.com/vitalsync/vitalsync/domains/cache"
	domainMetrics "github.com/vitalsync/vitalsync/domains/metrics"
	"github.com/vitalsync/vitalsync/infrastructure/cachestore"
)

// fakeRawRepo serves canned readings and counts range queries so tests can
// observe coalescing.
type fakeRawRepo struct {
	mu          sync.Mutex
	readings    []domainMetrics.WearableReading
	assessments []domainMetrics.Assessment
	rangeCalls  int32
	delay       time.Duration
}

func (f *fakeRawRepo) GetRecordsInRange(_ context.Context, userID string, start, end time.Time) ([]domainMetrics.WearableReading, error) {
	atomic.AddInt32(&f.rangeCalls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domainMetrics.WearableReading
	for _, r := range f.readings {
		if r.UserID == userID && !r.RecordedAt.Before(start) && r.RecordedAt.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRawRepo) GetAllRecords(_ context.Context, userID string, _ int) ([]domainMetrics.WearableReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domainMetrics.WearableReading
	for _, r := range f.readings {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRawRepo) GetLatestAssessment(_ context.Context, userID string) (*domainMetrics.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domainMetrics.Assessment
	for i := range f.assessments {
		a := f.assessments[i]
		if a.UserID != userID {
			continue
		}
		if latest == nil || a.TakenAt.After(latest.TakenAt) {
			latest = &a
		}
	}
	return latest, nil
}

func (f *fakeRawRepo) GetAssessmentHistory(_ context.Context, userID string, _ int) ([]domainMetrics.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domainMetrics.Assessment
	for _, a := range f.assessments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRawRepo) ListUserIDs(context.Context) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, r := range f.readings {
		if !seen[r.UserID] {
			seen[r.UserID] = true
			ids = append(ids, r.UserID)
		}
	}
	return ids, nil
}

type fakeGoalRepo struct{}

func (fakeGoalRepo) GetUserGoals(_ context.Context, userID string) (domainMetrics.Goals, error) {
	g := domainMetrics.DefaultGoals
	g.UserID = userID
	return g, nil
}
func (fakeGoalRepo) UpsertUserGoals(context.Context, domainMetrics.Goals) error { return nil }

func newTestEngine(t *testing.T, raw *fakeRawRepo) (*metricsService, domainCache.ICacheUsecase, *time.Time) {
	t.Helper()
	store := cachestore.NewMemoryStore()
	cacheSvc := NewCacheService(store, 0).(*cacheService)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := &now
	cacheSvc.nowFn = func() time.Time { return *clock }

	engine := NewMetricsService(cacheSvc, raw, fakeGoalRepo{}, nil).(*metricsService)
	engine.nowFn = func() time.Time { return *clock }
	return engine, cacheSvc, clock
}

func reading(userID string, at time.Time, steps int, sleep, hrv float64, active, calories int) domainMetrics.WearableReading {
	return domainMetrics.WearableReading{
		UserID:           userID,
		RecordedAt:       at,
		Steps:            steps,
		SleepHours:       sleep,
		HRV:              hrv,
		ActiveMinutes:    active,
		CaloriesConsumed: calories,
	}
}

func TestCalculateWithNoDataUsesNeutralDefaults(t *testing.T) {
	engine, cacheSvc, _ := newTestEngine(t, &fakeRawRepo{})
	ctx := context.Background()

	require.NoError(t, engine.CalculateAndCacheUserMetrics(ctx, "u1"))

	daily, err := cacheSvc.GetDailyMetrics(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, daily)
	assert.Equal(t, neutralScore, daily.Scores.Overall)
	assert.Equal(t, neutralScore, daily.Scores.Sleep)
	assert.Equal(t, 0, daily.SampleCount)

	weekly, err := cacheSvc.GetWeeklyMetrics(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, weekly)
	assert.Equal(t, neutralScore, weekly.Averages.Overall)
	assert.Equal(t, 0, weekly.DaysTracked)

	lifetime, err := cacheSvc.GetLifetimeMetrics(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, lifetime)
	assert.Equal(t, 0, lifetime.TotalDaysTracked)
	assert.Zero(t, lifetime.TotalSteps)
}

func TestDailyScoringBands(t *testing.T) {
	assert.Equal(t, 95, sleepScore(8))
	assert.Equal(t, 80, sleepScore(6.5))
	assert.Equal(t, 60, sleepScore(5.5))
	assert.Equal(t, 45, sleepScore(3))
	assert.Equal(t, neutralScore, sleepScore(0))

	assert.Equal(t, 100, activityScore(12000, 70))
	assert.Equal(t, (85+85)/2, activityScore(8000, 40))
	assert.Equal(t, neutralScore, activityScore(0, 0))

	assert.Equal(t, 90, nutritionScore(2000))
	assert.Equal(t, 75, nutritionScore(1600))
	assert.Equal(t, 55, nutritionScore(3500))
	assert.Equal(t, neutralScore, nutritionScore(0))

	assert.Equal(t, 95, stressScore(65))
	assert.Equal(t, 85, stressScore(50))
	assert.Equal(t, 65, stressScore(30))
	assert.Equal(t, 45, stressScore(10))
	assert.Equal(t, neutralScore, stressScore(0))
}

func TestDailyCalculationAggregatesTodaysSamples(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	raw := &fakeRawRepo{readings: []domainMetrics.WearableReading{
		reading("u1", day.Add(8*time.Hour), 4000, 7.5, 55, 20, 800),
		reading("u1", day.Add(18*time.Hour), 6500, 0, 60, 25, 1400),
		// Yesterday's sample must not leak in.
		reading("u1", day.Add(-2*time.Hour), 99999, 1, 1, 999, 9999),
	}}
	engine, cacheSvc, _ := newTestEngine(t, raw)
	ctx := context.Background()

	require.NoError(t, engine.CalculateAndCacheUserMetrics(ctx, "u1"))

	daily, err := cacheSvc.GetDailyMetrics(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, daily)
	assert.Equal(t, "2026-03-10", daily.Date)
	assert.Equal(t, 10500, daily.Steps)
	assert.Equal(t, 45, daily.ActiveMinutes)
	assert.InDelta(t, 7.5, daily.SleepHours, 0.001)
	assert.Equal(t, 2, daily.SampleCount)
	assert.Equal(t, 95, daily.Scores.Sleep)
	assert.Equal(t, (100+85)/2, daily.Scores.Activity)
}

func TestTrendClassification(t *testing.T) {
	assert.Equal(t, domainCache.TrendImproving, classifyTrend([]float64{60, 60, 70, 70}))
	assert.Equal(t, domainCache.TrendDeclining, classifyTrend([]float64{80, 80, 70, 70}))
	assert.Equal(t, domainCache.TrendStable, classifyTrend([]float64{75, 75, 76, 75}))
	// Short series never classify as a trend.
	assert.Equal(t, domainCache.TrendStable, classifyTrend([]float64{10, 90}))
}

func TestPearsonCorrelation(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, pearson(xs, []float64{2, 4, 6, 8, 10}), 0.0001)
	assert.InDelta(t, -1.0, pearson(xs, []float64{10, 8, 6, 4, 2}), 0.0001)
	assert.Zero(t, pearson(xs, []float64{3, 3, 3, 3, 3}))
}

func TestMonthlyCorrelationInsights(t *testing.T) {
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	var readings []domainMetrics.WearableReading
	// Sleep and HRV rise together over 14 days: a strong positive pairing.
	for i := 0; i < 14; i++ {
		readings = append(readings, reading(
			"u1", day.AddDate(0, 0, i).Add(9*time.Hour),
			8000, 5+float64(i)*0.3, 30+float64(i)*2.5, 30, 2000,
		))
	}
	raw := &fakeRawRepo{readings: readings}
	engine, cacheSvc, _ := newTestEngine(t, raw)
	ctx := context.Background()

	require.NoError(t, engine.CalculateAndCacheUserMetrics(ctx, "u1"))

	monthly, err := cacheSvc.GetMonthlyMetrics(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, monthly)
	require.NotEmpty(t, monthly.CorrelationInsights)

	var found bool
	for _, ci := range monthly.CorrelationInsights {
		if ci.FactorA == "sleepHours" && ci.FactorB == "hrv" {
			found = true
			assert.Equal(t, "strong", ci.Strength)
			assert.Greater(t, ci.Coefficient, 0.7)
		}
	}
	assert.True(t, found, "sleep/hrv insight missing: %+v", monthly.CorrelationInsights)
}

func TestMonthlyAchievementsFromConsistency(t *testing.T) {
	day := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	var readings []domainMetrics.WearableReading
	// 21 tracked days hitting both the step and sleep thresholds earns all
	// three window recognitions.
	for i := 0; i < 21; i++ {
		readings = append(readings, reading(
			"u1", day.AddDate(0, 0, i).Add(9*time.Hour),
			12000, 7.5, 55, 40, 2100,
		))
	}
	raw := &fakeRawRepo{readings: readings}
	engine, cacheSvc, _ := newTestEngine(t, raw)
	ctx := context.Background()

	require.NoError(t, engine.CalculateAndCacheUserMetrics(ctx, "u1"))

	monthly, err := cacheSvc.GetMonthlyMetrics(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, monthly)

	got := map[string]bool{}
	for _, a := range monthly.RecentAchievements {
		got[a.ID] = true
	}
	for _, id := range []string{"monthly-consistent-mover", "monthly-sleep-champion", "monthly-habit-builder"} {
		assert.True(t, got[id], "achievement %s missing: %+v", id, monthly.RecentAchievements)
	}
}

func TestLifetimeTotalsAndMilestones(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var readings []domainMetrics.WearableReading
	for i := 0; i < 10; i++ {
		readings = append(readings, reading(
			"u1", start.AddDate(0, 0, i).Add(12*time.Hour),
			12000, 7.5, 50, 45, 2000,
		))
	}
	raw := &fakeRawRepo{readings: readings}
	engine, cacheSvc, _ := newTestEngine(t, raw)
	ctx := context.Background()

	require.NoError(t, engine.CalculateAndCacheUserMetrics(ctx, "u1"))

	lifetime, err := cacheSvc.GetLifetimeMetrics(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, lifetime)
	assert.Equal(t, 10, lifetime.TotalDaysTracked)
	assert.Equal(t, int64(120000), lifetime.TotalSteps)
	assert.Equal(t, int64(450), lifetime.TotalActiveMinutes)
	assert.Equal(t, 10, lifetime.LongestStreaks["activity"])
	assert.Equal(t, 10, lifetime.LongestStreaks["sleep"])
	assert.Equal(t, "2026-01-10", lifetime.LastTrackedDate)

	ids := map[string]time.Time{}
	for _, m := range lifetime.Milestones {
		ids[m.ID] = m.AchievedAt
	}
	// 100K steps crossed on day 9 (9 * 12000 = 108000).
	require.Contains(t, ids, "steps-100k")
	assert.Equal(t, "2026-01-09", ids["steps-100k"].Format("2006-01-02"))
	require.Contains(t, ids, "days-7")
	assert.Equal(t, "2026-01-07", ids["days-7"].Format("2006-01-02"))
}

func TestLifetimeMonotonicUnderRepeatedRecalculation(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := &fakeRawRepo{}
	for i := 0; i < 5; i++ {
		raw.readings = append(raw.readings, reading(
			"u1", start.AddDate(0, 0, i).Add(12*time.Hour), 8000, 7, 45, 35, 2100,
		))
	}
	engine, cacheSvc, _ := newTestEngine(t, raw)
	ctx := context.Background()

	require.NoError(t, engine.CalculateAndCacheUserMetrics(ctx, "u1"))
	first, err := cacheSvc.GetLifetimeMetrics(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, first)

	// More data arrives, then recalculate. Totals may only grow.
	raw.mu.Lock()
	raw.readings = append(raw.readings, reading(
		"u1", start.AddDate(0, 0, 5).Add(12*time.Hour), 9000, 8, 50, 40, 2000,
	))
	raw.mu.Unlock()

	require.NoError(t, engine.CalculateAndCacheUserMetrics(ctx, "u1"))
	second, err := cacheSvc.GetLifetimeMetrics(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.GreaterOrEqual(t, second.TotalDaysTracked, first.TotalDaysTracked)
	assert.GreaterOrEqual(t, second.TotalSteps, first.TotalSteps)
	assert.GreaterOrEqual(t, second.TotalActiveMinutes, first.TotalActiveMinutes)
	assert.GreaterOrEqual(t, len(second.Milestones), len(first.Milestones))
}

func TestIncrementalLifetimeFoldsOnlyNewDays(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := &fakeRawRepo{}
	for i := 0; i < 3; i++ {
		raw.readings = append(raw.readings, reading(
			"u1", start.AddDate(0, 0, i).Add(12*time.Hour), 10000, 7.5, 50, 40, 2000,
		))
	}
	engine, cacheSvc, clock := newTestEngine(t, raw)
	engine.lifetimeMode = domainMetrics.LifetimeModeIncremental
	ctx := context.Background()

	// First run has no cached section, so it falls back to a full scan.
	require.NoError(t, engine.CalculateAndCacheUserMetrics(ctx, "u1"))
	first, err := cacheSvc.GetLifetimeMetrics(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 3, first.TotalDaysTracked)

	raw.mu.Lock()
	raw.readings = append(raw.readings, reading(
		"u1", start.AddDate(0, 0, 3).Add(12*time.Hour), 5000, 6, 40, 20, 1900,
	))
	raw.mu.Unlock()
	*clock = clock.Add(24 * time.Hour)

	require.NoError(t, engine.CalculateAndCacheUserMetrics(ctx, "u1"))
	second, err := cacheSvc.GetLifetimeMetrics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, second.TotalDaysTracked)
	assert.Equal(t, int64(35000), second.TotalSteps)
	assert.Equal(t, "2026-01-04", second.LastTrackedDate)
}

func TestSingleFlightCoalescesConcurrentRecalculations(t *testing.T) {
	raw := &fakeRawRepo{delay: 20 * time.Millisecond}
	engine, _, _ := newTestEngine(t, raw)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = engine.CalculateAndCacheUserMetrics(ctx, "u1")
		}()
	}
	wg.Wait()

	// One computation issues a fixed number of range queries (daily, weekly,
	// monthly). Eight coalesced callers must not multiply that by eight.
	calls := atomic.LoadInt32(&raw.rangeCalls)
	assert.LessOrEqual(t, calls, int32(3*2), "range calls = %d, concurrent calls did not coalesce", calls)
}

func TestDashboardAssemblesFromCachedSections(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	raw := &fakeRawRepo{
		readings: []domainMetrics.WearableReading{
			reading("u1", day.Add(9*time.Hour), 11000, 8, 62, 65, 2100),
		},
		assessments: []domainMetrics.Assessment{
			{UserID: "u1", TakenAt: day.Add(-48 * time.Hour), BiologicalAge: 38.5, ChronologicalAge: 44},
		},
	}
	engine, cacheSvc, _ := newTestEngine(t, raw)
	ctx := context.Background()

	require.NoError(t, engine.CalculateAndCacheUserMetrics(ctx, "u1"))

	dash, err := cacheSvc.GetDashboardCache(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, dash)
	assert.InDelta(t, 38.5, dash.BiologicalAge, 0.001)
	assert.Equal(t, float64(11000), dash.QuickStats["steps"])
	assert.NotEmpty(t, dash.NextActions)
	assert.Greater(t, dash.LongevityScore, 0)
	// Biological age 5.5 years under chronological nudges the score upward.
	base := longevityScore(dash.TodayScore, dash.WeeklyAverage, nil)
	assert.Greater(t, dash.LongevityScore, base)
}
