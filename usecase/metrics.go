package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vitalsync/vitalsync/core/config"
	domainCache "github.com/vitalsync/vitalsync/domains/cache"
	domainMetrics "github.com/vitalsync/vitalsync/domains/metrics"
)

// maxLifetimeRecords caps the history scan of a full lifetime recalculation.
// A hundred years of daily samples fits well under it.
const maxLifetimeRecords = 50000

type inflightCall struct {
	done chan struct{}
	err  error
}

type metricsService struct {
	cache        domainCache.ICacheUsecase
	raw          domainMetrics.IRawDataRepository
	goals        domainMetrics.IGoalRepository
	lifetimeMode string
	nowFn        func() time.Time

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

// NewMetricsService wires the calculation engine. lifetimeMode is one of
// LifetimeModeFull or LifetimeModeIncremental; anything else falls back to
// full recalculation.
func NewMetricsService(cache domainCache.ICacheUsecase, raw domainMetrics.IRawDataRepository, goals domainMetrics.IGoalRepository, cfg *config.Config) domainMetrics.IMetricsUsecase {
	mode := domainMetrics.LifetimeModeFull
	if cfg != nil && cfg.Cache.LifetimeMode == domainMetrics.LifetimeModeIncremental {
		mode = domainMetrics.LifetimeModeIncremental
	}
	return &metricsService{
		cache:        cache,
		raw:          raw,
		goals:        goals,
		lifetimeMode: mode,
		nowFn:        time.Now,
		inflight:     make(map[string]*inflightCall),
	}
}

// CalculateAndCacheUserMetrics recomputes every cache section for one user.
// Concurrent calls for the same user coalesce onto a single computation; the
// duplicates block until it finishes and share its result.
func (s *metricsService) CalculateAndCacheUserMetrics(ctx context.Context, userID string) error {
	s.mu.Lock()
	if call, ok := s.inflight[userID]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	s.inflight[userID] = call
	s.mu.Unlock()

	call.err = s.recalculate(ctx, userID)
	close(call.done)

	s.mu.Lock()
	delete(s.inflight, userID)
	s.mu.Unlock()
	return call.err
}

// recalculate runs the five section calculators with failure isolation: one
// section failing never blocks the others, and the joined error reports every
// failure. Dashboard runs last because it assembles from the fresh sections.
func (s *metricsService) recalculate(ctx context.Context, userID string) error {
	if err := s.cache.InitializeUserCache(ctx, userID); err != nil {
		return fmt.Errorf("failed to initialize cache for %s: %w", userID, err)
	}

	var errs []error
	run := func(section string, fn func() error) {
		if err := fn(); err != nil {
			logrus.WithError(err).Errorf("[ENGINE] %s calculation failed for user %s", section, userID)
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}

	run(domainCache.SectionDaily, func() error {
		daily, err := s.calculateDaily(ctx, userID)
		if err != nil {
			return err
		}
		return s.cache.UpdateDailyMetrics(ctx, userID, *daily)
	})
	run(domainCache.SectionWeekly, func() error {
		weekly, err := s.calculateWindow(ctx, userID, 7)
		if err != nil {
			return err
		}
		return s.cache.UpdateWeeklyMetrics(ctx, userID, toWeekly(*weekly))
	})
	run(domainCache.SectionMonthly, func() error {
		monthly, err := s.calculateMonthly(ctx, userID)
		if err != nil {
			return err
		}
		return s.cache.UpdateMonthlyMetrics(ctx, userID, *monthly)
	})
	run(domainCache.SectionLifetime, func() error {
		lifetime, err := s.calculateLifetime(ctx, userID)
		if err != nil {
			return err
		}
		return s.cache.UpdateLifetimeMetrics(ctx, userID, *lifetime)
	})
	run(domainCache.SectionDashboard, func() error {
		dashboard, err := s.calculateDashboard(ctx, userID)
		if err != nil {
			return err
		}
		return s.cache.UpdateDashboardCache(ctx, userID, *dashboard)
	})

	return errors.Join(errs...)
}

// calculateDaily scores the current UTC calendar day. A day without readings
// still produces a section: all scores land on the neutral default.
func (s *metricsService) calculateDaily(ctx context.Context, userID string) (*domainCache.DailyData, error) {
	dayStart := startOfDayUTC(s.nowFn())
	records, err := s.raw.GetRecordsInRange(ctx, userID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	agg := aggregateDay(dayStart.Format(dateLayout), records)
	daily := &domainCache.DailyData{
		Date:          agg.date,
		Scores:        scoreDay(agg),
		Steps:         agg.steps,
		ActiveMinutes: agg.activeMinutes,
		SleepHours:    math.Round(agg.sleepHours*100) / 100,
		AvgHRV:        math.Round(agg.avgHRV*10) / 10,
		RecoveryIndex: recoveryIndex(agg.avgHRV, agg.avgRestingHR),
		SampleCount:   agg.samples,
	}
	return daily, nil
}

// windowResult carries the shared aggregate both the weekly and monthly
// calculators build from.
type windowResult struct {
	start, end   time.Time
	days         []dayAggregate
	averages     domainCache.ScoreSet
	trends       map[string]domainCache.TrendDirection
	goalProgress []domainCache.GoalProgress
	insights     []string
}

func (s *metricsService) calculateWindow(ctx context.Context, userID string, daysBack int) (*windowResult, error) {
	end := startOfDayUTC(s.nowFn()).Add(24 * time.Hour)
	start := end.AddDate(0, 0, -daysBack)
	records, err := s.raw.GetRecordsInRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	days := groupByDay(records)

	sets := make([]domainCache.ScoreSet, len(days))
	for i, d := range days {
		sets[i] = scoreDay(d)
	}
	averages := averageScores(sets)

	trends := map[string]domainCache.TrendDirection{
		"sleep":     classifyTrend(componentSeries(days, func(s domainCache.ScoreSet) int { return s.Sleep })),
		"activity":  classifyTrend(componentSeries(days, func(s domainCache.ScoreSet) int { return s.Activity })),
		"nutrition": classifyTrend(componentSeries(days, func(s domainCache.ScoreSet) int { return s.Nutrition })),
		"stress":    classifyTrend(componentSeries(days, func(s domainCache.ScoreSet) int { return s.Stress })),
	}

	progress, err := s.goalProgress(ctx, userID, days)
	if err != nil {
		// Goals are decoration on the window, not its substance. Fall back
		// to defaults rather than failing the whole section.
		logrus.WithError(err).Warnf("[ENGINE] Goal lookup failed for user %s, using defaults", userID)
		progress = goalProgressAgainst(domainMetrics.DefaultGoals, days)
	}

	return &windowResult{
		start:        start,
		end:          end.AddDate(0, 0, -1),
		days:         days,
		averages:     averages,
		trends:       trends,
		goalProgress: progress,
		insights:     windowInsights(averages, trends, len(days)),
	}, nil
}

func (s *metricsService) goalProgress(ctx context.Context, userID string, days []dayAggregate) ([]domainCache.GoalProgress, error) {
	goals, err := s.goals.GetUserGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	return goalProgressAgainst(goals, days), nil
}

// goalProgressAgainst compares per-day averages over the window to the
// user's daily targets.
func goalProgressAgainst(goals domainMetrics.Goals, days []dayAggregate) []domainCache.GoalProgress {
	var steps, active, sleep float64
	for _, d := range days {
		steps += float64(d.steps)
		active += float64(d.activeMinutes)
		sleep += d.sleepHours
	}
	n := float64(len(days))
	if n > 0 {
		steps /= n
		active /= n
		sleep /= n
	}
	return []domainCache.GoalProgress{
		progressFor("steps", steps, float64(goals.DailySteps)),
		progressFor("sleepHours", sleep, goals.SleepHours),
		progressFor("activeMinutes", active, float64(goals.ActiveMinutes)),
	}
}

func toWeekly(w windowResult) domainCache.WeeklyData {
	return domainCache.WeeklyData{
		WindowStart:  w.start.Format(dateLayout),
		WindowEnd:    w.end.Format(dateLayout),
		Averages:     w.averages,
		Trends:       w.trends,
		GoalProgress: w.goalProgress,
		TopInsights:  w.insights,
		DaysTracked:  len(w.days),
	}
}

// calculateMonthly extends the 30-day window aggregate with correlation
// insights and the achievements earned in the window.
func (s *metricsService) calculateMonthly(ctx context.Context, userID string) (*domainCache.MonthlyData, error) {
	w, err := s.calculateWindow(ctx, userID, 30)
	if err != nil {
		return nil, err
	}
	now := s.nowFn().UTC()
	monthly := &domainCache.MonthlyData{
		WindowStart:         w.start.Format(dateLayout),
		WindowEnd:           w.end.Format(dateLayout),
		Averages:            w.averages,
		Trends:              w.trends,
		GoalProgress:        w.goalProgress,
		CorrelationInsights: correlationInsights(w.days, now),
		RecentAchievements:  monthlyAchievements(*w, now),
		DaysTracked:         len(w.days),
	}
	if len(monthly.CorrelationInsights) > domainCache.MaxCorrelationInsights {
		monthly.CorrelationInsights = monthly.CorrelationInsights[:domainCache.MaxCorrelationInsights]
	}
	if len(monthly.RecentAchievements) > domainCache.MaxRecentAchievements {
		monthly.RecentAchievements = monthly.RecentAchievements[:domainCache.MaxRecentAchievements]
	}
	return monthly, nil
}

// correlationPair declares one factor pairing the engine tests each month.
type correlationPair struct {
	factorA, factorB string
	pickA, pickB     func(dayAggregate) float64
	template         string
}

var correlationPairs = []correlationPair{
	{
		factorA: "sleepHours", factorB: "hrv",
		pickA:    func(d dayAggregate) float64 { return d.sleepHours },
		pickB:    func(d dayAggregate) float64 { return d.avgHRV },
		template: "Sleep duration and HRV move %s together",
	},
	{
		factorA: "steps", factorB: "sleepHours",
		pickA:    func(d dayAggregate) float64 { return float64(d.steps) },
		pickB:    func(d dayAggregate) float64 { return d.sleepHours },
		template: "Daily steps and sleep duration show a %s link",
	},
	{
		factorA: "activeMinutes", factorB: "restingHeartRate",
		pickA:    func(d dayAggregate) float64 { return float64(d.activeMinutes) },
		pickB:    func(d dayAggregate) float64 { return d.avgRestingHR },
		template: "Active minutes and resting heart rate show a %s link",
	},
}

// correlationInsights tests each declared factor pair over the window's
// per-day values. Pairs need at least 7 tracked days and |r| >= 0.3 to
// surface; anything weaker is noise at this sample size.
func correlationInsights(days []dayAggregate, now time.Time) []domainCache.CorrelationInsight {
	if len(days) < 7 {
		return nil
	}
	var insights []domainCache.CorrelationInsight
	for _, pair := range correlationPairs {
		var xs, ys []float64
		for _, d := range days {
			a, b := pair.pickA(d), pair.pickB(d)
			if a <= 0 || b <= 0 {
				continue
			}
			xs = append(xs, a)
			ys = append(ys, b)
		}
		if len(xs) < 7 {
			continue
		}
		r := pearson(xs, ys)
		if math.Abs(r) < 0.3 {
			continue
		}
		strength := correlationStrength(r)
		direction := "positively"
		if r < 0 {
			direction = "inversely"
		}
		insights = append(insights, domainCache.CorrelationInsight{
			FactorA:     pair.factorA,
			FactorB:     pair.factorB,
			Coefficient: math.Round(r*100) / 100,
			Strength:    strength,
			Summary:     fmt.Sprintf(pair.template, strength+" "+direction),
			CreatedAt:   now,
		})
	}
	return insights
}

// monthlyAchievements derives window recognitions from consistency counts.
func monthlyAchievements(w windowResult, now time.Time) []domainCache.Achievement {
	var stepDays, sleepDays int
	for _, d := range w.days {
		if d.steps >= 10000 {
			stepDays++
		}
		if d.sleepHours >= 7 {
			sleepDays++
		}
	}
	var out []domainCache.Achievement
	if stepDays >= 10 {
		out = append(out, domainCache.Achievement{
			ID:          "monthly-consistent-mover",
			Title:       "Consistent Mover",
			Description: fmt.Sprintf("Hit 10,000 steps on %d days this month", stepDays),
			AchievedAt:  now,
		})
	}
	if sleepDays >= 15 {
		out = append(out, domainCache.Achievement{
			ID:          "monthly-sleep-champion",
			Title:       "Sleep Champion",
			Description: fmt.Sprintf("Slept 7+ hours on %d nights this month", sleepDays),
			AchievedAt:  now,
		})
	}
	if len(w.days) >= 21 {
		out = append(out, domainCache.Achievement{
			ID:          "monthly-habit-builder",
			Title:       "Habit Builder",
			Description: fmt.Sprintf("Tracked %d days this month", len(w.days)),
			AchievedAt:  now,
		})
	}
	return out
}

// calculateDashboard assembles the hero view from the freshly written
// sections plus the latest assessment. Every input is optional; the
// dashboard degrades to neutral values instead of failing.
func (s *metricsService) calculateDashboard(ctx context.Context, userID string) (*domainCache.DashboardData, error) {
	daily, err := s.cache.GetDailyMetrics(ctx, userID)
	if err != nil {
		logrus.WithError(err).Warnf("[ENGINE] Daily section unavailable for dashboard of user %s", userID)
	}
	weekly, err := s.cache.GetWeeklyMetrics(ctx, userID)
	if err != nil {
		logrus.WithError(err).Warnf("[ENGINE] Weekly section unavailable for dashboard of user %s", userID)
	}
	monthly, err := s.cache.GetMonthlyMetrics(ctx, userID)
	if err != nil {
		logrus.WithError(err).Warnf("[ENGINE] Monthly section unavailable for dashboard of user %s", userID)
	}
	assessment, err := s.raw.GetLatestAssessment(ctx, userID)
	if err != nil {
		logrus.WithError(err).Warnf("[ENGINE] Assessment lookup failed for user %s", userID)
		assessment = nil
	}

	dashboard := &domainCache.DashboardData{
		TodayScore:    neutralScore,
		WeeklyAverage: neutralScore,
		QuickStats: map[string]float64{
			"steps":         0,
			"activeMinutes": 0,
			"sleepHours":    0,
			"avgHrv":        0,
		},
	}
	if daily != nil {
		dashboard.TodayScore = daily.Scores.Overall
		dashboard.QuickStats["steps"] = float64(daily.Steps)
		dashboard.QuickStats["activeMinutes"] = float64(daily.ActiveMinutes)
		dashboard.QuickStats["sleepHours"] = daily.SleepHours
		dashboard.QuickStats["avgHrv"] = daily.AvgHRV
		dashboard.NextActions = nextActions(daily.Scores)
	}
	if weekly != nil {
		dashboard.WeeklyAverage = weekly.Averages.Overall
	}
	if monthly != nil {
		achievements := monthly.RecentAchievements
		if len(achievements) > domainCache.MaxRecentAchievements {
			achievements = achievements[:domainCache.MaxRecentAchievements]
		}
		dashboard.RecentAchievements = achievements
		for i, ci := range monthly.CorrelationInsights {
			if i == 3 {
				break
			}
			dashboard.CorrelationHighlights = append(dashboard.CorrelationHighlights, ci.Summary)
		}
	}
	if assessment != nil {
		dashboard.BiologicalAge = assessment.BiologicalAge
	}
	dashboard.LongevityScore = longevityScore(dashboard.TodayScore, dashboard.WeeklyAverage, assessment)
	return dashboard, nil
}

// longevityScore blends today's score with the weekly average and nudges it
// by the assessed age delta: a biological age below chronological raises the
// score, above lowers it. Bounded to 0-100.
func longevityScore(today, weeklyAvg int, assessment *domainMetrics.Assessment) int {
	score := math.Round(0.6*float64(weeklyAvg) + 0.4*float64(today))
	if assessment != nil {
		delta := assessment.ChronologicalAge - assessment.BiologicalAge
		if delta > 10 {
			delta = 10
		}
		if delta < -10 {
			delta = -10
		}
		score += math.Round(delta)
	}
	return clampScore(int(score))
}

// nextActions suggests a concrete step for the weakest component.
func nextActions(scores domainCache.ScoreSet) []string {
	suggestions := map[string]string{
		"sleep":     "Aim for 7-9 hours of sleep tonight",
		"activity":  "Take a 30 minute walk to close the activity gap",
		"nutrition": "Keep today's intake in the 1800-2400 kcal band",
		"stress":    "Schedule a short wind-down break to recover HRV",
	}
	actions := []string{suggestions[weakestComponent(scores)]}
	if scores.Overall >= 85 {
		actions = append(actions, "Great momentum, keep the streak going")
	}
	return actions
}
