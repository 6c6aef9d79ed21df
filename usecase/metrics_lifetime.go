package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	domainCache "github.com/vitalsync/vitalsync/domains/cache"
	domainMetrics "github.com/vitalsync/vitalsync/domains/metrics"
)

// Streak qualification thresholds. A day counts toward a streak category
// when it clears the bar; streaks break on the first non-qualifying or
// missing calendar day.
const (
	streakStepsMin      = 7500
	streakSleepMin      = 7.0
	streakActiveMinsMin = 30
)

// calculateLifetime produces the cumulative section. Full mode rescans the
// capped history; incremental mode folds only the days recorded after the
// cached section's last tracked date. Incremental cannot revise streaks or
// milestones backwards, which is the accepted trade for skipping the scan.
func (s *metricsService) calculateLifetime(ctx context.Context, userID string) (*domainCache.LifetimeData, error) {
	if s.lifetimeMode == domainMetrics.LifetimeModeIncremental {
		prev, err := s.cache.GetLifetimeMetrics(ctx, userID)
		if err != nil {
			logrus.WithError(err).Warnf("[ENGINE] Lifetime read failed for user %s, falling back to full scan", userID)
		} else if prev != nil && prev.LastTrackedDate != "" {
			return s.lifetimeIncremental(ctx, userID, prev)
		}
	}
	return s.lifetimeFull(ctx, userID)
}

func (s *metricsService) lifetimeFull(ctx context.Context, userID string) (*domainCache.LifetimeData, error) {
	records, err := s.raw.GetAllRecords(ctx, userID, maxLifetimeRecords)
	if err != nil {
		return nil, err
	}
	days := groupByDay(records)

	lifetime := &domainCache.LifetimeData{
		TotalDaysTracked: len(days),
		LongestStreaks:   longestStreaks(days),
		PersonalBests:    personalBests(days),
		Milestones:       lifetimeMilestones(days),
	}
	for _, d := range days {
		lifetime.TotalSteps += int64(d.steps)
		lifetime.TotalActiveMinutes += int64(d.activeMinutes)
	}
	if len(days) > 0 {
		lifetime.LastTrackedDate = days[len(days)-1].date
	}

	history, err := s.raw.GetAssessmentHistory(ctx, userID, 0)
	if err != nil {
		logrus.WithError(err).Warnf("[ENGINE] Assessment history failed for user %s, keeping empty bio-age series", userID)
	} else {
		lifetime.BioAgeHistory = bioAgeSeries(history)
	}

	trimMilestones(lifetime)
	return lifetime, nil
}

// lifetimeIncremental folds days after prev.LastTrackedDate into the cached
// totals. Streaks only extend when the new days connect to the old tail;
// a gap keeps the previous longest runs.
func (s *metricsService) lifetimeIncremental(ctx context.Context, userID string, prev *domainCache.LifetimeData) (*domainCache.LifetimeData, error) {
	lastDay, err := time.Parse(dateLayout, prev.LastTrackedDate)
	if err != nil {
		logrus.Warnf("[ENGINE] Unparseable lastTrackedDate %q for user %s, falling back to full scan", prev.LastTrackedDate, userID)
		return s.lifetimeFull(ctx, userID)
	}
	from := lastDay.Add(24 * time.Hour)
	records, err := s.raw.GetRecordsInRange(ctx, userID, from, s.nowFn().UTC().Add(time.Hour))
	if err != nil {
		return nil, err
	}
	newDays := groupByDay(records)

	next := *prev
	next.TotalDaysTracked += len(newDays)
	for _, d := range newDays {
		next.TotalSteps += int64(d.steps)
		next.TotalActiveMinutes += int64(d.activeMinutes)
	}
	if len(newDays) > 0 {
		next.LastTrackedDate = newDays[len(newDays)-1].date
	}

	next.LongestStreaks = mergeStreaks(prev.LongestStreaks, newDays)
	next.PersonalBests = mergeBests(prev.PersonalBests, personalBests(newDays))
	next.Milestones = appendNewMilestones(prev.Milestones, newDays, prevTotals(prev))

	latest, err := s.raw.GetLatestAssessment(ctx, userID)
	if err == nil && latest != nil {
		point := domainCache.BioAgePoint{
			Date:          latest.TakenAt.UTC().Format(dateLayout),
			BiologicalAge: latest.BiologicalAge,
		}
		n := len(next.BioAgeHistory)
		if n == 0 || next.BioAgeHistory[n-1].Date < point.Date {
			next.BioAgeHistory = append(next.BioAgeHistory, point)
		}
	}

	trimMilestones(&next)
	return &next, nil
}

func trimMilestones(l *domainCache.LifetimeData) {
	if len(l.Milestones) > domainCache.MaxMilestones {
		l.Milestones = l.Milestones[len(l.Milestones)-domainCache.MaxMilestones:]
	}
}

// streakQualifiers maps each streak category to its day predicate.
var streakQualifiers = map[string]func(dayAggregate) bool{
	"activity": func(d dayAggregate) bool { return d.steps >= streakStepsMin },
	"sleep":    func(d dayAggregate) bool { return d.sleepHours >= streakSleepMin },
	"movement": func(d dayAggregate) bool { return d.activeMinutes >= streakActiveMinsMin },
}

// longestStreaks finds the longest run of consecutive qualifying calendar
// days per category. days must be sorted ascending.
func longestStreaks(days []dayAggregate) map[string]int {
	out := make(map[string]int, len(streakQualifiers))
	for category, qualifies := range streakQualifiers {
		longest, current := 0, 0
		var prevDate string
		for _, d := range days {
			if !qualifies(d) {
				current = 0
				prevDate = ""
				continue
			}
			if prevDate != "" && !consecutiveDays(prevDate, d.date) {
				current = 0
			}
			current++
			prevDate = d.date
			if current > longest {
				longest = current
			}
		}
		out[category] = longest
	}
	return out
}

// mergeStreaks keeps the previous longest runs; runs inside the new window
// can only raise them. Without the old tail state a run cannot bridge the
// window boundary, so a fresh run starting right at the boundary undercounts
// by at most the old tail length. A full pass corrects it.
func mergeStreaks(prev map[string]int, newDays []dayAggregate) map[string]int {
	merged := longestStreaks(newDays)
	for category, best := range prev {
		if best > merged[category] {
			merged[category] = best
		}
	}
	return merged
}

func consecutiveDays(a, b string) bool {
	ta, errA := time.Parse(dateLayout, a)
	tb, errB := time.Parse(dateLayout, b)
	if errA != nil || errB != nil {
		return false
	}
	return tb.Sub(ta) == 24*time.Hour
}

// personalBests extracts the single best day per tracked metric.
func personalBests(days []dayAggregate) []domainCache.PersonalBest {
	type candidate struct {
		value float64
		date  string
	}
	best := map[string]candidate{}
	consider := func(metric string, value float64, date string) {
		if value <= 0 {
			return
		}
		if cur, ok := best[metric]; !ok || value > cur.value {
			best[metric] = candidate{value: value, date: date}
		}
	}
	for _, d := range days {
		consider("steps", float64(d.steps), d.date)
		consider("activeMinutes", float64(d.activeMinutes), d.date)
		consider("sleepHours", math.Round(d.sleepHours*100)/100, d.date)
		consider("hrv", math.Round(d.avgHRV*10)/10, d.date)
	}
	metrics := make([]string, 0, len(best))
	for m := range best {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	out := make([]domainCache.PersonalBest, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, domainCache.PersonalBest{
			Metric:     m,
			Value:      best[m].value,
			AchievedOn: best[m].date,
		})
	}
	return out
}

// mergeBests keeps the higher value per metric across old and new bests.
func mergeBests(prev, fresh []domainCache.PersonalBest) []domainCache.PersonalBest {
	byMetric := map[string]domainCache.PersonalBest{}
	for _, b := range prev {
		byMetric[b.Metric] = b
	}
	for _, b := range fresh {
		if cur, ok := byMetric[b.Metric]; !ok || b.Value > cur.Value {
			byMetric[b.Metric] = b
		}
	}
	metrics := make([]string, 0, len(byMetric))
	for m := range byMetric {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	out := make([]domainCache.PersonalBest, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, byMetric[m])
	}
	return out
}

type milestoneRule struct {
	id, title string
	threshold int64
	metric    string // "steps" or "days"
}

var milestoneRules = []milestoneRule{
	{id: "days-7", title: "First Week Tracked", threshold: 7, metric: "days"},
	{id: "days-30", title: "30 Days Tracked", threshold: 30, metric: "days"},
	{id: "days-100", title: "100 Days Tracked", threshold: 100, metric: "days"},
	{id: "days-365", title: "One Year Tracked", threshold: 365, metric: "days"},
	{id: "steps-100k", title: "100K Total Steps", threshold: 100_000, metric: "steps"},
	{id: "steps-1m", title: "1M Total Steps", threshold: 1_000_000, metric: "steps"},
	{id: "steps-10m", title: "10M Total Steps", threshold: 10_000_000, metric: "steps"},
}

// lifetimeMilestones scans the day series once, stamping each threshold with
// the calendar day that crossed it.
func lifetimeMilestones(days []dayAggregate) []domainCache.Milestone {
	var out []domainCache.Milestone
	var cumSteps int64
	var cumDays int64
	crossed := map[string]bool{}
	for _, d := range days {
		cumSteps += int64(d.steps)
		cumDays++
		out = append(out, crossingsAt(d.date, cumSteps, cumDays, crossed)...)
	}
	return out
}

func crossingsAt(date string, cumSteps, cumDays int64, crossed map[string]bool) []domainCache.Milestone {
	var out []domainCache.Milestone
	achievedAt, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil
	}
	for _, rule := range milestoneRules {
		if crossed[rule.id] {
			continue
		}
		var cum int64
		switch rule.metric {
		case "steps":
			cum = cumSteps
		case "days":
			cum = cumDays
		}
		if cum >= rule.threshold {
			crossed[rule.id] = true
			out = append(out, domainCache.Milestone{
				ID:         rule.id,
				Title:      rule.title,
				AchievedAt: achievedAt.UTC(),
			})
		}
	}
	return out
}

type runningTotals struct {
	steps int64
	days  int64
}

func prevTotals(prev *domainCache.LifetimeData) runningTotals {
	return runningTotals{steps: prev.TotalSteps, days: int64(prev.TotalDaysTracked)}
}

// appendNewMilestones continues the cumulative scan from the previous totals
// over the new days only, skipping milestones already earned.
func appendNewMilestones(prev []domainCache.Milestone, newDays []dayAggregate, base runningTotals) []domainCache.Milestone {
	crossed := make(map[string]bool, len(prev))
	for _, m := range prev {
		crossed[m.ID] = true
	}
	out := append([]domainCache.Milestone{}, prev...)
	cumSteps, cumDays := base.steps, base.days
	for _, d := range newDays {
		cumSteps += int64(d.steps)
		cumDays++
		out = append(out, crossingsAt(d.date, cumSteps, cumDays, crossed)...)
	}
	return out
}

// bioAgeSeries converts the assessment history into dated points, keeping
// the last assessment of each day.
func bioAgeSeries(history []domainMetrics.Assessment) []domainCache.BioAgePoint {
	var out []domainCache.BioAgePoint
	for _, a := range history {
		point := domainCache.BioAgePoint{
			Date:          a.TakenAt.UTC().Format(dateLayout),
			BiologicalAge: a.BiologicalAge,
		}
		if n := len(out); n > 0 && out[n-1].Date == point.Date {
			out[n-1] = point
			continue
		}
		out = append(out, point)
	}
	return out
}
