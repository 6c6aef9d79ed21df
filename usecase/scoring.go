package usecase

import (
	"fmt"
	"math"
	"sort"
	"time"

	domainCache "github.com/vitalsync/vitalsync/domains/cache"
	domainMetrics "github.com/vitalsync/vitalsync/domains/metrics"
)

// neutralScore is the documented default every scoring function falls back
// to when its inputs are missing: a calculation over no data must yield a
// usable neutral value, never an error.
const neutralScore = 75

const dateLayout = "2006-01-02"

// dayAggregate collapses all readings of one calendar day.
type dayAggregate struct {
	date          string
	steps         int
	activeMinutes int
	calories      int
	sleepHours    float64
	avgHRV        float64
	avgRestingHR  float64
	samples       int
}

// aggregateDay sums counters and averages the sampled vitals, skipping
// zero-valued samples so a step-only reading does not drag sleep to zero.
func aggregateDay(date string, readings []domainMetrics.WearableReading) dayAggregate {
	agg := dayAggregate{date: date, samples: len(readings)}
	var sleepSum, hrvSum, hrSum float64
	var sleepN, hrvN, hrN int
	for _, r := range readings {
		agg.steps += r.Steps
		agg.activeMinutes += r.ActiveMinutes
		agg.calories += r.CaloriesConsumed
		if r.SleepHours > 0 {
			sleepSum += r.SleepHours
			sleepN++
		}
		if r.HRV > 0 {
			hrvSum += r.HRV
			hrvN++
		}
		if r.RestingHeartRate > 0 {
			hrSum += float64(r.RestingHeartRate)
			hrN++
		}
	}
	if sleepN > 0 {
		agg.sleepHours = sleepSum / float64(sleepN)
	}
	if hrvN > 0 {
		agg.avgHRV = hrvSum / float64(hrvN)
	}
	if hrN > 0 {
		agg.avgRestingHR = hrSum / float64(hrN)
	}
	return agg
}

// groupByDay buckets readings into per-day aggregates, sorted by date.
func groupByDay(readings []domainMetrics.WearableReading) []dayAggregate {
	buckets := make(map[string][]domainMetrics.WearableReading)
	for _, r := range readings {
		d := r.RecordedAt.UTC().Format(dateLayout)
		buckets[d] = append(buckets[d], r)
	}
	days := make([]dayAggregate, 0, len(buckets))
	for d, rs := range buckets {
		days = append(days, aggregateDay(d, rs))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date < days[j].date })
	return days
}

// sleepScore rewards the 7-9 hour band and penalizes outside 6-10.
func sleepScore(hours float64) int {
	switch {
	case hours <= 0:
		return neutralScore
	case hours >= 7 && hours <= 9:
		return 95
	case hours >= 6 && hours <= 10:
		return 80
	case hours >= 5 && hours <= 11:
		return 60
	default:
		return 45
	}
}

// activityScore blends a step component and an active-minute component.
func activityScore(steps, activeMinutes int) int {
	if steps == 0 && activeMinutes == 0 {
		return neutralScore
	}
	var stepPart int
	switch {
	case steps >= 10000:
		stepPart = 100
	case steps >= 7500:
		stepPart = 85
	case steps >= 5000:
		stepPart = 70
	case steps >= 2500:
		stepPart = 55
	default:
		stepPart = 40
	}
	var minutePart int
	switch {
	case activeMinutes >= 60:
		minutePart = 100
	case activeMinutes >= 30:
		minutePart = 85
	case activeMinutes >= 15:
		minutePart = 65
	default:
		minutePart = 45
	}
	return (stepPart + minutePart) / 2
}

// nutritionScore rewards a moderate calorie intake band.
func nutritionScore(calories int) int {
	switch {
	case calories <= 0:
		return neutralScore
	case calories >= 1800 && calories <= 2400:
		return 90
	case calories >= 1500 && calories <= 2800:
		return 75
	default:
		return 55
	}
}

// stressScore derives from heart-rate-variability bands: higher HRV means
// better autonomic recovery and lower stress.
func stressScore(avgHRV float64) int {
	switch {
	case avgHRV <= 0:
		return neutralScore
	case avgHRV >= 60:
		return 95
	case avgHRV >= 40:
		return 85
	case avgHRV >= 25:
		return 65
	default:
		return 45
	}
}

// recoveryIndex is a coarse readiness proxy from HRV and resting heart rate.
func recoveryIndex(avgHRV, avgRestingHR float64) int {
	if avgHRV <= 0 && avgRestingHR <= 0 {
		return neutralScore
	}
	idx := 50.0
	if avgHRV > 0 {
		idx += avgHRV - 40
	}
	if avgRestingHR > 0 {
		idx += 60 - avgRestingHR
	}
	return clampScore(int(math.Round(idx)))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// scoreDay turns one day's aggregate into the four component scores plus
// the rounded overall mean.
func scoreDay(agg dayAggregate) domainCache.ScoreSet {
	s := domainCache.ScoreSet{
		Sleep:     sleepScore(agg.sleepHours),
		Activity:  activityScore(agg.steps, agg.activeMinutes),
		Nutrition: nutritionScore(agg.calories),
		Stress:    stressScore(agg.avgHRV),
	}
	s.Overall = int(math.Round(float64(s.Sleep+s.Activity+s.Nutrition+s.Stress) / 4))
	return s
}

// averageScores means a list of per-day score sets component-wise.
func averageScores(sets []domainCache.ScoreSet) domainCache.ScoreSet {
	if len(sets) == 0 {
		return domainCache.ScoreSet{
			Sleep: neutralScore, Activity: neutralScore,
			Nutrition: neutralScore, Stress: neutralScore, Overall: neutralScore,
		}
	}
	var sleep, activity, nutrition, stress float64
	for _, s := range sets {
		sleep += float64(s.Sleep)
		activity += float64(s.Activity)
		nutrition += float64(s.Nutrition)
		stress += float64(s.Stress)
	}
	n := float64(len(sets))
	out := domainCache.ScoreSet{
		Sleep:     int(math.Round(sleep / n)),
		Activity:  int(math.Round(activity / n)),
		Nutrition: int(math.Round(nutrition / n)),
		Stress:    int(math.Round(stress / n)),
	}
	out.Overall = int(math.Round(float64(out.Sleep+out.Activity+out.Nutrition+out.Stress) / 4))
	return out
}

// classifyTrend compares the mean of the later half of a series against the
// earlier half. Short series classify as stable.
func classifyTrend(series []float64) domainCache.TrendDirection {
	if len(series) < 4 {
		return domainCache.TrendStable
	}
	mid := len(series) / 2
	first := mean(series[:mid])
	second := mean(series[mid:])
	switch {
	case second-first >= 2:
		return domainCache.TrendImproving
	case first-second >= 2:
		return domainCache.TrendDeclining
	default:
		return domainCache.TrendStable
	}
}

func mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// pearson computes the correlation coefficient of two equal-length series.
// Returns 0 when either series has no variance.
func pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

func correlationStrength(r float64) string {
	abs := math.Abs(r)
	switch {
	case abs >= 0.7:
		return "strong"
	case abs >= 0.5:
		return "moderate"
	default:
		return "weak"
	}
}

// goalPercent caps nothing: exceeding a target reads as >100%.
func goalPercent(actual, target float64) int {
	if target <= 0 {
		return 0
	}
	return int(math.Round(100 * actual / target))
}

func progressFor(metric string, actual, target float64) domainCache.GoalProgress {
	return domainCache.GoalProgress{
		Metric:  metric,
		Target:  target,
		Actual:  math.Round(actual*100) / 100,
		Percent: goalPercent(actual, target),
	}
}

// componentSeries extracts one per-day component score as a float series.
func componentSeries(days []dayAggregate, pick func(domainCache.ScoreSet) int) []float64 {
	series := make([]float64, len(days))
	for i, d := range days {
		series[i] = float64(pick(scoreDay(d)))
	}
	return series
}

// weakestComponent names the lowest-scoring pillar of a score set.
func weakestComponent(s domainCache.ScoreSet) string {
	name, low := "sleep", s.Sleep
	if s.Activity < low {
		name, low = "activity", s.Activity
	}
	if s.Nutrition < low {
		name, low = "nutrition", s.Nutrition
	}
	if s.Stress < low {
		name = "stress"
	}
	return name
}

func strongestComponent(s domainCache.ScoreSet) string {
	name, high := "sleep", s.Sleep
	if s.Activity > high {
		name, high = "activity", s.Activity
	}
	if s.Nutrition > high {
		name, high = "nutrition", s.Nutrition
	}
	if s.Stress > high {
		name = "stress"
	}
	return name
}

func windowInsights(avg domainCache.ScoreSet, trends map[string]domainCache.TrendDirection, daysTracked int) []string {
	if daysTracked == 0 {
		return []string{"Not enough data this window - keep your wearable synced"}
	}
	insights := []string{
		fmt.Sprintf("Your strongest pillar is %s (%d)", strongestComponent(avg), avg.Overall),
		fmt.Sprintf("Focus area: %s", weakestComponent(avg)),
	}
	for component, trend := range trends {
		if trend == domainCache.TrendImproving {
			insights = append(insights, fmt.Sprintf("Your %s score is improving", component))
		}
	}
	sort.Strings(insights[2:])
	return insights
}

// startOfDayUTC truncates to the UTC calendar day.
func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
