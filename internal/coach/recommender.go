package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mveljkovic/traintracker/internal/analytics"
	"github.com/mveljkovic/traintracker/internal/telemetry/metrics"
	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"
	"github.com/mveljkovic/traintracker/internal/workouts"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	dateLayout = "2006-01-02"

	cacheExpireSeconds = 60
	megabyte           = 1024 * 1024

	// fewer entries than this inside the window sets the insufficientData hint
	minWindowEntries = 6
)

type workoutsSource interface {
	List(ctx context.Context) ([]workouts.WorkoutEntry, error)
	DataDir() string
}

// Recommender produces rule-based training recommendations over a
// workout history window. Results are cached for a short TTL keyed by
// (days, data dir), the cache is best-effort and safe to disable.
type Recommender struct {
	source         workoutsSource
	cache          *freecache.Cache
	metricsManager *metrics.Manager

	// injectable clock for the empty-history window fallback
	nowFunc func() time.Time
}

func NewRecommender(source workoutsSource, metricsManager *metrics.Manager) *Recommender {
	return &Recommender{
		source:         source,
		cache:          freecache.NewCache(1 * megabyte),
		metricsManager: metricsManager,
		nowFunc:        time.Now,
	}
}

func (rec *Recommender) Recommend(ctx context.Context, days int) (_ *Result, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "coach.recommend")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("days", days))

	cacheKey := []byte(fmt.Sprintf("%d|%s", days, rec.source.DataDir()))
	if rec.cache != nil {
		if cachedBytes, getErr := rec.cache.Get(cacheKey); getErr == nil {
			var cached Result
			unmarshalErr := json.Unmarshal(cachedBytes, &cached)
			if unmarshalErr == nil {
				log.Tracef("found coach recommendations for %d days in cache", days)
				rec.metricsManager.CounterCoachCacheHits.Inc()
				return &cached, nil
			}
			log.Errorf("failed to unmarshal cached coach recommendations: %s", unmarshalErr)
		}
		rec.metricsManager.CounterCoachCacheMisses.Inc()
	}

	entries, err := rec.source.List(ctx)
	if err != nil {
		return nil, err
	}

	windowStart, windowEnd := rec.windowBounds(entries, days)
	windowEntries := make([]workouts.WorkoutEntry, 0)
	for _, w := range entries {
		date, err := time.Parse(dateLayout, w.Date)
		if err != nil {
			continue
		}
		if !date.Before(windowStart) && !date.After(windowEnd) {
			windowEntries = append(windowEntries, w)
		}
	}

	weeklyVolume, weeklyFrequency := weeklyMetrics(windowEntries)
	prTrend := prTrend(windowEntries)

	// recommendations are always computed, insufficientData is a UI hint only
	result := &Result{
		InsufficientData: len(windowEntries) < minWindowEntries,
		Metrics: Metrics{
			WeeklyVolume:    weeklyVolume,
			WeeklyFrequency: weeklyFrequency,
			PRTrend:         prTrend,
		},
		Recommendations: analyzeRules(weeklyVolume, weeklyFrequency, prTrend),
	}

	if rec.cache != nil {
		resultBytes, err := json.Marshal(result)
		if err != nil {
			log.Errorf("failed to marshal coach recommendations for cache: %s", err)
		} else if err := rec.cache.Set(cacheKey, resultBytes, cacheExpireSeconds); err != nil {
			log.Errorf("failed to write coach recommendations cache: %s", err)
		}
	}

	return result, nil
}

// windowBounds anchors the analysis window to the latest workout date,
// so historical or seeded data still produces a meaningful window. With
// no dated workouts at all, the window ends at the current time.
func (rec *Recommender) windowBounds(entries []workouts.WorkoutEntry, days int) (time.Time, time.Time) {
	var latest time.Time
	for _, w := range entries {
		date, err := time.Parse(dateLayout, w.Date)
		if err != nil {
			continue
		}
		if date.After(latest) {
			latest = date
		}
	}

	end := latest
	if end.IsZero() {
		end = rec.nowFunc()
	}
	start := end.AddDate(0, 0, -(days - 1))
	return start, end
}

// weeklyKey is the ISO year-week representation of the date, e.g. "2025-W14".
func weeklyKey(date time.Time) string {
	isoYear, isoWeek := date.ISOWeek()
	return fmt.Sprintf("%d-W%02d", isoYear, isoWeek)
}

// weeklyMetrics groups entries by ISO week, computing total volume and
// the number of distinct training dates per week. Two workouts on the
// same date count as one training day.
func weeklyMetrics(entries []workouts.WorkoutEntry) ([]WeekVolume, []WeekFrequency) {
	volumeByWeek := make(map[string]float64)
	daysByWeek := make(map[string]map[string]struct{})
	for _, w := range entries {
		date, err := time.Parse(dateLayout, w.Date)
		if err != nil {
			continue
		}
		week := weeklyKey(date)
		if daysByWeek[week] == nil {
			daysByWeek[week] = make(map[string]struct{})
		}
		daysByWeek[week][w.Date] = struct{}{}
		volumeByWeek[week] += w.Volume()
	}

	weeks := make([]string, 0, len(volumeByWeek))
	for week := range volumeByWeek {
		weeks = append(weeks, week)
	}
	sort.Strings(weeks)

	weeklyVolume := make([]WeekVolume, 0, len(weeks))
	weeklyFrequency := make([]WeekFrequency, 0, len(weeks))
	for _, week := range weeks {
		weeklyVolume = append(weeklyVolume, WeekVolume{
			Week:   week,
			Volume: analytics.Round2(volumeByWeek[week]),
		})
		weeklyFrequency = append(weeklyFrequency, WeekFrequency{
			Week: week,
			Days: len(daysByWeek[week]),
		})
	}
	return weeklyVolume, weeklyFrequency
}

// prTrend computes, per exercise, the best estimated 1RM per date, then
// keeps exercises with at least two dated estimates and records the
// first-to-last percent change. Sorted by absolute change ascending,
// flattest first.
func prTrend(entries []workouts.WorkoutEntry) []TrendEntry {
	perExercise := make(map[string]map[string]float64)
	for _, w := range entries {
		if w.Exercise == "" || w.Date == "" {
			continue
		}
		var bestForDate float64
		for _, s := range w.Sets {
			if est := analytics.EpleyOneRM(s.WeightKg, s.Reps); est > bestForDate {
				bestForDate = est
			}
		}
		if bestForDate <= 0 {
			continue
		}
		if perExercise[w.Exercise] == nil {
			perExercise[w.Exercise] = make(map[string]float64)
		}
		if bestForDate > perExercise[w.Exercise][w.Date] {
			perExercise[w.Exercise][w.Date] = bestForDate
		}
	}

	trend := make([]TrendEntry, 0)
	for exercise, byDate := range perExercise {
		if len(byDate) < 2 {
			continue
		}
		dates := make([]string, 0, len(byDate))
		for date := range byDate {
			dates = append(dates, date)
		}
		sort.Strings(dates)

		first := byDate[dates[0]]
		last := byDate[dates[len(dates)-1]]
		changePct := 0.0
		if first != 0 {
			changePct = (last - first) / first * 100
		}
		trend = append(trend, TrendEntry{
			Exercise:  exercise,
			First:     analytics.Round2(first),
			Last:      analytics.Round2(last),
			ChangePct: analytics.Round2(changePct),
		})
	}

	sort.SliceStable(trend, func(i, j int) bool {
		return abs(trend[i].ChangePct) < abs(trend[j].ChangePct)
	})
	return trend
}

func analyzeRules(
	weeklyVolume []WeekVolume,
	weeklyFrequency []WeekFrequency,
	prTrend []TrendEntry,
) []Recommendation {
	recs := make([]Recommendation, 0)

	// low frequency: average days/week < 2
	if len(weeklyFrequency) > 0 {
		var totalDays int
		for _, w := range weeklyFrequency {
			totalDays += w.Days
		}
		avgDays := float64(totalDays) / float64(len(weeklyFrequency))
		if avgDays < 2.0 {
			recs = append(recs, Recommendation{
				Title:    "Increase Training Frequency",
				Reason:   fmt.Sprintf("Average weekly sessions is %.1f (< 2).", avgDays),
				Action:   "Add 1 additional training day per week.",
				Priority: PriorityHigh,
			})
		}
	}

	// stagnant volume: at least 3 weeks, last up to 4 weeks within a 15% band
	if len(weeklyVolume) >= 3 {
		recent := weeklyVolume
		if len(recent) > 4 {
			recent = recent[len(recent)-4:]
		}
		minVol, maxVol, sum := recent[0].Volume, recent[0].Volume, 0.0
		for _, w := range recent {
			if w.Volume < minVol {
				minVol = w.Volume
			}
			if w.Volume > maxVol {
				maxVol = w.Volume
			}
			sum += w.Volume
		}
		avg := sum / float64(len(recent))
		if avg > 0 && maxVol-minVol <= 0.15*avg {
			recs = append(recs, Recommendation{
				Title:    "Apply Progressive Overload",
				Reason:   "Weekly volume has been relatively flat for several weeks.",
				Action:   "Increase load or total reps by 5-10% next week.",
				Priority: PriorityMedium,
			})
		}
	}

	// spike caution: latest week at least 150% of the previous one
	if len(weeklyVolume) >= 2 {
		last := weeklyVolume[len(weeklyVolume)-1].Volume
		prev := weeklyVolume[len(weeklyVolume)-2].Volume
		if prev > 0 && last >= 1.5*prev {
			recs = append(recs, Recommendation{
				Title:    "Manage Recovery After Volume Spike",
				Reason:   fmt.Sprintf("Last week's volume jumped by %.0f%%.", (last/prev-1)*100),
				Action:   "Add an extra rest day and monitor fatigue; avoid further increases this week.",
				Priority: PriorityMedium,
			})
		}
	}

	// flat PR trend: first exercise within +-2% change, at most one emitted
	for _, t := range prTrend {
		if abs(t.ChangePct) <= 2.0 {
			recs = append(recs, Recommendation{
				Title:    "Plateau Detected in PR",
				Reason:   fmt.Sprintf("%s 1RM change is %v%% (flat).", t.Exercise, t.ChangePct),
				Action:   "Consider a deload week or change rep range (e.g., 8-12 to 5-8).",
				Priority: PriorityLow,
			})
			break
		}
	}

	return recs
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
