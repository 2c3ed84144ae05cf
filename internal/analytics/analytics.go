package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"
	"github.com/mveljkovic/traintracker/internal/workouts"
)

const dateLayout = "2006-01-02"

// EpleyOneRM estimates the one-rep max using the Epley formula,
// weight × (1 + reps/30). Defined as 0 for non-positive weight or reps.
func EpleyOneRM(weightKg float64, reps int) float64 {
	if weightKg <= 0 || reps <= 0 {
		return 0
	}
	return weightKg * (1 + float64(reps)/30)
}

type PRPoint struct {
	Date  string  `json:"date"`
	OneRM float64 `json:"one_rm"`
}

type WeekVolume struct {
	WeekStart string  `json:"week_start"`
	Volume    float64 `json:"volume"`
}

type MonthVolume struct {
	Month  string  `json:"month"`
	Volume float64 `json:"volume"`
}

type CategoryVolume struct {
	Category string  `json:"category"`
	Volume   float64 `json:"volume"`
}

type ExerciseDetailPoint struct {
	Date      string  `json:"date"`
	Volume    float64 `json:"volume"`
	TopWeight float64 `json:"top_weight"`
}

type workoutsSource interface {
	List(ctx context.Context) ([]workouts.WorkoutEntry, error)
}

// Analyzer computes aggregate statistics over the full workout history.
type Analyzer struct {
	source workoutsSource
}

func NewAnalyzer(source workoutsSource) *Analyzer {
	return &Analyzer{
		source: source,
	}
}

// PRTrend returns the best estimated 1RM per date for the exercise,
// within [start, end], sorted ascending by date.
func (a *Analyzer) PRTrend(ctx context.Context, exercise, start, end string) (_ []PRPoint, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analytics.prTrend")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entries, err := a.source.List(ctx)
	if err != nil {
		return nil, err
	}

	inRange, err := rangeFilter(start, end)
	if err != nil {
		return nil, err
	}

	bestByDate := make(map[string]float64)
	for _, w := range entries {
		if w.Exercise != exercise || w.Date == "" || !inRange(w.Date) {
			continue
		}
		var best float64
		for _, s := range w.Sets {
			if est := EpleyOneRM(s.WeightKg, s.Reps); est > best {
				best = est
			}
		}
		if best > 0 && best > bestByDate[w.Date] {
			bestByDate[w.Date] = best
		}
	}

	trend := make([]PRPoint, 0, len(bestByDate))
	for date, oneRM := range bestByDate {
		trend = append(trend, PRPoint{Date: date, OneRM: oneRM})
	}
	sort.Slice(trend, func(i, j int) bool {
		// ISO dates sort lexicographically
		return trend[i].Date < trend[j].Date
	})
	return trend, nil
}

// WeeklyVolume sums training volume per calendar week,
// keyed by the Monday of the week.
func (a *Analyzer) WeeklyVolume(ctx context.Context) (_ []WeekVolume, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analytics.weeklyVolume")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entries, err := a.source.List(ctx)
	if err != nil {
		return nil, err
	}

	volumeByWeek := make(map[string]float64)
	for _, w := range entries {
		date, err := time.Parse(dateLayout, w.Date)
		if err != nil {
			continue
		}
		weekStart := mondayOf(date).Format(dateLayout)
		volumeByWeek[weekStart] += w.Volume()
	}

	weekly := make([]WeekVolume, 0, len(volumeByWeek))
	for weekStart, volume := range volumeByWeek {
		weekly = append(weekly, WeekVolume{WeekStart: weekStart, Volume: volume})
	}
	sort.Slice(weekly, func(i, j int) bool {
		return weekly[i].WeekStart < weekly[j].WeekStart
	})
	return weekly, nil
}

// MonthlyVolume sums training volume per calendar month ("YYYY-MM").
func (a *Analyzer) MonthlyVolume(ctx context.Context) (_ []MonthVolume, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analytics.monthlyVolume")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entries, err := a.source.List(ctx)
	if err != nil {
		return nil, err
	}

	volumeByMonth := make(map[string]float64)
	for _, w := range entries {
		date, err := time.Parse(dateLayout, w.Date)
		if err != nil {
			continue
		}
		volumeByMonth[date.Format("2006-01")] += w.Volume()
	}

	monthly := make([]MonthVolume, 0, len(volumeByMonth))
	for month, volume := range volumeByMonth {
		monthly = append(monthly, MonthVolume{Month: month, Volume: volume})
	}
	sort.Slice(monthly, func(i, j int) bool {
		return monthly[i].Month < monthly[j].Month
	})
	return monthly, nil
}

// MuscleVolumeByCategory aggregates total volume per workout category within [start, end].
func (a *Analyzer) MuscleVolumeByCategory(ctx context.Context, start, end string) (_ []CategoryVolume, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analytics.muscleVolume")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entries, err := a.source.List(ctx)
	if err != nil {
		return nil, err
	}

	inRange, err := rangeFilter(start, end)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]float64)
	for _, w := range entries {
		if _, err := time.Parse(dateLayout, w.Date); err != nil {
			continue
		}
		if !inRange(w.Date) {
			continue
		}
		category := w.Category
		if category == "" {
			category = "Unknown"
		}
		totals[category] += w.Volume()
	}

	result := make([]CategoryVolume, 0, len(totals))
	for category, volume := range totals {
		result = append(result, CategoryVolume{Category: category, Volume: volume})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Category < result[j].Category
	})
	return result, nil
}

// ExerciseDetail returns the per-date volume and top weight series for
// an exercise within [start, end], sorted ascending by date.
func (a *Analyzer) ExerciseDetail(ctx context.Context, exercise, start, end string) (_ []ExerciseDetailPoint, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analytics.exerciseDetail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entries, err := a.source.List(ctx)
	if err != nil {
		return nil, err
	}

	inRange, err := rangeFilter(start, end)
	if err != nil {
		return nil, err
	}

	type dayAgg struct {
		volume    float64
		topWeight float64
	}
	byDate := make(map[string]*dayAgg)
	for _, w := range entries {
		if w.Exercise != exercise || w.Date == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, w.Date); err != nil {
			continue
		}
		if !inRange(w.Date) {
			continue
		}
		agg, ok := byDate[w.Date]
		if !ok {
			agg = &dayAgg{}
			byDate[w.Date] = agg
		}
		for _, s := range w.Sets {
			agg.volume += s.WeightKg * float64(s.Reps)
			if s.WeightKg > agg.topWeight {
				agg.topWeight = s.WeightKg
			}
		}
	}

	detail := make([]ExerciseDetailPoint, 0, len(byDate))
	for date, agg := range byDate {
		detail = append(detail, ExerciseDetailPoint{
			Date:      date,
			Volume:    Round2(agg.volume),
			TopWeight: Round2(agg.topWeight),
		})
	}
	sort.Slice(detail, func(i, j int) bool {
		return detail[i].Date < detail[j].Date
	})
	return detail, nil
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func mondayOf(date time.Time) time.Time {
	weekday := int(date.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return date.AddDate(0, 0, -(weekday - 1))
}

// rangeFilter builds an inclusive [start, end] date predicate.
// Empty bounds are open. Malformed bounds are an error.
func rangeFilter(start, end string) (func(date string) bool, error) {
	var startDate, endDate *time.Time
	if start != "" {
		parsed, err := time.Parse(dateLayout, start)
		if err != nil {
			return nil, fmt.Errorf("invalid start date: %w", err)
		}
		startDate = &parsed
	}
	if end != "" {
		parsed, err := time.Parse(dateLayout, end)
		if err != nil {
			return nil, fmt.Errorf("invalid end date: %w", err)
		}
		endDate = &parsed
	}

	return func(date string) bool {
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return false
		}
		if startDate != nil && parsed.Before(*startDate) {
			return false
		}
		if endDate != nil && parsed.After(*endDate) {
			return false
		}
		return true
	}, nil
}
