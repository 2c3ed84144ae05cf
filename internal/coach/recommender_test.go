package coach

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mveljkovic/traintracker/internal/telemetry/metrics"
	"github.com/mveljkovic/traintracker/internal/workouts"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sourceMock struct {
	entries   []workouts.WorkoutEntry
	dataDir   string
	listCalls int
}

func (m *sourceMock) List(_ context.Context) ([]workouts.WorkoutEntry, error) {
	m.listCalls++
	return m.entries, nil
}

func (m *sourceMock) DataDir() string {
	if m.dataDir == "" {
		return "test-data"
	}
	return m.dataDir
}

func entry(date, exercise string, sets ...workouts.SetRecord) workouts.WorkoutEntry {
	return workouts.WorkoutEntry{
		ID:       date + "-" + exercise,
		Date:     date,
		Category: "push",
		Exercise: exercise,
		Type:     "strength",
		Sets:     sets,
	}
}

func set(weightKg float64, reps int) workouts.SetRecord {
	return workouts.SetRecord{WeightKg: weightKg, Reps: reps}
}

func titles(recs []Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Title)
	}
	return out
}

func TestRecommender_LowFrequencyAndFlatVolume(t *testing.T) {
	// one workout per week, four weeks, flat volume of 600 each
	source := &sourceMock{entries: []workouts.WorkoutEntry{
		entry("2025-04-01", "Bench Press", set(60, 10)),
		entry("2025-04-08", "Bench Press", set(60, 10)),
		entry("2025-04-15", "Bench Press", set(60, 10)),
		entry("2025-04-22", "Bench Press", set(60, 10)),
	}}
	rec := NewRecommender(source, metrics.NewTestManager())

	result, err := rec.Recommend(context.Background(), 30)
	require.NoError(t, err)

	require.Len(t, result.Metrics.WeeklyFrequency, 4)
	for _, wf := range result.Metrics.WeeklyFrequency {
		assert.Equal(t, 1, wf.Days)
	}
	require.Len(t, result.Metrics.WeeklyVolume, 4)
	for _, wv := range result.Metrics.WeeklyVolume {
		assert.Equal(t, float64(600), wv.Volume)
	}

	recTitles := titles(result.Recommendations)
	assert.Contains(t, recTitles, "Increase Training Frequency")
	assert.Contains(t, recTitles, "Apply Progressive Overload")

	// only 4 entries inside the window
	assert.True(t, result.InsufficientData)
}

func TestRecommender_VolumeSpike(t *testing.T) {
	// week one 600, week two 1200
	source := &sourceMock{entries: []workouts.WorkoutEntry{
		entry("2025-04-01", "Bench Press", set(60, 10)),
		entry("2025-04-08", "Bench Press", set(60, 10)),
		entry("2025-04-09", "Squat", set(60, 10)),
	}}
	rec := NewRecommender(source, metrics.NewTestManager())

	result, err := rec.Recommend(context.Background(), 30)
	require.NoError(t, err)

	recTitles := titles(result.Recommendations)
	assert.Contains(t, recTitles, "Manage Recovery After Volume Spike")

	var spike Recommendation
	for _, r := range result.Recommendations {
		if r.Title == "Manage Recovery After Volume Spike" {
			spike = r
		}
	}
	assert.Contains(t, spike.Reason, "100%")
	assert.Equal(t, PriorityMedium, spike.Priority)
}

func TestRecommender_PlateauEmittedOnce(t *testing.T) {
	// two exercises, both perfectly flat; a third with clear progress
	source := &sourceMock{entries: []workouts.WorkoutEntry{
		entry("2025-04-01", "Bench Press", set(80, 5)),
		entry("2025-04-10", "Bench Press", set(80, 5)),
		entry("2025-04-02", "Squat", set(100, 5)),
		entry("2025-04-11", "Squat", set(100, 5)),
		entry("2025-04-03", "Deadlift", set(100, 5)),
		entry("2025-04-12", "Deadlift", set(120, 5)),
	}}
	rec := NewRecommender(source, metrics.NewTestManager())

	result, err := rec.Recommend(context.Background(), 30)
	require.NoError(t, err)

	var plateauCount int
	for _, r := range result.Recommendations {
		if r.Title == "Plateau Detected in PR" {
			plateauCount++
			assert.Equal(t, PriorityLow, r.Priority)
		}
	}
	assert.Equal(t, 1, plateauCount)

	// flattest entries come first in the trend
	require.NotEmpty(t, result.Metrics.PRTrend)
	assert.Equal(t, float64(0), result.Metrics.PRTrend[0].ChangePct)
	last := result.Metrics.PRTrend[len(result.Metrics.PRTrend)-1]
	assert.Equal(t, "Deadlift", last.Exercise)
	assert.InDelta(t, 20.0, last.ChangePct, 0.01)
}

func TestRecommender_WindowAnchoredToLatestWorkout(t *testing.T) {
	// all data is old, the window must anchor to the latest workout date
	source := &sourceMock{entries: []workouts.WorkoutEntry{
		entry("2023-01-03", "Bench Press", set(60, 10)),
		entry("2023-01-10", "Bench Press", set(60, 10)),
		entry("2023-01-17", "Bench Press", set(60, 10)),
	}}
	rec := NewRecommender(source, metrics.NewTestManager())

	result, err := rec.Recommend(context.Background(), 30)
	require.NoError(t, err)
	assert.Len(t, result.Metrics.WeeklyVolume, 3)

	// entries far outside the anchored window are excluded
	source2 := &sourceMock{entries: []workouts.WorkoutEntry{
		entry("2022-06-01", "Bench Press", set(60, 10)),
		entry("2023-01-17", "Bench Press", set(60, 10)),
	}, dataDir: "other-data"}
	rec2 := NewRecommender(source2, metrics.NewTestManager())

	result2, err := rec2.Recommend(context.Background(), 30)
	require.NoError(t, err)
	assert.Len(t, result2.Metrics.WeeklyVolume, 1)
}

func TestRecommender_EmptyHistory(t *testing.T) {
	source := &sourceMock{}
	rec := NewRecommender(source, metrics.NewTestManager())

	result, err := rec.Recommend(context.Background(), 30)
	require.NoError(t, err)
	assert.True(t, result.InsufficientData)
	assert.Empty(t, result.Metrics.WeeklyVolume)
	assert.Empty(t, result.Metrics.WeeklyFrequency)
	assert.Empty(t, result.Metrics.PRTrend)
	assert.Empty(t, result.Recommendations)
}

func TestRecommender_CachedResult(t *testing.T) {
	source := &sourceMock{entries: []workouts.WorkoutEntry{
		entry("2025-04-01", "Bench Press", set(60, 10)),
		entry("2025-04-08", "Bench Press", set(60, 10)),
	}}
	metricsManager := metrics.NewTestManager()
	rec := NewRecommender(source, metricsManager)

	first, err := rec.Recommend(context.Background(), 30)
	require.NoError(t, err)
	second, err := rec.Recommend(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.listCalls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterCoachCacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterCoachCacheMisses))

	// a different window is a different cache key
	_, err = rec.Recommend(context.Background(), 60)
	require.NoError(t, err)
	assert.Equal(t, 2, source.listCalls)

	// disabling the cache entirely keeps results identical
	rec.cache = nil
	uncached, err := rec.Recommend(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, first, uncached)
}

func TestRecommender_CorruptCacheEntry(t *testing.T) {
	source := &sourceMock{entries: []workouts.WorkoutEntry{
		entry("2025-04-01", "Bench Press", set(60, 10)),
		entry("2025-04-08", "Bench Press", set(60, 10)),
	}}
	metricsManager := metrics.NewTestManager()
	rec := NewRecommender(source, metricsManager)

	// garbage in the cache degrades to recomputation, never an error
	cacheKey := []byte(fmt.Sprintf("%d|%s", 30, source.DataDir()))
	require.NoError(t, rec.cache.Set(cacheKey, []byte("not json"), cacheExpireSeconds))

	result, err := rec.Recommend(context.Background(), 30)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, source.listCalls)
	assert.Equal(t, float64(0), testutil.ToFloat64(metricsManager.CounterCoachCacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterCoachCacheMisses))

	// the recomputed result replaces the corrupt entry
	cached, err := rec.Recommend(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, result, cached)
	assert.Equal(t, 1, source.listCalls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterCoachCacheHits))
}

func TestWeeklyKey(t *testing.T) {
	testCases := []struct {
		date     string
		expected string
	}{
		{date: "2025-04-01", expected: "2025-W14"},
		{date: "2025-01-01", expected: "2025-W01"},
		// ISO week of 2023-01-01 belongs to the previous ISO year
		{date: "2023-01-01", expected: "2022-W52"},
	}

	for _, tc := range testCases {
		date, err := time.Parse(dateLayout, tc.date)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, weeklyKey(date), tc.date)
	}
}
