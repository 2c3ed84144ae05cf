package workouts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mveljkovic/traintracker/internal/jsonstore"
	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

var ErrWorkoutNotFound = errors.New("workout not found")

const (
	workoutsFileName = "workouts.json"
	configFileName   = "config.json"
)

// Store keeps workout entries in a flat JSON file under the data dir.
// All mutations rewrite the whole file through a temp file and rename.
type Store struct {
	mutex        sync.RWMutex
	workoutsPath string
	configPath   string
}

func NewStore(dataDir string, defaultCategories []string) (*Store, error) {
	store := &Store{
		workoutsPath: filepath.Join(dataDir, workoutsFileName),
		configPath:   filepath.Join(dataDir, configFileName),
	}

	if !jsonstore.Exists(store.configPath) {
		defaultConfig := AppConfig{
			Categories: defaultCategories,
			Exercises:  map[string][]string{},
			WeekStart:  "monday",
		}
		if err := jsonstore.Write(store.configPath, defaultConfig); err != nil {
			return nil, fmt.Errorf("seed config file: %w", err)
		}
	}

	return store, nil
}

// DataDir identifies the data source, used as part of cache keys.
func (s *Store) DataDir() string {
	return filepath.Dir(s.workoutsPath)
}

func (s *Store) List(ctx context.Context) (_ []WorkoutEntry, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.readAll()
}

func (s *Store) ListByDate(ctx context.Context, date string) (_ []WorkoutEntry, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.workouts.listByDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("date", date))

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}

	entries := make([]WorkoutEntry, 0)
	for _, w := range all {
		if w.Date == date {
			entries = append(entries, w)
		}
	}
	return entries, nil
}

func (s *Store) Add(ctx context.Context, entry WorkoutEntry) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", entry.ID))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}

	all = append(all, entry)
	return jsonstore.Write(s.workoutsPath, all)
}

func (s *Store) Delete(ctx context.Context, id string) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}

	kept := make([]WorkoutEntry, 0, len(all))
	for _, w := range all {
		if w.ID != id {
			kept = append(kept, w)
		}
	}
	if len(kept) == len(all) {
		return ErrWorkoutNotFound
	}

	return jsonstore.Write(s.workoutsPath, kept)
}

// LastForExercise returns the most recent entry for the exercise, by date.
func (s *Store) LastForExercise(ctx context.Context, exercise string) (_ *WorkoutEntry, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.workouts.lastForExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise", exercise))

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}

	matched := make([]WorkoutEntry, 0)
	for _, w := range all {
		if w.Exercise == exercise {
			matched = append(matched, w)
		}
	}
	if len(matched) == 0 {
		return nil, ErrWorkoutNotFound
	}

	sort.SliceStable(matched, func(i, j int) bool {
		// ISO dates sort lexicographically
		return matched[i].Date > matched[j].Date
	})

	return &matched[0], nil
}

func (s *Store) DailySummary(ctx context.Context, date string) (_ DailySummary, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.workouts.dailySummary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("date", date))

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	all, err := s.readAll()
	if err != nil {
		return DailySummary{}, err
	}

	var summary DailySummary
	for _, w := range all {
		if w.Date != date {
			continue
		}
		summary.SetsCount += len(w.Sets)
		summary.Volume += w.Volume()
	}
	return summary, nil
}

func (s *Store) Config(ctx context.Context) (_ AppConfig, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.workouts.config")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var config AppConfig
	if err := jsonstore.Read(s.configPath, &config); err != nil {
		return AppConfig{}, err
	}
	return config, nil
}

func (s *Store) readAll() ([]WorkoutEntry, error) {
	entries := make([]WorkoutEntry, 0)
	if err := jsonstore.Read(s.workoutsPath, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
