package routines

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/mveljkovic/traintracker/internal/jsonstore"
	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

var ErrRoutineNotFound = errors.New("routine not found")

const routinesFileName = "routines.json"

// Store keeps routines in a flat JSON file under the data dir.
type Store struct {
	mutex        sync.RWMutex
	routinesPath string
}

func NewStore(dataDir string) *Store {
	return &Store{
		routinesPath: filepath.Join(dataDir, routinesFileName),
	}
}

func (s *Store) List(ctx context.Context) (_ []Routine, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.routines.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.readAll()
}

func (s *Store) Add(ctx context.Context, routine Routine) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.routines.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("routine.id", routine.ID))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}

	all = append(all, routine)
	return jsonstore.Write(s.routinesPath, all)
}

func (s *Store) Delete(ctx context.Context, id string) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.routines.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("routine.id", id))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}

	kept := make([]Routine, 0, len(all))
	for _, routine := range all {
		if routine.ID != id {
			kept = append(kept, routine)
		}
	}
	if len(kept) == len(all) {
		return ErrRoutineNotFound
	}

	return jsonstore.Write(s.routinesPath, kept)
}

func (s *Store) readAll() ([]Routine, error) {
	routines := make([]Routine, 0)
	if err := jsonstore.Read(s.routinesPath, &routines); err != nil {
		return nil, err
	}
	return routines, nil
}
