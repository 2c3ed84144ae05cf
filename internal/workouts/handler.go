package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mveljkovic/traintracker/internal/telemetry/metrics"
	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"
	"github.com/mveljkovic/traintracker/pkg"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type workoutsStore interface {
	List(ctx context.Context) ([]WorkoutEntry, error)
	ListByDate(ctx context.Context, date string) ([]WorkoutEntry, error)
	Add(ctx context.Context, entry WorkoutEntry) error
	Delete(ctx context.Context, id string) error
	LastForExercise(ctx context.Context, exercise string) (*WorkoutEntry, error)
	DailySummary(ctx context.Context, date string) (DailySummary, error)
	Config(ctx context.Context) (AppConfig, error)
}

type DeleteWorkoutResponse struct {
	DeletedID string `json:"deletedId"`
}

type Handler struct {
	store          workoutsStore
	metricsManager *metrics.Manager
}

func NewHandler(store workoutsStore, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		store:          store,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/api/config", handler.handleGetConfig).Methods("GET", "OPTIONS").Name("config")

	workoutsRouter := mainRouter.PathPrefix("/api/workouts").Subrouter()
	workoutsRouter.HandleFunc("", handler.handleList).Methods("GET", "OPTIONS").Name("workouts-list")
	workoutsRouter.HandleFunc("", handler.handleAdd).Methods("POST", "OPTIONS").Name("workouts-add")
	workoutsRouter.HandleFunc("/exercise/{exercise}/last", handler.handleLastForExercise).
		Methods("GET", "OPTIONS").Name("workouts-last-for-exercise")
	workoutsRouter.HandleFunc("/{date:\\d{4}-\\d{2}-\\d{2}}", handler.handleListByDate).
		Methods("GET", "OPTIONS").Name("workouts-by-date")
	workoutsRouter.HandleFunc("/{id}", handler.handleDelete).Methods("DELETE", "OPTIONS").Name("workouts-delete")

	mainRouter.HandleFunc("/api/calendar-summary/{date}", handler.handleCalendarSummary).
		Methods("GET", "OPTIONS").Name("calendar-summary")
}

func (handler *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.config")
	defer span.End()

	config, err := handler.store.Config(ctx)
	if err != nil {
		log.Errorf("failed to read app config: %s", err)
		http.Error(w, "failed to read config", http.StatusInternalServerError)
		return
	}

	configJson, err := json.Marshal(config)
	if err != nil {
		log.Errorf("marshal app config: %s", err)
		http.Error(w, "failed to read config", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, configJson, http.StatusOK)
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.list")
	defer span.End()

	entries, err := handler.store.List(ctx)
	if err != nil {
		log.Errorf("failed to list workouts: %s", err)
		http.Error(w, "failed to list workouts", http.StatusInternalServerError)
		return
	}

	entriesJson, err := json.Marshal(entries)
	if err != nil {
		log.Errorf("marshal workouts: %s", err)
		http.Error(w, "failed to list workouts", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, entriesJson, http.StatusOK)
}

func (handler *Handler) handleListByDate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.listByDate")
	defer span.End()

	date := mux.Vars(r)["date"]
	entries, err := handler.store.ListByDate(ctx, date)
	if err != nil {
		log.Errorf("failed to list workouts for %s: %s", date, err)
		http.Error(w, "failed to list workouts", http.StatusInternalServerError)
		return
	}

	entriesJson, err := json.Marshal(entries)
	if err != nil {
		log.Errorf("marshal workouts: %s", err)
		http.Error(w, "failed to list workouts", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, entriesJson, http.StatusOK)
}

func (handler *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var entry WorkoutEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		log.Tracef("new workout, unmarshal json params: %s", err)
		http.Error(w, "add workout failed", http.StatusBadRequest)
		return
	}

	if _, err := time.Parse("2006-01-02", entry.Date); err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return
	}
	if entry.Exercise == "" {
		http.Error(w, "error, exercise empty", http.StatusBadRequest)
		return
	}
	for _, s := range entry.Sets {
		if s.WeightKg < 0 || s.Reps < 0 {
			http.Error(w, "error, negative set values", http.StatusBadRequest)
			return
		}
	}

	entry.ID = uuid.NewString()
	if err := handler.store.Add(ctx, entry); err != nil {
		log.Errorf("failed to add new workout [%s] [%s]: %s", entry.Date, entry.Exercise, err)
		http.Error(w, "error, failed to add new workout", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterWorkoutsAdded.Inc()

	entryJson, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("failed to marshal new workout: %s", err)
		http.Error(w, "error, failed to add new workout", http.StatusInternalServerError)
		return
	}

	log.Debugf("new workout added: %s", entry.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, entryJson, http.StatusCreated)
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.delete")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	if err := handler.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete workout %s: %s", id, err)
		http.Error(w, "failed to delete workout", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(DeleteWorkoutResponse{DeletedID: id})
	if err != nil {
		log.Errorf("marshal delete workout response: %s", err)
		http.Error(w, "failed to delete workout", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) handleLastForExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.lastForExercise")
	defer span.End()

	exercise := mux.Vars(r)["exercise"]
	if exercise == "" {
		http.Error(w, "error, exercise empty", http.StatusBadRequest)
		return
	}

	entry, err := handler.store.LastForExercise(ctx, exercise)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get last workout for [%s]: %s", exercise, err)
		http.Error(w, "failed to get last workout", http.StatusInternalServerError)
		return
	}

	entryJson, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("marshal workout: %s", err)
		http.Error(w, "failed to get last workout", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, entryJson, http.StatusOK)
}

func (handler *Handler) handleCalendarSummary(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.calendarSummary")
	defer span.End()

	date := mux.Vars(r)["date"]
	if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return
	}

	summary, err := handler.store.DailySummary(ctx, date)
	if err != nil {
		log.Errorf("failed to compute daily summary for %s: %s", date, err)
		http.Error(w, "failed to compute summary", http.StatusInternalServerError)
		return
	}

	summaryJson, err := json.Marshal(summary)
	if err != nil {
		log.Errorf("marshal daily summary: %s", err)
		http.Error(w, "failed to compute summary", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, summaryJson, http.StatusOK)
}
