package analytics

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"
	"github.com/mveljkovic/traintracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	analyzer *Analyzer
}

func NewHandler(analyzer *Analyzer) *Handler {
	return &Handler{
		analyzer: analyzer,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	analyticsRouter := mainRouter.PathPrefix("/api/analytics").Subrouter()
	analyticsRouter.HandleFunc("/weekly-volume", handler.handleWeeklyVolume).
		Methods("GET", "OPTIONS").Name("analytics-weekly-volume")
	analyticsRouter.HandleFunc("/monthly-volume", handler.handleMonthlyVolume).
		Methods("GET", "OPTIONS").Name("analytics-monthly-volume")
	analyticsRouter.HandleFunc("/pr-trend", handler.handlePRTrend).
		Methods("GET", "OPTIONS").Name("analytics-pr-trend")
	analyticsRouter.HandleFunc("/muscle-volume-range", handler.handleMuscleVolumeRange).
		Methods("GET", "OPTIONS").Name("analytics-muscle-volume")
	analyticsRouter.HandleFunc("/exercise-detail", handler.handleExerciseDetail).
		Methods("GET", "OPTIONS").Name("analytics-exercise-detail")
}

func (handler *Handler) handleWeeklyVolume(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "analyticsHandler.weeklyVolume")
	defer span.End()

	weekly, err := handler.analyzer.WeeklyVolume(ctx)
	if err != nil {
		log.Errorf("failed to compute weekly volume: %s", err)
		http.Error(w, "failed to compute weekly volume", http.StatusInternalServerError)
		return
	}
	writeJSON(w, weekly)
}

func (handler *Handler) handleMonthlyVolume(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "analyticsHandler.monthlyVolume")
	defer span.End()

	monthly, err := handler.analyzer.MonthlyVolume(ctx)
	if err != nil {
		log.Errorf("failed to compute monthly volume: %s", err)
		http.Error(w, "failed to compute monthly volume", http.StatusInternalServerError)
		return
	}
	writeJSON(w, monthly)
}

func (handler *Handler) handlePRTrend(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "analyticsHandler.prTrend")
	defer span.End()

	query := r.URL.Query()
	exercise := strings.TrimSpace(query.Get("exercise"))
	if exercise == "" {
		http.Error(w, "error, exercise required", http.StatusBadRequest)
		return
	}

	trend, err := handler.analyzer.PRTrend(ctx, exercise, query.Get("start"), query.Get("end"))
	if err != nil {
		log.Errorf("failed to compute pr trend for [%s]: %s", exercise, err)
		http.Error(w, "failed to compute pr trend", http.StatusInternalServerError)
		return
	}
	writeJSON(w, trend)
}

func (handler *Handler) handleMuscleVolumeRange(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "analyticsHandler.muscleVolume")
	defer span.End()

	query := r.URL.Query()
	totals, err := handler.analyzer.MuscleVolumeByCategory(ctx, query.Get("start"), query.Get("end"))
	if err != nil {
		log.Errorf("failed to compute muscle volume: %s", err)
		http.Error(w, "failed to compute muscle volume", http.StatusInternalServerError)
		return
	}
	writeJSON(w, totals)
}

func (handler *Handler) handleExerciseDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "analyticsHandler.exerciseDetail")
	defer span.End()

	query := r.URL.Query()
	exercise := strings.TrimSpace(query.Get("exercise"))
	if exercise == "" {
		http.Error(w, "error, exercise required", http.StatusBadRequest)
		return
	}

	detail, err := handler.analyzer.ExerciseDetail(ctx, exercise, query.Get("start"), query.Get("end"))
	if err != nil {
		log.Errorf("failed to compute exercise detail for [%s]: %s", exercise, err)
		http.Error(w, "failed to compute exercise detail", http.StatusInternalServerError)
		return
	}
	writeJSON(w, detail)
}

func writeJSON(w http.ResponseWriter, v any) {
	respJson, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal analytics response: %s", err)
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}
