package coach

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"
	"github.com/mveljkovic/traintracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	defaultDays = 30
	minDays     = 7
	maxDays     = 180
)

type Handler struct {
	recommender *Recommender
}

func NewHandler(recommender *Recommender) *Handler {
	return &Handler{
		recommender: recommender,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/api/coach/recommendations", handler.handleRecommendations).
		Methods("GET", "OPTIONS").Name("coach-recommendations")
}

func (handler *Handler) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "coachHandler.recommendations")
	defer span.End()

	days := defaultDays
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		parsed, err := strconv.Atoi(daysParam)
		if err != nil {
			http.Error(w, "error, days NaN", http.StatusBadRequest)
			return
		}
		days = parsed
	}
	if days < minDays || days > maxDays {
		http.Error(w, "error, days must be in [7, 180]", http.StatusBadRequest)
		return
	}

	result, err := handler.recommender.Recommend(ctx, days)
	if err != nil {
		log.Errorf("failed to compute coach recommendations: %s", err)
		http.Error(w, "failed to compute recommendations", http.StatusInternalServerError)
		return
	}

	resultJson, err := json.Marshal(result)
	if err != nil {
		log.Errorf("marshal coach recommendations: %s", err)
		http.Error(w, "failed to compute recommendations", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resultJson, http.StatusOK)
}
