package routines

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"
	"github.com/mveljkovic/traintracker/pkg"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type routinesStore interface {
	List(ctx context.Context) ([]Routine, error)
	Add(ctx context.Context, routine Routine) error
	Delete(ctx context.Context, id string) error
}

type DeleteRoutineResponse struct {
	DeletedID string `json:"deletedId"`
}

type Handler struct {
	store routinesStore
}

func NewHandler(store routinesStore) *Handler {
	return &Handler{
		store: store,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	routinesRouter := mainRouter.PathPrefix("/api/routines").Subrouter()
	routinesRouter.HandleFunc("", handler.handleList).Methods("GET", "OPTIONS").Name("routines-list")
	routinesRouter.HandleFunc("", handler.handleAdd).Methods("POST", "OPTIONS").Name("routines-add")
	routinesRouter.HandleFunc("/{id}", handler.handleDelete).Methods("DELETE", "OPTIONS").Name("routines-delete")
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "routinesHandler.list")
	defer span.End()

	routines, err := handler.store.List(ctx)
	if err != nil {
		log.Errorf("failed to list routines: %s", err)
		http.Error(w, "failed to list routines", http.StatusInternalServerError)
		return
	}

	routinesJson, err := json.Marshal(routines)
	if err != nil {
		log.Errorf("marshal routines: %s", err)
		http.Error(w, "failed to list routines", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, routinesJson, http.StatusOK)
}

func (handler *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "routinesHandler.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var routine Routine
	if err := json.NewDecoder(r.Body).Decode(&routine); err != nil {
		log.Tracef("new routine, unmarshal json params: %s", err)
		http.Error(w, "add routine failed", http.StatusBadRequest)
		return
	}

	if routine.Name == "" {
		http.Error(w, "error, routine name empty", http.StatusBadRequest)
		return
	}
	if routine.Items == nil {
		routine.Items = []RoutineItem{}
	}

	routine.ID = uuid.NewString()
	if err := handler.store.Add(ctx, routine); err != nil {
		log.Errorf("failed to add new routine [%s]: %s", routine.Name, err)
		http.Error(w, "error, failed to add new routine", http.StatusInternalServerError)
		return
	}

	routineJson, err := json.Marshal(routine)
	if err != nil {
		log.Errorf("failed to marshal new routine: %s", err)
		http.Error(w, "error, failed to add new routine", http.StatusInternalServerError)
		return
	}

	log.Debugf("new routine added: %s", routine.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, routineJson, http.StatusCreated)
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "routinesHandler.delete")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	if err := handler.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrRoutineNotFound) {
			http.Error(w, "routine not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete routine %s: %s", id, err)
		http.Error(w, "failed to delete routine", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(DeleteRoutineResponse{DeletedID: id})
	if err != nil {
		log.Errorf("marshal delete routine response: %s", err)
		http.Error(w, "failed to delete routine", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}
