package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mveljkovic/traintracker/internal/routines"
	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"
	"github.com/mveljkovic/traintracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	promptTodayRoutine = "You are a professional strength and conditioning coach. " +
		"Based on the user's recent workouts, propose an optimal routine for today " +
		"in concise JSON with the following schema: {name, memo, items:[{exercise, category, sets, reps}]}. " +
		"Prefer balancing muscle groups across recent sessions, include at most 5 items, " +
		"keep reps as a string (e.g. '8-12' or '30min'). Return ONLY the JSON and nothing else."

	promptChat = "You are a training assistant. Given the user's recent workouts and the " +
		"proposed routine, answer the user's question. If a specific routine change is " +
		"requested, reply normally, a separate follow-up will extract the updated routine."

	promptUpdatedRoutine = "Output ONLY a JSON object for the updated routine reflecting the " +
		"request and context below, no other text. Schema: " +
		`{"name":"","memo":"","items":[{"exercise":"","category":"","sets":0,"reps":""}]}`
)

type completionClient interface {
	Complete(ctx context.Context, messages []Message, jsonOnly bool) (string, error)
}

type Handler struct {
	client completionClient
}

type TodayRoutineRequest struct {
	Workouts []json.RawMessage `json:"workouts"`
}

type ChatRequest struct {
	Message  string            `json:"message"`
	Routine  *routines.Routine `json:"routine"`
	Workouts []json.RawMessage `json:"workouts"`
}

type ChatResponse struct {
	Reply          string            `json:"reply"`
	UpdatedRoutine *routines.Routine `json:"updatedRoutine"`
}

func NewHandler(client completionClient) *Handler {
	return &Handler{
		client: client,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	aiRouter := mainRouter.PathPrefix("/api/ai").Subrouter()
	aiRouter.HandleFunc("/today-routine", handler.handleTodayRoutine).
		Methods("POST", "OPTIONS").Name("ai-today-routine")
	aiRouter.HandleFunc("/chat", handler.handleChat).
		Methods("POST", "OPTIONS").Name("ai-chat")
}

func (handler *Handler) handleTodayRoutine(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "assistantHandler.todayRoutine")
	defer span.End()

	var req TodayRoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("today routine, unmarshal request: %s", err)
		http.Error(w, "error, invalid request", http.StatusBadRequest)
		return
	}

	workoutsJson, err := json.Marshal(req.Workouts)
	if err != nil {
		log.Errorf("today routine, marshal workouts: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	messages := []Message{
		{Role: "system", Content: promptTodayRoutine},
		{Role: "user", Content: fmt.Sprintf("Recent workouts JSON:\n%s", workoutsJson)},
	}
	out, err := handler.client.Complete(ctx, messages, true)
	if err != nil {
		log.Errorf("today routine, completion: %s", err)
		http.Error(w, "assistant upstream error", http.StatusBadGateway)
		return
	}

	var routine routines.Routine
	if err := json.Unmarshal([]byte(out), &routine); err != nil {
		log.Errorf("today routine, invalid assistant response: %s", err)
		http.Error(w, "invalid assistant response", http.StatusBadGateway)
		return
	}
	if routine.Items == nil {
		log.Errorf("today routine, assistant response without items")
		http.Error(w, "invalid assistant response: items missing", http.StatusBadGateway)
		return
	}

	routineJson, err := json.Marshal(routine)
	if err != nil {
		log.Errorf("today routine, marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, routineJson, http.StatusOK)
}

func (handler *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "assistantHandler.chat")
	defer span.End()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("assistant chat, unmarshal request: %s", err)
		http.Error(w, "error, invalid request", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "error, message required", http.StatusBadRequest)
		return
	}

	chatContext := map[string]interface{}{
		"routine":        req.Routine,
		"recentWorkouts": req.Workouts,
	}
	contextJson, err := json.Marshal(chatContext)
	if err != nil {
		log.Errorf("assistant chat, marshal context: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	messages := []Message{
		{Role: "system", Content: promptChat},
		{Role: "user", Content: fmt.Sprintf("User question: %s\nContext:\n%s", req.Message, contextJson)},
	}
	reply, err := handler.client.Complete(ctx, messages, false)
	if err != nil {
		log.Errorf("assistant chat, completion: %s", err)
		http.Error(w, "assistant upstream error", http.StatusBadGateway)
		return
	}

	resp := ChatResponse{
		Reply:          reply,
		UpdatedRoutine: handler.extractUpdatedRoutine(ctx, req.Message, contextJson),
	}
	respJson, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("assistant chat, marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

// extractUpdatedRoutine asks the assistant for a routine reflecting the
// chat request, as JSON only. Strictly best-effort, any failure yields nil.
func (handler *Handler) extractUpdatedRoutine(
	ctx context.Context,
	userMessage string,
	contextJson []byte,
) *routines.Routine {
	messages := []Message{
		{Role: "system", Content: promptUpdatedRoutine},
		{Role: "user", Content: fmt.Sprintf("Request:\n%s\nContext:\n%s", userMessage, contextJson)},
	}
	out, err := handler.client.Complete(ctx, messages, true)
	if err != nil {
		if !errors.Is(err, ErrUpstream) {
			log.Errorf("assistant chat, updated routine completion: %s", err)
		}
		return nil
	}

	var updated routines.Routine
	if err := json.Unmarshal([]byte(out), &updated); err != nil {
		log.Debugf("assistant chat, updated routine not parseable: %s", err)
		return nil
	}
	if len(updated.Items) == 0 {
		return nil
	}
	return &updated
}
