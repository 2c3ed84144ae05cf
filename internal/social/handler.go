package social

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mveljkovic/traintracker/internal/auth"
	"github.com/mveljkovic/traintracker/internal/telemetry/metrics"
	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"
	"github.com/mveljkovic/traintracker/internal/users"
	"github.com/mveljkovic/traintracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxCommentLength = 500

type socialRepo interface {
	RecordActivity(ctx context.Context, userID int64, activityType string, refID *string) (int64, error)
	Follow(ctx context.Context, followerID, followeeID int64) error
	Unfollow(ctx context.Context, followerID, followeeID int64) error
	Feed(ctx context.Context, userID int64, limit int, cursor string) (*FeedPage, error)
	Like(ctx context.Context, userID int64, refID string) error
	Unlike(ctx context.Context, userID int64, refID string) error
	CreateComment(ctx context.Context, userID int64, refID, content string) (*Comment, error)
	ListComments(ctx context.Context, refID string) ([]Comment, error)
	DeleteComment(ctx context.Context, commentID, userID int64) error
}

type Handler struct {
	repo           socialRepo
	metricsManager *metrics.Manager
}

type ActivityRequest struct {
	Type  string  `json:"type"`
	RefID *string `json:"ref_id"`
}

type FollowRequest struct {
	UserID int64 `json:"user_id"`
}

type LikeRequest struct {
	RefID string `json:"ref_id"`
}

type CommentRequest struct {
	RefID   string `json:"ref_id"`
	Content string `json:"content"`
}

func NewHandler(repo socialRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	socialRouter := mainRouter.PathPrefix("/api/social").Subrouter()
	socialRouter.HandleFunc("/activity", handler.handleRecordActivity).
		Methods("POST", "OPTIONS").Name("record-activity")
	socialRouter.HandleFunc("/follow", handler.handleFollow).
		Methods("POST", "OPTIONS").Name("follow")
	socialRouter.HandleFunc("/follow", handler.handleUnfollow).
		Methods("DELETE").Name("unfollow")
	socialRouter.HandleFunc("/feed", handler.handleFeed).
		Methods("GET", "OPTIONS").Name("feed")
	socialRouter.HandleFunc("/like", handler.handleLike).
		Methods("POST", "OPTIONS").Name("like")
	socialRouter.HandleFunc("/like", handler.handleUnlike).
		Methods("DELETE").Name("unlike")
	socialRouter.HandleFunc("/comment", handler.handleCreateComment).
		Methods("POST", "OPTIONS").Name("create-comment")
	socialRouter.HandleFunc("/comments", handler.handleListComments).
		Methods("GET", "OPTIONS").Name("list-comments")
	socialRouter.HandleFunc("/comment/{id}", handler.handleDeleteComment).
		Methods("DELETE").Name("delete-comment")
}

func (handler *Handler) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "socialHandler.recordActivity")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("record activity, unmarshal request: %s", err)
		http.Error(w, "error, invalid request", http.StatusBadRequest)
		return
	}

	activityType := strings.TrimSpace(req.Type)
	if activityType == "" {
		http.Error(w, "error, type required", http.StatusBadRequest)
		return
	}

	id, err := handler.repo.RecordActivity(ctx, userID, activityType, req.RefID)
	if err != nil {
		log.Errorf("record activity: %s", err)
		http.Error(w, "failed to record activity", http.StatusInternalServerError)
		return
	}
	handler.metricsManager.CounterActivitiesRecorded.Inc()

	writeJSON(w, map[string]int64{"id": id}, http.StatusCreated)
}

func (handler *Handler) handleFollow(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "socialHandler.follow")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req FollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("follow, unmarshal request: %s", err)
		http.Error(w, "error, invalid request", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Follow(ctx, userID, req.UserID); err != nil {
		switch {
		case errors.Is(err, ErrSelfFollow):
			http.Error(w, "error, cannot follow yourself", http.StatusBadRequest)
		case errors.Is(err, users.ErrUserNotFound):
			http.Error(w, "error, target user not found", http.StatusNotFound)
		case errors.Is(err, ErrAlreadyFollowing):
			http.Error(w, "error, already following", http.StatusConflict)
		default:
			log.Errorf("follow user %d -> %d: %s", userID, req.UserID, err)
			http.Error(w, "failed to follow", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, map[string]bool{"success": true}, http.StatusCreated)
}

func (handler *Handler) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "socialHandler.unfollow")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req FollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("unfollow, unmarshal request: %s", err)
		http.Error(w, "error, invalid request", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Unfollow(ctx, userID, req.UserID); err != nil {
		if errors.Is(err, ErrNotFollowing) {
			http.Error(w, "error, not following", http.StatusNotFound)
			return
		}
		log.Errorf("unfollow user %d -> %d: %s", userID, req.UserID, err)
		http.Error(w, "failed to unfollow", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (handler *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "socialHandler.feed")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	limit := defaultFeedLimit
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil {
			http.Error(w, "error, limit NaN", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	cursor := r.URL.Query().Get("cursor")

	page, err := handler.repo.Feed(ctx, userID, limit, cursor)
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			http.Error(w, "error, invalid cursor", http.StatusBadRequest)
			return
		}
		log.Errorf("get feed for user %d: %s", userID, err)
		http.Error(w, "failed to get feed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, page, http.StatusOK)
}

func (handler *Handler) handleLike(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "socialHandler.like")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req LikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("like, unmarshal request: %s", err)
		http.Error(w, "error, invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.RefID) == "" {
		http.Error(w, "error, ref_id required", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Like(ctx, userID, req.RefID); err != nil {
		if errors.Is(err, ErrAlreadyLiked) {
			http.Error(w, "error, already liked", http.StatusConflict)
			return
		}
		log.Errorf("like %q by user %d: %s", req.RefID, userID, err)
		http.Error(w, "failed to like", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]bool{"success": true}, http.StatusCreated)
}

func (handler *Handler) handleUnlike(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "socialHandler.unlike")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req LikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("unlike, unmarshal request: %s", err)
		http.Error(w, "error, invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.RefID) == "" {
		http.Error(w, "error, ref_id required", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Unlike(ctx, userID, req.RefID); err != nil {
		if errors.Is(err, ErrLikeNotFound) {
			http.Error(w, "error, like not found", http.StatusNotFound)
			return
		}
		log.Errorf("unlike %q by user %d: %s", req.RefID, userID, err)
		http.Error(w, "failed to unlike", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (handler *Handler) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "socialHandler.createComment")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("create comment, unmarshal request: %s", err)
		http.Error(w, "error, invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.RefID) == "" {
		http.Error(w, "error, ref_id required", http.StatusBadRequest)
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		http.Error(w, "error, content required", http.StatusBadRequest)
		return
	}
	// length limit is in characters, not bytes
	if utf8.RuneCountInString(content) > maxCommentLength {
		http.Error(w, "error, content too long", http.StatusBadRequest)
		return
	}

	comment, err := handler.repo.CreateComment(ctx, userID, req.RefID, content)
	if err != nil {
		log.Errorf("create comment on %q by user %d: %s", req.RefID, userID, err)
		http.Error(w, "failed to create comment", http.StatusInternalServerError)
		return
	}

	writeJSON(w, comment, http.StatusCreated)
}

func (handler *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "socialHandler.listComments")
	defer span.End()

	if _, ok := auth.UserIDFromContext(ctx); !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	refID := r.URL.Query().Get("ref_id")
	if strings.TrimSpace(refID) == "" {
		http.Error(w, "error, ref_id required", http.StatusBadRequest)
		return
	}

	comments, err := handler.repo.ListComments(ctx, refID)
	if err != nil {
		log.Errorf("list comments for %q: %s", refID, err)
		http.Error(w, "failed to list comments", http.StatusInternalServerError)
		return
	}

	writeJSON(w, comments, http.StatusOK)
}

func (handler *Handler) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "socialHandler.deleteComment")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	commentID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "error, invalid comment id", http.StatusBadRequest)
		return
	}

	if err := handler.repo.DeleteComment(ctx, commentID, userID); err != nil {
		if errors.Is(err, ErrCommentNotFound) {
			http.Error(w, "error, comment not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete comment %d by user %d: %s", commentID, userID, err)
		http.Error(w, "failed to delete comment", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v interface{}, statusCode int) {
	respBytes, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respBytes, statusCode)
}
