package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mveljkovic/traintracker/internal/auth"
	"github.com/mveljkovic/traintracker/internal/telemetry/metrics"
	"github.com/mveljkovic/traintracker/internal/users"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repoMock keeps activities, follows, likes and comments in memory and
// mirrors the SQL feed semantics, newest first with a strict-before cursor.
type repoMock struct {
	mutex sync.Mutex

	knownUsers map[int64]struct{}
	activities []Activity
	follows    map[string]struct{}
	likes      map[string]struct{}
	comments   []Comment

	nextActivityID int64
	nextCommentID  int64
}

func newRepoMock(knownUserIDs ...int64) *repoMock {
	knownUsers := make(map[int64]struct{})
	for _, id := range knownUserIDs {
		knownUsers[id] = struct{}{}
	}
	return &repoMock{
		knownUsers:     knownUsers,
		follows:        make(map[string]struct{}),
		likes:          make(map[string]struct{}),
		nextActivityID: 1,
		nextCommentID:  1,
	}
}

func followKey(followerID, followeeID int64) string {
	return fmt.Sprintf("%d->%d", followerID, followeeID)
}

func likeKey(userID int64, refID string) string {
	return fmt.Sprintf("%d:%s", userID, refID)
}

func (m *repoMock) RecordActivity(_ context.Context, userID int64, activityType string, refID *string) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	id := m.nextActivityID
	m.nextActivityID++
	m.activities = append(m.activities, Activity{
		ID:        id,
		UserID:    userID,
		Type:      activityType,
		RefID:     refID,
		CreatedAt: time.Now().UTC(),
	})
	return id, nil
}

func (m *repoMock) addActivity(userID int64, activityType string, createdAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	id := m.nextActivityID
	m.nextActivityID++
	m.activities = append(m.activities, Activity{
		ID:        id,
		UserID:    userID,
		Type:      activityType,
		CreatedAt: createdAt,
	})
}

func (m *repoMock) Follow(_ context.Context, followerID, followeeID int64) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.knownUsers[followeeID]; !ok {
		return users.ErrUserNotFound
	}
	key := followKey(followerID, followeeID)
	if _, ok := m.follows[key]; ok {
		return ErrAlreadyFollowing
	}
	m.follows[key] = struct{}{}
	return nil
}

func (m *repoMock) Unfollow(_ context.Context, followerID, followeeID int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	key := followKey(followerID, followeeID)
	if _, ok := m.follows[key]; !ok {
		return ErrNotFollowing
	}
	delete(m.follows, key)
	return nil
}

func (m *repoMock) Feed(_ context.Context, userID int64, limit int, cursor string) (*FeedPage, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	limit = normalizeLimit(limit)

	var cursorTs time.Time
	var cursorID int64
	hasCursor := cursor != ""
	if hasCursor {
		var err error
		cursorTs, cursorID, err = decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
	}

	items := make([]Activity, 0)
	for _, a := range m.activities {
		if _, ok := m.follows[followKey(userID, a.UserID)]; !ok {
			continue
		}
		if hasCursor {
			before := a.CreatedAt.Before(cursorTs) ||
				(a.CreatedAt.Equal(cursorTs) && a.ID < cursorID)
			if !before {
				continue
			}
		}
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return feedPage(items, limit), nil
}

func (m *repoMock) Like(_ context.Context, userID int64, refID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	key := likeKey(userID, refID)
	if _, ok := m.likes[key]; ok {
		return ErrAlreadyLiked
	}
	m.likes[key] = struct{}{}
	return nil
}

func (m *repoMock) Unlike(_ context.Context, userID int64, refID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	key := likeKey(userID, refID)
	if _, ok := m.likes[key]; !ok {
		return ErrLikeNotFound
	}
	delete(m.likes, key)
	return nil
}

func (m *repoMock) CreateComment(_ context.Context, userID int64, refID, content string) (*Comment, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	comment := Comment{
		ID:        m.nextCommentID,
		UserID:    userID,
		RefID:     refID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	m.nextCommentID++
	m.comments = append(m.comments, comment)
	return &comment, nil
}

func (m *repoMock) ListComments(_ context.Context, refID string) ([]Comment, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	comments := make([]Comment, 0)
	for _, c := range m.comments {
		if c.RefID == refID {
			comments = append(comments, c)
		}
	}
	return comments, nil
}

func (m *repoMock) DeleteComment(_ context.Context, commentID, userID int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i, c := range m.comments {
		if c.ID == commentID && c.UserID == userID {
			m.comments = append(m.comments[:i], m.comments[i+1:]...)
			return nil
		}
	}
	return ErrCommentNotFound
}

func setupSocialHandlerTest(repo socialRepo) (*mux.Router, *metrics.Manager) {
	metricsManager := metrics.NewTestManager()
	handler := NewHandler(repo, metricsManager)
	router := mux.NewRouter()
	handler.SetupRoutes(router)
	return router, metricsManager
}

func doRequest(router *mux.Router, userID int64, method, target, body string) *httptest.ResponseRecorder {
	var bodyReader *strings.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	} else {
		bodyReader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, bodyReader)
	if userID > 0 {
		req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandler_RecordActivity(t *testing.T) {
	repo := newRepoMock(1)
	router, metricsManager := setupSocialHandlerTest(repo)

	rr := doRequest(router, 1, "POST", "/api/social/activity", `{"type":"workout_logged","ref_id":"w-1"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp map[string]int64
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp["id"])
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterActivitiesRecorded))

	// missing type
	rr = doRequest(router, 1, "POST", "/api/social/activity", `{"type":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// not logged in
	rr = doRequest(router, 0, "POST", "/api/social/activity", `{"type":"workout_logged"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandler_FollowUnfollow(t *testing.T) {
	repo := newRepoMock(1, 2)
	router, _ := setupSocialHandlerTest(repo)

	testCases := []struct {
		name           string
		userID         int64
		body           string
		expectedStatus int
	}{
		{name: "follow ok", userID: 1, body: `{"user_id":2}`, expectedStatus: http.StatusCreated},
		{name: "duplicate follow", userID: 1, body: `{"user_id":2}`, expectedStatus: http.StatusConflict},
		{name: "self follow", userID: 1, body: `{"user_id":1}`, expectedStatus: http.StatusBadRequest},
		{name: "unknown target", userID: 1, body: `{"user_id":99}`, expectedStatus: http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(router, tc.userID, "POST", "/api/social/follow", tc.body)
			assert.Equal(t, tc.expectedStatus, rr.Code)
		})
	}

	// unfollow removes the edge, a second unfollow is a 404
	rr := doRequest(router, 1, "DELETE", "/api/social/follow", `{"user_id":2}`)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = doRequest(router, 1, "DELETE", "/api/social/follow", `{"user_id":2}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Feed_Pagination(t *testing.T) {
	repo := newRepoMock(1, 2)
	router, _ := setupSocialHandlerTest(repo)

	rr := doRequest(router, 1, "POST", "/api/social/follow", `{"user_id":2}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	base := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	repo.addActivity(2, "workout_logged", base)
	repo.addActivity(2, "routine_created", base.Add(time.Minute))
	repo.addActivity(2, "workout_logged", base.Add(2*time.Minute))

	// page one: two newest activities and a cursor
	rr = doRequest(router, 1, "GET", "/api/social/feed?limit=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page FeedPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.Items[0].ID)
	assert.Equal(t, int64(2), page.Items[1].ID)
	require.NotNil(t, page.NextCursor)

	// page two: the remaining activity, no overlap, no cursor
	feedURL := "/api/social/feed?limit=2&cursor=" + url.QueryEscape(*page.NextCursor)
	rr = doRequest(router, 1, "GET", feedURL, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var secondPage FeedPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &secondPage))
	require.Len(t, secondPage.Items, 1)
	assert.Equal(t, int64(1), secondPage.Items[0].ID)
	assert.Nil(t, secondPage.NextCursor)
}

func TestHandler_Feed_BadParams(t *testing.T) {
	repo := newRepoMock(1)
	router, _ := setupSocialHandlerTest(repo)

	rr := doRequest(router, 1, "GET", "/api/social/feed?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(router, 1, "GET", "/api/social/feed?cursor=not-a-cursor", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(router, 1, "GET", "/api/social/feed?cursor="+url.QueryEscape("2024-01-05|abc"), "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// empty feed for a user following no one
	rr = doRequest(router, 1, "GET", "/api/social/feed", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page FeedPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Empty(t, page.Items)
	assert.Nil(t, page.NextCursor)
}

func TestHandler_LikeUnlike(t *testing.T) {
	repo := newRepoMock(1)
	router, _ := setupSocialHandlerTest(repo)

	rr := doRequest(router, 1, "POST", "/api/social/like", `{"ref_id":"w-1"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = doRequest(router, 1, "POST", "/api/social/like", `{"ref_id":"w-1"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doRequest(router, 1, "POST", "/api/social/like", `{"ref_id":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(router, 1, "DELETE", "/api/social/like", `{"ref_id":"w-1"}`)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(router, 1, "DELETE", "/api/social/like", `{"ref_id":"w-1"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Comments(t *testing.T) {
	repo := newRepoMock(1, 2)
	router, _ := setupSocialHandlerTest(repo)

	rr := doRequest(router, 1, "POST", "/api/social/comment", `{"ref_id":"w-1","content":"  nice session  "}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var comment Comment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &comment))
	assert.Equal(t, "nice session", comment.Content)
	assert.Equal(t, int64(1), comment.UserID)

	// validation
	rr = doRequest(router, 1, "POST", "/api/social/comment", `{"ref_id":"w-1","content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	tooLong := strings.Repeat("x", 501)
	rr = doRequest(router, 1, "POST", "/api/social/comment", `{"ref_id":"w-1","content":"`+tooLong+`"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// length limit counts characters, not bytes
	multibyte := strings.Repeat("é", 300)
	rr = doRequest(router, 1, "POST", "/api/social/comment", `{"ref_id":"w-2","content":"`+multibyte+`"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	multibyteTooLong := strings.Repeat("é", 501)
	rr = doRequest(router, 1, "POST", "/api/social/comment", `{"ref_id":"w-2","content":"`+multibyteTooLong+`"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// listing
	rr = doRequest(router, 2, "GET", "/api/social/comments?ref_id=w-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var comments []Comment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &comments))
	require.Len(t, comments, 1)

	// only the author can delete
	rr = doRequest(router, 2, "DELETE", fmt.Sprintf("/api/social/comment/%d", comment.ID), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = doRequest(router, 1, "DELETE", fmt.Sprintf("/api/social/comment/%d", comment.ID), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(router, 2, "GET", "/api/social/comments?ref_id=w-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	comments = nil
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &comments))
	assert.Empty(t, comments)
}
