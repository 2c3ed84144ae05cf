package coach

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mveljkovic/traintracker/internal/telemetry/metrics"
	"github.com/mveljkovic/traintracker/internal/workouts"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest(entries []workouts.WorkoutEntry) *mux.Router {
	recommender := NewRecommender(&sourceMock{entries: entries}, metrics.NewTestManager())
	handler := NewHandler(recommender)
	router := mux.NewRouter()
	handler.SetupRoutes(router)
	return router
}

func TestHandler_Recommendations(t *testing.T) {
	router := setupHandlerTest([]workouts.WorkoutEntry{
		entry("2025-04-01", "Bench Press", set(60, 10)),
		entry("2025-04-08", "Bench Press", set(60, 10)),
	})

	req := httptest.NewRequest("GET", "/api/coach/recommendations", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var result Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.InsufficientData)
	assert.Len(t, result.Metrics.WeeklyVolume, 2)
}

func TestHandler_Recommendations_DaysValidation(t *testing.T) {
	router := setupHandlerTest(nil)

	testCases := []struct {
		name           string
		url            string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "days not a number",
			url:            "/api/coach/recommendations?days=abc",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "error, days NaN",
		},
		{
			name:           "days below range",
			url:            "/api/coach/recommendations?days=6",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "error, days must be in [7, 180]",
		},
		{
			name:           "days above range",
			url:            "/api/coach/recommendations?days=181",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "error, days must be in [7, 180]",
		},
		{
			name:           "lower bound accepted",
			url:            "/api/coach/recommendations?days=7",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "upper bound accepted",
			url:            "/api/coach/recommendations?days=180",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.url, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedBody != "" {
				assert.Contains(t, rr.Body.String(), tc.expectedBody)
			}
		})
	}
}
