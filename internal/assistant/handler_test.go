package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completionClientMock struct {
	// responses keyed by jsonOnly mode, consumed in order
	jsonResponses []string
	textResponses []string
	err           error
	calls         int
}

func (m *completionClientMock) Complete(_ context.Context, _ []Message, jsonOnly bool) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if jsonOnly {
		if len(m.jsonResponses) == 0 {
			return "", ErrUpstream
		}
		out := m.jsonResponses[0]
		m.jsonResponses = m.jsonResponses[1:]
		return out, nil
	}
	if len(m.textResponses) == 0 {
		return "", ErrUpstream
	}
	out := m.textResponses[0]
	m.textResponses = m.textResponses[1:]
	return out, nil
}

func setupAssistantHandlerTest(client completionClient) *mux.Router {
	handler := NewHandler(client)
	router := mux.NewRouter()
	handler.SetupRoutes(router)
	return router
}

func postJSON(router *mux.Router, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

const routineJSON = `{
	"name": "Push Day",
	"memo": "focus on chest",
	"items": [
		{"exercise": "Bench Press", "category": "push", "sets": 4, "reps": "8-12"},
		{"exercise": "Overhead Press", "category": "push", "sets": 3, "reps": "8-10"}
	]
}`

func TestHandler_TodayRoutine(t *testing.T) {
	client := &completionClientMock{jsonResponses: []string{routineJSON}}
	router := setupAssistantHandlerTest(client)

	rr := postJSON(router, "/api/ai/today-routine", `{"workouts":[{"exercise":"Bench Press"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Push Day", resp["name"])
	items, ok := resp["items"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestHandler_TodayRoutine_BadUpstream(t *testing.T) {
	testCases := []struct {
		name   string
		client *completionClientMock
	}{
		{name: "upstream error", client: &completionClientMock{err: ErrUpstream}},
		{name: "non json response", client: &completionClientMock{jsonResponses: []string{"sure, here you go"}}},
		{name: "items missing", client: &completionClientMock{jsonResponses: []string{`{"name":"x"}`}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := setupAssistantHandlerTest(tc.client)
			rr := postJSON(router, "/api/ai/today-routine", `{"workouts":[]}`)
			assert.Equal(t, http.StatusBadGateway, rr.Code)
		})
	}
}

func TestHandler_Chat(t *testing.T) {
	client := &completionClientMock{
		textResponses: []string{"swap bench for incline press"},
		jsonResponses: []string{routineJSON},
	}
	router := setupAssistantHandlerTest(client)

	rr := postJSON(router, "/api/ai/chat", `{"message":"make it harder","routine":`+routineJSON+`}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "swap bench for incline press", resp.Reply)
	require.NotNil(t, resp.UpdatedRoutine)
	assert.Equal(t, "Push Day", resp.UpdatedRoutine.Name)
	assert.Equal(t, 2, client.calls)
}

func TestHandler_Chat_UpdatedRoutineBestEffort(t *testing.T) {
	// follow-up returning garbage must not fail the chat
	client := &completionClientMock{
		textResponses: []string{"sounds good"},
		jsonResponses: []string{"not json"},
	}
	router := setupAssistantHandlerTest(client)

	rr := postJSON(router, "/api/ai/chat", `{"message":"thoughts?"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "sounds good", resp.Reply)
	assert.Nil(t, resp.UpdatedRoutine)

	// empty items list is treated the same as no routine
	client = &completionClientMock{
		textResponses: []string{"ok"},
		jsonResponses: []string{`{"name":"x","items":[]}`},
	}
	router = setupAssistantHandlerTest(client)
	rr = postJSON(router, "/api/ai/chat", `{"message":"thoughts?"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	resp = ChatResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Nil(t, resp.UpdatedRoutine)
}

func TestHandler_Chat_Validation(t *testing.T) {
	client := &completionClientMock{textResponses: []string{"hi"}}
	router := setupAssistantHandlerTest(client)

	// missing message
	rr := postJSON(router, "/api/ai/chat", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, client.calls)

	// primary completion failure is a bad gateway
	failing := &completionClientMock{err: ErrUpstream}
	router = setupAssistantHandlerTest(failing)
	rr = postJSON(router, "/api/ai/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}
