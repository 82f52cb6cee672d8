package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realsync-server/pkg/engine"
	"realsync-server/pkg/rules"
)

func newTestServer(t *testing.T) (*Server, *engine.Coordinator) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	coordinator := engine.NewCoordinator(logger, rules.NewScorer(nil), nil, nil, engine.DefaultCoordinatorConfig())

	config := DefaultConfig()
	config.EnableAPI = true
	config.EnableMetrics = false
	server := NewServer(logger, config)

	handler := NewAPIHandler(logger, coordinator)
	handler.RegisterHandlers(server)

	return server, coordinator
}

func postJSON(t *testing.T, server *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	return rec
}

func TestTranscriptEndpointReturnsAlerts(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server, "/api/sessions/sess-1/transcript", map[string]string{
		"speaker": "caller",
		"text":    "please wire transfer the funds today",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp evaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "critical", string(resp.Alerts[0].Severity))
	assert.Equal(t, "fraud", resp.Alerts[0].Category)
}

func TestTranscriptEndpointBenignTextReturnsEmptyBatch(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server, "/api/sessions/sess-2/transcript", map[string]string{
		"text": "good morning all",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp evaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Alerts)
	assert.Empty(t, resp.Suggestions)
}

func TestTranscriptEndpointRejectsBadBody(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/sess-3/transcript", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscriptEndpointMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	rec := getPath(t, server, "/api/sessions/sess-4/transcript")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFrameAnalysisEndpointReturnsVisualAlerts(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server, "/api/sessions/sess-5/frame-analysis", map[string]interface{}{
		"authenticity_score": 0.55,
		"identity_shift":     0.05,
		"dominant_emotion":   map[string]interface{}{"label": "Neutral", "confidence": 0.9},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp evaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "deepfake", resp.Alerts[0].Category)
	assert.Equal(t, "critical", string(resp.Alerts[0].Severity))
}

func TestMeetingTypeSetAndGet(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server, "/api/sessions/sess-6/meeting-type", map[string]string{
		"meeting_type": "official",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = getPath(t, server, "/api/sessions/sess-6/meeting-type")
	require.Equal(t, http.StatusOK, rec.Code)

	var classification engine.MeetingClassification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &classification))
	assert.Equal(t, engine.MeetingOfficial, classification.Label)
	assert.Equal(t, "manual", classification.Source)
}

func TestMeetingTypeRejectsUnknownLabel(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server, "/api/sessions/sess-7/meeting-type", map[string]string{
		"meeting_type": "standup",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeetingTypeSecondSetConflicts(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server, "/api/sessions/sess-8/meeting-type", map[string]string{
		"meeting_type": "business",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, server, "/api/sessions/sess-8/meeting-type", map[string]string{
		"meeting_type": "friends",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMeetingTypeGetUnknownSession(t *testing.T) {
	server, _ := newTestServer(t)

	rec := getPath(t, server, "/api/sessions/missing/meeting-type")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalysisEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server, "/api/sessions/sess-9/transcript", map[string]string{
		"text": "move it to my bank account",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = getPath(t, server, "/api/sessions/sess-9/analysis")
	require.Equal(t, http.StatusOK, rec.Code)

	var analysis engine.SessionAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.Equal(t, "sess-9", analysis.SessionID)
	assert.Equal(t, int64(1), analysis.Evaluations)
	assert.Equal(t, int64(1), analysis.Alerts)
}

func TestEndSessionEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server, "/api/sessions/sess-10/transcript", map[string]string{
		"text": "hello there",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, server, "/api/sessions/sess-10/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = getPath(t, server, "/api/sessions/sess-10/analysis")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEndSessionUnknownSession(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server, "/api/sessions/never-seen/end", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtractSessionID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/sessions/abc/transcript", "abc"},
		{"/api/sessions/abc/meeting-type", "abc"},
		{"/api/sessions//transcript", ""},
		{"/api/other/abc/transcript", ""},
		{"/health", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractSessionID(tt.path), "path %q", tt.path)
	}
}

func TestHealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	rec := getPath(t, server, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = getPath(t, server, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Server"), "realsync/")
}
