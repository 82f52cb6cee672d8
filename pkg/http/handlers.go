package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"realsync-server/pkg/engine"
	"realsync-server/pkg/errors"
)

// APIHandler exposes the signal ingest API over HTTP. Transcript lines and
// frame-analysis snapshots arrive here from the capture collaborators.
type APIHandler struct {
	logger      *logrus.Logger
	coordinator *engine.Coordinator
}

// NewAPIHandler creates the ingest API handler.
func NewAPIHandler(logger *logrus.Logger, coordinator *engine.Coordinator) *APIHandler {
	return &APIHandler{
		logger:      logger,
		coordinator: coordinator,
	}
}

// RegisterHandlers registers the ingest API endpoints with the server.
func (h *APIHandler) RegisterHandlers(server *Server) {
	server.RegisterHandler("/api/sessions/{id}/transcript", h.handleTranscript)
	server.RegisterHandler("/api/sessions/{id}/frame-analysis", h.handleFrameAnalysis)
	server.RegisterHandler("/api/sessions/{id}/meeting-type", h.handleMeetingType)
	server.RegisterHandler("/api/sessions/{id}/analysis", h.handleAnalysis)
	server.RegisterHandler("/api/sessions/{id}/end", h.handleEnd)
	h.logger.Info("Session ingest API handlers registered")
}

// transcriptRequest is one incoming transcript line.
type transcriptRequest struct {
	Speaker   string    `json:"speaker,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// evaluationResponse carries the alert/suggestion batch for one signal.
type evaluationResponse struct {
	SessionID   string              `json:"session_id"`
	Alerts      []engine.Alert      `json:"alerts"`
	Suggestions []engine.Suggestion `json:"suggestions,omitempty"`
}

func (h *APIHandler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := extractSessionID(r.URL.Path)
	if sessionID == "" {
		writeJSONError(w, "invalid session ID", http.StatusBadRequest)
		return
	}

	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	event := &engine.TranscriptEvent{
		SessionID: sessionID,
		Speaker:   req.Speaker,
		Text:      req.Text,
		Timestamp: req.Timestamp,
	}
	alerts, suggestions, err := h.coordinator.HandleTranscript(r.Context(), event)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to process transcript")
		writeError(w, err)
		return
	}

	if alerts == nil {
		alerts = []engine.Alert{}
	}
	writeJSONResponse(w, evaluationResponse{
		SessionID:   sessionID,
		Alerts:      alerts,
		Suggestions: suggestions,
	}, http.StatusOK)
}

func (h *APIHandler) handleFrameAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := extractSessionID(r.URL.Path)
	if sessionID == "" {
		writeJSONError(w, "invalid session ID", http.StatusBadRequest)
		return
	}

	var snap engine.VisualSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	alerts, err := h.coordinator.HandleSnapshot(r.Context(), sessionID, snap)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to process frame analysis")
		writeError(w, err)
		return
	}

	if alerts == nil {
		alerts = []engine.Alert{}
	}
	writeJSONResponse(w, evaluationResponse{
		SessionID: sessionID,
		Alerts:    alerts,
	}, http.StatusOK)
}

// meetingTypeRequest sets the manual meeting-type override.
type meetingTypeRequest struct {
	MeetingType string `json:"meeting_type"`
}

func (h *APIHandler) handleMeetingType(w http.ResponseWriter, r *http.Request) {
	sessionID := extractSessionID(r.URL.Path)
	if sessionID == "" {
		writeJSONError(w, "invalid session ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req meetingTypeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.coordinator.SetMeetingType(sessionID, engine.MeetingType(req.MeetingType)); err != nil {
			writeError(w, err)
			return
		}
		h.logger.WithFields(logrus.Fields{
			"session_id":   sessionID,
			"meeting_type": req.MeetingType,
		}).Info("Manual meeting type set")
		writeJSONResponse(w, map[string]string{
			"session_id":   sessionID,
			"meeting_type": req.MeetingType,
		}, http.StatusOK)

	case http.MethodGet:
		classification, err := h.coordinator.MeetingType(sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSONResponse(w, classification, http.StatusOK)

	default:
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIHandler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := extractSessionID(r.URL.Path)
	if sessionID == "" {
		writeJSONError(w, "invalid session ID", http.StatusBadRequest)
		return
	}

	analysis, err := h.coordinator.Analysis(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, analysis, http.StatusOK)
}

func (h *APIHandler) handleEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := extractSessionID(r.URL.Path)
	if sessionID == "" {
		writeJSONError(w, "invalid session ID", http.StatusBadRequest)
		return
	}

	if err := h.coordinator.EndSession(sessionID); err != nil {
		if !errors.Is(err, errors.ErrSessionNotFound) {
			h.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to end session")
		}
		writeError(w, err)
		return
	}
	writeJSONResponse(w, map[string]string{
		"session_id": sessionID,
		"status":     "ended",
	}, http.StatusOK)
}

// extractSessionID extracts the session ID from a path like
// /api/sessions/{id}/transcript
func extractSessionID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "sessions" && parts[2] != "" {
		return parts[2]
	}
	return ""
}

// writeJSONError writes a plain JSON error with an explicit status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"error": message,
		"code":  statusCode,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON error response")
	}
}
