package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realsync-server/pkg/engine"
	"realsync-server/pkg/rules"
)

func newTestHub(t *testing.T) (*AlertHub, *httptest.Server) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	hub := NewAlertHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return hub, ts
}

func dialHub(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *AlertHub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients, have %d", want, hub.ClientCount())
}

func TestAlertHubBroadcastsAlerts(t *testing.T) {
	hub, ts := newTestHub(t)
	conn := dialHub(t, ts, "")
	waitForClients(t, hub, 1)

	alert := &engine.Alert{
		ID:       "a-1",
		Severity: rules.SeverityCritical,
		Category: "fraud",
		Title:    "Financial Fraud Warning",
	}
	hub.OnAlert("sess-1", alert)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg AlertStreamMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "sess-1", msg.SessionID)
	assert.Equal(t, "alert", msg.Kind)
	require.NotNil(t, msg.Alert)
	assert.Equal(t, "a-1", msg.Alert.ID)
	assert.Nil(t, msg.Suggestion)
}

func TestAlertHubSessionFiltering(t *testing.T) {
	hub, ts := newTestHub(t)
	conn := dialHub(t, ts, "?session_id=sess-a")
	waitForClients(t, hub, 1)

	hub.OnSuggestion("sess-b", &engine.Suggestion{Title: "Run a liveness check"})
	hub.OnSuggestion("sess-a", &engine.Suggestion{Title: "Verify before acting"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg AlertStreamMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "sess-a", msg.SessionID)
	assert.Equal(t, "suggestion", msg.Kind)
	require.NotNil(t, msg.Suggestion)
	assert.Equal(t, "Verify before acting", msg.Suggestion.Title)
}

func TestAlertHubClientCountTracksDisconnect(t *testing.T) {
	hub, ts := newTestHub(t)
	conn := dialHub(t, ts, "")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestAlertHubIgnoresNilPayloads(t *testing.T) {
	hub, _ := newTestHub(t)

	hub.OnAlert("sess-1", nil)
	hub.OnSuggestion("sess-1", nil)
	assert.Equal(t, 0, hub.ClientCount())
}
