package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"realsync-server/pkg/errors"
	"realsync-server/pkg/metrics"
	"realsync-server/pkg/rules"
)

// Subscriber receives emitted alerts and suggestions in real time.
type Subscriber interface {
	OnAlert(sessionID string, alert *Alert)
	OnSuggestion(sessionID string, suggestion *Suggestion)
}

// AlertWriter persists emitted alerts to external storage.
type AlertWriter interface {
	Save(ctx context.Context, sessionID string, alert *Alert) error
}

// escalationNote is appended to fraud/scam alert messages promoted to
// critical because of concurrent visual manipulation risk.
const escalationNote = "escalated: concurrent visual manipulation risk"

// CoordinatorConfig tunes the fusion coordinator and its evaluators.
type CoordinatorConfig struct {
	WindowSpan     time.Duration // rolling transcript window
	SessionMaxIdle time.Duration // stale sessions get swept past this
	Fraud          FraudConfig
	Visual         VisualConfig
}

// DefaultCoordinatorConfig returns the standard engine configuration.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		WindowSpan:     60 * time.Second,
		SessionMaxIdle: 30 * time.Minute,
		Fraud:          DefaultFraudConfig(),
		Visual:         DefaultVisualConfig(),
	}
}

// Coordinator is the single entry point for incoming signals. Each signal
// (transcript line or visual snapshot) loads the session state, runs the
// relevant evaluators, applies cross-signal escalation, persists state,
// and fans the resulting batch out to subscribers and the alert writer.
type Coordinator struct {
	logger     *logrus.Logger
	config     CoordinatorConfig
	store      StateStore
	clock      Clock
	fraud      *FraudEvaluator
	visual     *VisualEvaluator
	classifier *MeetingClassifier
	suggest    *SuggestionEngine

	mu        sync.RWMutex
	listeners []Subscriber
	writer    AlertWriter
}

// NewCoordinator constructs a coordinator over the given scorer and store.
// A nil store falls back to in-memory state; a nil clock uses wall time.
func NewCoordinator(logger *logrus.Logger, scorer *rules.Scorer, store StateStore, clock Clock, config CoordinatorConfig) *Coordinator {
	if store == nil {
		store = NewInMemoryStateStore()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Coordinator{
		logger:     logger,
		config:     config,
		store:      store,
		clock:      clock,
		fraud:      NewFraudEvaluator(logger, scorer, config.Fraud),
		visual:     NewVisualEvaluator(logger, config.Visual),
		classifier: NewMeetingClassifier(logger),
		suggest:    NewSuggestionEngine(logger),
		listeners:  make([]Subscriber, 0),
	}
}

// SetAlertWriter registers an alert writer for durable persistence.
func (c *Coordinator) SetAlertWriter(writer AlertWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer = writer
}

// AddSubscriber registers an alert/suggestion subscriber.
func (c *Coordinator) AddSubscriber(sub Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, sub)
}

// RemoveSubscriber removes a previously registered subscriber.
func (c *Coordinator) RemoveSubscriber(sub Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.listeners {
		if s == sub {
			c.listeners[i] = c.listeners[len(c.listeners)-1]
			c.listeners = c.listeners[:len(c.listeners)-1]
			return
		}
	}
}

// HandleTranscript processes one transcript line: records it in the
// rolling window, scores it, derives suggestions, and notifies
// subscribers. An event with no session ID is rejected; empty text still
// counts as an evaluation and simply matches nothing.
func (c *Coordinator) HandleTranscript(ctx context.Context, event *TranscriptEvent) ([]Alert, []Suggestion, error) {
	if event == nil || event.SessionID == "" {
		return nil, nil, errors.Wrap(errors.ErrInvalidSignal, "transcript event missing session id")
	}

	now := event.Timestamp
	if now.IsZero() {
		now = c.clock.Now()
	}

	state, fresh, err := c.loadOrCreate(event.SessionID, now)
	if err != nil {
		return nil, nil, err
	}

	var alerts []Alert
	if alert := c.fraud.Evaluate(state, event.Text, now); alert != nil {
		alerts = append(alerts, *alert)
	}

	meeting := c.classifier.Classify(state, now)
	suggestions := c.suggest.Evaluate(state, event.Text, meeting, now)

	c.escalate(state, alerts)

	state.Evaluations++
	state.AlertCount += int64(len(alerts))
	state.SuggestionCount += int64(len(suggestions))
	state.LastUpdated = now

	if err := c.store.Set(event.SessionID, state); err != nil {
		return nil, nil, errors.Wrap(errors.ErrStateStoreFailure, "persisting session state",
			map[string]interface{}{"session_id": event.SessionID})
	}

	metrics.RecordEvaluation("transcript")
	if fresh {
		metrics.SessionStarted()
	}
	c.publish(event.SessionID, alerts, suggestions)
	return alerts, suggestions, nil
}

// HandleSnapshot processes one visual-analysis snapshot. The snapshot
// replaces the session's current one (last-write-wins) before the visual
// evaluator thresholds it.
func (c *Coordinator) HandleSnapshot(ctx context.Context, sessionID string, snap VisualSnapshot) ([]Alert, error) {
	if sessionID == "" {
		return nil, errors.Wrap(errors.ErrInvalidSignal, "snapshot missing session id")
	}

	now := c.clock.Now()
	state, fresh, err := c.loadOrCreate(sessionID, now)
	if err != nil {
		return nil, err
	}

	snap.AuthenticityScore = clamp01(snap.AuthenticityScore)
	if snap.IdentityShift < 0 {
		snap.IdentityShift = 0
	}
	stored := snap
	state.Snapshot = &stored

	meeting := c.classifier.Classify(state, now)
	alerts := c.visual.Evaluate(state, snap, meeting.Label, now)

	// Visual categories are never escalated; the batch is filtered by
	// category inside escalate.
	c.escalate(state, alerts)

	state.Evaluations++
	state.AlertCount += int64(len(alerts))
	state.LastUpdated = now

	if err := c.store.Set(sessionID, state); err != nil {
		return nil, errors.Wrap(errors.ErrStateStoreFailure, "persisting session state",
			map[string]interface{}{"session_id": sessionID})
	}

	metrics.RecordEvaluation("snapshot")
	if fresh {
		metrics.SessionStarted()
	}
	c.publish(sessionID, alerts, nil)
	return alerts, nil
}

// SetMeetingType records a manual meeting-type override. The override is
// settable once per session and wins over every other channel.
func (c *Coordinator) SetMeetingType(sessionID string, t MeetingType) error {
	if sessionID == "" {
		return errors.Wrap(errors.ErrInvalidSignal, "missing session id")
	}
	if !ValidMeetingType(t) {
		return errors.Wrap(errors.ErrInvalidMeetingType, "unknown meeting type",
			map[string]interface{}{"meeting_type": string(t)})
	}

	now := c.clock.Now()
	state, fresh, err := c.loadOrCreate(sessionID, now)
	if err != nil {
		return err
	}
	if state.ManualType != "" {
		return errors.Wrap(errors.ErrMeetingTypeAlreadySet, "manual meeting type already recorded",
			map[string]interface{}{"session_id": sessionID, "meeting_type": string(state.ManualType)})
	}

	state.ManualType = t
	state.LastUpdated = now
	if err := c.store.Set(sessionID, state); err != nil {
		return errors.Wrap(errors.ErrStateStoreFailure, "persisting session state",
			map[string]interface{}{"session_id": sessionID})
	}
	if fresh {
		metrics.SessionStarted()
	}
	return nil
}

// MeetingType resolves the current meeting classification for a session.
func (c *Coordinator) MeetingType(sessionID string) (MeetingClassification, error) {
	state, err := c.store.Get(sessionID)
	if err != nil {
		return MeetingClassification{}, errors.Wrap(errors.ErrStateStoreFailure, "loading session state",
			map[string]interface{}{"session_id": sessionID})
	}
	if state == nil {
		return MeetingClassification{}, errors.Wrap(errors.ErrSessionNotFound, "no such session",
			map[string]interface{}{"session_id": sessionID})
	}
	return c.classifier.Classify(state, c.clock.Now()), nil
}

// SessionAnalysis is the aggregated per-session view exposed to callers.
type SessionAnalysis struct {
	SessionID    string                `json:"session_id"`
	Meeting      MeetingClassification `json:"meeting"`
	DeepfakeRisk RiskLevel             `json:"deepfake_risk"`
	IdentityRisk RiskLevel             `json:"identity_risk"`
	Evaluations  int64                 `json:"evaluations"`
	Alerts       int64                 `json:"alerts"`
	Suggestions  int64                 `json:"suggestions"`
	CreatedAt    time.Time             `json:"created_at"`
	LastUpdated  time.Time             `json:"last_updated"`
}

// Analysis returns the aggregated view for a session.
func (c *Coordinator) Analysis(sessionID string) (*SessionAnalysis, error) {
	state, err := c.store.Get(sessionID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStateStoreFailure, "loading session state",
			map[string]interface{}{"session_id": sessionID})
	}
	if state == nil {
		return nil, errors.Wrap(errors.ErrSessionNotFound, "no such session",
			map[string]interface{}{"session_id": sessionID})
	}

	analysis := &SessionAnalysis{
		SessionID:    sessionID,
		Meeting:      c.classifier.Classify(state, c.clock.Now()),
		DeepfakeRisk: RiskLow,
		IdentityRisk: RiskLow,
		Evaluations:  state.Evaluations,
		Alerts:       state.AlertCount,
		Suggestions:  state.SuggestionCount,
		CreatedAt:    state.CreatedAt,
		LastUpdated:  state.LastUpdated,
	}
	if state.Snapshot != nil {
		analysis.DeepfakeRisk = DeepfakeRisk(state.Snapshot.AuthenticityScore)
		analysis.IdentityRisk = IdentityRisk(state.Snapshot.IdentityShift)
	}
	return analysis, nil
}

// EndSession destroys the session state. Nothing survives session end.
func (c *Coordinator) EndSession(sessionID string) error {
	state, err := c.store.Get(sessionID)
	if err != nil {
		return errors.Wrap(errors.ErrStateStoreFailure, "loading session state",
			map[string]interface{}{"session_id": sessionID})
	}
	if state == nil {
		return errors.Wrap(errors.ErrSessionNotFound, "no such session",
			map[string]interface{}{"session_id": sessionID})
	}
	if err := c.store.Delete(sessionID); err != nil {
		return errors.Wrap(errors.ErrStateStoreFailure, "deleting session state",
			map[string]interface{}{"session_id": sessionID})
	}
	metrics.SessionEnded()
	c.logger.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"evaluations": state.Evaluations,
		"alerts":      state.AlertCount,
	}).Info("Session ended")
	return nil
}

// RunCleanup sweeps stale sessions on a ticker until the context is done.
func (c *Coordinator) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := c.store.Cleanup(c.clock.Now(), c.config.SessionMaxIdle)
			if err != nil {
				c.logger.WithError(err).Warn("Session cleanup failed")
				continue
			}
			for range removed {
				metrics.SessionEnded()
			}
			if len(removed) > 0 {
				c.logger.WithField("count", len(removed)).Info("Swept stale sessions")
			}
		}
	}
}

// loadOrCreate fetches the session state, creating it on first signal.
func (c *Coordinator) loadOrCreate(sessionID string, now time.Time) (*State, bool, error) {
	state, err := c.store.Get(sessionID)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrStateStoreFailure, "loading session state",
			map[string]interface{}{"session_id": sessionID})
	}
	if state != nil {
		return state, false, nil
	}
	return newState(sessionID, c.config.WindowSpan, now), true, nil
}

// escalate promotes fraud and scam alerts to critical while the current
// visual snapshot carries non-low deepfake risk. It never demotes and
// never touches other categories.
func (c *Coordinator) escalate(state *State, alerts []Alert) {
	if state.Snapshot == nil || DeepfakeRisk(state.Snapshot.AuthenticityScore) == RiskLow {
		return
	}
	for i := range alerts {
		switch rules.AlertCategory(alerts[i].Category) {
		case rules.CategoryFraud, rules.CategoryScam:
		default:
			continue
		}
		if alerts[i].Severity == rules.SeverityCritical {
			continue
		}
		alerts[i].Severity = rules.SeverityCritical
		if !strings.Contains(alerts[i].Message, escalationNote) {
			alerts[i].Message += " (" + escalationNote + ")"
		}
		c.logger.WithFields(logrus.Fields{
			"session_id": state.SessionID,
			"alert_id":   alerts[i].ID,
			"category":   alerts[i].Category,
		}).Info("Alert escalated to critical on visual risk")
	}
}

// persistTimeout bounds the background save of one alert.
const persistTimeout = 5 * time.Second

// publish fans a batch out to the writer and subscribers. Persistence runs
// in the background; its failures are logged, never surfaced to the signal
// path, and the signal path never waits on it.
func (c *Coordinator) publish(sessionID string, alerts []Alert, suggestions []Suggestion) {
	c.mu.RLock()
	writer := c.writer
	listeners := append([]Subscriber(nil), c.listeners...)
	c.mu.RUnlock()

	for i := range alerts {
		metrics.RecordAlert(alerts[i].Category, string(alerts[i].Severity))
		if writer != nil {
			alert := alerts[i]
			go func() {
				// The request context is canceled once the handler
				// returns, so the save gets its own deadline.
				saveCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
				defer cancel()
				if err := writer.Save(saveCtx, sessionID, &alert); err != nil {
					c.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to persist alert")
				}
			}()
		}
		for _, sub := range listeners {
			sub.OnAlert(sessionID, &alerts[i])
		}
	}
	for i := range suggestions {
		metrics.RecordSuggestion(string(suggestions[i].Severity))
		for _, sub := range listeners {
			sub.OnSuggestion(sessionID, &suggestions[i])
		}
	}
}
