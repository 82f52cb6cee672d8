package engine

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"realsync-server/pkg/rules"
)

var (
	moneyKeywords      = []string{"money", "transfer", "payment", "pay", "invoice", "wire"}
	credentialKeywords = []string{"password", "code", "login", "2fa", "verification", "pin"}
)

// SuggestionEngine produces low-stakes advisories per transcript line,
// conditioned on the resolved meeting type and the session's current
// visual metrics. Suggestions use the same cooldown discipline as alerts
// but are never promoted to alerts by any other component.
type SuggestionEngine struct {
	logger *logrus.Entry
}

// NewSuggestionEngine creates a suggestion engine.
func NewSuggestionEngine(logger *logrus.Logger) *SuggestionEngine {
	return &SuggestionEngine{logger: logger.WithField("component", "suggestion_engine")}
}

// Evaluate checks the three advisory rules against the line and session
// context. Each rule gates on its own cooldown key.
func (e *SuggestionEngine) Evaluate(state *State, text string, meeting MeetingClassification, now time.Time) []Suggestion {
	normalized := rules.Normalize(text)

	var out []Suggestion
	add := func(key string, window time.Duration, s Suggestion) {
		if !state.Cooldowns.Allow(key, window, now) {
			return
		}
		s.Timestamp = now
		out = append(out, s)
	}

	if visualRiskElevated(state.Snapshot) && containsAny(normalized, moneyKeywords) {
		add("suggest:verify-payment", 45*time.Second, Suggestion{
			Severity: rules.SeverityHigh,
			Title:    "Verify before acting",
			Message:  "Payment talk is overlapping with elevated visual risk. Confirm the request through a separate trusted channel before moving any money.",
		})
	}

	if meeting.Label == MeetingOfficial && state.Snapshot != nil && state.Snapshot.IdentityShift > 0.25 {
		add("suggest:liveness-check", 60*time.Second, Suggestion{
			Severity: rules.SeverityMedium,
			Title:    "Run a liveness check",
			Message:  "Participant identity has drifted during an official meeting. Ask them to perform a quick liveness gesture.",
		})
	}

	if meeting.Label == MeetingFriends && containsAny(normalized, credentialKeywords) {
		add("suggest:no-codes", 45*time.Second, Suggestion{
			Severity: rules.SeverityHigh,
			Title:    "Do not share codes",
			Message:  "Credentials or one-time codes came up in a casual meeting. Never share codes over a call, even with people you know.",
		})
	}

	return out
}

// visualRiskElevated reports whether either visual channel is above low risk.
func visualRiskElevated(snap *VisualSnapshot) bool {
	if snap == nil {
		return false
	}
	return DeepfakeRisk(snap.AuthenticityScore) != RiskLow || IdentityRisk(snap.IdentityShift) != RiskLow
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
