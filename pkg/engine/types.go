package engine

import (
	"time"

	"realsync-server/pkg/rules"
)

// TranscriptEvent is a single transcribed line arriving from the capture
// pipeline for one monitored meeting session.
type TranscriptEvent struct {
	SessionID string    `json:"session_id"`
	Speaker   string    `json:"speaker,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// EmotionReading is the dominant emotion reported for the primary face.
type EmotionReading struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// VisualSnapshot is the per-frame analysis result delivered by the visual
// inference collaborator. Every delivery replaces the session's current
// snapshot (last-write-wins).
type VisualSnapshot struct {
	AuthenticityScore float64        `json:"authenticity_score"`
	IdentityShift     float64        `json:"identity_shift"`
	DominantEmotion   EmotionReading `json:"dominant_emotion"`
}

// RiskLevel buckets a continuous visual metric for fusion decisions.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// DeepfakeRisk maps an authenticity score to a risk level. The thresholds
// match the ones the inference service applies on its side.
func DeepfakeRisk(authenticity float64) RiskLevel {
	authenticity = clamp01(authenticity)
	switch {
	case authenticity > 0.85:
		return RiskLow
	case authenticity > 0.70:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// IdentityRisk maps an identity embedding shift to a risk level.
// Negative inputs are clamped to zero before thresholding.
func IdentityRisk(shift float64) RiskLevel {
	if shift < 0 {
		shift = 0
	}
	switch {
	case shift < 0.20:
		return RiskLow
	case shift < 0.40:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Alert is an emitted risk alert. Alerts are immutable once returned by
// the coordinator; acknowledgement and resolution are collaborator
// concerns.
type Alert struct {
	ID               string         `json:"id"`
	Severity         rules.Severity `json:"severity"`
	Category         string         `json:"category"`
	Title            string         `json:"title"`
	Message          string         `json:"message"`
	SourceModel      string         `json:"source_model"`
	SourceConfidence float64        `json:"source_confidence"`
	Timestamp        time.Time      `json:"timestamp"`
}

// Suggestion is a lower-stakes advisory. Suggestions are never promoted
// to alerts.
type Suggestion struct {
	Severity  rules.Severity `json:"severity"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
}

// MeetingType labels the resolved meeting context.
type MeetingType string

const (
	MeetingOfficial MeetingType = "official"
	MeetingBusiness MeetingType = "business"
	MeetingFriends  MeetingType = "friends"
)

// ValidMeetingType reports whether t is one of the known labels.
func ValidMeetingType(t MeetingType) bool {
	switch t {
	case MeetingOfficial, MeetingBusiness, MeetingFriends:
		return true
	}
	return false
}

// MeetingClassification is the resolved meeting-type decision with its
// winning channel and optional topic tags from auto-detection.
type MeetingClassification struct {
	Label      MeetingType `json:"label"`
	Confidence float64     `json:"confidence"`
	Source     string      `json:"source"` // manual, opening, auto
	Topics     []string    `json:"topics,omitempty"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
