package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"realsync-server/pkg/metrics"
	"realsync-server/pkg/rules"
)

// VisualSourceModel identifies the visual threshold evaluator on emitted alerts.
const VisualSourceModel = "visual-threshold"

// VisualConfig tunes the visual risk evaluator.
type VisualConfig struct {
	Cooldown        time.Duration // deepfake, identity, and aggression branches
	EmotionCooldown time.Duration // low-severity emotion branches
}

// DefaultVisualConfig returns the standard cooldowns.
func DefaultVisualConfig() VisualConfig {
	return VisualConfig{
		Cooldown:        30 * time.Second,
		EmotionCooldown: 60 * time.Second,
	}
}

// VisualEvaluator thresholds a visual-analysis snapshot into deepfake,
// identity, and emotion alerts. It runs once per snapshot delivery, not
// per transcript line. Each branch carries its own cooldown key so a
// sustained condition re-alerts at the cooldown rate instead of on every
// incoming frame.
type VisualEvaluator struct {
	config VisualConfig
	logger *logrus.Entry
}

// NewVisualEvaluator creates a visual risk evaluator.
func NewVisualEvaluator(logger *logrus.Logger, config VisualConfig) *VisualEvaluator {
	return &VisualEvaluator{
		config: config,
		logger: logger.WithField("component", "visual_evaluator"),
	}
}

// Evaluate thresholds the snapshot into zero or more alerts. Out-of-range
// inputs are clamped before thresholding. The meeting type gates only the
// fear/distress branch.
func (e *VisualEvaluator) Evaluate(state *State, snap VisualSnapshot, meeting MeetingType, now time.Time) []Alert {
	snap.AuthenticityScore = clamp01(snap.AuthenticityScore)
	if snap.IdentityShift < 0 {
		snap.IdentityShift = 0
	}
	snap.DominantEmotion.Confidence = clamp01(snap.DominantEmotion.Confidence)

	var alerts []Alert
	add := func(key string, window time.Duration, alert Alert) {
		if !state.Cooldowns.Allow(key, window, now) {
			metrics.RecordSuppressed(VisualSourceModel)
			return
		}
		alert.ID = uuid.NewString()
		alert.SourceModel = VisualSourceModel
		alert.Timestamp = now
		alerts = append(alerts, alert)
	}

	switch {
	case snap.AuthenticityScore <= 0.70:
		add("visual:deepfake:critical", e.config.Cooldown, Alert{
			Severity: rules.SeverityCritical,
			Category: "deepfake",
			Title:    "Visual Manipulation Detected",
			Message: fmt.Sprintf("Authenticity score %.2f indicates likely frame manipulation",
				snap.AuthenticityScore),
			SourceConfidence: 1 - snap.AuthenticityScore,
		})
	case snap.AuthenticityScore <= 0.85:
		add("visual:deepfake:high", e.config.Cooldown, Alert{
			Severity: rules.SeverityHigh,
			Category: "deepfake",
			Title:    "Possible Visual Manipulation",
			Message: fmt.Sprintf("Authenticity score %.2f is below the expected range",
				snap.AuthenticityScore),
			SourceConfidence: 1 - snap.AuthenticityScore,
		})
	}

	switch {
	case snap.IdentityShift >= 0.40:
		add("visual:identity:high", e.config.Cooldown, Alert{
			Severity: rules.SeverityHigh,
			Category: "identity",
			Title:    "Identity Inconsistency",
			Message: fmt.Sprintf("Face embedding shifted %.2f from the session baseline",
				snap.IdentityShift),
			SourceConfidence: clamp01(snap.IdentityShift),
		})
	case snap.IdentityShift >= 0.20:
		add("visual:identity:medium", e.config.Cooldown, Alert{
			Severity: rules.SeverityMedium,
			Category: "identity",
			Title:    "Identity Drift Detected",
			Message: fmt.Sprintf("Face embedding shifted %.2f from the session baseline",
				snap.IdentityShift),
			SourceConfidence: clamp01(snap.IdentityShift),
		})
	}

	emotion := snap.DominantEmotion
	switch emotion.Label {
	case "Angry":
		if emotion.Confidence > 0.70 {
			add("visual:emotion:aggression", e.config.Cooldown, Alert{
				Severity: rules.SeverityMedium,
				Category: "emotion",
				Title:    "Aggression Indicator",
				Message: fmt.Sprintf("Sustained anger detected (confidence %.2f)",
					emotion.Confidence),
				SourceConfidence: emotion.Confidence,
			})
		} else if emotion.Confidence > 0.50 {
			add("visual:emotion:anger", e.config.EmotionCooldown, Alert{
				Severity: rules.SeverityLow,
				Category: "emotion",
				Title:    "Elevated Anger",
				Message: fmt.Sprintf("Mild anger detected (confidence %.2f)",
					emotion.Confidence),
				SourceConfidence: emotion.Confidence,
			})
		}
	case "Fear":
		if emotion.Confidence > 0.60 && meeting == MeetingOfficial {
			add("visual:emotion:distress", e.config.EmotionCooldown, Alert{
				Severity: rules.SeverityLow,
				Category: "emotion",
				Title:    "Distress Signal",
				Message: fmt.Sprintf("Fear response detected during an official meeting (confidence %.2f)",
					emotion.Confidence),
				SourceConfidence: emotion.Confidence,
			})
		}
	}

	return alerts
}
