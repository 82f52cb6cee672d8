package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"realsync-server/pkg/metrics"
	"realsync-server/pkg/rules"
)

// FraudSourceModel identifies the pattern-fusion evaluator on emitted alerts.
const FraudSourceModel = "pattern-fusion"

// FraudConfig tunes the fraud/scam evaluator.
type FraudConfig struct {
	FloorThreshold float64       // scores below this emit nothing
	ScoreCap       float64       // upper bound for the fused score
	Cooldown       time.Duration // per (category, severity) key
}

// DefaultFraudConfig returns the standard thresholds.
func DefaultFraudConfig() FraudConfig {
	return FraudConfig{
		FloorThreshold: 0.3,
		ScoreCap:       2.0,
		Cooldown:       30 * time.Second,
	}
}

// FraudEvaluator scores transcript text against the fraud/scam rule table,
// amplifies the result with concurrent visual risk, and emits at most one
// cooldown-gated alert per call.
type FraudEvaluator struct {
	scorer *rules.Scorer
	config FraudConfig
	logger *logrus.Entry
}

// NewFraudEvaluator creates a fraud evaluator over the given scorer.
func NewFraudEvaluator(logger *logrus.Logger, scorer *rules.Scorer, config FraudConfig) *FraudEvaluator {
	return &FraudEvaluator{
		scorer: scorer,
		config: config,
		logger: logger.WithField("component", "fraud_evaluator"),
	}
}

// Evaluate appends text to the session window, scores both the line and
// the window concatenation, and emits an alert when the larger of the two
// scores clears the floor, the cooldown allows it, and the fused severity
// is above "low". Empty text scores zero and emits nothing.
func (e *FraudEvaluator) Evaluate(state *State, text string, now time.Time) *Alert {
	normalized := rules.Normalize(text)
	state.recordLine(normalized, now)

	lineMatch := e.scorer.Score(normalized)
	windowMatch := e.scorer.Score(state.Window.Concatenated(now))

	// Window-level wins outright when numerically larger; the categories
	// may differ and are never merged.
	result := lineMatch
	if windowMatch.Score > lineMatch.Score {
		result = windowMatch
	}

	if result.Category == nil || result.Score < e.config.FloorThreshold {
		return nil
	}

	multiplier := visualMultiplier(state.Snapshot)
	fused := result.Score * (1 + multiplier)
	if fused > e.config.ScoreCap {
		fused = e.config.ScoreCap
	}

	severity := severityForScore(fused)
	if severity == rules.SeverityLow {
		return nil
	}

	key := fmt.Sprintf("fraud:%s:%s", result.Category.Name, severity)
	if !state.Cooldowns.Allow(key, e.config.Cooldown, now) {
		metrics.RecordSuppressed(FraudSourceModel)
		e.logger.WithFields(logrus.Fields{
			"session_id": state.SessionID,
			"key":        key,
		}).Debug("Fraud alert suppressed by cooldown")
		return nil
	}

	confidence := fused
	if confidence > 1.0 {
		confidence = 1.0
	}

	return &Alert{
		ID:       uuid.NewString(),
		Severity: severity,
		Category: string(result.Category.AlertCategory),
		Title:    result.Category.Title,
		Message: fmt.Sprintf("Suspicious phrases detected: %s (risk score %.2f)",
			strings.Join(result.Phrases, ", "), fused),
		SourceModel:      FraudSourceModel,
		SourceConfidence: confidence,
		Timestamp:        now,
	}
}

// visualMultiplier derives the fraud-score amplification from the current
// visual snapshot. Deepfake and identity contributions are additive and
// independent; a missing snapshot contributes nothing.
func visualMultiplier(snap *VisualSnapshot) float64 {
	if snap == nil {
		return 0
	}
	m := 0.0
	switch DeepfakeRisk(snap.AuthenticityScore) {
	case RiskHigh:
		m += 0.5
	case RiskMedium:
		m += 0.25
	}
	switch IdentityRisk(snap.IdentityShift) {
	case RiskHigh:
		m += 0.3
	case RiskMedium:
		m += 0.15
	}
	return m
}

// severityForScore is the step function mapping a fused score to a
// severity. The 0.8 boundary is inclusive: exactly 0.8 is critical.
func severityForScore(fused float64) rules.Severity {
	switch {
	case fused >= 0.8:
		return rules.SeverityCritical
	case fused >= 0.6:
		return rules.SeverityHigh
	case fused >= 0.3:
		return rules.SeverityMedium
	default:
		return rules.SeverityLow
	}
}
