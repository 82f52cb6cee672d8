package engine

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"realsync-server/pkg/rules"
)

func newVisualEvaluator() *VisualEvaluator {
	return NewVisualEvaluator(logrus.New(), DefaultVisualConfig())
}

func findAlert(alerts []Alert, title string) *Alert {
	for i := range alerts {
		if alerts[i].Title == title {
			return &alerts[i]
		}
	}
	return nil
}

func TestDeepfakeThresholds(t *testing.T) {
	cases := []struct {
		authenticity float64
		title        string
		severity     rules.Severity
	}{
		{0.60, "Visual Manipulation Detected", rules.SeverityCritical},
		{0.70, "Visual Manipulation Detected", rules.SeverityCritical},
		{0.80, "Possible Visual Manipulation", rules.SeverityHigh},
		{0.85, "Possible Visual Manipulation", rules.SeverityHigh},
	}
	for _, tc := range cases {
		e := newVisualEvaluator()
		state := newState("s1", 60*time.Second, base)
		alerts := e.Evaluate(state, VisualSnapshot{AuthenticityScore: tc.authenticity, IdentityShift: 0.1}, MeetingBusiness, base)

		alert := findAlert(alerts, tc.title)
		if alert == nil {
			t.Fatalf("authenticity %v: expected %q, got %+v", tc.authenticity, tc.title, alerts)
		}
		if alert.Severity != tc.severity {
			t.Fatalf("authenticity %v: severity %s, want %s", tc.authenticity, alert.Severity, tc.severity)
		}
		if alert.SourceModel != VisualSourceModel {
			t.Fatalf("unexpected source model %s", alert.SourceModel)
		}
	}
}

func TestHighAuthenticityEmitsNothing(t *testing.T) {
	e := newVisualEvaluator()
	state := newState("s1", 60*time.Second, base)

	alerts := e.Evaluate(state, VisualSnapshot{AuthenticityScore: 0.90, IdentityShift: 0.1}, MeetingBusiness, base)
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %+v", alerts)
	}
}

func TestIdentityThresholds(t *testing.T) {
	e := newVisualEvaluator()
	state := newState("s1", 60*time.Second, base)

	alerts := e.Evaluate(state, VisualSnapshot{AuthenticityScore: 0.95, IdentityShift: 0.45}, MeetingBusiness, base)
	if a := findAlert(alerts, "Identity Inconsistency"); a == nil || a.Severity != rules.SeverityHigh {
		t.Fatalf("expected high identity alert, got %+v", alerts)
	}

	state = newState("s2", 60*time.Second, base)
	alerts = e.Evaluate(state, VisualSnapshot{AuthenticityScore: 0.95, IdentityShift: 0.25}, MeetingBusiness, base)
	if a := findAlert(alerts, "Identity Drift Detected"); a == nil || a.Severity != rules.SeverityMedium {
		t.Fatalf("expected medium identity alert, got %+v", alerts)
	}
}

func TestDeepfakeAndIdentityAreIndependent(t *testing.T) {
	e := newVisualEvaluator()
	state := newState("s1", 60*time.Second, base)

	alerts := e.Evaluate(state, VisualSnapshot{AuthenticityScore: 0.60, IdentityShift: 0.50}, MeetingBusiness, base)
	if len(alerts) != 2 {
		t.Fatalf("expected both branches to fire, got %+v", alerts)
	}
}

func TestAngerBranches(t *testing.T) {
	e := newVisualEvaluator()

	state := newState("s1", 60*time.Second, base)
	snap := VisualSnapshot{AuthenticityScore: 0.95, DominantEmotion: EmotionReading{Label: "Angry", Confidence: 0.80}}
	alerts := e.Evaluate(state, snap, MeetingBusiness, base)
	if a := findAlert(alerts, "Aggression Indicator"); a == nil || a.Severity != rules.SeverityMedium {
		t.Fatalf("expected aggression indicator, got %+v", alerts)
	}

	state = newState("s2", 60*time.Second, base)
	snap.DominantEmotion.Confidence = 0.60
	alerts = e.Evaluate(state, snap, MeetingBusiness, base)
	if a := findAlert(alerts, "Elevated Anger"); a == nil || a.Severity != rules.SeverityLow {
		t.Fatalf("expected elevated anger, got %+v", alerts)
	}

	state = newState("s3", 60*time.Second, base)
	snap.DominantEmotion.Confidence = 0.40
	alerts = e.Evaluate(state, snap, MeetingBusiness, base)
	if len(alerts) != 0 {
		t.Fatalf("low-confidence anger must emit nothing, got %+v", alerts)
	}
}

func TestFearRequiresOfficialMeeting(t *testing.T) {
	e := newVisualEvaluator()
	snap := VisualSnapshot{AuthenticityScore: 0.95, DominantEmotion: EmotionReading{Label: "Fear", Confidence: 0.70}}

	state := newState("s1", 60*time.Second, base)
	alerts := e.Evaluate(state, snap, MeetingOfficial, base)
	if findAlert(alerts, "Distress Signal") == nil {
		t.Fatalf("expected distress signal in official meeting, got %+v", alerts)
	}

	state = newState("s2", 60*time.Second, base)
	alerts = e.Evaluate(state, snap, MeetingBusiness, base)
	if len(alerts) != 0 {
		t.Fatalf("fear must not fire outside official meetings, got %+v", alerts)
	}

	state = newState("s3", 60*time.Second, base)
	snap.DominantEmotion.Confidence = 0.50
	alerts = e.Evaluate(state, snap, MeetingOfficial, base)
	if len(alerts) != 0 {
		t.Fatalf("low-confidence fear must emit nothing, got %+v", alerts)
	}
}

func TestVisualBranchCooldowns(t *testing.T) {
	e := newVisualEvaluator()
	state := newState("s1", 60*time.Second, base)
	snap := VisualSnapshot{AuthenticityScore: 0.60, IdentityShift: 0.1}

	if alerts := e.Evaluate(state, snap, MeetingBusiness, base); len(alerts) != 1 {
		t.Fatalf("expected first alert, got %+v", alerts)
	}
	if alerts := e.Evaluate(state, snap, MeetingBusiness, base.Add(10*time.Second)); len(alerts) != 0 {
		t.Fatalf("expected cooldown suppression, got %+v", alerts)
	}
	if alerts := e.Evaluate(state, snap, MeetingBusiness, base.Add(41*time.Second)); len(alerts) != 1 {
		t.Fatalf("expected re-fire after cooldown, got %+v", alerts)
	}
}

func TestEmotionCooldownIsLonger(t *testing.T) {
	e := newVisualEvaluator()
	state := newState("s1", 60*time.Second, base)
	snap := VisualSnapshot{AuthenticityScore: 0.95, DominantEmotion: EmotionReading{Label: "Angry", Confidence: 0.60}}

	if alerts := e.Evaluate(state, snap, MeetingBusiness, base); len(alerts) != 1 {
		t.Fatalf("expected first anger advisory, got %+v", alerts)
	}
	// Still inside the 60s emotion cooldown where the 30s default would
	// already have elapsed.
	if alerts := e.Evaluate(state, snap, MeetingBusiness, base.Add(45*time.Second)); len(alerts) != 0 {
		t.Fatalf("expected emotion cooldown to hold, got %+v", alerts)
	}
	if alerts := e.Evaluate(state, snap, MeetingBusiness, base.Add(61*time.Second)); len(alerts) != 1 {
		t.Fatalf("expected re-fire after emotion cooldown, got %+v", alerts)
	}
}

func TestOutOfRangeInputsAreClamped(t *testing.T) {
	e := newVisualEvaluator()
	state := newState("s1", 60*time.Second, base)

	// Negative authenticity clamps to 0 (critical); negative shift clamps
	// to 0 (no identity alert).
	alerts := e.Evaluate(state, VisualSnapshot{AuthenticityScore: -0.5, IdentityShift: -1}, MeetingBusiness, base)
	if len(alerts) != 1 {
		t.Fatalf("expected only the deepfake alert, got %+v", alerts)
	}
	if alerts[0].Severity != rules.SeverityCritical {
		t.Fatalf("expected critical, got %s", alerts[0].Severity)
	}
}
