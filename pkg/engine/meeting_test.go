package engine

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newClassifier() *MeetingClassifier {
	return NewMeetingClassifier(logrus.New())
}

func TestManualOverrideWinsOutright(t *testing.T) {
	c := newClassifier()
	state := newState("s1", 60*time.Second, base)
	state.recordLine("let's chill and hang out this weekend", base)
	state.ManualType = MeetingOfficial

	got := c.Classify(state, base.Add(5*time.Second))
	if got.Label != MeetingOfficial || got.Source != SourceManual {
		t.Fatalf("manual override must win: %+v", got)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("manual confidence must be 1.0, got %v", got.Confidence)
	}
}

func TestOpeningStatementDetection(t *testing.T) {
	c := newClassifier()
	state := newState("s1", 60*time.Second, base)
	state.recordLine("hey everyone let's chill and catch up", base)

	got := c.Classify(state, base.Add(5*time.Second))
	if got.Label != MeetingFriends {
		t.Fatalf("expected friends, got %s", got.Label)
	}
	if got.Source != SourceOpening {
		t.Fatalf("expected opening channel, got %s", got.Source)
	}
	if got.Confidence != 0.85 {
		t.Fatalf("expected opening confidence 0.85, got %v", got.Confidence)
	}
}

func TestOpeningIgnoresLateLines(t *testing.T) {
	c := newClassifier()
	state := newState("s1", 60*time.Second, base)
	state.recordLine("hello and welcome", base)
	// A declarative phrase spoken past the opening minute must not feed
	// the opening channel.
	state.recordLine("this is our board meeting", base.Add(70*time.Second))

	got := c.Classify(state, base.Add(75*time.Second))
	if got.Source == SourceOpening {
		t.Fatalf("opening channel fired on a late line: %+v", got)
	}
}

func TestOpeningAgesOutOfWindow(t *testing.T) {
	c := newClassifier()
	state := newState("s1", 60*time.Second, base)
	state.recordLine("let's chill everyone", base)

	early := c.Classify(state, base.Add(5*time.Second))
	if early.Source != SourceOpening {
		t.Fatalf("expected opening early on, got %+v", early)
	}

	// Two minutes later the opening line has left the rolling window, so
	// classification falls through to auto-detection over the history.
	late := c.Classify(state, base.Add(2*time.Minute+10*time.Second))
	if late.Source != SourceAuto {
		t.Fatalf("expected auto fallback after window aged out, got %+v", late)
	}
	if late.Label != MeetingFriends {
		t.Fatalf("history keywords should still classify friends, got %s", late.Label)
	}
}

func TestAutoKeywordDetection(t *testing.T) {
	c := newClassifier()
	state := newState("s1", 60*time.Second, base)
	state.recordLine("the board approved the policy motion", base)

	got := c.Classify(state, base.Add(2*time.Minute))
	if got.Label != MeetingOfficial || got.Source != SourceAuto {
		t.Fatalf("expected official via auto, got %+v", got)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("all hits in one type should normalize to 1.0, got %v", got.Confidence)
	}
}

func TestAutoTopicOverlay(t *testing.T) {
	c := newClassifier()
	state := newState("s1", 60*time.Second, base)
	state.recordLine("we reviewed the budget and the deadline for the project", base)

	got := c.Classify(state, base.Add(2*time.Minute))
	if got.Label != MeetingBusiness {
		t.Fatalf("expected business, got %+v", got)
	}
	found := false
	for _, topic := range got.Topics {
		if topic == "budget" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected budget topic tag, got %v", got.Topics)
	}
}

func TestAutoDefaultsToBusiness(t *testing.T) {
	c := newClassifier()
	state := newState("s1", 60*time.Second, base)

	got := c.Classify(state, base)
	if got.Label != MeetingBusiness || got.Confidence != 0 || got.Source != SourceAuto {
		t.Fatalf("empty session must default to business/0, got %+v", got)
	}

	// Transcript with no keyword hits behaves the same.
	state.recordLine("okay sounds good to me", base)
	got = c.Classify(state, base.Add(2*time.Minute))
	if got.Label != MeetingBusiness || got.Confidence != 0 {
		t.Fatalf("keywordless transcript must default to business/0, got %+v", got)
	}
}
