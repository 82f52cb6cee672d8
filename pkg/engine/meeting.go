package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Classifier sources, in priority order.
const (
	SourceManual  = "manual"
	SourceOpening = "opening"
	SourceAuto    = "auto"
)

const (
	openingWindow     = 60 * time.Second
	openingConfidence = 0.85
	openingGate       = 0.8
	topicBoost        = 0.1
)

// openingPattern maps a declarative opening phrase to a meeting type.
// First match wins, so order matters.
type openingPattern struct {
	phrase string
	label  MeetingType
}

var openingPatterns = []openingPattern{
	{"board meeting", MeetingOfficial},
	{"committee meeting", MeetingOfficial},
	{"quarterly review", MeetingOfficial},
	{"call this meeting to order", MeetingOfficial},
	{"annual general meeting", MeetingOfficial},
	{"standup", MeetingBusiness},
	{"sprint planning", MeetingBusiness},
	{"client call", MeetingBusiness},
	{"sales call", MeetingBusiness},
	{"project kickoff", MeetingBusiness},
	{"let's chill", MeetingFriends},
	{"catch up", MeetingFriends},
	{"hang out", MeetingFriends},
	{"game night", MeetingFriends},
}

// typeKeywords feed the auto-detection channel.
var typeKeywords = map[MeetingType][]string{
	MeetingOfficial: {"board", "committee", "minutes", "motion", "policy", "resolution", "agenda", "formal", "compliance"},
	MeetingBusiness: {"project", "deadline", "client", "report", "budget", "review", "contract", "meeting", "proposal"},
	MeetingFriends:  {"chill", "hang", "party", "game", "weekend", "drinks", "movie", "dude", "fun"},
}

// topicTag is a named topic overlay; each hit boosts the mapped type.
type topicTag struct {
	name     string
	keywords []string
	label    MeetingType
}

var topicTags = []topicTag{
	{"budget", []string{"budget", "cost", "finance", "expense"}, MeetingBusiness},
	{"security", []string{"security", "breach", "password", "phishing"}, MeetingBusiness},
	{"hr", []string{"hiring", "salary", "interview", "onboarding"}, MeetingBusiness},
	{"sales", []string{"sales", "deal", "customer", "pipeline"}, MeetingBusiness},
	{"technical", []string{"code", "deploy", "server", "release"}, MeetingBusiness},
	{"casual", []string{"joke", "fun", "movie", "vacation"}, MeetingFriends},
}

// MeetingClassifier resolves the meeting type from three competing
// channels: manual override, opening statement, and rolling
// auto-detection. Priority is strict; a lower channel is never consulted
// when a higher one qualifies. Classification is stateless across calls;
// all inputs live in the session state.
type MeetingClassifier struct {
	logger *logrus.Entry
}

// NewMeetingClassifier creates a classifier.
func NewMeetingClassifier(logger *logrus.Logger) *MeetingClassifier {
	return &MeetingClassifier{logger: logger.WithField("component", "meeting_classifier")}
}

// Classify resolves the session's meeting type at now.
func (c *MeetingClassifier) Classify(state *State, now time.Time) MeetingClassification {
	if state.ManualType != "" {
		return MeetingClassification{Label: state.ManualType, Confidence: 1.0, Source: SourceManual}
	}

	if result, ok := c.classifyOpening(state, now); ok {
		return result
	}

	return c.classifyAuto(state)
}

// classifyOpening matches declarative patterns against lines spoken within
// 60 seconds of the session's first transcript line. The lines are drawn
// from the rolling window, so once the opening minute has aged out of the
// window the channel naturally yields nothing.
func (c *MeetingClassifier) classifyOpening(state *State, now time.Time) (MeetingClassification, bool) {
	if state.FirstTranscriptAt.IsZero() {
		return MeetingClassification{}, false
	}

	cutoff := state.FirstTranscriptAt.Add(openingWindow)
	var parts []string
	for _, line := range state.Window.Live(now) {
		if line.At.After(cutoff) {
			continue
		}
		parts = append(parts, line.Text)
	}
	if len(parts) == 0 {
		return MeetingClassification{}, false
	}

	opening := strings.Join(parts, " ")
	for _, p := range openingPatterns {
		if strings.Contains(opening, p.phrase) {
			if openingConfidence < openingGate {
				return MeetingClassification{}, false
			}
			return MeetingClassification{
				Label:      p.label,
				Confidence: openingConfidence,
				Source:     SourceOpening,
			}, true
		}
	}
	return MeetingClassification{}, false
}

// classifyAuto scores the full transcript history against per-type keyword
// tables plus topic-tag overlays, normalizes the scores to sum to 1, and
// returns the highest. With no transcript yet it defaults to business
// with zero confidence.
func (c *MeetingClassifier) classifyAuto(state *State) MeetingClassification {
	if len(state.History) == 0 {
		return MeetingClassification{Label: MeetingBusiness, Confidence: 0, Source: SourceAuto}
	}

	var parts []string
	for _, line := range state.History {
		parts = append(parts, line.Text)
	}
	text := strings.Join(parts, " ")

	scores := map[MeetingType]float64{
		MeetingOfficial: 0,
		MeetingBusiness: 0,
		MeetingFriends:  0,
	}
	for label, keywords := range typeKeywords {
		for _, kw := range keywords {
			scores[label] += float64(strings.Count(text, kw))
		}
	}

	var topics []string
	for _, tag := range topicTags {
		hits := 0
		for _, kw := range tag.keywords {
			hits += strings.Count(text, kw)
		}
		if hits > 0 {
			scores[tag.label] += topicBoost * float64(hits)
			topics = append(topics, tag.name)
		}
	}

	total := scores[MeetingOfficial] + scores[MeetingBusiness] + scores[MeetingFriends]
	if total == 0 {
		return MeetingClassification{Label: MeetingBusiness, Confidence: 0, Source: SourceAuto}
	}

	best := MeetingBusiness
	for _, label := range []MeetingType{MeetingOfficial, MeetingBusiness, MeetingFriends} {
		if scores[label] > scores[best] {
			best = label
		}
	}
	sort.Strings(topics)

	return MeetingClassification{
		Label:      best,
		Confidence: scores[best] / total,
		Source:     SourceAuto,
		Topics:     topics,
	}
}
