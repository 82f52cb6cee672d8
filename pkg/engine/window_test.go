package engine

import (
	"testing"
	"time"
)

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestWindowKeepsRecentLines(t *testing.T) {
	w := NewWindow(60 * time.Second)
	w.Add("first", base)
	w.Add("second", base.Add(30*time.Second))

	live := w.Live(base.Add(45 * time.Second))
	if len(live) != 2 {
		t.Fatalf("expected 2 live lines, got %d", len(live))
	}
}

func TestWindowEvictsExpiredOnWrite(t *testing.T) {
	w := NewWindow(60 * time.Second)
	w.Add("old", base)
	w.Add("new", base.Add(90*time.Second))

	if len(w.Entries) != 1 {
		t.Fatalf("expected eviction on write, have %d entries", len(w.Entries))
	}
	if w.Entries[0].Text != "new" {
		t.Fatalf("wrong survivor: %q", w.Entries[0].Text)
	}
}

func TestWindowLiveExcludesByReadTime(t *testing.T) {
	w := NewWindow(60 * time.Second)
	w.Add("first", base)
	w.Add("second", base.Add(10*time.Second))

	// No write since, but the read time has moved past the first line.
	live := w.Live(base.Add(65 * time.Second))
	if len(live) != 1 || live[0].Text != "second" {
		t.Fatalf("expected only the second line live, got %v", live)
	}

	if got := w.Live(base.Add(5 * time.Minute)); got != nil {
		t.Fatalf("expected no live lines, got %v", got)
	}
}

func TestWindowConcatenated(t *testing.T) {
	w := NewWindow(60 * time.Second)
	w.Add("send the", base)
	w.Add("wire transfer", base.Add(5*time.Second))

	got := w.Concatenated(base.Add(10 * time.Second))
	if got != "send the wire transfer" {
		t.Fatalf("unexpected concatenation: %q", got)
	}

	if got := w.Concatenated(base.Add(5 * time.Minute)); got != "" {
		t.Fatalf("expected empty concatenation, got %q", got)
	}
}

func TestWindowBoundaryIsExclusive(t *testing.T) {
	w := NewWindow(60 * time.Second)
	w.Add("edge", base)

	// A line aged exactly the span is no longer live.
	if got := w.Live(base.Add(60 * time.Second)); got != nil {
		t.Fatalf("expected line at exact span boundary to be expired, got %v", got)
	}
}
