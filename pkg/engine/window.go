package engine

import (
	"strings"
	"time"
)

// Line is one transcript line with its arrival time.
type Line struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Window is a time-bounded buffer of recent transcript lines. Entries
// older than the span relative to the evaluation time are excluded from
// every read; eviction happens on every write, not on a timer.
type Window struct {
	Span    time.Duration `json:"span"`
	Entries []Line        `json:"entries"`
}

// NewWindow creates a window covering the given span of wall-clock time.
func NewWindow(span time.Duration) Window {
	return Window{Span: span}
}

// Add appends a line at now and evicts expired entries.
func (w *Window) Add(text string, now time.Time) {
	w.Entries = append(w.Entries, Line{Text: text, At: now})
	w.evict(now)
}

func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.Span)
	i := 0
	for i < len(w.Entries) && !w.Entries[i].At.After(cutoff) {
		i++
	}
	if i > 0 {
		w.Entries = append(w.Entries[:0], w.Entries[i:]...)
	}
}

// Live returns the surviving entries relative to now, in arrival order.
func (w *Window) Live(now time.Time) []Line {
	cutoff := now.Add(-w.Span)
	for i, e := range w.Entries {
		if e.At.After(cutoff) {
			return w.Entries[i:]
		}
	}
	return nil
}

// Concatenated joins all surviving lines with single spaces, in arrival
// order.
func (w *Window) Concatenated(now time.Time) string {
	live := w.Live(now)
	if len(live) == 0 {
		return ""
	}
	parts := make([]string, len(live))
	for i, e := range live {
		parts[i] = e.Text
	}
	return strings.Join(parts, " ")
}
