package session

import "time"

// DefaultWindowSpan is the rate window used when none is configured.
const DefaultWindowSpan = time.Second

// Window holds the trailing span of step timestamps that backs the
// steps-per-second metric. The rate is the plain count of steps inside the
// window, a trailing average rather than a point derivative; consumers
// depend on exactly that behavior.
//
// Window is not safe for concurrent use. The Tracker owns it and serializes
// access; tests may drive it directly.
type Window struct {
	span  time.Duration
	times []time.Time
}

func NewWindow(span time.Duration) *Window {
	if span <= 0 {
		span = DefaultWindowSpan
	}
	return &Window{span: span}
}

// Record appends a step timestamp and prunes entries that have aged out
// relative to it. Callers feed timestamps in non-decreasing order.
func (w *Window) Record(ts time.Time) {
	w.times = append(w.times, ts)
	w.prune(ts)
}

// Rate prunes relative to now and returns the number of steps remaining in
// the window.
func (w *Window) Rate(now time.Time) float64 {
	w.prune(now)
	return float64(len(w.times))
}

// Clear empties the window. Used on start and reset.
func (w *Window) Clear() {
	w.times = w.times[:0]
}

// prune drops every entry whose age has reached the span. The cutoff is a
// strict less-than: an entry exactly span old is removed.
func (w *Window) prune(now time.Time) {
	cut := 0
	for cut < len(w.times) && now.Sub(w.times[cut]) >= w.span {
		cut++
	}
	if cut > 0 {
		w.times = append(w.times[:0], w.times[cut:]...)
	}
}
