package session

import (
	"testing"
	"time"
)

func TestWindow_TrailingRate(t *testing.T) {
	w := NewWindow(time.Second)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Steps at 0ms, 200ms, 400ms, 600ms, then 1100ms. At t=1100ms the
	// first step is 1100ms old and out of the window; the rest remain.
	for _, offset := range []time.Duration{0, 200, 400, 600, 1100} {
		w.Record(base.Add(offset * time.Millisecond))
	}

	got := w.Rate(base.Add(1100 * time.Millisecond))
	if got != 4 {
		t.Errorf("Rate at t=1100ms = %v, want 4", got)
	}
}

func TestWindow_ExactBoundaryExcluded(t *testing.T) {
	w := NewWindow(time.Second)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	w.Record(base)
	w.Record(base.Add(500 * time.Millisecond))

	// An entry exactly one span old no longer counts.
	if got := w.Rate(base.Add(time.Second)); got != 1 {
		t.Errorf("Rate at exact window edge = %v, want 1", got)
	}
}

func TestWindow_EmptyRateIsZero(t *testing.T) {
	w := NewWindow(time.Second)
	if got := w.Rate(time.Now()); got != 0 {
		t.Errorf("Rate of empty window = %v, want 0", got)
	}
}

func TestWindow_AllEntriesExpire(t *testing.T) {
	w := NewWindow(time.Second)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		w.Record(base.Add(time.Duration(i) * 100 * time.Millisecond))
	}

	if got := w.Rate(base.Add(10 * time.Second)); got != 0 {
		t.Errorf("Rate long after last step = %v, want 0", got)
	}
}

func TestWindow_RecordPrunesOldEntries(t *testing.T) {
	w := NewWindow(time.Second)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	w.Record(base)
	w.Record(base.Add(2 * time.Second))

	if n := len(w.times); n != 1 {
		t.Errorf("entries retained after prune = %d, want 1", n)
	}
}

func TestWindow_Clear(t *testing.T) {
	w := NewWindow(time.Second)
	now := time.Now()
	w.Record(now)
	w.Record(now)

	w.Clear()

	if got := w.Rate(now); got != 0 {
		t.Errorf("Rate after Clear = %v, want 0", got)
	}
}

func TestNewWindow_DefaultSpan(t *testing.T) {
	w := NewWindow(0)
	if w.span != DefaultWindowSpan {
		t.Errorf("span = %v, want %v", w.span, DefaultWindowSpan)
	}
	w = NewWindow(-time.Second)
	if w.span != DefaultWindowSpan {
		t.Errorf("span for negative input = %v, want %v", w.span, DefaultWindowSpan)
	}
}
