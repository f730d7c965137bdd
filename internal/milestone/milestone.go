// Package milestone watches published session states and raises an alert
// the first time the step count crosses each configured threshold. It is a
// pure read-side consumer: it never touches the tracker, only its snapshot
// stream.
package milestone

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/steptrack/steptrack/internal/session"
)

// DefaultThresholds are the step counts celebrated when no thresholds are
// configured.
var DefaultThresholds = []int{100, 500, 1000, 5000, 10000}

// Alert records one threshold crossing.
type Alert struct {
	SessionID string
	Threshold int
	Steps     int
	At        time.Time
}

// Callback receives alerts. Callbacks run on the consumer goroutine and
// must not block; hand anything slow to its own goroutine.
type Callback func(Alert)

// Tracker holds the per-session firing marks. It is driven from a single
// goroutine (Run); Observe is not safe for concurrent use.
type Tracker struct {
	thresholds []int
	callbacks  []Callback

	sessionID string
	fired     int // thresholds already fired this session, by index
}

// New builds a Tracker from thresholds (deduplicated, sorted ascending;
// non-positive values dropped). Empty thresholds fall back to
// DefaultThresholds.
func New(thresholds []int, callbacks ...Callback) *Tracker {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	seen := make(map[int]bool, len(thresholds))
	clean := make([]int, 0, len(thresholds))
	for _, th := range thresholds {
		if th <= 0 || seen[th] {
			continue
		}
		seen[th] = true
		clean = append(clean, th)
	}
	sort.Ints(clean)
	return &Tracker{thresholds: clean, callbacks: callbacks}
}

// Observe applies one state snapshot. A snapshot belonging to a new session
// re-arms every threshold; crossings fire in ascending order, each once per
// session, even when a single update jumps past several.
func (t *Tracker) Observe(st session.State) {
	if st.SessionID != t.sessionID {
		t.sessionID = st.SessionID
		t.fired = 0
	}

	for t.fired < len(t.thresholds) && st.CumulativeSteps >= t.thresholds[t.fired] {
		a := Alert{
			SessionID: st.SessionID,
			Threshold: t.thresholds[t.fired],
			Steps:     st.CumulativeSteps,
			At:        time.Now(),
		}
		t.fired++
		log.Printf("Milestone reached: %d steps (session %s)", a.Threshold, a.SessionID)
		for _, cb := range t.callbacks {
			cb(a)
		}
	}
}

// Run consumes states until ctx is cancelled or the channel closes.
func (t *Tracker) Run(ctx context.Context, states <-chan session.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			t.Observe(st)
		}
	}
}
