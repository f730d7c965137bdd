package milestone

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/steptrack/steptrack/internal/session"
)

// collect returns a callback that appends alerts to a slice owned by the
// test. Observe is single-goroutine, so no locking is needed.
func collect(alerts *[]Alert) Callback {
	return func(a Alert) {
		*alerts = append(*alerts, a)
	}
}

func TestNew_CleansThresholds(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []int
	}{
		{
			name: "sorted ascending",
			in:   []int{500, 100, 250},
			want: []int{100, 250, 500},
		},
		{
			name: "duplicates dropped",
			in:   []int{100, 100, 500},
			want: []int{100, 500},
		},
		{
			name: "non-positive dropped",
			in:   []int{-5, 0, 100},
			want: []int{100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(tt.in)
			if !reflect.DeepEqual(tr.thresholds, tt.want) {
				t.Errorf("thresholds = %v, want %v", tr.thresholds, tt.want)
			}
		})
	}
}

func TestNew_EmptyUsesDefaults(t *testing.T) {
	tr := New(nil)
	if !reflect.DeepEqual(tr.thresholds, DefaultThresholds) {
		t.Errorf("thresholds = %v, want defaults %v", tr.thresholds, DefaultThresholds)
	}
}

func TestObserve_FiresOncePerThreshold(t *testing.T) {
	var alerts []Alert
	tr := New([]int{100, 500}, collect(&alerts))

	tr.Observe(session.State{SessionID: "s1", CumulativeSteps: 50})
	if len(alerts) != 0 {
		t.Fatalf("alert fired below the first threshold: %+v", alerts)
	}

	tr.Observe(session.State{SessionID: "s1", CumulativeSteps: 150})
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert after crossing 100, got %d", len(alerts))
	}
	if alerts[0].Threshold != 100 {
		t.Errorf("alert threshold = %d, want 100", alerts[0].Threshold)
	}
	if alerts[0].Steps != 150 {
		t.Errorf("alert steps = %d, want 150", alerts[0].Steps)
	}
	if alerts[0].SessionID != "s1" {
		t.Errorf("alert session = %q, want %q", alerts[0].SessionID, "s1")
	}
	if alerts[0].At.IsZero() {
		t.Error("alert timestamp is zero")
	}

	// Further updates above the same threshold stay quiet.
	tr.Observe(session.State{SessionID: "s1", CumulativeSteps: 160})
	tr.Observe(session.State{SessionID: "s1", CumulativeSteps: 499})
	if len(alerts) != 1 {
		t.Fatalf("threshold refired within a session: %d alerts", len(alerts))
	}
}

func TestObserve_FiresAscendingOnJump(t *testing.T) {
	var alerts []Alert
	tr := New([]int{100, 500, 1000}, collect(&alerts))

	// One update can leap past several thresholds at once.
	tr.Observe(session.State{SessionID: "s1", CumulativeSteps: 600})

	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts for a jump to 600, got %d", len(alerts))
	}
	if alerts[0].Threshold != 100 || alerts[1].Threshold != 500 {
		t.Errorf("alerts fired out of order: %d then %d, want 100 then 500",
			alerts[0].Threshold, alerts[1].Threshold)
	}
	for i, a := range alerts {
		if a.Steps != 600 {
			t.Errorf("alerts[%d].Steps = %d, want 600", i, a.Steps)
		}
	}
}

func TestObserve_RearmsOnNewSession(t *testing.T) {
	var alerts []Alert
	tr := New([]int{100}, collect(&alerts))

	tr.Observe(session.State{SessionID: "s1", CumulativeSteps: 120})
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert in first session, got %d", len(alerts))
	}

	// A fresh session starts its own count, so the same threshold fires
	// again.
	tr.Observe(session.State{SessionID: "s2", CumulativeSteps: 110})
	if len(alerts) != 2 {
		t.Fatalf("threshold did not re-arm for a new session: %d alerts", len(alerts))
	}
	if alerts[1].SessionID != "s2" {
		t.Errorf("second alert session = %q, want %q", alerts[1].SessionID, "s2")
	}
}

func TestObserve_InvokesAllCallbacks(t *testing.T) {
	var first, second []Alert
	tr := New([]int{100}, collect(&first), collect(&second))

	tr.Observe(session.State{SessionID: "s1", CumulativeSteps: 100})

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("callbacks saw %d and %d alerts, want 1 and 1", len(first), len(second))
	}
}

func TestRun_ConsumesStates(t *testing.T) {
	fired := make(chan Alert, 4)
	tr := New([]int{100}, func(a Alert) { fired <- a })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := make(chan session.State, 4)
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, states)
		close(done)
	}()

	states <- session.State{SessionID: "s1", CumulativeSteps: 100}

	select {
	case a := <-fired:
		if a.Threshold != 100 {
			t.Errorf("alert threshold = %d, want 100", a.Threshold)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run never delivered the state to Observe")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRun_StopsWhenChannelCloses(t *testing.T) {
	tr := New([]int{100})

	states := make(chan session.State)
	done := make(chan struct{})
	go func() {
		tr.Run(context.Background(), states)
		close(done)
	}()

	close(states)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the state channel closed")
	}
}
