package main

import (
	"context"
	"testing"

	"github.com/steptrack/steptrack/internal/session"
)

func TestShutdown_StopsTrackingAndCancelsContext(t *testing.T) {
	tracker := session.New(session.Options{ForceSim: true})
	tracker.Start()

	states, detach := tracker.Subscribe(64)
	defer detach()

	ctx, cancel := context.WithCancel(context.Background())
	shutdown(tracker, cancel)

	if tracker.Snapshot().IsTracking {
		t.Error("IsTracking = true after shutdown, want false")
	}
	if ctx.Err() == nil {
		t.Error("shutdown did not cancel the daemon context")
	}

	// The stop publish happens before shutdown returns, so the newest
	// buffered state must already be the stopped one.
	var last session.State
	seen := false
	for {
		select {
		case st := <-states:
			last, seen = st, true
			continue
		default:
		}
		break
	}
	if !seen {
		t.Fatal("no state published during shutdown")
	}
	if last.IsTracking {
		t.Error("final published state IsTracking = true, want a stopped state")
	}
}
