// Package sensor abstracts hardware step providers. The tracking session
// probes every configured Source at start; when none is usable (or the Gate
// denies motion sensing) it falls back to synthetic steps instead of
// failing.
package sensor

import (
	"context"
	"time"
)

// Kind tells the session how to interpret a Reading.
type Kind int

const (
	// KindEvent reports freshly detected steps; Steps carries how many.
	KindEvent Kind = iota
	// KindCumulative reports the device's lifetime step total. The session
	// anchors on the first total after a start and counts deltas from
	// there, because the hardware counter is never reset by software.
	KindCumulative
)

// Reading is one step observation delivered by a Source.
type Reading struct {
	Kind  Kind
	Steps int       // valid for KindEvent
	Total uint64    // valid for KindCumulative
	At    time.Time // observation time; zero means "now"
}

// Source is a hardware step provider.
//
// Probe answers whether the source can deliver readings right now; it runs
// once per session start, during mode selection. Run delivers readings to
// emit until ctx is cancelled and must be safe to call from its own
// goroutine. Implementations own their I/O cadence (polling a counter,
// tailing a spool); the session treats every emitted Reading the same
// regardless of where it came from.
type Source interface {
	Name() string
	Probe() error
	Run(ctx context.Context, emit func(Reading)) error
}

// Gate answers whether motion sensing is permitted at all. A denial is not
// an error: the session selects simulation, exactly as if no hardware
// existed.
type Gate interface {
	Allow() bool
}
