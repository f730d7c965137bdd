// Package sim produces synthetic step events when no hardware step source
// is available. The cadence imitates irregular human gait: mostly ordinary
// walking around a base pace, with occasional faster stretches, slowdowns,
// and short runs.
package sim

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Params shape the synthetic gait. A Generator keeps its Params for its
// whole run; changing the pace of a live session means stopping it and
// starting a new one.
type Params struct {
	// BaseSpeed is the average pace in steps per second.
	BaseSpeed float64
	// MinSpeed floors the drawn pace.
	MinSpeed float64
	// MinInterval floors the pause between steps.
	MinInterval time.Duration
}

// DefaultParams matches an average adult walking pace.
func DefaultParams() Params {
	return Params{
		BaseSpeed:   1.8,
		MinSpeed:    0.3,
		MinInterval: 200 * time.Millisecond,
	}
}

// WithDefaults fills unset fields from DefaultParams.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.BaseSpeed <= 0 {
		p.BaseSpeed = d.BaseSpeed
	}
	if p.MinSpeed <= 0 {
		p.MinSpeed = d.MinSpeed
	}
	if p.MinInterval <= 0 {
		p.MinInterval = d.MinInterval
	}
	return p
}

// Generator emits step events one inter-step interval at a time.
type Generator struct {
	params Params
	rng    *rand.Rand
}

// New creates a Generator. A nil rng gets a time-seeded one; tests pass a
// fixed source for deterministic draws.
func New(params Params, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{params: params.WithDefaults(), rng: rng}
}

// Run emits synthetic steps until ctx is cancelled. Cancellation is
// re-checked after every sleep, so a stop that lands mid-interval never
// produces a trailing step.
func (g *Generator) Run(ctx context.Context, emit func(time.Time)) {
	for {
		timer := time.NewTimer(g.nextInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}
		emit(time.Now())
	}
}

// nextInterval draws the pause before the next step: an activity band picks
// a speed offset, the speed converts to a base interval, and integer jitter
// roughens the rhythm. The result never drops below MinInterval.
func (g *Generator) nextInterval() time.Duration {
	speed := g.nextSpeed()
	base := math.Round(1000 / speed)
	jitter := float64(g.rng.Intn(99) - 49)
	interval := time.Duration(base+jitter) * time.Millisecond
	if interval < g.params.MinInterval {
		interval = g.params.MinInterval
	}
	return interval
}

// nextSpeed draws the instantaneous pace in steps per second.
//
// Band split: 61% ordinary walk around the base pace, 20% fast walk,
// 10% slow walk, 9% run. The result never drops below MinSpeed.
func (g *Generator) nextSpeed() float64 {
	var offset float64
	switch n := g.rng.Intn(100); {
	case n < 61:
		offset = g.uniform(-0.2, 0.2)
	case n < 81:
		offset = g.uniform(0.3, 0.8)
	case n < 91:
		offset = g.uniform(-0.4, -0.1)
	default:
		offset = g.uniform(1.0, 2.0)
	}

	speed := g.params.BaseSpeed + offset
	if speed < g.params.MinSpeed {
		speed = g.params.MinSpeed
	}
	return speed
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}
