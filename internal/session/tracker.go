package session

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steptrack/steptrack/internal/sensor"
	"github.com/steptrack/steptrack/internal/sim"
)

// Options configure a Tracker at construction. Zero values fall back to
// defaults, so session.New(session.Options{}) yields a purely simulated
// tracker with a one-second rate window.
type Options struct {
	// WindowSpan is the trailing span backing the steps-per-second metric.
	WindowSpan time.Duration
	// Params shape the synthetic generator. Replaced via SetParams between
	// sessions; never mid-session.
	Params sim.Params
	// Sources are the hardware providers probed at every Start.
	Sources []sensor.Source
	// Gate is the motion-sensing permission check. A nil Gate permits.
	Gate sensor.Gate
	// ForceSim skips hardware probing entirely.
	ForceSim bool
}

// Tracker is the single state machine that owns the step counters, the rate
// window, and the choice between hardware and simulated ingestion.
//
// Exactly one Tracker runs per process. All commands, ingestion callbacks,
// and snapshot reads serialize on its mutex, which is the only lock in the
// engine; subscription fan-out happens under the same lock with non-blocking
// sends, so a publish can never stall ingestion.
type Tracker struct {
	mu sync.Mutex

	state  State
	window *Window

	params   sim.Params
	sources  []sensor.Source
	gate     sensor.Gate
	forceSim bool

	// Cumulative-source bookkeeping. The first total after a start anchors
	// the count; later totals contribute their delta, which keeps mixed
	// discrete+cumulative ingestion and upstream counter restarts monotone.
	lastTotal uint64
	totalSeen bool

	// generation counts Starts. Ingestion callbacks are bound to the
	// generation that created them, so a reading delayed across a restart
	// cannot count into the session that replaced its own.
	generation uint64

	// lastAt is the newest timestamp ingested this session. Readings
	// carrying an older one count at lastAt instead, which keeps the rate
	// window's input non-decreasing.
	lastAt time.Time

	cancel context.CancelFunc

	subs    map[int]chan State
	nextSub int
}

func New(opts Options) *Tracker {
	return &Tracker{
		window:   NewWindow(opts.WindowSpan),
		params:   opts.Params.WithDefaults(),
		sources:  opts.Sources,
		gate:     opts.Gate,
		forceSim: opts.ForceSim,
		subs:     make(map[int]chan State),
	}
}

// Snapshot returns the latest published state. It never blocks on ingestion
// beyond the mutex hand-off.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe registers a consumer for every future publish. The returned
// cancel func detaches it; other subscribers are unaffected. Sends are
// non-blocking: a subscriber that stops draining misses intermediate
// snapshots but always receives a newer one later.
func (t *Tracker) Subscribe(buf int) (<-chan State, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan State, buf)

	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		if _, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(ch)
		}
		t.mu.Unlock()
	}
	return ch, cancel
}

// SetParams stages new simulation parameters. A session already running
// keeps the parameters it started with; the next Start picks these up.
func (t *Tracker) SetParams(p sim.Params) {
	t.mu.Lock()
	t.params = p.WithDefaults()
	t.mu.Unlock()
}

// Start begins a fresh tracking session. Calling it while tracking is a
// no-op. Mode selection happens here and is fixed until the session ends:
// hardware when the gate permits and at least one source probes healthy,
// simulation otherwise.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTracking {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.generation++
	gen := t.generation

	t.window.Clear()
	t.lastTotal = 0
	t.totalSeen = false
	t.lastAt = time.Time{}

	t.state = State{
		SessionID:  uuid.New().String(),
		IsTracking: true,
		Cadence:    CadenceStill,
		StartedAt:  time.Now(),
	}

	active := t.availableSources()
	if len(active) == 0 {
		t.state.IsSimulating = true
		t.state.Source = "simulator"
		g := sim.New(t.params, nil)
		go g.Run(ctx, t.simEmitFunc(gen))
		log.Printf("Tracking started: session=%s mode=simulated base=%.1f steps/sec",
			t.state.SessionID, t.params.BaseSpeed)
	} else {
		names := make([]string, len(active))
		for i, src := range active {
			names[i] = src.Name()
		}
		t.state.Source = strings.Join(names, "+")
		emit := t.ingestFunc(gen)
		for _, src := range active {
			go func(src sensor.Source) {
				if err := src.Run(ctx, emit); err != nil && ctx.Err() == nil {
					log.Printf("Sensor source %s stopped: %v", src.Name(), err)
				}
			}(src)
		}
		log.Printf("Tracking started: session=%s mode=hardware source=%s",
			t.state.SessionID, t.state.Source)
	}

	t.publishLocked()
}

// Stop tears down ingestion and leaves the counters as they are for
// display. Calling it while idle is a no-op.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Reset stops the current session, zeroes the counters and the window, and
// immediately starts a new one.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.stopLocked()
	t.state.CumulativeSteps = 0
	t.state.StepsPerSecond = 0
	t.state.Cadence = CadenceStill
	t.window.Clear()
	t.mu.Unlock()

	t.Start()
}

func (t *Tracker) stopLocked() {
	if !t.state.IsTracking {
		return
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.state.IsTracking = false
	log.Printf("Tracking stopped: session=%s steps=%d", t.state.SessionID, t.state.CumulativeSteps)
	t.publishLocked()
}

// availableSources applies the permission gate and probes every configured
// source. An empty result is not an error: it selects simulation.
func (t *Tracker) availableSources() []sensor.Source {
	if t.forceSim {
		return nil
	}
	if t.gate != nil && !t.gate.Allow() {
		log.Printf("Motion sensing not permitted, falling back to simulation")
		return nil
	}
	var active []sensor.Source
	for _, src := range t.sources {
		if err := src.Probe(); err != nil {
			log.Printf("Sensor source %s unavailable: %v", src.Name(), err)
			continue
		}
		active = append(active, src)
	}
	return active
}

// ingestFunc binds the reading path to the session generation that created
// it. Sources may hold their callback past a Stop that raced them; the
// bound generation is how ingest tells a live reading from a stale one.
func (t *Tracker) ingestFunc(gen uint64) func(sensor.Reading) {
	return func(r sensor.Reading) { t.ingest(gen, r) }
}

// simEmitFunc adapts generator emissions to the reading path.
func (t *Tracker) simEmitFunc(gen uint64) func(time.Time) {
	return func(ts time.Time) {
		t.ingest(gen, sensor.Reading{Kind: sensor.KindEvent, Steps: 1, At: ts})
	}
}

// ingest applies one sensor reading. A reading racing the end of its
// session (a callback already in flight when the session context was
// cancelled) is dropped: the tracking check rejects it while the tracker is
// idle, and the generation check rejects it once a newer session runs.
func (t *Tracker) ingest(gen uint64, r sensor.Reading) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.IsTracking || gen != t.generation {
		return
	}

	at := r.At
	if at.IsZero() {
		at = time.Now()
	}
	if at.Before(t.lastAt) {
		// Spooled records can arrive out of order, and a bridge timestamp
		// can trail a sibling source's wall clock. Late readings count at
		// the newest ingested instant.
		at = t.lastAt
	}
	t.lastAt = at

	steps := 0
	switch r.Kind {
	case sensor.KindEvent:
		steps = r.Steps
		if steps <= 0 {
			steps = 1
		}
	case sensor.KindCumulative:
		if !t.totalSeen {
			t.lastTotal = r.Total
			t.totalSeen = true
		}
		if r.Total < t.lastTotal {
			// The device counter restarted; re-anchor and keep our count.
			t.lastTotal = r.Total
		}
		steps = int(r.Total - t.lastTotal)
		t.lastTotal = r.Total
	}

	for i := 0; i < steps; i++ {
		t.window.Record(at)
	}
	if steps > 0 {
		t.state.CumulativeSteps += steps
		t.state.LastStepAt = at
	}

	t.state.StepsPerSecond = t.window.Rate(at)
	t.state.Cadence = ClassifyCadence(t.state.StepsPerSecond)
	t.publishLocked()
}

func (t *Tracker) publishLocked() {
	st := t.state
	for _, ch := range t.subs {
		select {
		case ch <- st:
		default:
			// Subscriber isn't draining; the next publish supersedes this one.
		}
	}
}
