package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/steptrack/steptrack/internal/session"
)

// ErrTooManyConnections is returned by AddClient when the connection cap
// is reached.
var ErrTooManyConnections = errors.New("too many connections")

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans state changes out to every connected WebSocket client.
// State publishes are coalesced behind a throttle so a burst of steps
// becomes one frame, and a periodic full snapshot papers over anything a
// client missed.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool

	tracker          *session.Tracker
	throttle         time.Duration
	snapshotInterval time.Duration
	maxClients       int

	flushMu      sync.Mutex
	pendingState *session.State
	flushTimer   *time.Timer
}

func NewBroadcaster(tracker *session.Tracker, throttle, snapshotInterval time.Duration, maxClients int) *Broadcaster {
	if throttle <= 0 {
		throttle = 100 * time.Millisecond
	}
	if snapshotInterval <= 0 {
		snapshotInterval = 5 * time.Second
	}
	return &Broadcaster{
		clients:          make(map[*client]bool),
		tracker:          tracker,
		throttle:         throttle,
		snapshotInterval: snapshotInterval,
		maxClients:       maxClients,
	}
}

// Start launches the snapshot keyframe loop and the feed that drains the
// tracker's publish stream into throttled state frames.
func (b *Broadcaster) Start(ctx context.Context) {
	states, cancel := b.tracker.Subscribe(64)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-states:
				if !ok {
					return
				}
				b.QueueState(st)
			}
		}
	}()
	go b.snapshotLoop(ctx)
}

// AddClient registers a connection and immediately sends it a snapshot.
// A zero maxClients means unlimited. On ErrTooManyConnections the caller
// still owns the connection and must close it.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		b.mu.Unlock()
		log.Printf("ws client rejected: connection cap %d reached", b.maxClients)
		return nil, ErrTooManyConnections
	}
	c := newClient(conn)
	b.clients[c] = true
	b.mu.Unlock()

	b.SendSnapshot(c)
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// SendSnapshot sends the current full state to one client.
func (b *Broadcaster) SendSnapshot(c *client) {
	msg := Message{
		Type:    MsgSnapshot,
		Payload: StatePayload{State: b.tracker.Snapshot()},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("snapshot marshal error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		// Client too slow, drop the snapshot
	}
}

// QueueState schedules a state frame. Publishes landing inside the throttle
// window are coalesced; only the newest state goes out.
func (b *Broadcaster) QueueState(st session.State) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingState = &st

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// QueueMilestone broadcasts a milestone immediately; these are rare and
// clients animate them, so they skip the state throttle.
func (b *Broadcaster) QueueMilestone(p MilestonePayload) {
	b.broadcast(Message{Type: MsgMilestone, Payload: p})
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	st := b.pendingState
	b.pendingState = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if st == nil {
		return
	}
	b.broadcast(Message{Type: MsgState, Payload: StatePayload{State: *st}})
}

func (b *Broadcaster) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(b.snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.broadcast(Message{
				Type:    MsgSnapshot,
				Payload: StatePayload{State: b.tracker.Snapshot()},
			})
		}
	}
}

func (b *Broadcaster) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up, disconnect it
			log.Printf("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}
