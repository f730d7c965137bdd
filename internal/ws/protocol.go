package ws

import (
	"encoding/json"
	"time"

	"github.com/steptrack/steptrack/internal/session"
)

type MessageType string

const (
	// MsgSnapshot carries the full current state: sent on attach, on
	// resync, and periodically as a keyframe.
	MsgSnapshot MessageType = "snapshot"
	// MsgState carries the state after a change, throttled.
	MsgState MessageType = "state"
	// MsgMilestone announces a step-count threshold crossing.
	MsgMilestone MessageType = "milestone"
	// MsgResync is sent by clients to request a fresh snapshot.
	MsgResync MessageType = "resync"
)

type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type StatePayload struct {
	State session.State `json:"state"`
}

type MilestonePayload struct {
	SessionID string    `json:"sessionId"`
	Threshold int       `json:"threshold"`
	Steps     int       `json:"steps"`
	At        time.Time `json:"at"`
}

// Inbound is the wire form read off a socket before the payload shape is
// known. Shared with the TUI client so both sides decode the same way.
type Inbound struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
