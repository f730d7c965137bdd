package session

import "time"

// State is the authoritative snapshot of the tracking engine. It is
// published as a value on every change; consumers never share memory with
// the Tracker and may keep or compare snapshots freely.
type State struct {
	SessionID       string    `json:"sessionId"`
	CumulativeSteps int       `json:"cumulativeSteps"`
	StepsPerSecond  float64   `json:"stepsPerSecond"`
	IsTracking      bool      `json:"isTracking"`
	IsSimulating    bool      `json:"isSimulating"`
	Source          string    `json:"source,omitempty"`
	Cadence         Cadence   `json:"cadence"`
	StartedAt       time.Time `json:"startedAt"`
	LastStepAt      time.Time `json:"lastStepAt"`
}

// Mode names the ingestion path for logs and the health endpoint.
func (s State) Mode() string {
	switch {
	case !s.IsTracking:
		return "idle"
	case s.IsSimulating:
		return "simulated"
	default:
		return "hardware"
	}
}
