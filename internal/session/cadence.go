package session

import "encoding/json"

// Cadence buckets the step rate into a coarse gait label for display.
type Cadence int

const (
	CadenceStill Cadence = iota
	CadenceStroll
	CadenceWalk
	CadenceBrisk
	CadenceRun
)

var cadenceNames = map[Cadence]string{
	CadenceStill:  "still",
	CadenceStroll: "stroll",
	CadenceWalk:   "walk",
	CadenceBrisk:  "brisk",
	CadenceRun:    "run",
}

var cadenceFromName = map[string]Cadence{
	"still":  CadenceStill,
	"stroll": CadenceStroll,
	"walk":   CadenceWalk,
	"brisk":  CadenceBrisk,
	"run":    CadenceRun,
}

// ClassifyCadence maps a steps-per-second rate to its gait bucket.
func ClassifyCadence(rate float64) Cadence {
	switch {
	case rate < 0.2:
		return CadenceStill
	case rate < 1.4:
		return CadenceStroll
	case rate < 2.2:
		return CadenceWalk
	case rate < 2.8:
		return CadenceBrisk
	default:
		return CadenceRun
	}
}

func (c Cadence) String() string {
	if s, ok := cadenceNames[c]; ok {
		return s
	}
	return "unknown"
}

func (c Cadence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Cadence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := cadenceFromName[s]; ok {
		*c = v
	}
	return nil
}
