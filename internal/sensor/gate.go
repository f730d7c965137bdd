package sensor

import (
	"os"
	"strings"
)

// EnvOverride is consulted before the configured policy so operators and
// tests can force the gate without touching config: "granted" permits
// motion sensing, "denied" blocks it, anything else defers to Enabled.
const EnvOverride = "STEPTRACK_MOTION"

// PolicyGate is the default Gate: a static config switch with an
// environment override.
type PolicyGate struct {
	Enabled bool

	// LookupEnv defaults to os.LookupEnv; tests inject their own.
	LookupEnv func(string) (string, bool)
}

func (g *PolicyGate) Allow() bool {
	lookup := g.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvOverride); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "granted":
			return true
		case "denied":
			return false
		}
	}
	return g.Enabled
}

var _ Gate = (*PolicyGate)(nil)
