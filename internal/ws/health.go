package ws

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"
)

type healthPayload struct {
	Status        string  `json:"status"`
	Mode          string  `json:"mode"`
	Clients       int     `json:"clients"`
	UptimeSec     int64   `json:"uptimeSec"`
	HostUptimeSec uint64  `json:"hostUptimeSec,omitempty"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryRSS     uint64  `json:"memoryRssBytes"`
	Goroutines    int     `json:"goroutines"`
}

// handleHealth reports daemon liveness plus a little self-observation so a
// dashboard can flag a runaway process. The gopsutil lookups are best
// effort; a probe failure leaves the field zero rather than failing the
// endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h := healthPayload{
		Status:     "ok",
		Mode:       s.tracker.Snapshot().Mode(),
		Clients:    s.broadcaster.ClientCount(),
		UptimeSec:  int64(time.Since(s.started).Seconds()),
		Goroutines: runtime.NumGoroutine(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			h.CPUPercent = cpu
		}
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			h.MemoryRSS = mem.RSS
		}
	}
	if up, err := host.Uptime(); err == nil {
		h.HostUptimeSec = up
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h)
}
