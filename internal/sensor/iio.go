package sensor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultSysfsRoot is where the kernel exposes industrial I/O devices.
const DefaultSysfsRoot = "/sys/bus/iio/devices"

// stepsAttr is the sysfs attribute step-counting drivers publish their
// lifetime total through.
const stepsAttr = "in_steps_input"

const maxConsecutiveReadFailures = 5

// IIOSource reads a pedometer exposed through the Linux IIO subsystem.
// The kernel surfaces these as a polled counter file, so Run converts the
// counter into change events: one reading immediately (the session needs it
// to anchor its baseline), then one per observed change.
type IIOSource struct {
	// Root overrides DefaultSysfsRoot; tests point it at a fixture tree.
	Root string
	// Poll is the counter poll cadence. Default 500ms.
	Poll time.Duration

	path string // resolved steps attribute, set by Probe
	name string // device name, for logs
}

var _ Source = (*IIOSource)(nil)

func (s *IIOSource) Name() string {
	if s.name != "" {
		return "iio:" + s.name
	}
	return "iio"
}

// Probe scans the sysfs root for a device exposing a step counter and
// remembers the first one found.
func (s *IIOSource) Probe() error {
	root := s.Root
	if root == "" {
		root = DefaultSysfsRoot
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("scan %s: %w", root, err)
	}
	for _, entry := range entries {
		dir := filepath.Join(root, entry.Name())
		attr := filepath.Join(dir, stepsAttr)
		if _, err := os.Stat(attr); err != nil {
			continue
		}
		s.path = attr
		s.name = deviceName(dir)
		return nil
	}
	return fmt.Errorf("no step-counting device under %s", root)
}

// Run polls the step counter until ctx is cancelled. Transient read
// failures are tolerated; the source gives up only after several in a row,
// which usually means the device went away.
func (s *IIOSource) Run(ctx context.Context, emit func(Reading)) error {
	if s.path == "" {
		if err := s.Probe(); err != nil {
			return err
		}
	}
	poll := s.Poll
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	var last uint64
	seeded := false
	failures := 0

	observe := func() error {
		total, err := s.readTotal()
		if err != nil {
			failures++
			if failures >= maxConsecutiveReadFailures {
				return fmt.Errorf("read %s: %w", s.path, err)
			}
			return nil
		}
		failures = 0
		if seeded && total == last {
			return nil
		}
		seeded = true
		last = total
		emit(Reading{Kind: KindCumulative, Total: total, At: time.Now()})
		return nil
	}

	if err := observe(); err != nil {
		return err
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := observe(); err != nil {
				return err
			}
		}
	}
}

func (s *IIOSource) readTotal() (uint64, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(raw))
	total, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", text, err)
	}
	return total, nil
}

func deviceName(dir string) string {
	raw, err := os.ReadFile(filepath.Join(dir, "name"))
	if err != nil {
		return filepath.Base(dir)
	}
	name := strings.TrimSpace(string(raw))
	if name == "" {
		return filepath.Base(dir)
	}
	return name
}
