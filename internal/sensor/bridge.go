package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// sweepInterval backstops fsnotify: some filesystems coalesce or drop
// events, so the spool is additionally drained on a slow tick.
const sweepInterval = 2 * time.Second

// BridgeSource ingests discrete steps relayed by an external bridge (a
// phone app or BLE relay) that appends JSON lines to a spool file:
//
//	{"ts": 1755770400123, "steps": 1}
//
// ts is unix milliseconds and optional; steps defaults to 1. Each Run tails
// the file from its own offset anchored at session start, so only lines
// appended after the session started are counted, partial writes are
// retried once the line is complete, and malformed lines are skipped.
type BridgeSource struct {
	Path string
}

var _ Source = (*BridgeSource)(nil)

type bridgeRecord struct {
	TS    int64 `json:"ts"`
	Steps int   `json:"steps"`
}

func (b *BridgeSource) Name() string { return "bridge" }

func (b *BridgeSource) Probe() error {
	if b.Path == "" {
		return errors.New("no spool path configured")
	}
	if _, err := os.Stat(b.Path); err != nil {
		return fmt.Errorf("spool %s: %w", b.Path, err)
	}
	return nil
}

// Run tails the spool until ctx is cancelled. The tail offset lives here
// rather than on the struct: sessions can overlap briefly around a restart,
// and each Run anchors and advances its own tail.
func (b *BridgeSource) Run(ctx context.Context, emit func(Reading)) error {
	path := filepath.Clean(b.Path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the parent directory: bridges that rotate the spool recreate
	// the file, and watches on the file itself die with it.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	// Steps spooled before this session belong to the past.
	var offset int64
	if fi, err := os.Stat(path); err == nil {
		offset = fi.Size()
	}

	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Has(fsnotify.Create) {
				offset = 0
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			next, err := b.drain(ctx, offset, emit)
			if err != nil {
				return err
			}
			offset = next
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Bridge spool watcher error: %v", err)
		case <-sweep.C:
			next, err := b.drain(ctx, offset, emit)
			if err != nil {
				return err
			}
			offset = next
		}
	}
}

// drain reads complete lines appended past offset, emits a reading per
// parsed record, and returns the advanced offset. The offset only advances
// past complete lines; a partial trailing line waits for the rest of its
// bytes. Cancellation stops the loop between lines, so a long backlog never
// keeps emitting into a session that ended.
func (b *BridgeSource) drain(ctx context.Context, offset int64, emit func(Reading)) (int64, error) {
	f, err := os.Open(b.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return offset, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return offset, err
	}
	if fi.Size() < offset {
		// Truncated or rotated underneath us.
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return offset, err
	}

	consumed := 0
	for ctx.Err() == nil {
		idx := bytes.IndexByte(data[consumed:], '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSpace(data[consumed : consumed+idx])
		consumed += idx + 1
		if len(line) == 0 {
			continue
		}

		var rec bridgeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Printf("Bridge spool: skipping malformed line: %v", err)
			continue
		}

		steps := rec.Steps
		if steps <= 0 {
			steps = 1
		}
		at := time.Now()
		if rec.TS > 0 {
			at = time.UnixMilli(rec.TS)
		}
		emit(Reading{Kind: KindEvent, Steps: steps, At: at})
	}
	return offset + int64(consumed), nil
}
