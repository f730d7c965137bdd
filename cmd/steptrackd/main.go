package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/steptrack/steptrack/internal/config"
	"github.com/steptrack/steptrack/internal/frontend"
	"github.com/steptrack/steptrack/internal/milestone"
	"github.com/steptrack/steptrack/internal/notify"
	"github.com/steptrack/steptrack/internal/sensor"
	"github.com/steptrack/steptrack/internal/session"
	"github.com/steptrack/steptrack/internal/sim"
	"github.com/steptrack/steptrack/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	host := flag.String("host", "", "Override server host")
	token := flag.String("token", "", "Override auth token")
	simMode := flag.Bool("sim", false, "Force simulation even when hardware is present")
	devMode := flag.Bool("dev", false, "Development mode (serve frontend from filesystem)")
	frontendFlag := flag.String("frontend-dir", "", "Serve the dashboard from this directory")
	genToken := flag.Bool("gen-token", false, "Print a fresh auth token and exit")
	flag.Parse()

	if *genToken {
		tok, err := config.GenerateToken()
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *token != "" {
		cfg.Server.AuthToken = *token
	}

	var sources []sensor.Source
	if cfg.Sensors.IIO.Enabled {
		sources = append(sources, &sensor.IIOSource{
			Root: cfg.Sensors.IIO.SysfsRoot,
			Poll: cfg.Sensors.IIO.Poll,
		})
	}
	if cfg.Sensors.Bridge.Enabled {
		sources = append(sources, &sensor.BridgeSource{
			Path: cfg.Sensors.Bridge.SpoolPath,
		})
	}

	gate := &sensor.PolicyGate{
		Enabled:   cfg.Sensors.MotionEnabled,
		LookupEnv: os.LookupEnv,
	}

	tracker := session.New(session.Options{
		WindowSpan: cfg.Engine.Window,
		Params: sim.Params{
			BaseSpeed:   cfg.Simulation.BaseSpeed,
			MinSpeed:    cfg.Simulation.MinSpeed,
			MinInterval: cfg.Simulation.MinInterval,
		},
		Sources:  sources,
		Gate:     gate,
		ForceSim: *simMode,
	})

	broadcaster := ws.NewBroadcaster(tracker, cfg.Engine.PublishThrottle, cfg.Engine.SnapshotInterval, cfg.Server.MaxClients)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcaster.Start(ctx)

	var notifier notify.Notifier = notify.Log{}
	if cfg.Notify.Desktop {
		if dn, err := notify.NewDBus(); err != nil {
			log.Printf("Desktop notifications unavailable: %v", err)
		} else {
			notifier = dn
		}
	}

	milestones := milestone.New(cfg.Milestones,
		func(a milestone.Alert) {
			broadcaster.QueueMilestone(ws.MilestonePayload{
				SessionID: a.SessionID,
				Threshold: a.Threshold,
				Steps:     a.Steps,
				At:        a.At,
			})
		},
		func(a milestone.Alert) {
			go func() {
				summary, body := notify.Milestone(a.Threshold)
				if err := notifier.Notify(summary, body); err != nil {
					log.Printf("Notification failed: %v", err)
				}
			}()
		},
	)
	milestoneStates, _ := tracker.Subscribe(64)
	go milestones.Run(ctx, milestoneStates)

	frontendDir := *frontendFlag
	if frontendDir != "" {
		*devMode = true
	} else if *devMode {
		exe, _ := os.Executable()
		frontendDir = filepath.Join(filepath.Dir(exe), "..", "..", "internal", "frontend", "static")
		// If running with go run, the exe path is in a temp dir, use CWD instead
		if _, err := os.Stat(frontendDir); os.IsNotExist(err) {
			cwd, _ := os.Getwd()
			frontendDir = filepath.Join(cwd, "internal", "frontend", "static")
		}
	}

	// Embedded frontend handler: when built with -tags embed, serves from binary.
	// Otherwise falls back to serving from the filesystem.
	var embeddedHandler http.Handler
	if !*devMode {
		embeddedHandler = frontend.Handler()
		if embeddedHandler == nil {
			cwd, _ := os.Getwd()
			fallback := filepath.Join(cwd, "internal", "frontend", "static")
			if _, err := os.Stat(fallback); err == nil {
				log.Printf("No embedded frontend, falling back to: %s", fallback)
				embeddedHandler = http.FileServer(http.Dir(fallback))
			}
		}
	}

	server := ws.NewServer(tracker, broadcaster, frontendDir, *devMode, embeddedHandler, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)
	server.SetConfigPayload(configPayload(cfg, gate))

	var reloadMu sync.Mutex
	current := cfg
	apply := func(next *config.Config) {
		reloadMu.Lock()
		defer reloadMu.Unlock()
		changes := config.Diff(current, next)
		if len(changes) == 0 {
			log.Println("Config reloaded, no changes")
			return
		}
		restart := false
		for _, c := range changes {
			log.Printf("Config change: %s", c)
			if strings.HasPrefix(c, "server.") || strings.HasPrefix(c, "engine.") {
				restart = true
			}
		}
		if restart {
			log.Println("Server and engine settings apply on the next daemon restart")
		}
		// Simulation parameters take effect at the next session start.
		tracker.SetParams(sim.Params{
			BaseSpeed:   next.Simulation.BaseSpeed,
			MinSpeed:    next.Simulation.MinSpeed,
			MinInterval: next.Simulation.MinInterval,
		})
		server.SetConfigPayload(configPayload(next, gate))
		current = next
	}

	go func() {
		if err := config.Watch(ctx, *configPath, apply); err != nil {
			log.Printf("Config watch unavailable: %v", err)
		}
	}()

	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go func() {
		for range hupCh {
			next, err := config.LoadOrDefault(*configPath)
			if err != nil {
				log.Printf("Config reload failed: %v", err)
				continue
			}
			apply(next)
		}
	}()

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		shutdown(tracker, cancel)
	}()

	tracker.Start()

	log.Printf("steptrackd listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// shutdown ends the tracking session before the server context is
// cancelled, so ingestion tears down and subscribers see a final stopped
// state during the graceful window.
func shutdown(tracker *session.Tracker, cancel context.CancelFunc) {
	log.Println("Shutting down...")
	tracker.Stop()
	cancel()
}

func configPayload(cfg *config.Config, gate sensor.Gate) ws.ConfigPayload {
	return ws.ConfigPayload{
		WindowMillis:    cfg.Engine.Window.Milliseconds(),
		BaseSpeed:       cfg.Simulation.BaseSpeed,
		MinSpeed:        cfg.Simulation.MinSpeed,
		MinIntervalMs:   cfg.Simulation.MinInterval.Milliseconds(),
		Milestones:      cfg.Milestones,
		DesktopNotify:   cfg.Notify.Desktop,
		MotionPermitted: gate.Allow(),
	}
}
