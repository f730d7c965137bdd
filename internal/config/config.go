// Package config loads and watches the daemon's YAML configuration.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Engine     EngineConfig     `yaml:"engine"`
	Simulation SimulationConfig `yaml:"simulation"`
	Sensors    SensorsConfig    `yaml:"sensors"`
	Milestones []int            `yaml:"milestones"`
	Notify     NotifyConfig     `yaml:"notify"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxClients     int      `yaml:"max_clients"`
}

type EngineConfig struct {
	Window           time.Duration `yaml:"window"`
	PublishThrottle  time.Duration `yaml:"publish_throttle"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

type SimulationConfig struct {
	BaseSpeed   float64       `yaml:"base_speed"`
	MinSpeed    float64       `yaml:"min_speed"`
	MinInterval time.Duration `yaml:"min_interval"`
}

type SensorsConfig struct {
	MotionEnabled bool         `yaml:"motion_enabled"`
	IIO           IIOConfig    `yaml:"iio"`
	Bridge        BridgeConfig `yaml:"bridge"`
}

type IIOConfig struct {
	Enabled   bool          `yaml:"enabled"`
	SysfsRoot string        `yaml:"sysfs_root"`
	Poll      time.Duration `yaml:"poll"`
}

type BridgeConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SpoolPath string `yaml:"spool_path"`
}

type NotifyConfig struct {
	Desktop bool `yaml:"desktop"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       8787,
			MaxClients: 32,
		},
		Engine: EngineConfig{
			Window:           time.Second,
			PublishThrottle:  100 * time.Millisecond,
			SnapshotInterval: 5 * time.Second,
		},
		Simulation: SimulationConfig{
			BaseSpeed:   1.8,
			MinSpeed:    0.3,
			MinInterval: 200 * time.Millisecond,
		},
		Sensors: SensorsConfig{
			MotionEnabled: true,
			IIO: IIOConfig{
				Enabled:   true,
				SysfsRoot: "/sys/bus/iio/devices",
				Poll:      500 * time.Millisecond,
			},
			Bridge: BridgeConfig{
				Enabled:   false,
				SpoolPath: "/run/steptrack/steps.jsonl",
			},
		},
		Milestones: []int{100, 500, 1000, 5000, 10000},
		Notify: NotifyConfig{
			Desktop: true,
		},
	}
}

// Load reads the config at path on top of the defaults. Fields the file
// does not mention keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()

	return cfg, nil
}

// LoadOrDefault behaves like Load but treats a missing file as "use the
// defaults". Other errors (unreadable file, bad YAML) still fail.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// normalize clamps values an explicit YAML zero (or negative) would break.
func (c *Config) normalize() {
	def := defaultConfig()
	if c.Server.Port <= 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.MaxClients <= 0 {
		c.Server.MaxClients = def.Server.MaxClients
	}
	if c.Engine.Window <= 0 {
		c.Engine.Window = def.Engine.Window
	}
	if c.Engine.PublishThrottle <= 0 {
		c.Engine.PublishThrottle = def.Engine.PublishThrottle
	}
	if c.Engine.SnapshotInterval <= 0 {
		c.Engine.SnapshotInterval = def.Engine.SnapshotInterval
	}
	if c.Simulation.BaseSpeed <= 0 {
		c.Simulation.BaseSpeed = def.Simulation.BaseSpeed
	}
	if c.Simulation.MinSpeed <= 0 {
		c.Simulation.MinSpeed = def.Simulation.MinSpeed
	}
	if c.Simulation.MinInterval <= 0 {
		c.Simulation.MinInterval = def.Simulation.MinInterval
	}
	if c.Sensors.IIO.SysfsRoot == "" {
		c.Sensors.IIO.SysfsRoot = def.Sensors.IIO.SysfsRoot
	}
	if c.Sensors.IIO.Poll <= 0 {
		c.Sensors.IIO.Poll = def.Sensors.IIO.Poll
	}
}

// GenerateToken returns a random hex token suitable for auth_token.
func GenerateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Diff reports the fields that changed between two configs, one
// human-readable line per change. Used when logging a live reload.
func Diff(old, new *Config) []string {
	var changes []string

	add := func(format string, args ...interface{}) {
		changes = append(changes, fmt.Sprintf(format, args...))
	}

	if old.Server.Host != new.Server.Host {
		add("server.host: %s → %s", old.Server.Host, new.Server.Host)
	}
	if old.Server.Port != new.Server.Port {
		add("server.port: %d → %d", old.Server.Port, new.Server.Port)
	}
	if old.Server.AuthToken != new.Server.AuthToken {
		// Never log token values.
		add("server.auth_token: changed")
	}
	if !equalStrings(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		add("server.allowed_origins: %v → %v", old.Server.AllowedOrigins, new.Server.AllowedOrigins)
	}
	if old.Server.MaxClients != new.Server.MaxClients {
		add("server.max_clients: %d → %d", old.Server.MaxClients, new.Server.MaxClients)
	}

	if old.Engine.Window != new.Engine.Window {
		add("engine.window: %s → %s", old.Engine.Window, new.Engine.Window)
	}
	if old.Engine.PublishThrottle != new.Engine.PublishThrottle {
		add("engine.publish_throttle: %s → %s", old.Engine.PublishThrottle, new.Engine.PublishThrottle)
	}
	if old.Engine.SnapshotInterval != new.Engine.SnapshotInterval {
		add("engine.snapshot_interval: %s → %s", old.Engine.SnapshotInterval, new.Engine.SnapshotInterval)
	}

	if old.Simulation.BaseSpeed != new.Simulation.BaseSpeed {
		add("simulation.base_speed: %g → %g", old.Simulation.BaseSpeed, new.Simulation.BaseSpeed)
	}
	if old.Simulation.MinSpeed != new.Simulation.MinSpeed {
		add("simulation.min_speed: %g → %g", old.Simulation.MinSpeed, new.Simulation.MinSpeed)
	}
	if old.Simulation.MinInterval != new.Simulation.MinInterval {
		add("simulation.min_interval: %s → %s", old.Simulation.MinInterval, new.Simulation.MinInterval)
	}

	if old.Sensors.MotionEnabled != new.Sensors.MotionEnabled {
		add("sensors.motion_enabled: %t → %t", old.Sensors.MotionEnabled, new.Sensors.MotionEnabled)
	}
	if old.Sensors.IIO.Enabled != new.Sensors.IIO.Enabled {
		add("sensors.iio.enabled: %t → %t", old.Sensors.IIO.Enabled, new.Sensors.IIO.Enabled)
	}
	if old.Sensors.IIO.SysfsRoot != new.Sensors.IIO.SysfsRoot {
		add("sensors.iio.sysfs_root: %s → %s", old.Sensors.IIO.SysfsRoot, new.Sensors.IIO.SysfsRoot)
	}
	if old.Sensors.IIO.Poll != new.Sensors.IIO.Poll {
		add("sensors.iio.poll: %s → %s", old.Sensors.IIO.Poll, new.Sensors.IIO.Poll)
	}
	if old.Sensors.Bridge.Enabled != new.Sensors.Bridge.Enabled {
		add("sensors.bridge.enabled: %t → %t", old.Sensors.Bridge.Enabled, new.Sensors.Bridge.Enabled)
	}
	if old.Sensors.Bridge.SpoolPath != new.Sensors.Bridge.SpoolPath {
		add("sensors.bridge.spool_path: %s → %s", old.Sensors.Bridge.SpoolPath, new.Sensors.Bridge.SpoolPath)
	}

	if !equalInts(old.Milestones, new.Milestones) {
		add("milestones: %v → %v", old.Milestones, new.Milestones)
	}

	if old.Notify.Desktop != new.Notify.Desktop {
		add("notify.desktop: %t → %t", old.Notify.Desktop, new.Notify.Desktop)
	}

	return changes
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
