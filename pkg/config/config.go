package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Server   ServerConfig   `yaml:"server"`
	Stakeout StakeoutConfig `yaml:"stakeout"`
	Session  SessionConfig  `yaml:"session"`
	GNSS     GNSSConfig     `yaml:"gnss"`
	Targets  TargetsConfig  `yaml:"targets"`
	Audio    AudioConfig    `yaml:"audio"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
	Trace    bool        `yaml:"trace"` // per-fix diagnostics at DEBUG
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path           string   `yaml:"path"`
	H3Resolution   int      `yaml:"h3_resolution"`   // cell size of the stake log index
	StakeRetention Duration `yaml:"stake_retention"` // 0 keeps the stake log forever
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string   `yaml:"address"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	UIDir        string   `yaml:"ui_dir"` // static map UI, served at / when present
}

// StakeoutConfig holds ring rendering settings.
type StakeoutConfig struct {
	DevicePixelRatio  float64 `yaml:"device_pixel_ratio"`
	FallbackPixels    float64 `yaml:"fallback_pixels"`
	ActiveStrokeWidth float64 `yaml:"active_stroke_width"`
	IdleStrokeWidth   float64 `yaml:"idle_stroke_width"`
}

// SessionConfig holds per-client session settings.
type SessionConfig struct {
	TTL Duration `yaml:"ttl"`
}

// Location source providers.
const (
	GNSSProviderSim    = "sim"
	GNSSProviderReplay = "replay"
	GNSSProviderNone   = "none"
)

// GNSSConfig holds settings for the location source.
type GNSSConfig struct {
	Provider string           `yaml:"provider"` // "sim", "replay", "none"
	Interval Duration         `yaml:"interval"`
	Session  string           `yaml:"session"` // session the device fixes are delivered to
	Sim      SimGNSSConfig    `yaml:"sim"`
	Replay   ReplayGNSSConfig `yaml:"replay"`
}

// SimGNSSConfig holds settings for the simulated receiver.
type SimGNSSConfig struct {
	StartLat       float64  `yaml:"start_lat"`
	StartLon       float64  `yaml:"start_lon"`
	Speed          float64  `yaml:"speed"` // m/s
	Heading        float64  `yaml:"heading"`
	HeadingJitter  float64  `yaml:"heading_jitter"` // degrees per step, std dev
	PositionJitter Distance `yaml:"position_jitter"`
	WalkToTarget   bool     `yaml:"walk_to_target"`
}

// ReplayGNSSConfig holds settings for GPX track replay.
type ReplayGNSSConfig struct {
	Path string  `yaml:"path"`
	Rate float64 `yaml:"rate"` // playback speed multiplier
	Loop bool    `yaml:"loop"`
}

// TargetsConfig lists the target library files (GeoJSON or shapefile).
type TargetsConfig struct {
	Paths []string `yaml:"paths"`
}

// AudioConfig holds settings for proximity cues.
type AudioConfig struct {
	Enabled       bool     `yaml:"enabled"`
	BaseFrequency float64  `yaml:"base_frequency"` // Hz for the outermost ring
	ToneLength    Duration `yaml:"tone_length"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path:         "./data/stakeout.db",
			H3Resolution: 12,
		},
		Server: ServerConfig{
			Address:      "localhost:1921",
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(10 * time.Second),
			UIDir:        "./web",
		},
		Stakeout: StakeoutConfig{
			DevicePixelRatio:  1.0,
			FallbackPixels:    5.0,
			ActiveStrokeWidth: 3.0,
			IdleStrokeWidth:   1.5,
		},
		Session: SessionConfig{
			TTL: Duration(12 * time.Hour),
		},
		GNSS: GNSSConfig{
			Provider: "none",
			Interval: Duration(1 * time.Second),
			Session:  "device",
			Sim: SimGNSSConfig{
				StartLat:       46.6263,
				StartLon:       14.2230,
				Speed:          0.8,
				Heading:        90.0,
				HeadingJitter:  2.0,
				PositionJitter: Distance(0.01),
				WalkToTarget:   true,
			},
			Replay: ReplayGNSSConfig{
				Rate: 1.0,
				Loop: true,
			},
		},
		Targets: TargetsConfig{
			Paths: []string{"./data/targets"},
		},
		Audio: AudioConfig{
			Enabled:       false,
			BaseFrequency: 440,
			ToneLength:    Duration(150 * time.Millisecond),
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// A .env file next to the config is loaded first; STAKEOUT_* variables then
// override the file but are never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)
	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the stake-out core cannot work with.
func (c *Config) Validate() error {
	if !(c.Stakeout.DevicePixelRatio > 0) {
		return fmt.Errorf("invalid stakeout.device_pixel_ratio %v: must be > 0", c.Stakeout.DevicePixelRatio)
	}
	switch c.GNSS.Provider {
	case GNSSProviderSim, GNSSProviderReplay, GNSSProviderNone:
	default:
		return fmt.Errorf("invalid gnss.provider '%s': must be sim, replay or none", c.GNSS.Provider)
	}
	if c.GNSS.Provider == GNSSProviderReplay && c.GNSS.Replay.Path == "" {
		return fmt.Errorf("gnss.replay.path is required for the replay provider")
	}
	if c.DB.H3Resolution < 0 || c.DB.H3Resolution > 15 {
		return fmt.Errorf("invalid db.h3_resolution %d: must be 0-15", c.DB.H3Resolution)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STAKEOUT_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("STAKEOUT_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("STAKEOUT_GNSS_PROVIDER"); v != "" {
		cfg.GNSS.Provider = v
	}
	if v := os.Getenv("STAKEOUT_LOG_LEVEL"); v != "" {
		cfg.Log.Server.Level = v
	}
}

var winEnvRe = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// expandPath resolves $VAR, ${VAR} and %VAR% references.
func expandPath(p string) string {
	p = winEnvRe.ReplaceAllStringFunc(p, func(m string) string {
		return os.Getenv(strings.Trim(m, "%"))
	})
	return os.ExpandEnv(p)
}

func expandPaths(cfg *Config) {
	cfg.DB.Path = expandPath(cfg.DB.Path)
	cfg.Log.Server.Path = expandPath(cfg.Log.Server.Path)
	cfg.Log.Requests.Path = expandPath(cfg.Log.Requests.Path)
	cfg.Log.Events.Path = expandPath(cfg.Log.Events.Path)
	cfg.GNSS.Replay.Path = expandPath(cfg.GNSS.Replay.Path)
	cfg.Server.UIDir = expandPath(cfg.Server.UIDir)
	for i, p := range cfg.Targets.Paths {
		cfg.Targets.Paths[i] = expandPath(p)
	}
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Stakeout Configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: mm, cm, m, km, ft, usft (US survey foot), in

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: sim, replay, none\n${1}provider:"))

	reDPR := regexp.MustCompile(`(?m)^(\s+)device_pixel_ratio:`)
	data = reDPR.ReplaceAll(data, []byte("${1}# Physical pixels per CSS pixel of the map surface\n${1}device_pixel_ratio:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
