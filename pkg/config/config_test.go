package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "stakeout.yaml")

	tests := []struct {
		name          string
		setup         func(*testing.T)
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func(t *testing.T) {},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Stakeout.DevicePixelRatio != 1.0 {
					t.Errorf("expected default device_pixel_ratio 1.0, got %v", cfg.Stakeout.DevicePixelRatio)
				}
				if cfg.GNSS.Provider != "none" {
					t.Errorf("expected default gnss provider 'none', got '%s'", cfg.GNSS.Provider)
				}
				if time.Duration(cfg.Session.TTL) != 12*time.Hour {
					t.Errorf("expected session ttl 12h, got %v", time.Duration(cfg.Session.TTL))
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "address: localhost:1921") {
					t.Error("config file missing default values")
				}
				if !strings.Contains(string(content), "# Options: sim, replay, none") {
					t.Error("config file missing provider options comment")
				}
				if !strings.Contains(string(content), "position_jitter: 1cm") {
					t.Error("config file should write sub-meter distances in cm")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func(t *testing.T) {
				err := os.WriteFile(configPath, []byte("stakeout:\n  device_pixel_ratio: 2.625\ngnss:\n  provider: sim\n  sim:\n    position_jitter: 2cm\ndb:\n  stake_retention: 90d\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Stakeout.DevicePixelRatio != 2.625 {
					t.Errorf("expected device_pixel_ratio 2.625, got %v", cfg.Stakeout.DevicePixelRatio)
				}
				if cfg.GNSS.Provider != "sim" {
					t.Errorf("expected gnss provider 'sim', got '%s'", cfg.GNSS.Provider)
				}
				if float64(cfg.GNSS.Sim.PositionJitter) != 0.02 {
					t.Errorf("expected jitter 0.02m, got %v", cfg.GNSS.Sim.PositionJitter)
				}
				if time.Duration(cfg.DB.StakeRetention) != 90*24*time.Hour {
					t.Errorf("expected stake retention 90d, got %v", time.Duration(cfg.DB.StakeRetention))
				}
				// untouched sections keep defaults
				if cfg.Stakeout.ActiveStrokeWidth != 3.0 {
					t.Errorf("expected default active stroke 3.0, got %v", cfg.Stakeout.ActiveStrokeWidth)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "active_stroke_width") {
					t.Error("existing config file should not be rewritten")
				}
			},
		},
		{
			name: "Env_Override",
			setup: func(t *testing.T) {
				t.Setenv("STAKEOUT_ADDRESS", "0.0.0.0:8080")
				t.Setenv("STAKEOUT_GNSS_PROVIDER", "sim")
				err := os.WriteFile(configPath, []byte("server:\n  address: localhost:1\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Address != "0.0.0.0:8080" {
					t.Errorf("expected address from env, got '%s'", cfg.Server.Address)
				}
				if cfg.GNSS.Provider != "sim" {
					t.Errorf("expected gnss provider from env, got '%s'", cfg.GNSS.Provider)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "0.0.0.0:8080") {
					t.Error("environment override should NOT be persisted to config file")
				}
			},
		},
		{
			name: "DotEnv_File",
			setup: func(t *testing.T) {
				err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte("STAKEOUT_DB_PATH=/tmp/from-dotenv.db\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to write .env: %v", err)
				}
				t.Cleanup(func() {
					os.Remove(filepath.Join(tempDir, ".env"))
					os.Unsetenv("STAKEOUT_DB_PATH")
				})
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.DB.Path != "/tmp/from-dotenv.db" {
					t.Errorf("expected DB path from .env, got '%s'", cfg.DB.Path)
				}
			},
			checkFile: func(t *testing.T) {},
		},
		{
			name: "Path_Env_Expansion",
			setup: func(t *testing.T) {
				t.Setenv("STAKEOUT_HOME", "/home/survey")
				t.Setenv("APP_DATA", "/app/data")
				err := os.WriteFile(configPath, []byte("db:\n  path: \"$STAKEOUT_HOME/db.sqlite\"\ntargets:\n  paths: [\"%APP_DATA%/parcels.geojson\"]\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.DB.Path != "/home/survey/db.sqlite" {
					t.Errorf("expected DB path '/home/survey/db.sqlite', got '%s'", cfg.DB.Path)
				}
				if len(cfg.Targets.Paths) != 1 || cfg.Targets.Paths[0] != "/app/data/parcels.geojson" {
					t.Errorf("expected target path '/app/data/parcels.geojson', got '%v'", cfg.Targets.Paths)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "$STAKEOUT_HOME") {
					t.Error("config file should persist raw $VAR path")
				}
			},
		},
		{
			name: "Invalid_YAML",
			setup: func(t *testing.T) {
				err := os.WriteFile(configPath, []byte("stakeout: [not a map]"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Invalid_Provider",
			setup: func(t *testing.T) {
				err := os.WriteFile(configPath, []byte("gnss:\n  provider: rtk-base\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Replay_Without_Path",
			setup: func(t *testing.T) {
				err := os.WriteFile(configPath, []byte("gnss:\n  provider: replay\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Invalid_PixelRatio",
			setup: func(t *testing.T) {
				err := os.WriteFile(configPath, []byte("stakeout:\n  device_pixel_ratio: 0\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Remove(configPath)
			tt.setup(t)

			cfg, err := Load(configPath)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if err == nil {
				tt.validate(t, cfg)
				tt.checkFile(t)
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "configs", "default_config.yaml")

	err := GenerateDefault(configPath)
	if err != nil {
		t.Fatalf("GenerateDefault() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("GenerateDefault() did not create file")
	}

	err = GenerateDefault(configPath)
	if err != nil {
		t.Errorf("GenerateDefault() error on second run = %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() of generated default failed: %v", err)
	}
	if cfg.DB.H3Resolution != DefaultConfig().DB.H3Resolution {
		t.Errorf("expected h3 resolution %d, got %d", DefaultConfig().DB.H3Resolution, cfg.DB.H3Resolution)
	}
}
