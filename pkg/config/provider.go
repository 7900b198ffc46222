package config

import (
	"context"
	"strconv"
	"time"

	"stakeout/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
type Provider interface {
	// Rendering
	DevicePixelRatio(ctx context.Context) float64
	StrokeWidths(ctx context.Context) (active, idle float64)
	FallbackPixels(ctx context.Context) float64

	// Location
	GNSSProvider(ctx context.Context) string
	GNSSInterval(ctx context.Context) time.Duration

	// Cues
	AudioCues(ctx context.Context) bool

	// Sessions
	SessionTTL(ctx context.Context) time.Duration

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

// --- Implementations ---

func (p *UnifiedProvider) DevicePixelRatio(ctx context.Context) float64 {
	v := p.getFloat64(ctx, KeyDevicePixelRatio, p.base.Stakeout.DevicePixelRatio)
	if !(v > 0) {
		return 1
	}
	return v
}

func (p *UnifiedProvider) StrokeWidths(ctx context.Context) (active, idle float64) {
	return p.base.Stakeout.ActiveStrokeWidth, p.base.Stakeout.IdleStrokeWidth
}

func (p *UnifiedProvider) FallbackPixels(ctx context.Context) float64 {
	return p.base.Stakeout.FallbackPixels
}

func (p *UnifiedProvider) GNSSProvider(ctx context.Context) string {
	fallback := p.base.GNSS.Provider
	if fallback == "" {
		fallback = "none"
	}
	return p.getString(ctx, KeyGNSSSource, fallback)
}

func (p *UnifiedProvider) GNSSInterval(ctx context.Context) time.Duration {
	if d := time.Duration(p.base.GNSS.Interval); d > 0 {
		return d
	}
	return time.Second
}

func (p *UnifiedProvider) AudioCues(ctx context.Context) bool {
	return p.getBool(ctx, KeyAudioCues, p.base.Audio.Enabled)
}

func (p *UnifiedProvider) SessionTTL(ctx context.Context) time.Duration {
	return time.Duration(p.base.Session.TTL)
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getBool(ctx context.Context, key string, fallback bool) bool {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val == "true"
		}
	}
	return fallback
}
