package config

import (
	"context"
	"testing"
	"time"
)

// MockStateStore implements store.StateStore for testing.
type MockStateStore struct {
	data map[string]string
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{data: make(map[string]string)}
}

func (m *MockStateStore) GetState(ctx context.Context, key string) (string, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *MockStateStore) SetState(ctx context.Context, key, val string) error {
	m.data[key] = val
	return nil
}

func (m *MockStateStore) DeleteState(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestUnifiedProvider(t *testing.T) {
	ctx := context.Background()
	baseCfg := DefaultConfig()
	baseCfg.Stakeout.DevicePixelRatio = 2.0
	baseCfg.GNSS.Provider = "replay"
	baseCfg.Audio.Enabled = false

	store := NewMockStateStore()
	p := NewProvider(baseCfg, store)

	t.Run("Defaults_And_Fallbacks", func(t *testing.T) {
		if got := p.DevicePixelRatio(ctx); got != 2.0 {
			t.Errorf("expected 2.0, got %v", got)
		}
		if got := p.GNSSProvider(ctx); got != "replay" {
			t.Errorf("expected replay, got %s", got)
		}
		if p.AudioCues(ctx) {
			t.Error("expected audio cues off")
		}
		if got := p.GNSSInterval(ctx); got != time.Second {
			t.Errorf("expected 1s, got %v", got)
		}
		active, idle := p.StrokeWidths(ctx)
		if active != 3.0 || idle != 1.5 {
			t.Errorf("expected strokes 3/1.5, got %v/%v", active, idle)
		}
		if p.AppConfig() != baseCfg {
			t.Error("AppConfig should return the base config")
		}
	})

	t.Run("Store_Overrides", func(t *testing.T) {
		_ = store.SetState(ctx, KeyDevicePixelRatio, "3.5")
		_ = store.SetState(ctx, KeyGNSSSource, "sim")
		_ = store.SetState(ctx, KeyAudioCues, "true")

		if got := p.DevicePixelRatio(ctx); got != 3.5 {
			t.Errorf("expected 3.5, got %v", got)
		}
		if got := p.GNSSProvider(ctx); got != "sim" {
			t.Errorf("expected sim, got %s", got)
		}
		if !p.AudioCues(ctx) {
			t.Error("expected audio cues on")
		}
	})

	t.Run("Invalid_Stored_Values", func(t *testing.T) {
		_ = store.SetState(ctx, KeyDevicePixelRatio, "abc")
		if got := p.DevicePixelRatio(ctx); got != 2.0 {
			t.Errorf("expected fallback 2.0, got %v", got)
		}
		_ = store.SetState(ctx, KeyDevicePixelRatio, "-1")
		if got := p.DevicePixelRatio(ctx); got != 1 {
			t.Errorf("expected clamp to 1, got %v", got)
		}
	})
}

func TestUnifiedProvider_NilStore(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.GNSS.Provider = ""
	cfg.GNSS.Interval = 0
	p := NewProvider(cfg, nil)

	if got := p.GNSSProvider(ctx); got != "none" {
		t.Errorf("expected none, got %s", got)
	}
	if got := p.GNSSInterval(ctx); got != time.Second {
		t.Errorf("expected 1s, got %v", got)
	}
	if got := p.SessionTTL(ctx); got != 12*time.Hour {
		t.Errorf("expected 12h, got %v", got)
	}
}
