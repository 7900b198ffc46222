package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"stakeout/pkg/config"
	"stakeout/pkg/store"
)

// ConfigHandler handles runtime settings kept in the state store.
type ConfigHandler struct {
	store   store.StateStore
	cfgProv config.Provider
	onCues  func(on bool)
}

// NewConfigHandler creates a new ConfigHandler. onCues, if set, is called
// when audio cues are toggled so live sessions follow the new setting.
func NewConfigHandler(st store.StateStore, cfg config.Provider, onCues func(on bool)) *ConfigHandler {
	return &ConfigHandler{
		store:   st,
		cfgProv: cfg,
		onCues:  onCues,
	}
}

// ConfigResponse represents the config API response.
type ConfigResponse struct {
	DevicePixelRatio float64 `json:"device_pixel_ratio"`
	AudioCues        bool    `json:"audio_cues"`
	GNSSSource       string  `json:"gnss_source"`
	GNSSInterval     string  `json:"gnss_interval"`
	SessionTTL       string  `json:"session_ttl"`
	ActiveStroke     float64 `json:"active_stroke_width"`
	IdleStroke       float64 `json:"idle_stroke_width"`
}

// ConfigRequest represents the config API request for updates.
type ConfigRequest struct {
	DevicePixelRatio *float64 `json:"device_pixel_ratio,omitempty"`
	AudioCues        *bool    `json:"audio_cues,omitempty"` // Pointer to detect false vs missing
	GNSSSource       string   `json:"gnss_source,omitempty"`
}

// HandleConfig is a unified handler for all config-related methods, facilitating CORS/OPTIONS.
func (h *ConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.HandleGetConfig(w, r)
	case http.MethodPut, http.MethodPost:
		h.HandleSetConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGetConfig returns the current settings.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	active, idle := h.cfgProv.StrokeWidths(ctx)
	resp := ConfigResponse{
		DevicePixelRatio: h.cfgProv.DevicePixelRatio(ctx),
		AudioCues:        h.cfgProv.AudioCues(ctx),
		GNSSSource:       h.cfgProv.GNSSProvider(ctx),
		GNSSInterval:     h.cfgProv.GNSSInterval(ctx).String(),
		SessionTTL:       h.cfgProv.SessionTTL(ctx).String(),
		ActiveStroke:     active,
		IdleStroke:       idle,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode config response", "error", err)
	}
}

// HandleSetConfig updates settings. The device pixel ratio applies to sessions
// created afterwards; the location source applies on restart.
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	var req ConfigRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.applyUpdates(r.Context(), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Return updated config
	h.HandleGetConfig(w, r)
}

func (h *ConfigHandler) applyUpdates(ctx context.Context, req *ConfigRequest) error {
	if req.DevicePixelRatio != nil {
		v := *req.DevicePixelRatio
		if !(v > 0) || v > 8 {
			return fmt.Errorf("device_pixel_ratio must be in (0, 8], got %g", v)
		}
		if err := h.store.SetState(ctx, config.KeyDevicePixelRatio, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
			slog.Error("Failed to save device_pixel_ratio", "error", err)
			return err
		}
	}

	if req.GNSSSource != "" {
		switch req.GNSSSource {
		case config.GNSSProviderSim, config.GNSSProviderReplay, config.GNSSProviderNone:
		default:
			return fmt.Errorf("invalid gnss_source %q", req.GNSSSource)
		}
		if err := h.store.SetState(ctx, config.KeyGNSSSource, req.GNSSSource); err != nil {
			slog.Error("Failed to save gnss_source", "error", err)
			return err
		}
		slog.Info("Location source changed, takes effect on restart", "source", req.GNSSSource)
	}

	if req.AudioCues != nil {
		if err := h.store.SetState(ctx, config.KeyAudioCues, strconv.FormatBool(*req.AudioCues)); err != nil {
			slog.Error("Failed to save audio_cues", "error", err)
			return err
		}
		if h.onCues != nil {
			h.onCues(*req.AudioCues)
		}
	}
	return nil
}
