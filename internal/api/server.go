// Package api serves the stake-out HTTP and WebSocket interface.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"stakeout/pkg/config"
	"stakeout/pkg/version"
)

// Handlers groups the endpoint handlers mounted by NewServer. Nil handlers
// leave their routes unmounted.
type Handlers struct {
	Stakeout *StakeoutHandler
	Targets  *TargetsHandler
	Stakes   *StakesHandler
	Config   *ConfigHandler
	Metrics  http.Handler
}

// NewServer creates and configures the HTTP server.
// shutdown is called when a client requests a graceful shutdown.
func NewServer(cfg *config.ServerConfig, h Handlers, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health, version and status footer
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 2. Metrics
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	// 3. Stake-out sessions
	if s := h.Stakeout; s != nil {
		mux.HandleFunc("POST /api/stakeout", s.HandleNewSession)
		mux.HandleFunc("GET /api/stakeout/{sid}", s.HandleSnapshot)
		mux.HandleFunc("POST /api/stakeout/{sid}/target", s.HandleSetTarget)
		mux.HandleFunc("DELETE /api/stakeout/{sid}/target", s.HandleClearTarget)
		mux.HandleFunc("POST /api/stakeout/{sid}/position", s.HandlePosition)
		mux.HandleFunc("POST /api/stakeout/{sid}/zoom", s.HandleZoom)
		mux.HandleFunc("POST /api/stakeout/{sid}/mark", s.HandleMark)
		mux.HandleFunc("GET /api/stakeout/{sid}/ws", s.HandleWS)
	}

	// 4. Target library
	if t := h.Targets; t != nil {
		mux.HandleFunc("GET /api/targets", t.HandleList)
		mux.HandleFunc("GET /api/targets/{id}", t.HandleGet)
	}

	// 5. Stake log
	if st := h.Stakes; st != nil {
		mux.HandleFunc("GET /api/stakes", st.HandleRecent)
		mux.HandleFunc("GET /api/stakes/near", st.HandleNear)
		mux.HandleFunc("GET /api/stakes/{id}", st.HandleGet)
	}

	// 6. Runtime settings
	if h.Config != nil {
		mux.HandleFunc("/api/config", h.Config.HandleConfig)
	}

	// 7. Shutdown
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		if shutdown == nil {
			return
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	// 8. Map UI
	if cfg != nil {
		if ui := uiHandler(cfg.UIDir); ui != nil {
			mux.Handle("/", ui)
		}
	}

	readTimeout, writeTimeout := 15*time.Second, 15*time.Second
	addr := "localhost:1921"
	if cfg != nil {
		if cfg.Address != "" {
			addr = cfg.Address
		}
		if d := time.Duration(cfg.ReadTimeout); d > 0 {
			readTimeout = d
		}
		if d := time.Duration(cfg.WriteTimeout); d > 0 {
			writeTimeout = d
		}
	}

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
