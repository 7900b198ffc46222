package main

import (
	"context"
	"log/slog"

	"stakeout/pkg/config"
	"stakeout/pkg/geo"
	"stakeout/pkg/gnss"
	"stakeout/pkg/session"
)

// initGNSS builds the location source named by the provider setting. A nil
// source means fixes only arrive through the HTTP API.
func initGNSS(ctx context.Context, prov config.Provider, sessions *session.Manager, deviceID string) gnss.Source {
	cfg := prov.AppConfig().GNSS

	switch prov.GNSSProvider(ctx) {
	case config.GNSSProviderSim:
		slog.Info("Location Source: Simulator", "lat", cfg.Sim.StartLat, "lon", cfg.Sim.StartLon)
		sim := gnss.NewSimulator(gnss.SimConfig{
			StartLat:       cfg.Sim.StartLat,
			StartLon:       cfg.Sim.StartLon,
			Speed:          cfg.Sim.Speed,
			Heading:        cfg.Sim.Heading,
			HeadingJitter:  cfg.Sim.HeadingJitter,
			PositionJitter: float64(cfg.Sim.PositionJitter),
			WalkToTarget:   cfg.Sim.WalkToTarget,
		})
		if cfg.Sim.WalkToTarget {
			sessions.OnTargetChanged(func(id string, center *geo.Point) {
				if id == deviceID {
					sim.SetTarget(center)
				}
			})
		}
		return sim

	case config.GNSSProviderReplay:
		r, err := gnss.NewReplayFile(cfg.Replay.Path, cfg.Replay.Rate, cfg.Replay.Loop)
		if err != nil {
			slog.Error("Failed to load GPX track, fixes via API only", "path", cfg.Replay.Path, "error", err)
			return nil
		}
		slog.Info("Location Source: GPX replay", "path", cfg.Replay.Path, "points", r.Len(), "rate", cfg.Replay.Rate)
		return r
	}

	slog.Info("Location Source: none (fixes via API)")
	return nil
}
