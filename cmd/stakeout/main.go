package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stakeout/internal/api"
	"stakeout/pkg/config"
	"stakeout/pkg/cue"
	"stakeout/pkg/db"
	"stakeout/pkg/gnss"
	"stakeout/pkg/logging"
	"stakeout/pkg/metrics"
	"stakeout/pkg/probe"
	"stakeout/pkg/session"
	"stakeout/pkg/stakeout"
	"stakeout/pkg/store"
	"stakeout/pkg/targets"
	"stakeout/pkg/version"
	"stakeout/pkg/watcher"
)

const defaultConfigPath = "configs/stakeout.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Stake-out Started", "version", version.Version)

	dbConn, st, err := initDB(ctx, appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	prov := config.NewProvider(appCfg, st)

	lib := targets.NewLibrary(slog.With("component", "targets"))
	libErr := lib.LoadPaths(appCfg.Targets.Paths)
	watchTargets(ctx, lib, appCfg.Targets.Paths)

	// Startup Probes
	probes := []probe.Probe{
		{
			Name:     "State Store",
			Check:    st.Ping,
			Critical: true,
		},
		{
			Name: "Target Library",
			Check: func(context.Context) error {
				if libErr != nil {
					return libErr
				}
				if lib.Len() == 0 {
					return errors.New("no targets loaded, geometry must be posted by the client")
				}
				return nil
			},
			Critical: false,
		},
	}
	if err := probe.AnalyzeResults(slog.Default(), probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	col, err := metrics.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	player := initPlayer(appCfg)
	defer player.Close()

	deviceID := appCfg.GNSS.Session
	if deviceID == "" {
		deviceID = session.DeviceSessionID
	}
	sessions := session.NewManager(session.Options{
		Config:    prov,
		Stakes:    st,
		State:     st,
		Metrics:   col,
		Player:    player,
		PersistID: deviceID,
		Logger:    slog.With("component", "sessions"),
	})
	defer sessions.Close()
	go sessions.RunCleanup(ctx, time.Minute)

	// Location source must see the restored target, so it is wired first
	if src := initGNSS(ctx, prov, sessions, deviceID); src != nil {
		defer src.Close()
		feed := gnss.NewFeed(src, prov.GNSSInterval(ctx), deviceSink(sessions, deviceID), slog.With("component", "gnss"))
		go feed.Run(ctx)
	}

	if sessions.Restore(ctx) {
		slog.Info("Restored stake-out", "session", deviceID)
	}

	srv := api.NewServer(&appCfg.Server, api.Handlers{
		Stakeout: api.NewStakeoutHandler(sessions, lib, slog.With("component", "api")),
		Targets:  api.NewTargetsHandler(lib),
		Stakes:   api.NewStakesHandler(st),
		Config:   api.NewConfigHandler(st, prov, sessions.SetCuesEnabled),
		Metrics:  col.Handler(),
	}, cancel)
	srv.Handler = loggingMiddleware(srv.Handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	err = runServerLifecycle(ctx, srv, quit)
	// stop the feed and cleanup loops before their dependencies close
	cancel()
	return err
}

func initDB(ctx context.Context, appCfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if retention := time.Duration(appCfg.DB.StakeRetention); retention > 0 {
		n, err := dbConn.PruneStakes(ctx, retention)
		if err != nil {
			slog.Error("Failed to prune stake log", "error", err)
		} else if n > 0 {
			slog.Info("Pruned stake log", "removed", n, "older_than", retention)
		}
	}
	return dbConn, store.NewSQLiteStore(dbConn, appCfg.DB.H3Resolution), nil
}

// watchTargets hot-loads target files dropped into library directories.
func watchTargets(ctx context.Context, lib *targets.Library, paths []string) {
	var dirs []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			dirs = append(dirs, p)
		}
	}
	if len(dirs) == 0 {
		return
	}
	w := watcher.NewService(dirs, targets.Extensions, slog.With("component", "watcher"))
	go w.Run(ctx, 5*time.Second, func(path string) {
		n, err := lib.LoadFile(path)
		if err != nil {
			slog.Warn("Failed to load target file", "file", path, "error", err)
			return
		}
		slog.Info("Loaded target file", "file", path, "targets", n)
	})
}

func initPlayer(appCfg *config.Config) cue.Player {
	if !appCfg.Audio.Enabled {
		return cue.NopPlayer{}
	}
	return cue.NewSpeakerPlayer(1.0)
}

// deviceSink forwards receiver fixes into the device session.
func deviceSink(sessions *session.Manager, id string) func(gnss.Fix) {
	return func(fix gnss.Fix) {
		s := sessions.Get(id)
		if _, err := s.UpdatePosition(fix.Lon, fix.Lat); err != nil && !errors.Is(err, stakeout.ErrNoTarget) {
			slog.Debug("Device fix rejected", "lat", fix.Lat, "lon", fix.Lon, "error", err)
		}
	}
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
