package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fleetmap/core-go/internal/config"
	"fleetmap/core-go/internal/httpapi"
	"fleetmap/core-go/internal/mapadapter"
	"fleetmap/core-go/internal/mapsync"
	"fleetmap/core-go/internal/metrics"
	"fleetmap/core-go/internal/reconcile"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "core-go",
		Short:         "Live asset map: syncs a tracking feed onto a map scene and handles click-to-place edits",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a yaml or json config file")
	flags.String("listen", ":8081", "HTTP listen address")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.String("feed-driver", config.DriverMemory, "Feed backend (memory, postgres, mysql)")
	flags.String("theme", string(reconcile.ThemeDark), "Map theme (dark, light)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger := httpapi.NewLogger("info")
		logger.Fatal().Err(err).Msg("core-go failed")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := httpapi.NewLogger(cfg.Log.Level)

	store, closeStore, err := openStore(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	theme, ok := reconcile.ParseTheme(cfg.Map.Theme)
	if !ok {
		theme = reconcile.ThemeDark
	}

	scene := mapadapter.NewScene(mapadapter.SceneOptions{JournalSize: cfg.Engine.JournalSize})
	m := metrics.New()
	engine := mapsync.New(logger, store, scene, m, mapsync.Options{
		Theme:             theme,
		FollowZoom:        cfg.Map.FollowZoom,
		DefaultZoneID:     cfg.Placement.DefaultZone,
		ZoneRadiusMeters:  cfg.Zones.DefaultRadiusMeters,
		ZoneCapacity:      cfg.Zones.DefaultCapacity,
		RefreshInterval:   cfg.Engine.StalenessRefresh,
		NotificationLimit: cfg.Engine.NotificationLimit,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	engineDone := make(chan error, 1)
	go func() {
		engineDone <- engine.Run(runCtx)
	}()

	h := httpapi.NewHandler(logger, engine, scene, m)
	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Listen).Str("feed", cfg.Feed.Driver).Msg("core-go listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
	case err := <-engineDone:
		if err != nil {
			runErr = err
		}
		engineDone = nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	cancel()
	if engineDone != nil {
		if err := <-engineDone; err != nil {
			logger.Warn().Err(err).Msg("engine stopped with error")
		}
	}

	logger.Info().Msg("shutdown complete")
	return runErr
}
