package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"fleetmap/core-go/internal/config"
	"fleetmap/core-go/internal/db"
	"fleetmap/core-go/internal/feed"
)

// openStore builds the configured feed backend. The returned func releases its connections.
func openStore(ctx context.Context, logger zerolog.Logger, cfg config.Config) (feed.Store, func(), error) {
	switch cfg.Feed.Driver {
	case config.DriverPostgres:
		pool, err := db.Open(ctx, cfg.Feed.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := feed.NewPostgresStore(logger, pool.Queries(), pool, feed.PostgresOptions{})
		return store, pool.Close, nil

	case config.DriverMySQL:
		gdb, err := feed.OpenMySQL(feed.MySQLConfig{
			User:     cfg.Feed.MySQL.User,
			Password: cfg.Feed.MySQL.Password,
			Host:     cfg.Feed.MySQL.Host,
			Database: cfg.Feed.MySQL.Database,
			Debug:    cfg.Feed.DBDebug,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect mysql: %w", err)
		}
		if err := feed.MigrateMySQL(gdb); err != nil {
			return nil, nil, fmt.Errorf("migrate mysql: %w", err)
		}
		closeDB := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		store := feed.NewMySQLStore(logger, gdb, feed.MySQLOptions{PollInterval: cfg.Feed.PollInterval})
		return store, closeDB, nil

	default:
		logger.Warn().Msg("using in-memory feed; data is lost on restart")
		return feed.NewMemoryStore(feed.MemorySeed{}), func() {}, nil
	}
}
