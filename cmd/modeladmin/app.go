package main

import (
	"context"
	"fmt"

	"modeladmin/internal/config"
	"modeladmin/internal/engine"
	"modeladmin/internal/logger"
	"modeladmin/internal/metadata"
	"modeladmin/internal/store"
)

// app holds everything the commands share once startup has finished.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *store.SQLStore
	registry *metadata.Registry
	migrator *store.Migrator
	engine   *engine.Engine
}

// setup loads config, connects to the database, bootstraps the definition
// tables, loads definitions and creates any missing tables.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	s, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("database connected", "driver", cfg.Database.Driver, "name", cfg.Database.Name)

	if err := s.Bootstrap(ctx); err != nil {
		s.Close()
		return nil, err
	}

	reg := metadata.NewRegistry()
	switch cfg.Metadata.Source {
	case "db":
		err = metadata.LoadAll(ctx, s.DB, reg, log)
	default:
		err = metadata.LoadFiles(cfg.Metadata.Dir, reg, log)
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("load definitions: %w", err)
	}

	migrator := store.NewMigrator(s, log)
	if err := migrator.MigrateAll(ctx, reg); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	e := engine.New(s, metadata.NewIntrospector(reg),
		engine.WithAtomic(cfg.Upsert.Atomic),
		engine.WithLogger(log.With("component", "engine")),
	)

	return &app{cfg: cfg, log: log, store: s, registry: reg, migrator: migrator, engine: e}, nil
}

func (a *app) Close() {
	a.store.Close()
	a.log.Sync()
}
