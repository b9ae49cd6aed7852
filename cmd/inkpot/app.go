package main

import (
	"context"
	"errors"

	"github.com/mschirtzinger/inkpot/internal/admin"
	"github.com/mschirtzinger/inkpot/internal/content"
	"github.com/mschirtzinger/inkpot/internal/db"
	"github.com/mschirtzinger/inkpot/internal/migrate"
	inksync "github.com/mschirtzinger/inkpot/internal/sync"
)

// hooks are optional event receivers wired into the engine and runner.
type hooks struct {
	sync    inksync.Notifier
	migrate migrate.Notifier
}

// app holds the wired components for one command invocation.
type app struct {
	db     *db.DB
	reader *content.DirReader
	engine *inksync.Engine
	runner *migrate.Runner
	admin  *admin.Service
}

func newApp(h hooks) (*app, error) {
	database, err := db.Open(cfg.Database.Path, db.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}

	reader := content.NewDirReader(cfg.Content.Root)
	engine := inksync.New(database, reader, &inksync.Config{
		Workers:  cfg.Sync.Workers,
		Taxonomy: reader,
		Notifier: h.sync,
		Logger:   logs.Logger("sync"),
	})

	migCfg := migrate.DefaultConfig()
	migCfg.Importer = engine
	migCfg.Notifier = h.migrate
	migCfg.Logger = logs.Logger("migrate")
	runner := migrate.New(database, migCfg)

	return &app{
		db:     database,
		reader: reader,
		engine: engine,
		runner: runner,
		admin:  admin.New(engine, runner, database, logs.Logger("admin")),
	}, nil
}

// ensureSchema runs a migration when migrate.auto is set. A fresh
// datastore gets the initial import when populate is true.
func (a *app) ensureSchema(ctx context.Context, populate bool) error {
	if !cfg.Migrate.Auto {
		return nil
	}
	res := a.runner.Run(ctx, populate)
	if !res.Success {
		if res.Err != nil {
			return res.Err
		}
		return errors.New(res.Message)
	}
	return nil
}

func (a *app) Close() error {
	return a.db.Close()
}
