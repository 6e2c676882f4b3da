package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/config"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/logger"
	"github.com/spf13/cobra"
)

// env holds what every subcommand needs: the loaded config, the root
// logger and an open store.
type env struct {
	cfg    *config.Config
	logger *log.Logger
	store  *database.Store
	sink   io.Closer
}

// setup loads config, logging and translations, opens the store and
// returns a context carrying the logger. migrate applies pending schema
// versions first.
func setup(cmd *cobra.Command, migrate bool) (*env, context.Context, error) {
	if err := config.Init(config.OptionsFromCommand(cmd)); err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.C()
	l, sink := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	log.SetDefault(l)
	i18n.Init(cfg.Lang)

	ctx := log.WithContext(cmd.Context(), l)
	store, err := database.Open(ctx, database.Options{
		DSN:       cfg.DatabaseURL,
		SecretKey: cfg.SecretKey,
		Logger:    l,
	})
	if err != nil {
		sink.Close()
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	e := &env{cfg: cfg, logger: l, store: store, sink: sink}
	if migrate {
		if err := store.Migrate(ctx); err != nil {
			e.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return e, ctx, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("Failed to close database", "error", err)
	}
	e.sink.Close()
}
