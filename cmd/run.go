package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/api"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/bot"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/user"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/config"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/core"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/bus"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/spf13/cobra"
)

const defaultAPIPort = 8080

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the relay (default)",
	RunE:  Run,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func Run(cmd *cobra.Command, _ []string) error {
	e, ctx, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()
	cfg, logger := e.cfg, e.logger
	logger.Info("Starting relay", "version", config.Version, "commit", config.GitCommit)

	b, err := bus.New(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to connect bus: %w", err)
	}
	defer b.Close()

	engine, err := core.New(core.Options{
		Store:           e.store,
		Bus:             b,
		Logger:          logger,
		Workers:         cfg.Workers,
		RefreshInterval: cfg.RegistryRefresh,
		ShutdownTimeout: cfg.ShutdownTimeout,
		BackupRetention: cfg.BackupRetention,
		Schedule:        true,
	})
	if err != nil {
		return err
	}
	if err := engine.Init(ctx); err != nil {
		return err
	}

	var service *bot.Bot
	sessions := user.NewManager(user.Options{
		Store:      e.store,
		Ingest:     engine,
		ProxyURL:   cfg.Proxy.URL,
		RPCRetry:   cfg.RpcRetry,
		FloodRetry: cfg.FloodRetry,
		Logger:     logger,
		Notify: func(ctx context.Context, tenantID int64, text string) {
			if service == nil {
				return
			}
			if err := service.Sender().SendText(ctx, tenantID, text); err != nil {
				logger.Warn("Failed to notify tenant", "tenant", tenantID, "error", err)
			}
		},
	})

	service, err = bot.New(ctx, bot.Options{
		AppID:      cfg.APIID,
		AppHash:    cfg.APIHash,
		Token:      cfg.BotToken,
		SessionDSN: cfg.BotSessionDSN,
		ProxyURL:   cfg.Proxy.URL,
		RPCRetry:   cfg.RpcRetry,
		FloodRetry: cfg.FloodRetry,
		Webhook:    cfg.WebhookMode(),
	}, e.store, engine, sessions)
	if err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}
	engine.UseBot(service.Sender())
	engine.UseSessions(sessions)

	warnMissingFallback(ctx, e)
	n, err := sessions.Restore(ctx)
	if err != nil {
		logger.Error("Failed to restore sessions", "error", err)
	}
	logger.Info("Sessions restored", "count", n)
	go sessions.Run(ctx)

	if err := engine.Start(ctx); err != nil {
		service.Stop()
		sessions.Stop()
		return err
	}

	if cfg.WebhookMode() || cfg.AdminToken != "" {
		if err := serveAPI(ctx, e, engine); err != nil {
			logger.Error("Failed to set up API server", "error", err)
		}
	}

	<-ctx.Done()
	logger.Info("Shutting down...")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout+5*time.Second)
	defer cancel()
	if err := engine.Stop(stopCtx); err != nil {
		logger.Error("Failed to stop engine", "error", err)
	}
	sessions.Stop()
	service.Stop()
	logger.Info("Bye")
	return nil
}

func serveAPI(ctx context.Context, e *env, engine *core.Engine) error {
	cfg := e.cfg
	port := cfg.Webhook.Port
	if port == 0 {
		port = defaultAPIPort
	}
	var secret string
	if cfg.WebhookMode() {
		secret = cfg.WebhookSecret()
	}
	srv := api.New(ctx, api.Options{
		Port:          port,
		WebhookSecret: secret,
		AdminToken:    cfg.AdminToken,
		Store:         e.store,
		Engine:        engine,
	})
	srv.Start(ctx)
	if secret == "" {
		return nil
	}
	if err := api.SetWebhook(ctx, cfg.BotToken, api.WebhookURL(cfg.Webhook.URL, secret)); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	e.logger.Info("Webhook registered", "url", cfg.Webhook.URL)
	return nil
}

// warnMissingFallback hints at `session login` when fallback credentials
// are configured but no session was stored for the admin yet.
func warnMissingFallback(ctx context.Context, e *env) {
	if !e.cfg.HasFallbackSession() {
		return
	}
	_, err := e.store.GetSession(ctx, e.cfg.AdminUserID)
	if errors.Is(err, relayerr.ErrNotFound) {
		e.logger.Warn("PHONE_NUMBER is set but no session is stored, run `session login` first", "admin", e.cfg.AdminUserID)
	}
}
