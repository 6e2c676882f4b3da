package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/dispatcher"
	"github.com/celestix/gotgproto/ext"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/celestix/gotgproto/storage"
	"github.com/charmbracelet/log"
	"github.com/gotd/td/tg"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/middleware"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/tgsender"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/utils/tgutil"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

type Options struct {
	AppID      int
	AppHash    string
	Token      string
	SessionDSN string
	ProxyURL   string
	RPCRetry   int
	FloodRetry uint
	// Webhook disables ingestion through MTProto; messages then arrive over HTTP.
	Webhook bool
}

type Ingest interface {
	Dispatch(ctx context.Context, msg types.Message) int
}

// Sessions is the tenant session conversation the bot forwards to.
type Sessions interface {
	Begin(ctx context.Context, tenantID int64, lang string) string
	Input(ctx context.Context, tenantID int64, text string) (string, bool)
	Cancel(tenantID int64) bool
	Logout(ctx context.Context, tenantID int64) error
}

// Bot is the service identity: it observes the chats it was added to and
// sends every emission that did not come from a tenant session.
type Bot struct {
	opts     Options
	client   *gotgproto.Client
	store    *database.Store
	ingest   Ingest
	sessions Sessions
	sender   *tgsender.MTProto
}

func New(ctx context.Context, opts Options, store *database.Store, ingest Ingest, sessions Sessions) (*Bot, error) {
	logger := log.FromContext(ctx)
	logger.Info("Initializing Bot...")
	b := &Bot{opts: opts, store: store, ingest: ingest, sessions: sessions}
	sessionPath := database.SQLitePath(opts.SessionDSN)
	if err := os.MkdirAll(filepath.Dir(sessionPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	type result struct {
		client *gotgproto.Client
		err    error
	}
	resultChan := make(chan result, 1)
	go func() {
		resolver, err := tgutil.NewProxyResolver(opts.ProxyURL)
		if err != nil {
			resultChan <- result{nil, err}
			return
		}
		mws := middleware.NewDefaultMiddlewares(ctx, middleware.Options{RPCRetry: opts.RPCRetry})
		mws = append(mws, middleware.NewSenderMiddlewares(opts.FloodRetry)...)
		client, err := gotgproto.NewClient(
			opts.AppID,
			opts.AppHash,
			gotgproto.ClientTypeBot(opts.Token),
			&gotgproto.ClientOpts{
				Session:          sessionMaker.SqlSession(database.GetDialect(sessionPath)),
				DisableCopyright: true,
				Middlewares:      mws,
				Resolver:         resolver,
				Context:          ctx,
				MaxRetries:       opts.RPCRetry,
				ErrorHandler: func(ctx *ext.Context, u *ext.Update, s string) error {
					log.FromContext(ctx).Errorf("Unhandled error: %s", s)
					return dispatcher.EndGroups
				},
			},
		)
		if err != nil {
			resultChan <- result{nil, err}
			return
		}
		commands := make([]tg.BotCommand, 0, len(commandHandlers))
		for _, info := range commandHandlers {
			commands = append(commands, tg.BotCommand{Command: info.Cmd, Description: i18n.T(info.Desc)})
		}
		_, err = client.API().BotsSetBotCommands(ctx, &tg.BotsSetBotCommandsRequest{
			Scope:    &tg.BotCommandScopeDefault{},
			Commands: commands,
		})
		if err != nil {
			logger.Warn("Failed to set bot commands", "error", err)
		}
		resultChan <- result{client, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("bot initialization cancelled: %w", ctx.Err())
	case r := <-resultChan:
		if r.err != nil {
			return nil, fmt.Errorf("failed to initialize bot: %w", r.err)
		}
		b.client = r.client
	}
	b.sender = tgsender.New(b.client.API(), storagePeers{b.client.PeerStorage})
	b.register(b.client.Dispatcher)
	logger.Info("Bot initialization completed.", "username", b.client.Self.Username, "webhook", opts.Webhook)
	return b, nil
}

func (b *Bot) Sender() tgsender.Sender {
	return b.sender
}

func (b *Bot) Self() *tg.User {
	return b.client.Self
}

func (b *Bot) Stop() {
	b.client.Stop()
}

// storagePeers resolves chats through the access hashes gotgproto stored
// from the updates the bot has seen.
type storagePeers struct {
	peers *storage.PeerStorage
}

func (p storagePeers) InputPeer(_ context.Context, chatID int64) (tg.InputPeerClass, error) {
	kind, id := tgutil.SplitChatID(chatID)
	if kind == tgutil.PeerChat {
		return &tg.InputPeerChat{ChatID: id}, nil
	}
	peer := p.peers.GetInputPeerById(id)
	if peer == nil {
		return nil, fmt.Errorf("peer %d not known to the bot", chatID)
	}
	if _, empty := peer.(*tg.InputPeerEmpty); empty {
		return nil, fmt.Errorf("peer %d not known to the bot", chatID)
	}
	return peer, nil
}
