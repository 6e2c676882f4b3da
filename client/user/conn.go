package user

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/middleware"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/tgsender"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/utils/tgutil"
)

var (
	ErrPasswordNeeded = errors.New("two-step verification password required")
	// ErrAuthorized is returned by SendCode when the account signed in without a code.
	ErrAuthorized = errors.New("already authorized")
	ErrClosed     = errors.New("client closed")
)

// Conn is one tenant's user-account client.
type Conn interface {
	// Connect starts the client in the background and returns once it is usable.
	Connect(ctx context.Context) error
	SendCode(ctx context.Context, phone string) (hash string, err error)
	SignIn(ctx context.Context, phone, code, hash string) error
	Password(ctx context.Context, password string) error
	// Observe starts delivering incoming messages. The client must be authorized.
	Observe(ctx context.Context) (*tg.User, error)
	LogOut(ctx context.Context) error
	Sender() tgsender.Sender
	Close() error
}

type ConnConfig struct {
	TenantID int64
	APIID    int
	APIHash  string
	ProxyURL string
	RPCRetry int
	// FloodRetry is how many flood waits the client sleeps through. Zero
	// surfaces every wait, which is what a login needs.
	FloodRetry uint
	Storage    session.Storage
	OnMessage  func(ctx context.Context, m *tg.Message)
}

// Dialer builds a Conn; tests replace it.
type Dialer func(ctx context.Context, cfg ConnConfig) (Conn, error)

type gotdConn struct {
	cfg     ConnConfig
	client  *telegram.Client
	updates *updates.Manager
	peers   *tgutil.PeerCache
	sender  *tgsender.MTProto

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan error
	watched bool
}

// Dial is the production Dialer backed by gotd.
func Dial(ctx context.Context, cfg ConnConfig) (Conn, error) {
	resolver, err := tgutil.NewProxyResolver(cfg.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy resolver: %w", err)
	}
	c := &gotdConn{cfg: cfg, peers: tgutil.NewPeerCache()}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		c.deliver(ctx, e, u.Message)
		return nil
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		c.deliver(ctx, e, u.Message)
		return nil
	})
	c.updates = updates.New(updates.Config{Handler: dispatcher})

	mws := middleware.NewDefaultMiddlewares(ctx, middleware.Options{RPCRetry: cfg.RPCRetry})
	if cfg.FloodRetry > 0 {
		mws = append(mws, middleware.NewSenderMiddlewares(cfg.FloodRetry)...)
	} else {
		mws = append(mws, middleware.NewAuthMiddlewares()...)
	}
	c.client = telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: cfg.Storage,
		UpdateHandler:  c.updates,
		Resolver:       resolver,
		Middlewares:    mws,
		Device: telegram.DeviceConfig{
			DeviceModel:   "relay",
			SystemVersion: "linux",
			AppVersion:    "1.0",
		},
	})
	c.sender = tgsender.New(c.client.API(), cachePeers{c.peers})
	return c, nil
}

func (c *gotdConn) deliver(ctx context.Context, e tg.Entities, mc tg.MessageClass) {
	c.peers.AddEntities(e)
	m, ok := mc.(*tg.Message)
	if !ok || m.Out || c.cfg.OnMessage == nil {
		return
	}
	c.cfg.OnMessage(ctx, m)
}

func (c *gotdConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(log.WithContext(context.Background(), log.FromContext(ctx)))
	c.ctx, c.cancel = runCtx, cancel
	c.done = make(chan error, 1)
	c.mu.Unlock()

	ready := make(chan struct{})
	go func() {
		c.done <- c.client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	select {
	case <-ready:
		return nil
	case err := <-c.done:
		c.done <- err
		return fmt.Errorf("failed to connect: %w", err)
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (c *gotdConn) SendCode(ctx context.Context, phone string) (string, error) {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", err
	}
	switch s := sent.(type) {
	case *tg.AuthSentCode:
		return s.PhoneCodeHash, nil
	case *tg.AuthSentCodeSuccess:
		return "", ErrAuthorized
	default:
		return "", fmt.Errorf("unexpected sent code type %T", sent)
	}
}

func (c *gotdConn) SignIn(ctx context.Context, phone, code, hash string) error {
	_, err := c.client.Auth().SignIn(ctx, phone, code, hash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return ErrPasswordNeeded
	}
	return err
}

func (c *gotdConn) Password(ctx context.Context, password string) error {
	_, err := c.client.Auth().Password(ctx, password)
	return err
}

func (c *gotdConn) Observe(ctx context.Context) (*tg.User, error) {
	self, err := c.client.Self(ctx)
	if err != nil {
		return nil, err
	}
	c.peers.AddUser(self)
	if err := c.warmPeers(ctx); err != nil {
		log.FromContext(ctx).Warn("Failed to load dialogs", "tenant", c.cfg.TenantID, "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil, ErrClosed
	}
	if c.watched {
		return self, nil
	}
	c.watched = true
	runCtx := c.ctx
	go func() {
		err := c.updates.Run(runCtx, c.client.API(), self.ID, updates.AuthOptions{})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.FromContext(runCtx).Error("Update stream stopped", "tenant", c.cfg.TenantID, "error", err)
		}
	}()
	return self, nil
}

// warmPeers learns access hashes of recent dialogs so targets the
// account has not heard from since start are still addressable.
func (c *gotdConn) warmPeers(ctx context.Context) error {
	res, err := c.client.API().MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	})
	if err != nil {
		return err
	}
	if m, ok := res.AsModified(); ok {
		c.peers.AddChats(m.GetUsers(), m.GetChats())
	}
	return nil
}

func (c *gotdConn) LogOut(ctx context.Context) error {
	_, err := c.client.API().AuthLogOut(ctx)
	return err
}

func (c *gotdConn) Sender() tgsender.Sender {
	return c.sender
}

func (c *gotdConn) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.ctx, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type cachePeers struct {
	cache *tgutil.PeerCache
}

func (p cachePeers) InputPeer(_ context.Context, chatID int64) (tg.InputPeerClass, error) {
	return p.cache.InputPeer(chatID)
}
