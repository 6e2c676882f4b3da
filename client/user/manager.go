package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/tgsender"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/utils/tgutil"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/conversation"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/validator"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
	"golang.org/x/sync/errgroup"
)

const (
	StateDisconnected conversation.State = ""
	StateAwaitAPIID   conversation.State = "AWAIT_API_ID"
	StateAwaitAPIHash conversation.State = "AWAIT_API_HASH"
	StateAwaitPhone   conversation.State = "AWAIT_PHONE"
	StateCodeSent     conversation.State = "CODE_SENT"
	StateAwaitCode    conversation.State = "AWAIT_CODE"
	StateAwaitPass    conversation.State = "AWAIT_PASSWORD"
	StateConnected    conversation.State = "CONNECTED"
)

const flowSession = "session"

// Ingest receives messages observed by tenant sessions.
type Ingest interface {
	Dispatch(ctx context.Context, msg types.Message) int
}

type Options struct {
	Store  *database.Store
	Ingest Ingest
	Dial   Dialer
	// Notify tells a tenant about events outside a request, such as a timeout.
	Notify       func(ctx context.Context, tenantID int64, text string)
	ProxyURL     string
	RPCRetry     int
	FloodRetry   uint
	SetupTimeout time.Duration
	RestoreLimit int
	Logger       *log.Logger
}

func (o *Options) setDefaults() {
	if o.Dial == nil {
		o.Dial = Dial
	}
	if o.SetupTimeout <= 0 {
		o.SetupTimeout = 10 * time.Minute
	}
	if o.RestoreLimit <= 0 {
		o.RestoreLimit = 4
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
}

type live struct {
	conn Conn
	self *tg.User
}

type pending struct {
	conn    Conn
	storage *Storage
}

// Manager owns every tenant session: the login conversation, the live
// clients and their senders.
type Manager struct {
	opts   Options
	logger *log.Logger
	convs  *conversation.Manager
	ctx    context.Context

	mu      sync.RWMutex
	live    map[int64]*live
	pending map[int64]*pending
	steps   sync.Map // tenant id -> *sync.Mutex, one login step at a time
}

func NewManager(opts Options) *Manager {
	opts.setDefaults()
	m := &Manager{
		opts:    opts,
		logger:  opts.Logger.WithPrefix("sessions"),
		live:    make(map[int64]*live),
		pending: make(map[int64]*pending),
	}
	m.ctx = log.WithContext(context.Background(), m.logger)
	m.convs = conversation.NewManager(conversation.OnExpire(m.onExpire))
	return m
}

// Run sweeps stale login conversations until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	m.convs.Run(ctx, 30*time.Second)
}

func (m *Manager) SenderFor(tenantID int64) (tgsender.Sender, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.live[tenantID]
	if !ok {
		return nil, false
	}
	return l.conn.Sender(), true
}

func (m *Manager) Connected(tenantID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.live[tenantID]
	return ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// State reports where the tenant's session is.
func (m *Manager) State(tenantID int64) conversation.State {
	if c, ok := m.convs.Get(tenantID); ok && c.Flow == flowSession {
		return c.State
	}
	if m.Connected(tenantID) {
		return StateConnected
	}
	return StateDisconnected
}

// Begin starts the login conversation and returns the first prompt.
func (m *Manager) Begin(ctx context.Context, tenantID int64, lang string) string {
	if m.Connected(tenantID) {
		return i18n.TL(lang, i18nk.SessionAlreadyConnected)
	}
	m.dropPending(tenantID)
	c := m.convs.Start(tenantID, flowSession, StateAwaitAPIID, m.opts.SetupTimeout)
	c.Set("lang", lang)
	log.FromContext(ctx).Debug("Session setup started", "tenant", tenantID)
	return i18n.TL(lang, i18nk.SessionAskAPIID)
}

// Cancel aborts a login in progress.
func (m *Manager) Cancel(tenantID int64) bool {
	c, ok := m.convs.Get(tenantID)
	if !ok || c.Flow != flowSession {
		return false
	}
	m.convs.End(tenantID)
	m.dropPending(tenantID)
	return true
}

// Input feeds one tenant message into the login conversation. handled is
// false when the tenant has no login in progress.
func (m *Manager) Input(ctx context.Context, tenantID int64, text string) (reply string, handled bool) {
	step, _ := m.steps.LoadOrStore(tenantID, &sync.Mutex{})
	step.(*sync.Mutex).Lock()
	defer step.(*sync.Mutex).Unlock()

	c, ok := m.convs.Get(tenantID)
	if !ok || c.Flow != flowSession {
		return "", false
	}
	lang := c.String("lang")
	timeout := m.opts.SetupTimeout

	switch c.State {
	case StateAwaitAPIID:
		id, err := validator.APIID(text)
		if err != nil {
			m.convs.Stay(tenantID, timeout)
			return relayerr.Message(lang, err), true
		}
		c.Set("api_id", id)
		m.convs.Advance(tenantID, StateAwaitAPIHash, timeout)
		return i18n.TL(lang, i18nk.SessionAskAPIHash), true

	case StateAwaitAPIHash:
		hash, err := validator.APIHash(text)
		if err != nil {
			m.convs.Stay(tenantID, timeout)
			return relayerr.Message(lang, err), true
		}
		c.SetSecret("api_hash", hash)
		m.convs.Advance(tenantID, StateAwaitPhone, timeout)
		return i18n.TL(lang, i18nk.SessionAskPhone), true

	case StateAwaitPhone:
		phone, err := validator.Phone(text)
		if err != nil {
			m.convs.Stay(tenantID, timeout)
			return relayerr.Message(lang, err), true
		}
		c.SetSecret("phone", phone)
		m.convs.Advance(tenantID, StateCodeSent, timeout)
		return m.sendCode(ctx, c), true

	case StateCodeSent:
		// the code request is still in flight
		return i18n.TL(lang, i18nk.SessionCodeSent), true

	case StateAwaitCode:
		p := m.getPending(tenantID)
		if p == nil {
			m.convs.End(tenantID)
			return i18n.TL(lang, i18nk.SessionTimeout), true
		}
		code := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, text)
		err := p.conn.SignIn(ctx, c.Secret("phone"), code, c.Secret("code_hash"))
		switch {
		case err == nil:
			return m.finish(ctx, c, p), true
		case errors.Is(err, ErrPasswordNeeded):
			m.convs.Advance(tenantID, StateAwaitPass, timeout)
			return i18n.TL(lang, i18nk.SessionAskPassword), true
		case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EMPTY"):
			m.convs.Stay(tenantID, timeout)
			return i18n.TL(lang, i18nk.SessionCodeInvalid), true
		}
		return m.abort(ctx, c, err), true

	case StateAwaitPass:
		p := m.getPending(tenantID)
		if p == nil {
			m.convs.End(tenantID)
			return i18n.TL(lang, i18nk.SessionTimeout), true
		}
		err := p.conn.Password(ctx, strings.TrimSpace(text))
		switch {
		case err == nil:
			return m.finish(ctx, c, p), true
		case errors.Is(err, auth.ErrPasswordInvalid), tgerr.Is(err, "PASSWORD_HASH_INVALID"):
			m.convs.Stay(tenantID, timeout)
			return i18n.TL(lang, i18nk.SessionPasswordInvalid), true
		}
		return m.abort(ctx, c, err), true
	}
	return "", false
}

func (m *Manager) sendCode(ctx context.Context, c *conversation.Conversation) string {
	tenantID := c.Owner
	lang := c.String("lang")
	storage := NewStorage(m.opts.Store, tenantID)
	conn, err := m.opts.Dial(ctx, ConnConfig{
		TenantID:  tenantID,
		APIID:     c.Int("api_id"),
		APIHash:   c.Secret("api_hash"),
		ProxyURL:  m.opts.ProxyURL,
		RPCRetry:  m.opts.RPCRetry,
		Storage:   storage,
		OnMessage: m.observer(tenantID),
	})
	if err != nil {
		return m.abort(ctx, c, err)
	}
	p := &pending{conn: conn, storage: storage}
	m.mu.Lock()
	m.pending[tenantID] = p
	m.mu.Unlock()

	if err := conn.Connect(ctx); err != nil {
		return m.abort(ctx, c, err)
	}
	hash, err := conn.SendCode(ctx, c.Secret("phone"))
	switch {
	case errors.Is(err, ErrAuthorized):
		return m.finish(ctx, c, p)
	case tgerr.Is(err, "PHONE_NUMBER_INVALID"):
		m.dropPending(tenantID)
		m.convs.Advance(tenantID, StateAwaitPhone, m.opts.SetupTimeout)
		return i18n.TL(lang, i18nk.ValidationPhone)
	case err != nil:
		return m.abort(ctx, c, err)
	}
	c.SetSecret("code_hash", hash)
	m.convs.Advance(tenantID, StateAwaitCode, m.opts.SetupTimeout)
	return i18n.TL(lang, i18nk.SessionCodeSent)
}

// finish persists the authorized session and starts observing it.
func (m *Manager) finish(ctx context.Context, c *conversation.Conversation, p *pending) string {
	tenantID := c.Owner
	lang := c.String("lang")
	self, err := p.conn.Observe(ctx)
	if err != nil {
		return m.abort(ctx, c, err)
	}
	now := m.opts.Store.Now()
	sess := &database.UserSession{
		TenantID:      tenantID,
		SessionData:   p.storage.Blob(),
		APIID:         c.Int("api_id"),
		APIHash:       c.Secret("api_hash"),
		Phone:         c.Secret("phone"),
		IsActive:      true,
		LastConnected: &now,
		Info:          selfInfo(self),
	}
	if err := m.opts.Store.SaveSession(ctx, sess); err != nil {
		return m.abort(ctx, c, err)
	}
	p.storage.Persist()

	m.mu.Lock()
	delete(m.pending, tenantID)
	m.live[tenantID] = &live{conn: p.conn, self: self}
	m.mu.Unlock()
	m.convs.End(tenantID)

	log.FromContext(ctx).Info("Session connected", "tenant", tenantID, "account", self.ID)
	return i18n.TL(lang, i18nk.SessionConnected, map[string]any{"Name": displayName(self)})
}

// abort ends the login after an error the tenant cannot fix by retrying the same step.
func (m *Manager) abort(ctx context.Context, c *conversation.Conversation, err error) string {
	lang := c.String("lang")
	m.convs.End(c.Owner)
	m.dropPending(c.Owner)
	log.FromContext(ctx).Warn("Session setup failed", "tenant", c.Owner, "error", err)
	if d, ok := tgerr.AsFloodWait(err); ok {
		return i18n.TL(lang, i18nk.SessionFloodWait, map[string]any{"Seconds": int(d.Seconds())})
	}
	if tgerr.Is(err, "API_ID_INVALID", "API_ID_PUBLISHED_FLOOD") {
		return i18n.TL(lang, i18nk.SessionCredentialsInvalid)
	}
	if relayerr.KindOf(err) != relayerr.KindUnknown {
		return relayerr.Message(lang, err)
	}
	return i18n.TL(lang, i18nk.ErrUnexpected)
}

func (m *Manager) onExpire(c *conversation.Conversation) {
	if c.Flow != flowSession {
		return
	}
	m.dropPending(c.Owner)
	m.logger.Info("Session setup timed out", "tenant", c.Owner)
	if m.opts.Notify != nil {
		m.opts.Notify(m.ctx, c.Owner, i18n.TL(c.String("lang"), i18nk.SessionTimeout))
	}
}

func (m *Manager) getPending(tenantID int64) *pending {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending[tenantID]
}

func (m *Manager) dropPending(tenantID int64) {
	m.mu.Lock()
	p, ok := m.pending[tenantID]
	delete(m.pending, tenantID)
	m.mu.Unlock()
	if !ok {
		return
	}
	p.storage.Wipe()
	if err := p.conn.Close(); err != nil {
		m.logger.Debug("Closing pending client", "tenant", tenantID, "error", err)
	}
}

func (m *Manager) observer(tenantID int64) func(context.Context, *tg.Message) {
	return func(ctx context.Context, raw *tg.Message) {
		if m.opts.Ingest == nil {
			return
		}
		msg := tgutil.FromTG(raw)
		msg.TenantID = tenantID
		m.opts.Ingest.Dispatch(m.ctx, msg)
	}
}

// Logout disconnects the tenant's session and deletes it.
func (m *Manager) Logout(ctx context.Context, tenantID int64) error {
	m.Cancel(tenantID)
	m.mu.Lock()
	l, ok := m.live[tenantID]
	delete(m.live, tenantID)
	m.mu.Unlock()
	if ok {
		if err := l.conn.LogOut(ctx); err != nil {
			log.FromContext(ctx).Warn("Failed to log out session", "tenant", tenantID, "error", err)
		}
		if err := l.conn.Close(); err != nil {
			log.FromContext(ctx).Warn("Failed to close session", "tenant", tenantID, "error", err)
		}
	}
	err := m.opts.Store.DeleteSession(ctx, tenantID)
	if relayerr.IsKind(err, relayerr.KindNotFound) && ok {
		return nil
	}
	return err
}

// Restore reconnects every active stored session. A session that fails to
// start is recorded and skipped; revoked ones are deactivated.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	sessions, err := m.opts.Store.ListActiveSessions(ctx)
	if err != nil {
		return 0, err
	}
	var (
		mu      sync.Mutex
		started int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.RestoreLimit)
	for i := range sessions {
		sess := sessions[i]
		g.Go(func() error {
			if err := m.start(gctx, sess); err != nil {
				m.logger.Error("Failed to restore session", "tenant", sess.TenantID, "error", err)
				revoked := auth.IsUnauthorized(err)
				if serr := m.opts.Store.MarkSessionError(ctx, sess.TenantID, err, revoked); serr != nil {
					m.logger.Error("Failed to record session error", "tenant", sess.TenantID, "error", serr)
				}
				return nil
			}
			mu.Lock()
			started++
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	m.logger.Info("Sessions restored", "started", started, "total", len(sessions))
	return started, err
}

func (m *Manager) start(ctx context.Context, sess database.UserSession) error {
	if m.Connected(sess.TenantID) {
		return nil
	}
	conn, err := m.opts.Dial(ctx, ConnConfig{
		TenantID:   sess.TenantID,
		APIID:      sess.APIID,
		APIHash:    sess.APIHash,
		ProxyURL:   m.opts.ProxyURL,
		RPCRetry:   m.opts.RPCRetry,
		FloodRetry: m.opts.FloodRetry,
		Storage:    PersistedStorage(m.opts.Store, sess.TenantID),
		OnMessage:  m.observer(sess.TenantID),
	})
	if err != nil {
		return err
	}
	if err := conn.Connect(ctx); err != nil {
		conn.Close()
		return err
	}
	self, err := conn.Observe(ctx)
	if err != nil {
		conn.Close()
		return err
	}
	m.mu.Lock()
	m.live[sess.TenantID] = &live{conn: conn, self: self}
	m.mu.Unlock()
	if err := m.opts.Store.MarkSessionConnected(ctx, sess.TenantID); err != nil {
		m.logger.Warn("Failed to mark session connected", "tenant", sess.TenantID, "error", err)
	}
	m.logger.Info("Session started", "tenant", sess.TenantID, "account", self.ID)
	return nil
}

// Stop disconnects every client and drops logins in progress.
func (m *Manager) Stop() {
	m.mu.Lock()
	lives := m.live
	pendings := m.pending
	m.live = make(map[int64]*live)
	m.pending = make(map[int64]*pending)
	m.mu.Unlock()
	for id := range pendings {
		m.convs.End(id)
	}
	for id, p := range pendings {
		p.storage.Wipe()
		if err := p.conn.Close(); err != nil {
			m.logger.Debug("Closing pending client", "tenant", id, "error", err)
		}
	}
	for id, l := range lives {
		if err := l.conn.Close(); err != nil {
			m.logger.Warn("Failed to close session", "tenant", id, "error", err)
		}
	}
}

func displayName(u *tg.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.Username != "" {
		return "@" + u.Username
	}
	if name == "" {
		return fmt.Sprint(u.ID)
	}
	return name
}

func selfInfo(u *tg.User) map[string]any {
	return map[string]any{
		"user_id":    u.ID,
		"username":   u.Username,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	}
}
