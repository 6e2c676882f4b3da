package user_test

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/tgsender"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/user"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

const (
	tenantID = int64(42)
	apiHash  = "0123456789abcdef0123456789abcdef"
)

type fakeConn struct {
	cfg user.ConnConfig

	mu       sync.Mutex
	closed   bool
	signIns  []string
	needPass bool
	sendErr  error
}

func (c *fakeConn) Connect(ctx context.Context) error {
	return c.cfg.Storage.StoreSession(ctx, []byte("auth-key"))
}

func (c *fakeConn) SendCode(context.Context, string) (string, error) {
	if c.sendErr != nil {
		return "", c.sendErr
	}
	return "code-hash", nil
}

func (c *fakeConn) SignIn(_ context.Context, _, code, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signIns = append(c.signIns, code)
	if hash != "code-hash" || code != "12345" {
		return tgerr.New(400, "PHONE_CODE_INVALID")
	}
	if c.needPass {
		return user.ErrPasswordNeeded
	}
	return nil
}

func (c *fakeConn) Password(_ context.Context, password string) error {
	if password != "hunter2" {
		return auth.ErrPasswordInvalid
	}
	return nil
}

func (c *fakeConn) Observe(context.Context) (*tg.User, error) {
	return &tg.User{ID: 777, FirstName: "Ann"}, nil
}

func (c *fakeConn) LogOut(context.Context) error { return nil }

func (c *fakeConn) Sender() tgsender.Sender { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type dialer struct {
	mu       sync.Mutex
	conns    []*fakeConn
	needPass bool
	sendErr  error
}

func (d *dialer) dial(_ context.Context, cfg user.ConnConfig) (user.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &fakeConn{cfg: cfg, needPass: d.needPass, sendErr: d.sendErr}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *dialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

type ingest struct {
	mu   sync.Mutex
	msgs []types.Message
}

func (i *ingest) Dispatch(_ context.Context, msg types.Message) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs = append(i.msgs, msg)
	return 1
}

func newStore(t *testing.T) *database.Store {
	t.Helper()
	ctx := context.Background()
	st, err := database.Open(ctx, database.Options{
		DSN:       "sqlite://" + filepath.Join(t.TempDir(), "relay.db"),
		SecretKey: "test-secret",
		Logger:    log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := st.UpsertTenant(ctx, &database.Tenant{ID: tenantID, FirstName: "Ann"}); err != nil {
		t.Fatalf("UpsertTenant: %v", err)
	}
	return st
}

func newManager(t *testing.T, st *database.Store, d *dialer, in user.Ingest, opts ...func(*user.Options)) *user.Manager {
	t.Helper()
	o := user.Options{
		Store:  st,
		Ingest: in,
		Dial:   d.dial,
		Logger: log.New(io.Discard),
	}
	for _, fn := range opts {
		fn(&o)
	}
	m := user.NewManager(o)
	t.Cleanup(m.Stop)
	return m
}

func TestLoginWithPassword(t *testing.T) {
	st := newStore(t)
	d := &dialer{needPass: true}
	in := &ingest{}
	m := newManager(t, st, d, in)
	ctx := context.Background()

	m.Begin(ctx, tenantID, "en")
	steps := []struct {
		input string
		state string
		reply string
	}{
		{"not a number", "AWAIT_API_ID", "API id must be"},
		{"1234567", "AWAIT_API_HASH", "API hash"},
		{"0123456789ABCDEF0123456789ABCDEF", "AWAIT_PHONE", "phone number"},
		{"+1 234 567 8901", "AWAIT_CODE", "login code"},
		{"11111", "AWAIT_CODE", "code is invalid"},
		{"1-2-3-4-5", "AWAIT_PASSWORD", "password"},
		{"wrong", "AWAIT_PASSWORD", "password is invalid"},
		{"hunter2", "CONNECTED", "connected as Ann"},
	}
	for _, s := range steps {
		reply, handled := m.Input(ctx, tenantID, s.input)
		if !handled {
			t.Fatalf("input %q not handled", s.input)
		}
		if !strings.Contains(reply, s.reply) {
			t.Errorf("input %q: reply %q, want it to contain %q", s.input, reply, s.reply)
		}
		if got := string(m.State(tenantID)); got != s.state {
			t.Fatalf("input %q: state %s, want %s", s.input, got, s.state)
		}
	}

	sess, err := st.GetSession(ctx, tenantID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if string(sess.SessionData) != "auth-key" || sess.APIID != 1234567 || sess.APIHash != apiHash || sess.Phone != "+12345678901" {
		t.Errorf("stored session = %+v", sess)
	}
	if _, ok := m.SenderFor(tenantID); !ok {
		t.Error("connected tenant has no sender")
	}
	if _, handled := m.Input(ctx, tenantID, "hello"); handled {
		t.Error("input after login should not be consumed")
	}

	d.last().cfg.OnMessage(ctx, &tg.Message{ID: 5, PeerID: &tg.PeerChannel{ChannelID: 99}, Message: "hi"})
	if len(in.msgs) != 1 || in.msgs[0].TenantID != tenantID || in.msgs[0].Text != "hi" {
		t.Fatalf("observed messages = %+v", in.msgs)
	}
}

func TestLoginCodeOnly(t *testing.T) {
	st := newStore(t)
	d := &dialer{}
	m := newManager(t, st, d, nil)
	ctx := context.Background()

	m.Begin(ctx, tenantID, "en")
	for _, in := range []string{"1234567", apiHash, "+12345678901"} {
		m.Input(ctx, tenantID, in)
	}
	reply, _ := m.Input(ctx, tenantID, "12345")
	if !strings.Contains(reply, "connected") || !m.Connected(tenantID) {
		t.Fatalf("reply %q, connected %v", reply, m.Connected(tenantID))
	}
	if reply := m.Begin(ctx, tenantID, "en"); !strings.Contains(reply, "already connected") {
		t.Errorf("Begin on connected tenant = %q", reply)
	}
}

func TestLoginFloodWait(t *testing.T) {
	st := newStore(t)
	d := &dialer{sendErr: tgerr.New(420, "FLOOD_WAIT_30")}
	m := newManager(t, st, d, nil)
	ctx := context.Background()

	m.Begin(ctx, tenantID, "en")
	for _, in := range []string{"1234567", apiHash} {
		m.Input(ctx, tenantID, in)
	}
	reply, _ := m.Input(ctx, tenantID, "+12345678901")
	if !strings.Contains(reply, "30 seconds") {
		t.Errorf("reply = %q, want the wait surfaced", reply)
	}
	if m.State(tenantID) != user.StateDisconnected {
		t.Errorf("state = %s after flood wait", m.State(tenantID))
	}
	if !d.last().isClosed() {
		t.Error("partial client left open")
	}
}

func TestLoginTimeout(t *testing.T) {
	st := newStore(t)
	d := &dialer{}
	var (
		mu       sync.Mutex
		notified []string
	)
	m := newManager(t, st, d, nil, func(o *user.Options) {
		o.SetupTimeout = 20 * time.Millisecond
		o.Notify = func(_ context.Context, id int64, text string) {
			mu.Lock()
			notified = append(notified, text)
			mu.Unlock()
		}
	})
	ctx := context.Background()

	m.Begin(ctx, tenantID, "en")
	m.Input(ctx, tenantID, "1234567")
	m.Input(ctx, tenantID, apiHash)
	m.Input(ctx, tenantID, "+12345678901")
	time.Sleep(50 * time.Millisecond)

	if _, handled := m.Input(ctx, tenantID, "12345"); handled {
		t.Fatal("input accepted after the login expired")
	}
	if !d.last().isClosed() {
		t.Error("pending client not closed on timeout")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(notified) != 1 || !strings.Contains(notified[0], "timed out") {
		t.Errorf("notifications = %v", notified)
	}
}

func TestRestoreAndLogout(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	err := st.SaveSession(ctx, &database.UserSession{
		TenantID:    tenantID,
		SessionData: []byte("auth-key"),
		APIID:       1234567,
		APIHash:     apiHash,
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	d := &dialer{}
	m := newManager(t, st, d, nil)

	n, err := m.Restore(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Restore = %d, %v", n, err)
	}
	data, err := d.last().cfg.Storage.LoadSession(ctx)
	if err != nil || string(data) != "auth-key" {
		t.Fatalf("restored storage = %q, %v", data, err)
	}
	if !m.Connected(tenantID) {
		t.Fatal("restored tenant not connected")
	}

	if err := m.Logout(ctx, tenantID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if m.Connected(tenantID) || !d.last().isClosed() {
		t.Error("session still live after logout")
	}
	if _, err := st.GetSession(ctx, tenantID); err == nil {
		t.Error("session row survived logout")
	}
}
