package conversation_test

import (
	"sync"
	"testing"
	"time"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/conversation"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestAdvanceResetsDeadline(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	m := conversation.NewManager(conversation.WithClock(clk.Now))
	m.Start(1, "session", "await_api_id", 5*time.Minute)

	clk.Add(4 * time.Minute)
	if err := m.Advance(1, "await_api_hash", 5*time.Minute); err != nil {
		t.Fatalf("advance: %v", err)
	}
	clk.Add(4 * time.Minute)
	c, ok := m.Get(1)
	if !ok {
		t.Fatal("conversation should still be live after advance")
	}
	if c.State != "await_api_hash" {
		t.Fatalf("state = %s", c.State)
	}
	if err := m.Advance(2, "x", time.Minute); err != conversation.ErrNoConversation {
		t.Fatalf("expected ErrNoConversation, got %v", err)
	}
}

func TestExpiryWipesSecrets(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	var expired []*conversation.Conversation
	var fallback conversation.State = "not-set"
	var secretAtExpiry string
	m := conversation.NewManager(
		conversation.WithClock(clk.Now),
		conversation.OnExpire(func(c *conversation.Conversation) {
			expired = append(expired, c)
			fallback = c.State
			secretAtExpiry = c.Secret("password")
		}),
	)
	c := m.Start(7, "session", "await_password", 10*time.Minute)
	c.SetSecret("password", "hunter2")
	c.Set("phone", "+12345678901")

	clk.Add(11 * time.Minute)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if len(expired) != 1 || expired[0].Owner != 7 {
		t.Fatalf("OnExpire not called for owner 7")
	}
	if fallback != conversation.Idle {
		t.Fatalf("expired conversation should fall back to idle, got %q", fallback)
	}
	if secretAtExpiry != "" {
		t.Fatalf("secrets must be wiped before OnExpire, got %q", secretAtExpiry)
	}
	if _, ok := m.Get(7); ok {
		t.Fatal("expired conversation must be gone")
	}
	if m.Active() != 0 {
		t.Fatalf("active = %d", m.Active())
	}
}

func TestGetExpiresLazily(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	calls := 0
	m := conversation.NewManager(
		conversation.WithClock(clk.Now),
		conversation.OnExpire(func(*conversation.Conversation) { calls++ }),
	)
	m.Start(3, "delay", "await_seconds", time.Minute)
	clk.Add(2 * time.Minute)
	if _, ok := m.Get(3); ok {
		t.Fatal("overdue conversation returned")
	}
	if calls != 1 {
		t.Fatalf("OnExpire calls = %d", calls)
	}
}

func TestStartReplacesAndEndWipes(t *testing.T) {
	m := conversation.NewManager()
	first := m.Start(9, "words", "await_word", time.Minute)
	first.SetSecret("k", "v")
	second := m.Start(9, "session", "await_api_id", time.Minute)
	if first.ID == second.ID {
		t.Fatal("expected a fresh conversation id")
	}
	if first.Secret("k") != "" {
		t.Fatal("replaced conversation must be wiped")
	}
	second.Set("api_id", 123456)
	if second.Int("api_id") != 123456 {
		t.Fatal("data roundtrip failed")
	}
	m.End(9)
	if _, ok := m.Get(9); ok {
		t.Fatal("ended conversation still present")
	}
	if second.Int("api_id") != 0 {
		t.Fatal("ended conversation data must be cleared")
	}
}

func TestStayAndExpire(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	var expired []conversation.State
	m := conversation.NewManager(
		conversation.WithClock(clk.Now),
		conversation.OnExpire(func(c *conversation.Conversation) { expired = append(expired, c.State) }),
	)
	c := m.Start(7, "session", "await_code", time.Minute)
	c.Fallback = "disconnected"

	clk.Add(50 * time.Second)
	if err := m.Stay(7, time.Minute); err != nil {
		t.Fatalf("stay: %v", err)
	}
	clk.Add(50 * time.Second)
	got, ok := m.Get(7)
	if !ok || got.State != "await_code" {
		t.Fatalf("stay should keep state and extend deadline, got %v %v", got, ok)
	}

	if !m.Expire(7) {
		t.Fatal("expire should report a live conversation")
	}
	if m.Expire(7) {
		t.Fatal("second expire should be a no-op")
	}
	if len(expired) != 1 || expired[0] != "disconnected" {
		t.Fatalf("expire callback = %v", expired)
	}
	if err := m.Stay(7, time.Minute); err == nil {
		t.Fatal("stay without conversation should fail")
	}
}
