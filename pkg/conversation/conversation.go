// Package conversation tracks multi-turn data entry per owner. Each
// conversation has a current state with its own deadline; on expiry the
// conversation falls back, its secrets are zeroed and OnExpire is called.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/xid"
)

type State string

const Idle State = ""

var ErrNoConversation = errors.New("no active conversation")

type Conversation struct {
	ID       string
	Owner    int64
	Flow     string
	State    State
	Fallback State
	Started  time.Time
	Deadline time.Time

	data    map[string]any
	secrets map[string][]byte
}

func (c *Conversation) Set(key string, v any) { c.data[key] = v }

func (c *Conversation) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *Conversation) String(key string) string {
	v, _ := c.data[key].(string)
	return v
}

func (c *Conversation) Int(key string) int {
	v, _ := c.data[key].(int)
	return v
}

// SetSecret stores a copy of v that is zeroed when the conversation ends.
func (c *Conversation) SetSecret(key string, v string) {
	if old, ok := c.secrets[key]; ok {
		clear(old)
	}
	c.secrets[key] = []byte(v)
}

func (c *Conversation) Secret(key string) string {
	return string(c.secrets[key])
}

func (c *Conversation) wipe() {
	for k, b := range c.secrets {
		clear(b)
		delete(c.secrets, k)
	}
	clear(c.data)
}

type Manager struct {
	mu       sync.Mutex
	convs    map[int64]*Conversation
	now      func() time.Time
	onExpire func(*Conversation)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// OnExpire is called, outside the manager lock, after an expired
// conversation is removed. Data is still readable; secrets are already zeroed.
func OnExpire(fn func(*Conversation)) Option {
	return func(m *Manager) { m.onExpire = fn }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		convs: make(map[int64]*Conversation),
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start begins a conversation for owner, replacing (and wiping) any previous one.
func (m *Manager) Start(owner int64, flow string, state State, timeout time.Duration) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.convs[owner]; ok {
		prev.wipe()
	}
	now := m.now()
	c := &Conversation{
		ID:       xid.New().String(),
		Owner:    owner,
		Flow:     flow,
		State:    state,
		Fallback: Idle,
		Started:  now,
		Deadline: now.Add(timeout),
		data:     make(map[string]any),
		secrets:  make(map[string][]byte),
	}
	m.convs[owner] = c
	return c
}

// Get returns the live conversation of owner. An overdue one is expired first.
func (m *Manager) Get(owner int64) (*Conversation, bool) {
	m.mu.Lock()
	c, ok := m.convs[owner]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	if m.now().After(c.Deadline) {
		delete(m.convs, owner)
		m.mu.Unlock()
		m.expire(c)
		return nil, false
	}
	m.mu.Unlock()
	return c, true
}

// Advance moves owner's conversation to next and resets the deadline.
func (m *Manager) Advance(owner int64, next State, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[owner]
	if !ok {
		return ErrNoConversation
	}
	c.State = next
	c.Deadline = m.now().Add(timeout)
	return nil
}

// Stay keeps the current state and only resets its deadline, used when input
// was rejected and the same prompt is repeated.
func (m *Manager) Stay(owner int64, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[owner]
	if !ok {
		return ErrNoConversation
	}
	c.Deadline = m.now().Add(timeout)
	return nil
}

// Expire ends owner's conversation as if its deadline had passed.
func (m *Manager) Expire(owner int64) bool {
	m.mu.Lock()
	c, ok := m.convs[owner]
	delete(m.convs, owner)
	m.mu.Unlock()
	if ok {
		m.expire(c)
	}
	return ok
}

// End removes owner's conversation and wipes it.
func (m *Manager) End(owner int64) {
	m.mu.Lock()
	c, ok := m.convs[owner]
	delete(m.convs, owner)
	m.mu.Unlock()
	if ok {
		c.wipe()
	}
}

func (m *Manager) expire(c *Conversation) {
	for _, b := range c.secrets {
		clear(b)
	}
	clear(c.secrets)
	c.State = c.Fallback
	if m.onExpire != nil {
		m.onExpire(c)
	}
	clear(c.data)
}

// Sweep expires every overdue conversation and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	var expired []*Conversation
	for owner, c := range m.convs {
		if now.After(c.Deadline) {
			expired = append(expired, c)
			delete(m.convs, owner)
		}
	}
	m.mu.Unlock()
	for _, c := range expired {
		m.expire(c)
	}
	return len(expired)
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.convs)
}

// Run sweeps on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
