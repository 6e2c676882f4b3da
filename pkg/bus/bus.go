// Package bus fans invalidation events out to every engine instance.
package bus

import (
	"context"
	"sync"
)

type Handler func(payload string)

type Bus interface {
	Publish(ctx context.Context, topic, payload string) error
	// Subscribe delivers events for topic until ctx is done.
	Subscribe(ctx context.Context, topic string, fn Handler) error
	Close() error
}

// New returns a Redis-backed bus when url is set, an in-process one otherwise.
func New(ctx context.Context, url string) (Bus, error) {
	if url == "" {
		return NewLocal(), nil
	}
	return NewRedis(ctx, url)
}

type Local struct {
	mu   sync.RWMutex
	subs map[string]map[int]Handler
	next int
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[int]Handler)}
}

func (l *Local) Publish(_ context.Context, topic, payload string) error {
	l.mu.RLock()
	handlers := make([]Handler, 0, len(l.subs[topic]))
	for _, h := range l.subs[topic] {
		handlers = append(handlers, h)
	}
	l.mu.RUnlock()
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context, topic string, fn Handler) error {
	l.mu.Lock()
	if l.subs[topic] == nil {
		l.subs[topic] = make(map[int]Handler)
	}
	id := l.next
	l.next++
	l.subs[topic][id] = fn
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs[topic], id)
		l.mu.Unlock()
	}()
	return nil
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = make(map[string]map[int]Handler)
	return nil
}
