package user

import (
	"context"
	"errors"
	"sync"

	"github.com/gotd/td/session"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
)

// Storage keeps a tenant's MTProto session. While a login is in progress
// the blob only lives in memory; once persisted every write goes to the
// tenant's UserSession row.
type Storage struct {
	store    *database.Store
	tenantID int64

	mu      sync.Mutex
	buf     []byte
	persist bool
}

var _ session.Storage = (*Storage)(nil)

// NewStorage returns a storage that buffers until Persist is called.
func NewStorage(store *database.Store, tenantID int64) *Storage {
	return &Storage{store: store, tenantID: tenantID}
}

// PersistedStorage returns a storage backed by an existing session row.
func PersistedStorage(store *database.Store, tenantID int64) *Storage {
	return &Storage{store: store, tenantID: tenantID, persist: true}
}

func (s *Storage) LoadSession(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) > 0 {
		return append([]byte(nil), s.buf...), nil
	}
	if !s.persist || s.store == nil {
		return nil, session.ErrNotFound
	}
	data, err := s.store.LoadSessionBlob(ctx, s.tenantID)
	if errors.Is(err, database.ErrNoSessionBlob) || relayerr.IsKind(err, relayerr.KindNotFound) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.buf = data
	return append([]byte(nil), data...), nil
}

func (s *Storage) StoreSession(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.buf)
	s.buf = append([]byte(nil), data...)
	if !s.persist || s.store == nil {
		return nil
	}
	return s.store.StoreSessionBlob(ctx, s.tenantID, data)
}

// Blob returns a copy of the current session data.
func (s *Storage) Blob() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf...)
}

// Persist switches the storage to write-through. The session row must exist.
func (s *Storage) Persist() {
	s.mu.Lock()
	s.persist = true
	s.mu.Unlock()
}

// Wipe zeroes the in-memory copy.
func (s *Storage) Wipe() {
	s.mu.Lock()
	clear(s.buf)
	s.buf = nil
	s.mu.Unlock()
}
