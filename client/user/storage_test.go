package user_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/session"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/user"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
)

func TestStorageBuffersUntilPersisted(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	s := user.NewStorage(st, tenantID)

	if _, err := s.LoadSession(ctx); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("empty LoadSession err = %v", err)
	}
	if err := s.StoreSession(ctx, []byte("v1")); err != nil {
		t.Fatalf("StoreSession before the row exists: %v", err)
	}
	if _, err := st.LoadSessionBlob(ctx, tenantID); !errors.Is(err, database.ErrNoSessionBlob) {
		t.Fatalf("blob written before Persist: %v", err)
	}

	if err := st.SaveSession(ctx, &database.UserSession{TenantID: tenantID, SessionData: s.Blob(), APIID: 1234567, APIHash: apiHash}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	s.Persist()
	if err := s.StoreSession(ctx, []byte("v2")); err != nil {
		t.Fatalf("StoreSession: %v", err)
	}
	blob, err := st.LoadSessionBlob(ctx, tenantID)
	if err != nil || string(blob) != "v2" {
		t.Fatalf("LoadSessionBlob = %q, %v", blob, err)
	}

	s.Wipe()
	if got := s.Blob(); len(got) != 0 {
		t.Errorf("Blob after Wipe = %q", got)
	}
	fresh := user.PersistedStorage(st, tenantID)
	data, err := fresh.LoadSession(ctx)
	if err != nil || string(data) != "v2" {
		t.Errorf("PersistedStorage.LoadSession = %q, %v", data, err)
	}
}
