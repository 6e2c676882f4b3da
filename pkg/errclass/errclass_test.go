package errclass_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/errclass"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category errclass.Category
		policy   errclass.Policy
		wait     time.Duration
	}{
		{"flood wait rpc", tgerr.New(420, "FLOOD_WAIT_30"), errclass.FloodControl, errclass.RetryAfter, 30 * time.Second},
		{"wrapped flood wait", fmt.Errorf("send: %w", tgerr.New(420, "FLOOD_WAIT_5")), errclass.FloodControl, errclass.RetryAfter, 5 * time.Second},
		{"peer flood", tgerr.New(400, "PEER_FLOOD"), errclass.FloodControl, errclass.NoRetry, 0},
		{"chat not found rpc", tgerr.New(400, "CHANNEL_INVALID"), errclass.ChatNotFound, errclass.NoRetry, 0},
		{"write forbidden", tgerr.New(403, "CHAT_WRITE_FORBIDDEN"), errclass.NotEnoughRights, errclass.NoRetry, 0},
		{"blocked", tgerr.New(400, "USER_IS_BLOCKED"), errclass.Blocked, errclass.NoRetry, 0},
		{"too long", tgerr.New(400, "MESSAGE_TOO_LONG"), errclass.MessageTooLong, errclass.NoRetry, 0},
		{"internal", tgerr.New(500, "RPC_CALL_FAIL"), errclass.Transient, errclass.RetryBounded, 0},
		{"auth revoked", tgerr.New(401, "SESSION_REVOKED"), errclass.Fatal, errclass.NoRetry, 0},
		{"bot api too many", errors.New("Too Many Requests: retry after 7"), errclass.TooManyRequests, errclass.RetryAfter, 7 * time.Second},
		{"bot api chat", errors.New("Bad Request: chat not found"), errclass.ChatNotFound, errclass.NoRetry, 0},
		{"bot api blocked", errors.New("Forbidden: bot was blocked by the user"), errclass.Blocked, errclass.NoRetry, 0},
		{"bot api rights", errors.New("Bad Request: not enough rights to send text messages to the chat"), errclass.NotEnoughRights, errclass.NoRetry, 0},
		{"deadline", context.DeadlineExceeded, errclass.Network, errclass.RetryBounded, 0},
		{"transient store", relayerr.Transient(errors.New("db gone")), errclass.Transient, errclass.RetryBounded, 0},
		{"unknown", errors.New("something odd"), errclass.Unknown, errclass.NoRetry, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := errclass.Classify(tt.err)
			if c.Category != tt.category {
				t.Fatalf("category = %s, want %s", c.Category, tt.category)
			}
			if c.Policy != tt.policy {
				t.Fatalf("policy = %d, want %d", c.Policy, tt.policy)
			}
			if c.Wait != tt.wait {
				t.Fatalf("wait = %s, want %s", c.Wait, tt.wait)
			}
			if c.Severity == "" {
				t.Fatalf("severity must always be set")
			}
		})
	}
}

func TestClassificationError(t *testing.T) {
	c := errclass.Classify(tgerr.New(400, "CHAT_WRITE_FORBIDDEN"))
	if !relayerr.IsKind(c.Error(errors.New("x")), relayerr.KindPlatform) {
		t.Fatalf("user-visible platform errors map to the platform kind")
	}
	n := errclass.Classify(context.DeadlineExceeded)
	if !relayerr.Retryable(n.Error(context.DeadlineExceeded)) {
		t.Fatalf("network errors map to transient")
	}
	if !c.UserVisible || n.UserVisible {
		t.Fatalf("rights errors are user-visible, network errors are not")
	}
}
