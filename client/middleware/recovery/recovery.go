// Package recovery retries invocations that failed below the RPC layer,
// such as dropped connections, until the backoff gives up.
package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/gotd/td/bin"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

type recovery struct {
	ctx     context.Context
	backoff func() backoff.BackOff
}

// New stops recovering once ctx is done. newBackoff is called per invocation.
func New(ctx context.Context, newBackoff func() backoff.BackOff) telegram.Middleware {
	return &recovery{ctx: ctx, backoff: newBackoff}
}

func (r *recovery) Handle(next tg.Invoker) telegram.InvokeFunc {
	return func(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
		logger := log.FromContext(ctx)
		return backoff.RetryNotify(func() error {
			if err := next.Invoke(ctx, input, output); err != nil {
				if r.shouldRecover(ctx, err) {
					return err
				}
				return backoff.Permanent(err)
			}
			return nil
		}, backoff.WithContext(r.backoff(), ctx), func(err error, d time.Duration) {
			logger.Debug("Recovering invocation", "error", err, "next", d)
		})
	}
}

func (r *recovery) shouldRecover(ctx context.Context, err error) bool {
	select {
	case <-r.ctx.Done():
		return false
	default:
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// RPC errors are answers from the server, not transport failures
	var rpcErr *tgerr.Error
	return !errors.As(err, &rpcErr)
}
