package middleware

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/td/telegram"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/middleware/recovery"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/middleware/retry"
)

type Options struct {
	// RecoverTimeout bounds how long network failures are retried.
	RecoverTimeout time.Duration
	RPCRetry       int
	// FloodRetry is how many FLOOD_WAITs are slept through before the error
	// is handed to the caller. Zero disables the waiter.
	FloodRetry uint
}

// https://github.com/iyear/tdl/blob/master/core/tclient/tclient.go
func NewDefaultMiddlewares(ctx context.Context, opts Options) []telegram.Middleware {
	if opts.RecoverTimeout <= 0 {
		opts.RecoverTimeout = 5 * time.Minute
	}
	mws := []telegram.Middleware{
		recovery.New(ctx, func() backoff.BackOff { return newBackoff(opts.RecoverTimeout) }),
		retry.New(opts.RPCRetry),
	}
	if opts.FloodRetry > 0 {
		mws = append(mws, floodwait.NewSimpleWaiter().WithMaxRetries(opts.FloodRetry))
	}
	return mws
}

func newBackoff(timeout time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.Multiplier = 1.1
	b.MaxElapsedTime = timeout
	b.MaxInterval = 10 * time.Second
	return b
}
