package middleware

import (
	"time"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/telegram"
	"golang.org/x/time/rate"
)

// NewSenderMiddlewares paces outgoing emissions. It sleeps through at most
// maxRetries flood waits; anything beyond reaches the emitter.
func NewSenderMiddlewares(maxRetries uint) []telegram.Middleware {
	waiter := floodwait.NewSimpleWaiter().WithMaxRetries(maxRetries)
	ratelimiter := ratelimit.New(rate.Every(time.Millisecond*100), 5)
	return []telegram.Middleware{
		waiter,
		ratelimiter,
	}
}

// NewAuthMiddlewares is used while a tenant logs in. Flood waits are not
// slept through so the wait can be shown to the tenant.
func NewAuthMiddlewares() []telegram.Middleware {
	return []telegram.Middleware{
		ratelimit.New(rate.Every(time.Second), 3),
	}
}
