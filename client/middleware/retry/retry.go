package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gotd/td/bin"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// server-side hiccups that succeed when sent again
var internalErrors = []string{
	"Timedout",
	"No workers running",
	"RPC_CALL_FAIL",
	"RPC_MCGET_FAIL",
	"WORKER_BUSY_TOO_LONG_RETRY",
	"memory limit exit",
}

type retry struct {
	max    int
	pause  time.Duration
	errors []string
}

func (r retry) Handle(next tg.Invoker) telegram.InvokeFunc {
	return func(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
		var last error
		for attempt := 0; attempt < r.max; attempt++ {
			err := next.Invoke(ctx, input, output)
			if err == nil {
				return nil
			}
			if !tgerr.Is(err, r.errors...) {
				return err
			}
			last = err
			log.FromContext(ctx).Debug("retry middleware", "attempt", attempt+1, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.pause * time.Duration(attempt+1)):
			}
		}
		return fmt.Errorf("retry limit reached after %d attempts: %w", r.max, last)
	}
}

// New returns middleware that retries a request failing with one of the
// internal server errors or any of extra.
func New(max int, extra ...string) telegram.Middleware {
	if max < 1 {
		max = 1
	}
	return retry{
		max:    max,
		pause:  200 * time.Millisecond,
		errors: append(extra, internalErrors...),
	}
}
