package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/tgsender"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/errclass"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/pipeline"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

var ErrNoSender = errors.New("no sender available")

// senderFor picks the identity that observed msg: the tenant's session for
// session messages, the service bot otherwise.
func (e *Engine) senderFor(msg types.Message) (tgsender.Sender, error) {
	e.senderMu.RLock()
	defer e.senderMu.RUnlock()
	if msg.TenantID != 0 {
		if e.sessions != nil {
			if s, ok := e.sessions.SenderFor(msg.TenantID); ok {
				return s, nil
			}
		}
		return nil, relayerr.Transient(fmt.Errorf("%w: session of tenant %d is not connected", ErrNoSender, msg.TenantID))
	}
	if e.bot == nil {
		return nil, relayerr.Transient(fmt.Errorf("%w: service client not connected", ErrNoSender))
	}
	return e.bot, nil
}

func (e *Engine) emit(ctx context.Context, w *slot, u unit) {
	job := u.job
	logger := log.FromContext(ctx).WithPrefix(fmt.Sprintf("job[%d]", job.ID))

	// the same message can arrive through the bot and a tenant session
	claim := fmt.Sprintf("%d:%s", job.ID, u.msg.Key())
	if !e.claims.Claim(claim) {
		logger.Debug("Message already emitted for job", "message", u.msg.String())
		return
	}

	sender, err := e.senderFor(u.msg)
	if err != nil {
		e.claims.Release(claim)
		e.fail(ctx, u, err)
		return
	}

	start := time.Now()
	sentID, err := e.send(ctx, w, sender, u)
	switch {
	case errors.Is(err, tgsender.ErrAlreadySent):
		logger.Debug("Emission already delivered", "message", u.msg.String())
	case err != nil:
		e.claims.Release(claim)
		e.fail(ctx, u, err)
		return
	}

	if buttons := job.Settings.InlineButtons; buttons.Enabled && len(buttons.Buttons) > 0 && sentID != 0 {
		if err := sender.SetButtons(ctx, job.TargetChat, sentID, buttons.Buttons); err != nil {
			logger.Warn("Failed to attach buttons", "message", sentID, "error", err)
			e.reporter.Report(ctx, job, u.msg.TenantID, err)
		}
	}

	elapsed := time.Since(start)
	if _, err := e.store.IncrementForwarded(ctx, job.ID, u.eventID, u.msg.Size, elapsed); err != nil {
		logger.Error("Failed to record emission", "error", err)
	}
	logger.Info("Message relayed", "message", u.msg.String(), "target", job.TargetChat, "kind", job.Kind,
		"elapsed", elapsed.Round(time.Millisecond), "waited", start.Sub(u.received).Round(time.Millisecond))
}

// send performs one emission. Flood control is waited out once with the
// worker slot given back; transient failures are retried a bounded number
// of times; anything else is returned.
func (e *Engine) send(ctx context.Context, w *slot, s tgsender.Sender, u unit) (int, error) {
	job := u.job
	attempt := func() (int, error) {
		if job.Kind == types.JobCopy {
			text := pipeline.Transform(job.Settings, u.msg.Text)
			return s.Copy(ctx, u.eventID, u.msg, text, job.TargetChat)
		}
		return s.Forward(ctx, u.eventID, u.msg.ChatID, u.msg.ID, job.TargetChat)
	}

	id, err := attempt()
	if err == nil || errors.Is(err, tgsender.ErrAlreadySent) {
		return id, err
	}
	c := errclass.Classify(err)
	logger := log.FromContext(ctx)
	switch c.Policy {
	case errclass.RetryAfter:
		wait := c.Wait
		if wait <= 0 {
			wait = e.opts.FloodBackoff().NextBackOff()
		}
		if wait == backoff.Stop || wait > e.opts.MaxFloodWait {
			return 0, err
		}
		logger.Warn("Flood control, retrying once", "job", job.ID, "wait", wait)
		if err := w.sleep(ctx, wait); err != nil {
			return 0, err
		}
		return attempt()
	case errclass.RetryBounded:
		b := backoff.WithContext(backoff.WithMaxRetries(e.opts.TransientBackoff(), uint64(e.opts.TransientRetries)), ctx)
		err = backoff.RetryNotify(func() error {
			id, err = attempt()
			if err == nil || errors.Is(err, tgsender.ErrAlreadySent) {
				return nil
			}
			if errclass.Classify(err).Policy != errclass.RetryBounded {
				return backoff.Permanent(err)
			}
			return err
		}, b, func(err error, d time.Duration) {
			logger.Debug("Transient send failure", "job", job.ID, "error", err, "next", d)
		})
		return id, err
	}
	return 0, err
}

func (e *Engine) fail(ctx context.Context, u unit, err error) {
	c := e.reporter.Report(ctx, u.job, u.msg.TenantID, err)
	if _, serr := e.store.IncrementFailed(ctx, u.job.ID, u.eventID, string(c.Category)); serr != nil {
		log.FromContext(ctx).Error("Failed to record failed emission", "job", u.job.ID, "error", serr)
	}
}
