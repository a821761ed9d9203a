package ratelimiter

import (
	"context"
	"log/slog"
	"time"

	"lyrahub/internal/mailer"

	"golang.org/x/time/rate"
)

const defaultBurst = 1

// RateLimiter paces outgoing mail through a token bucket. It is safe for
// concurrent use.
type RateLimiter struct {
	sender  mailer.Sender
	limiter *rate.Limiter
	log     *slog.Logger
}

// New allows perSecond messages per second; a non-positive rate disables
// pacing.
func New(sender mailer.Sender, perSecond float64, log *slog.Logger) *RateLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &RateLimiter{
		sender:  sender,
		limiter: rate.NewLimiter(limit, defaultBurst),
		log:     log,
	}
}

func (rl *RateLimiter) Send(ctx context.Context, msg mailer.Message) error {
	reservation := rl.limiter.Reserve()
	if !reservation.OK() {
		return rl.sender.Send(ctx, msg)
	}

	if delay := reservation.Delay(); delay > 0 {
		rl.log.DebugContext(ctx, "Rate limiting message",
			"delay", delay,
			"to", msg.To)

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			reservation.Cancel()

			return ctx.Err()
		}
	}

	return rl.sender.Send(ctx, msg)
}
