// Package scheduler runs the daily digest in-process on a cron spec.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lyrahub/internal/digest"

	"github.com/robfig/cron/v3"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	defaultRunTimeout     = 15 * time.Minute
)

var ErrEmptySpec = errors.New("empty cron spec")

type Runner interface {
	Run(ctx context.Context) (digest.Result, error)
}

type Scheduler struct {
	ctx        context.Context
	cron       *cron.Cron
	runner     Runner
	spec       string
	runTimeout time.Duration
	log        *slog.Logger
}

func New(ctx context.Context, runner Runner, spec string, runTimeout time.Duration, log *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}

	return &Scheduler{
		ctx:        ctx,
		cron:       c,
		runner:     runner,
		spec:       spec,
		runTimeout: runTimeout,
		log:        log,
	}
}

func (s *Scheduler) Start() error {
	if s.spec == "" {
		return ErrEmptySpec
	}

	if _, err := s.cron.AddFunc(s.spec, s.runDigest); err != nil {
		return fmt.Errorf("add cron func (spec = %s): %w", s.spec, err)
	}

	s.cron.Start()

	return nil
}

// Stop waits for a run in progress to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDigest() {
	ctx, cancel := context.WithTimeout(s.ctx, s.runTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	res, err := s.runner.Run(ctx)
	if err != nil {
		if errors.Is(err, digest.ErrAlreadyRunning) {
			s.log.WarnContext(ctx, "Skipped digest run",
				"error", err,
				"spec", s.spec)
			return
		}

		s.log.ErrorContext(ctx, "Failed to run digest",
			"error", err,
			"spec", s.spec,
			"upserted", res.Upserted,
			"featured", res.Featured)
		return
	}

	s.log.InfoContext(ctx, "Digest run finished",
		"spec", s.spec,
		"upserted", res.Upserted,
		"featured", res.Featured,
		"mailed", res.Mailed,
		"mailFailed", res.MailFailed,
		"durationSeconds", res.FinishedAt.Sub(res.StartedAt).Seconds())
}
