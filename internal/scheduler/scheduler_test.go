package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"lyrahub/internal/digest"
)

type stubRunner struct {
	calls    int
	deadline time.Time
	err      error
}

func (r *stubRunner) Run(ctx context.Context) (digest.Result, error) {
	r.calls++
	r.deadline, _ = ctx.Deadline()

	return digest.Result{Upserted: 3, Featured: []string{"a"}}, r.err
}

func newTestScheduler(ctx context.Context, runner Runner, spec string) *Scheduler {
	return New(ctx, runner, spec, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := newTestScheduler(context.Background(), &stubRunner{}, "")
	if err := s.Start(); !errors.Is(err, ErrEmptySpec) {
		t.Fatalf("expected ErrEmptySpec, got %v", err)
	}

	s = newTestScheduler(context.Background(), &stubRunner{}, "not a spec")
	if err := s.Start(); err == nil {
		t.Fatalf("expected error for malformed spec")
	}
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(context.Background(), &stubRunner{}, "0 7 * * *")
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if n := len(s.cron.Entries()); n != 1 {
		t.Fatalf("expected one entry, got %d", n)
	}

	s.Stop()
}

func TestRunDigestAppliesTimeout(t *testing.T) {
	runner := &stubRunner{}
	s := newTestScheduler(context.Background(), runner, "@daily")

	before := time.Now()
	s.runDigest()

	if runner.calls != 1 {
		t.Fatalf("expected one run, got %d", runner.calls)
	}

	if runner.deadline.IsZero() || runner.deadline.After(before.Add(time.Minute+time.Second)) {
		t.Fatalf("expected run deadline within a minute, got %v", runner.deadline)
	}
}

func TestRunDigestSkipsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &stubRunner{}
	newTestScheduler(ctx, runner, "@daily").runDigest()

	if runner.calls != 0 {
		t.Fatalf("expected no run after shutdown, got %d", runner.calls)
	}
}

func TestRunDigestToleratesFailures(t *testing.T) {
	for _, err := range []error{digest.ErrAlreadyRunning, errors.New("select top: db locked")} {
		runner := &stubRunner{err: err}
		newTestScheduler(context.Background(), runner, "@daily").runDigest()

		if runner.calls != 1 {
			t.Fatalf("expected run attempt for %v", err)
		}
	}
}
