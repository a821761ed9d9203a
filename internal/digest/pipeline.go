// Package digest runs the daily fetch, select, summarise and mail cycle.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"lyrahub/internal/domain"
	"lyrahub/internal/feed"
	"lyrahub/internal/mailer"
	"lyrahub/internal/metrics"
	"lyrahub/internal/summarizer"
)

const (
	defaultTopN            = 2
	defaultWindow          = 48 * time.Hour
	defaultSummaryTimeout  = 60 * time.Second
	defaultSendTimeout     = 30 * time.Second
	summaryMaxParallelism  = 4
	dispatchMaxParallelism = 8
)

// ErrAlreadyRunning is returned by Run while another run is in progress.
var ErrAlreadyRunning = errors.New("digest run already in progress")

type Store interface {
	UpsertItem(ctx context.Context, item *domain.ContentItem) error
	SelectRecentTop(
		ctx context.Context,
		since time.Time,
		limit int,
		excludeKind domain.SourceKind,
	) ([]domain.ContentItem, error)
	UpdateSummaryTarget(ctx context.Context, id string, summary string) error
	ReplaceFeatured(ctx context.Context, ids []string) error
	ListConfirmedSubscribers(ctx context.Context) ([]domain.Subscriber, error)
}

type Fetcher interface {
	FetchAll(ctx context.Context, sources []domain.Source) []feed.SourceResult
}

type Options struct {
	Sources    []domain.Source
	TopN       int
	Window     time.Duration
	TargetLang domain.Language

	SiteURL           string
	UnsubscribeSecret string

	SummaryTimeout time.Duration
	SendTimeout    time.Duration
}

// Result reports what every step of a run achieved. Counts for a step that
// did not run stay zero.
type Result struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Sources       int      `json:"sources"`
	FailedSources []string `json:"failedSources,omitempty"`
	Fetched       int      `json:"fetched"`
	Upserted      int      `json:"upserted"`
	UpsertFailed  int      `json:"upsertFailed"`

	Top []string `json:"top"`

	Summarized    int `json:"summarized"`
	SummaryFailed int `json:"summaryFailed"`

	Featured []string `json:"featured"`

	Subscribers int `json:"subscribers"`
	Mailed      int `json:"mailed"`
	MailFailed  int `json:"mailFailed"`
}

type Pipeline struct {
	store      Store
	fetcher    Fetcher
	summarizer summarizer.Summarizer
	sender     mailer.Sender
	opts       Options
	running    atomic.Bool
	now        func() time.Time
	log        *slog.Logger
}

// New accepts a nil summarizer; top items then keep the summary they were
// fetched with.
func New(
	store Store,
	fetcher Fetcher,
	s summarizer.Summarizer,
	sender mailer.Sender,
	opts Options,
	log *slog.Logger,
) *Pipeline {
	if opts.TopN <= 0 {
		opts.TopN = defaultTopN
	}

	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}

	if !opts.TargetLang.Valid() {
		opts.TargetLang = domain.LanguageZH
	}

	if opts.SummaryTimeout <= 0 {
		opts.SummaryTimeout = defaultSummaryTimeout
	}

	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}

	return &Pipeline{
		store:      store,
		fetcher:    fetcher,
		summarizer: s,
		sender:     sender,
		opts:       opts,
		now:        time.Now,
		log:        log,
	}
}

// Run executes one digest run. The returned error is set only when a step
// that later steps depend on failed; what earlier steps committed stays
// committed and is reported in the result.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRunning
	}
	defer p.running.Store(false)

	result := Result{StartedAt: p.now().UTC()}

	err := p.run(ctx, &result)

	result.FinishedAt = p.now().UTC()
	metrics.RecordDigestRun(result.FinishedAt.Sub(result.StartedAt), err)

	return result, err
}

func (p *Pipeline) run(ctx context.Context, result *Result) error {
	p.ingest(ctx, result)

	top, err := p.selectTop(ctx)
	if err != nil {
		return fmt.Errorf("select top items: %w", err)
	}

	for _, it := range top {
		result.Top = append(result.Top, it.ID)
	}

	p.backfillSummaries(ctx, top, result)

	if err = p.store.ReplaceFeatured(ctx, result.Top); err != nil {
		return fmt.Errorf("replace featured: %w", err)
	}

	result.Featured = append([]string{}, result.Top...)

	subs, err := p.store.ListConfirmedSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	result.Subscribers = len(subs)

	if len(top) == 0 {
		p.log.InfoContext(ctx, "No top items, skipping dispatch",
			"subscribers", len(subs))

		return nil
	}

	p.dispatch(ctx, top, subs, result)

	return nil
}

func (p *Pipeline) ingest(ctx context.Context, result *Result) {
	results := p.fetcher.FetchAll(ctx, p.opts.Sources)
	result.Sources = len(results)

	for _, r := range results {
		metrics.RecordSourceFetch(r.Err)

		if r.Err != nil {
			result.FailedSources = append(result.FailedSources, r.Source.Name)
			continue
		}

		result.Fetched += len(r.Items)

		for i := range r.Items {
			if err := p.store.UpsertItem(ctx, &r.Items[i]); err != nil {
				p.log.ErrorContext(ctx, "Failed to upsert item",
					"error", err,
					"itemID", r.Items[i].ID,
					"source", r.Source.Name)

				result.UpsertFailed++

				continue
			}

			result.Upserted++
		}
	}

	if err := feed.Errors(results); err != nil {
		p.log.WarnContext(ctx, "Failed to fetch some sources",
			"error", err,
			"failedSources", result.FailedSources)
	}

	metrics.ItemsUpsertedTotal.Add(float64(result.Upserted))
}

// selectTop prefers recent non-aggregator items and fills the remainder from
// all recent items, aggregators included.
func (p *Pipeline) selectTop(ctx context.Context) ([]domain.ContentItem, error) {
	since := p.now().Add(-p.opts.Window)
	n := p.opts.TopN

	top, err := p.store.SelectRecentTop(ctx, since, n, domain.SourceKindRepo)
	if err != nil {
		return nil, fmt.Errorf("select preferred: %w", err)
	}

	if len(top) >= n {
		return top[:n], nil
	}

	fill, err := p.store.SelectRecentTop(ctx, since, n+len(top), "")
	if err != nil {
		return nil, fmt.Errorf("select fallback: %w", err)
	}

	seen := make(map[string]struct{}, len(top))
	for _, it := range top {
		seen[it.ID] = struct{}{}
	}

	for _, it := range fill {
		if len(top) == n {
			break
		}

		if _, ok := seen[it.ID]; ok {
			continue
		}

		seen[it.ID] = struct{}{}
		top = append(top, it)
	}

	return top, nil
}

// backfillSummaries fills SummaryTarget on the top items in place. A failure
// for one item is logged and leaves that item with its source summary.
func (p *Pipeline) backfillSummaries(ctx context.Context, top []domain.ContentItem, result *Result) {
	if p.summarizer == nil {
		return
	}

	var pending []int
	for i := range top {
		if top[i].SummaryTarget == "" {
			pending = append(pending, i)
		}
	}

	if len(pending) == 0 {
		return
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		failed    atomic.Int64
		tasks     = make(chan int)
	)

	for range min(summaryMaxParallelism, len(pending)) {
		wg.Go(func() {
			for i := range tasks {
				if err := p.summarize(ctx, &top[i]); err != nil {
					failed.Add(1)
					continue
				}

				succeeded.Add(1)
			}
		})
	}

	for _, i := range pending {
		tasks <- i
	}

	close(tasks)
	wg.Wait()

	result.Summarized = int(succeeded.Load())
	result.SummaryFailed = int(failed.Load())
}

func (p *Pipeline) summarize(ctx context.Context, item *domain.ContentItem) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.SummaryTimeout)
	defer cancel()

	summary, err := p.summarizer.Summarize(ctx, summarizer.Input{
		Title:     item.Title,
		Text:      item.Summary,
		SourceURL: item.URL,
		Language:  p.opts.TargetLang,
	})
	metrics.RecordSummary(err)

	if err != nil {
		p.log.ErrorContext(ctx, "Failed to summarize item",
			"error", err,
			"itemID", item.ID,
			"url", item.URL,
			"fallback", true)

		return err
	}

	item.SummaryTarget = summary

	if err = p.store.UpdateSummaryTarget(ctx, item.ID, summary); err != nil {
		p.log.ErrorContext(ctx, "Failed to store summary",
			"error", err,
			"itemID", item.ID)
	}

	return nil
}

// dispatch sends one digest per subscriber. Sends are independent and only
// their success count matters to the run.
func (p *Pipeline) dispatch(
	ctx context.Context,
	top []domain.ContentItem,
	subs []domain.Subscriber,
	result *Result,
) {
	entries := map[domain.Language][]mailer.DigestEntry{
		domain.LanguageZH: digestEntries(top, domain.LanguageZH, p.opts.TargetLang),
		domain.LanguageEN: digestEntries(top, domain.LanguageEN, p.opts.TargetLang),
	}

	var (
		wg     sync.WaitGroup
		mailed atomic.Int64
		failed atomic.Int64
		semCh  = make(chan struct{}, dispatchMaxParallelism)
	)

	for _, sub := range subs {
		lang := sub.Lang
		if !lang.Valid() {
			lang = domain.LanguageEN
		}

		semCh <- struct{}{}

		wg.Go(func() {
			defer func() { <-semCh }()

			if err := p.send(ctx, sub.Email, lang, entries[lang]); err != nil {
				failed.Add(1)
				return
			}

			mailed.Add(1)
		})
	}

	wg.Wait()

	result.Mailed = int(mailed.Load())
	result.MailFailed = int(failed.Load())
}

func (p *Pipeline) send(
	ctx context.Context,
	email string,
	lang domain.Language,
	entries []mailer.DigestEntry,
) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.SendTimeout)
	defer cancel()

	unsubscribeURL := mailer.UnsubscribeURL(p.opts.SiteURL, p.opts.UnsubscribeSecret, email)

	msg, err := mailer.RenderDigest(lang, email, entries, unsubscribeURL)
	if err == nil {
		err = p.sender.Send(ctx, msg)
	}

	metrics.RecordMail(string(lang), err)

	if err != nil {
		p.log.ErrorContext(ctx, "Failed to send digest",
			"error", err,
			"email", email,
			"lang", lang)
	}

	return err
}

func digestEntries(top []domain.ContentItem, lang domain.Language, target domain.Language) []mailer.DigestEntry {
	entries := make([]mailer.DigestEntry, 0, len(top))
	for _, it := range top {
		entries = append(entries, mailer.DigestEntry{
			Title:   it.Title,
			URL:     it.URL,
			Summary: it.BestSummary(lang, target),
		})
	}

	return entries
}
