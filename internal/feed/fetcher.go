package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"lyrahub/internal/domain"

	"github.com/mmcdole/gofeed"
)

const (
	userAgent = "Mozilla/5.0 (compatible; lyrahub/1.0; +https://github.com/lyrahub)"

	defaultFetchTimeout             = 15 * time.Second
	fetchMaxConcurrencyGrowthFactor = 4
)

// SourceResult is the outcome of fetching one source. Err is set when the
// source could not be fetched at all; Items holds what normalised cleanly.
type SourceResult struct {
	Source  domain.Source
	Items   []domain.ContentItem
	Skipped int
	Err     error
}

type Fetcher struct {
	libParser   *gofeed.Parser
	github      *GitHubClient
	normalizer  *Normalizer
	timeout     time.Duration
	// concurrency caps parallel fetches; zero derives it from the CPU count.
	concurrency int
	log         *slog.Logger
}

type FetcherOptions struct {
	HTTPClient  *http.Client
	GitHub      *GitHubClient
	Keywords    []string
	Timeout     time.Duration
	Concurrency int
}

func NewFetcher(opts FetcherOptions, log *slog.Logger) *Fetcher {
	libParser := gofeed.NewParser()
	libParser.UserAgent = userAgent

	if opts.HTTPClient != nil {
		libParser.Client = opts.HTTPClient
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	return &Fetcher{
		libParser:   libParser,
		github:      opts.GitHub,
		normalizer:  NewNormalizer(opts.Keywords),
		timeout:     timeout,
		concurrency: opts.Concurrency,
		log:         log,
	}
}

// FetchAll fetches every source concurrently. A failing source is reported in
// its own result and never affects the others. Results keep the input order.
func (f *Fetcher) FetchAll(ctx context.Context, sources []domain.Source) []SourceResult {
	results := make([]SourceResult, len(sources))
	if len(sources) == 0 {
		return results
	}

	concurrency := f.concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU() * fetchMaxConcurrencyGrowthFactor
	}
	concurrency = min(concurrency, len(sources))
	semCh := make(chan struct{}, concurrency)

	var wg sync.WaitGroup

	for i, src := range sources {
		semCh <- struct{}{}

		wg.Go(func() {
			defer func() { <-semCh }()

			results[i] = f.fetchSource(ctx, src)
		})
	}

	wg.Wait()

	return results
}

func (f *Fetcher) fetchSource(ctx context.Context, src domain.Source) SourceResult {
	result := SourceResult{Source: src}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	switch src.Kind {
	case domain.SourceKindRepo:
		if f.github == nil {
			result.Err = errors.New("repository search is not configured")
			return result
		}

		items, err := f.github.SearchRepositories(ctx, src.Query)
		if err != nil {
			result.Err = fmt.Errorf("search repositories (query = %s): %w", src.Query, err)
			return result
		}

		for _, it := range items {
			it.Lang = src.Lang
			result.Items = append(result.Items, it)
		}

	default:
		feedURL := strings.TrimSpace(src.URL)

		parsed, err := f.libParser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			result.Err = fmt.Errorf("parse feed (URL = %s): %w", feedURL, err)
			return result
		}

		for _, item := range parsed.Items {
			normalized, ok := f.normalizer.Normalize(item, src)
			if !ok {
				result.Skipped++
				continue
			}

			result.Items = append(result.Items, normalized)
		}
	}

	return result
}

// Errors joins the per-source failures of a fetch run.
func Errors(results []SourceResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}

	return errors.Join(errs...)
}
