// Package ask answers free-form questions from stored items and fresh online
// sources.
package ask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"lyrahub/internal/domain"
	"lyrahub/internal/feed"
	"lyrahub/internal/metrics"
	"lyrahub/internal/summarizer"
)

type Mode string

const (
	ModeQuick    Mode = "quick"
	ModeResearch Mode = "research"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeResearch, nil
	case ModeQuick, ModeResearch:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, s)
	}
}

// ErrUnavailable is returned when no language model is configured.
var ErrUnavailable = errors.New("question answering is not configured")

const (
	maxQuestionChars = 2000

	quickStoredLimit    = 3
	quickNewsHours      = 12
	quickNewsLimit      = 3
	quickCandidateLimit = 6
	quickReferences     = 3

	researchStoredLimit    = 6
	researchRepoLimit      = 3
	researchFreshFeeds     = 3
	researchFreshPer       = 2
	researchFreshLimit     = 4
	researchSubQueries     = 3
	researchNewsHours      = 48
	researchNewsLimit      = 4
	researchArxivDays      = 14
	researchArxivLimit     = 3
	researchCandidateLimit = 16
	researchReferences     = 6

	recencyHorizon = 48 * time.Hour
)

type Store interface {
	SearchItems(ctx context.Context, text string, limit int) ([]domain.ContentItem, error)
}

type Online interface {
	SearchNews(ctx context.Context, query string, hours int, limit int) ([]domain.ContentItem, error)
	SearchArxiv(ctx context.Context, query string, days int, limit int) ([]domain.ContentItem, error)
}

type RepoSearcher interface {
	SearchRepositories(ctx context.Context, query string) ([]domain.ContentItem, error)
}

type SourceFetcher interface {
	FetchAll(ctx context.Context, sources []domain.Source) []feed.SourceResult
}

type Answer struct {
	Text       string               `json:"text"`
	References []domain.ContentItem `json:"references"`
}

type Options struct {
	Store     Store
	Online    Online
	Repos     RepoSearcher
	Fetcher   SourceFetcher
	Sources   []domain.Source
	Completer summarizer.Completer
	// Keywords boost candidates mentioning them when ranking.
	Keywords []string
}

type Service struct {
	store     Store
	online    Online
	repos     RepoSearcher
	fetcher   SourceFetcher
	fresh     []domain.Source
	completer summarizer.Completer
	keywords  []string
	now       func() time.Time
	log       *slog.Logger
}

func NewService(opts Options, log *slog.Logger) *Service {
	var fresh []domain.Source
	for _, src := range opts.Sources {
		if src.Kind == domain.SourceKindNews && len(fresh) < researchFreshFeeds {
			fresh = append(fresh, src)
		}
	}

	keywords := make([]string, 0, len(opts.Keywords))
	for _, k := range opts.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	return &Service{
		store:     opts.Store,
		online:    opts.Online,
		repos:     opts.Repos,
		fetcher:   opts.Fetcher,
		fresh:     fresh,
		completer: opts.Completer,
		keywords:  keywords,
		now:       time.Now,
		log:       log,
	}
}

// Ask retrieves candidates for question, ranks them and has the model answer
// with the best ones as numbered references. Retrieval failures only shrink
// the candidate list.
func (s *Service) Ask(ctx context.Context, question string, mode Mode) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: question required", domain.ErrInvalidInput)
	}

	if len([]rune(question)) > maxQuestionChars {
		return Answer{}, fmt.Errorf("%w: question too long", domain.ErrInvalidInput)
	}

	if s.completer == nil {
		return Answer{}, ErrUnavailable
	}

	metrics.AskRequestsTotal.WithLabelValues(string(mode)).Inc()

	var (
		refs         []domain.ContentItem
		instructions string
	)

	switch mode {
	case ModeQuick:
		refs = s.quickCandidates(ctx, question)
		instructions = quickInstructions
	default:
		refs = s.researchCandidates(ctx, question)
		instructions = researchInstructions
	}

	text, err := s.completer.Complete(ctx, instructions, answerPrompt(question, refs))
	if err != nil {
		return Answer{}, fmt.Errorf("complete answer: %w", err)
	}

	if refs == nil {
		refs = []domain.ContentItem{}
	}

	return Answer{Text: text, References: refs}, nil
}

func (s *Service) quickCandidates(ctx context.Context, question string) []domain.ContentItem {
	var stored, news []domain.ContentItem

	var wg sync.WaitGroup

	wg.Go(func() { stored = s.searchStored(ctx, question, quickStoredLimit) })
	wg.Go(func() { news = s.searchNews(ctx, question, quickNewsHours, quickNewsLimit) })

	wg.Wait()

	candidates := dedup(slices.Concat(news, stored), quickCandidateLimit)
	lowered := strings.ToLower(question)
	now := s.now()

	score := func(it domain.ContentItem) float64 {
		var v float64
		if strings.Contains(strings.ToLower(it.Title), lowered) {
			v += 2
		}

		if it.PublishedAt != nil {
			v += max(0, 2-now.Sub(*it.PublishedAt).Hours()/24)
		}

		return v
	}

	return rank(candidates, score, quickReferences)
}

func (s *Service) researchCandidates(ctx context.Context, question string) []domain.ContentItem {
	var (
		wg                         sync.WaitGroup
		stored, repos, fresh, deep []domain.ContentItem
	)

	wg.Go(func() { stored = s.searchStored(ctx, question, researchStoredLimit) })
	wg.Go(func() { repos = s.searchRepos(ctx, question) })
	wg.Go(func() { fresh = s.freshItems(ctx) })
	wg.Go(func() { deep = s.searchSubQueries(ctx, question) })

	wg.Wait()

	candidates := dedup(slices.Concat(deep, fresh, stored, repos), researchCandidateLimit)
	lowered := strings.ToLower(question)
	now := s.now()

	score := func(it domain.ContentItem) float64 {
		recency := 0.0
		if it.PublishedAt != nil {
			age := min(max(now.Sub(*it.PublishedAt), 0), recencyHorizon)
			recency = float64(recencyHorizon-age) / float64(recencyHorizon)
		}

		return recency*1.5 +
			s.boost(it.Title, lowered)*0.8 +
			s.boost(it.Summary, lowered)*0.6 +
			sourceWeight(it)
	}

	return rank(candidates, score, researchReferences)
}

func (s *Service) searchStored(ctx context.Context, question string, limit int) []domain.ContentItem {
	if s.store == nil {
		return nil
	}

	items, err := s.store.SearchItems(ctx, question, limit)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to search stored items",
			"error", err)

		return nil
	}

	return items
}

func (s *Service) searchNews(ctx context.Context, query string, hours int, limit int) []domain.ContentItem {
	if s.online == nil {
		return nil
	}

	items, err := s.online.SearchNews(ctx, query, hours, limit)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to search news",
			"error", err,
			"query", query)

		return nil
	}

	return items
}

func (s *Service) searchArxiv(ctx context.Context, query string) []domain.ContentItem {
	if s.online == nil {
		return nil
	}

	items, err := s.online.SearchArxiv(ctx, query, researchArxivDays, researchArxivLimit)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to search arxiv",
			"error", err,
			"query", query)

		return nil
	}

	return items
}

func (s *Service) searchRepos(ctx context.Context, question string) []domain.ContentItem {
	if s.repos == nil {
		return nil
	}

	items, err := s.repos.SearchRepositories(ctx, question+" OR autonomous driving OR ADAS")
	if err != nil {
		s.log.WarnContext(ctx, "Failed to search repositories",
			"error", err)

		return nil
	}

	if len(items) > researchRepoLimit {
		items = items[:researchRepoLimit]
	}

	return items
}

// freshItems takes the newest entries of the first few news feeds, which may
// not have been ingested yet.
func (s *Service) freshItems(ctx context.Context) []domain.ContentItem {
	if s.fetcher == nil || len(s.fresh) == 0 {
		return nil
	}

	var items []domain.ContentItem

	for _, res := range s.fetcher.FetchAll(ctx, s.fresh) {
		if res.Err != nil {
			continue
		}

		items = append(items, res.Items[:min(researchFreshPer, len(res.Items))]...)
	}

	return items[:min(researchFreshLimit, len(items))]
}

// searchSubQueries splits the question into a few search phrases and runs
// news and paper searches for each of them concurrently.
func (s *Service) searchSubQueries(ctx context.Context, question string) []domain.ContentItem {
	queries := s.subQueries(ctx, question)

	results := make([][]domain.ContentItem, len(queries))

	var wg sync.WaitGroup

	for i, q := range queries {
		wg.Go(func() {
			news := s.searchNews(ctx, q, researchNewsHours, researchNewsLimit)
			papers := s.searchArxiv(ctx, q)
			results[i] = slices.Concat(news, papers)
		})
	}

	wg.Wait()

	return slices.Concat(results...)
}

func (s *Service) subQueries(ctx context.Context, question string) []string {
	out, err := s.completer.Complete(ctx, decomposeInstructions, question)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to decompose question",
			"error", err)

		return fallbackSubQueries(question)
	}

	queries := parseSubQueries(out)
	if len(queries) == 0 {
		return fallbackSubQueries(question)
	}

	return queries
}

func parseSubQueries(out string) []string {
	var queries []string

	for line := range strings.Lines(out) {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		line = strings.Trim(line, "\"'` ")

		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}

		queries = append(queries, line)
		if len(queries) == researchSubQueries {
			break
		}
	}

	return queries
}

func fallbackSubQueries(question string) []string {
	q := strings.TrimRight(question, "?？ ")
	if r := []rune(q); len(r) > 50 {
		q = string(r[:50])
	}

	return []string{q, "autonomous driving", "self-driving technology"}
}

func (s *Service) boost(text string, question string) float64 {
	t := strings.ToLower(text)
	if t == "" {
		return 0
	}

	var v float64

	for _, k := range s.keywords {
		if strings.Contains(t, k) {
			v++
		}
	}

	if question != "" && strings.Contains(t, question) {
		v += 2
	}

	return v
}

func sourceWeight(it domain.ContentItem) float64 {
	src := strings.ToLower(it.Source + " " + it.URL)

	switch {
	case strings.Contains(src, "automotivedive"):
		return 1.6
	case strings.Contains(src, "techcrunch"),
		strings.Contains(src, "theverge"),
		strings.Contains(src, "technologyreview"):
		return 1.3
	case strings.Contains(src, "arxiv"):
		return 1.2
	case it.Kind == domain.SourceKindRepo:
		return 0.6
	default:
		return 1.0
	}
}

// rank sorts by descending score, keeping input order for ties, and returns
// at most limit items.
func rank(items []domain.ContentItem, score func(domain.ContentItem) float64, limit int) []domain.ContentItem {
	type scored struct {
		item  domain.ContentItem
		score float64
	}

	all := make([]scored, 0, len(items))
	for _, it := range items {
		all = append(all, scored{item: it, score: score(it)})
	}

	slices.SortStableFunc(all, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})

	out := make([]domain.ContentItem, 0, min(limit, len(all)))
	for _, sc := range all[:min(limit, len(all))] {
		out = append(out, sc.item)
	}

	return out
}

func dedup(items []domain.ContentItem, limit int) []domain.ContentItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.ContentItem, 0, min(limit, len(items)))

	for _, it := range items {
		if len(out) == limit {
			break
		}

		key := feed.CanonicalURL(it.URL)
		if key == "" {
			continue
		}

		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, it)
	}

	return out
}
