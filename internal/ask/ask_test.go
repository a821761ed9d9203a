package ask

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"lyrahub/internal/domain"
	"lyrahub/internal/feed"
)

var testNow = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func at(age time.Duration) *time.Time {
	t := testNow.Add(-age)
	return &t
}

type stubStore struct {
	items []domain.ContentItem
	err   error
}

func (s *stubStore) SearchItems(_ context.Context, _ string, limit int) ([]domain.ContentItem, error) {
	if s.err != nil {
		return nil, s.err
	}

	return s.items[:min(limit, len(s.items))], nil
}

type stubOnline struct {
	mu      sync.Mutex
	news    map[string][]domain.ContentItem
	papers  []domain.ContentItem
	queries []string
	newsErr error
}

func (o *stubOnline) SearchNews(_ context.Context, query string, _ int, _ int) ([]domain.ContentItem, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.queries = append(o.queries, query)

	if o.newsErr != nil {
		return nil, o.newsErr
	}

	return o.news[query], nil
}

func (o *stubOnline) SearchArxiv(context.Context, string, int, int) ([]domain.ContentItem, error) {
	return o.papers, nil
}

type stubCompleter struct {
	mu           sync.Mutex
	decomposed   string
	decomposeErr error
	answerErr    error
	prompts      []string
}

func (c *stubCompleter) Complete(_ context.Context, instructions string, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if instructions == decomposeInstructions {
		return c.decomposed, c.decomposeErr
	}

	c.prompts = append(c.prompts, prompt)

	if c.answerErr != nil {
		return "", c.answerErr
	}

	return "answer", nil
}

type stubRepos struct{}

func (stubRepos) SearchRepositories(context.Context, string) ([]domain.ContentItem, error) {
	return []domain.ContentItem{
		{Title: "org/planner", URL: "https://github.com/org/planner", Source: "github", Kind: domain.SourceKindRepo},
	}, nil
}

type stubFetcher struct {
	requested []domain.Source
}

func (f *stubFetcher) FetchAll(_ context.Context, sources []domain.Source) []feed.SourceResult {
	f.requested = sources

	return []feed.SourceResult{{
		Source: sources[0],
		Items: []domain.ContentItem{
			{Title: "Fresh one", URL: "https://fresh.example.com/1", Source: "fresh", PublishedAt: at(time.Hour)},
			{Title: "Fresh two", URL: "https://fresh.example.com/2", Source: "fresh", PublishedAt: at(time.Hour)},
			{Title: "Fresh three", URL: "https://fresh.example.com/3", Source: "fresh", PublishedAt: at(time.Hour)},
		},
	}}
}

func newTestService(opts Options) *Service {
	s := NewService(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return testNow }

	return s
}

func titles(items []domain.ContentItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}

	return out
}

func TestAskValidation(t *testing.T) {
	s := newTestService(Options{Completer: &stubCompleter{}})

	if _, err := s.Ask(context.Background(), "   ", ModeQuick); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	long := strings.Repeat("问", maxQuestionChars+1)
	if _, err := s.Ask(context.Background(), long, ModeQuick); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for long question, got %v", err)
	}

	noLLM := newTestService(Options{})
	if _, err := noLLM.Ask(context.Background(), "what is BEV?", ModeQuick); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeResearch {
		t.Fatalf("expected research default, got %q %v", m, err)
	}

	if m, err := ParseMode("Quick"); err != nil || m != ModeQuick {
		t.Fatalf("expected quick, got %q %v", m, err)
	}

	if _, err := ParseMode("deep"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAskQuickRanksAndCites(t *testing.T) {
	store := &stubStore{items: []domain.ContentItem{
		{Title: "Old stored BEV note", URL: "https://site.example.com/a", PublishedAt: at(10 * 24 * time.Hour)},
		{Title: "what is bev? explained", URL: "https://site.example.com/b", PublishedAt: at(10 * 24 * time.Hour)},
	}}
	online := &stubOnline{news: map[string][]domain.ContentItem{
		"what is bev?": {
			{Title: "BEV news today", URL: "https://news.example.com/1", PublishedAt: at(time.Hour)},
			{Title: "Duplicate of stored", URL: "https://SITE.example.com/a#x"},
		},
	}}
	completer := &stubCompleter{}

	s := newTestService(Options{Store: store, Online: online, Completer: completer})

	ans, err := s.Ask(context.Background(), "what is bev?", ModeQuick)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if ans.Text != "answer" {
		t.Fatalf("unexpected text %q", ans.Text)
	}

	got := titles(ans.References)
	want := []string{"what is bev? explained", "BEV news today", "Duplicate of stored"}

	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if len(completer.prompts) != 1 || !strings.Contains(completer.prompts[0], "1. [what is bev? explained](https://site.example.com/b)") {
		t.Fatalf("expected numbered references in prompt, got %v", completer.prompts)
	}
}

func TestAskResearchUsesSubQueriesAndAllSources(t *testing.T) {
	online := &stubOnline{
		news: map[string][]domain.ContentItem{
			"BEV transformer": {
				{Title: "BEV transformer for autonomous perception", URL: "https://www.theverge.com/bev", Source: "google-news", PublishedAt: at(time.Hour)},
			},
			"end-to-end planning": {
				{Title: "Stale planning story", URL: "https://blog.example.com/plan", Source: "google-news", PublishedAt: at(30 * 24 * time.Hour)},
			},
		},
		papers: []domain.ContentItem{
			{Title: "A paper on planning", URL: "http://arxiv.org/abs/2501.00001", Source: "arxiv", Kind: domain.SourceKindPaper, PublishedAt: at(2 * time.Hour)},
		},
	}
	completer := &stubCompleter{decomposed: "1. BEV transformer\n- end-to-end planning\n\n"}
	fetcher := &stubFetcher{}

	s := newTestService(Options{
		Store:     &stubStore{},
		Online:    online,
		Repos:     stubRepos{},
		Fetcher:   fetcher,
		Completer: completer,
		Keywords:  []string{"autonomous", "bev"},
		Sources: []domain.Source{
			{Name: "a", Kind: domain.SourceKindNews},
			{Name: "paper", Kind: domain.SourceKindPaper},
			{Name: "b", Kind: domain.SourceKindNews},
			{Name: "c", Kind: domain.SourceKindNews},
			{Name: "d", Kind: domain.SourceKindNews},
		},
	})

	ans, err := s.Ask(context.Background(), "How does BEV perception work?", ModeResearch)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if len(fetcher.requested) != researchFreshFeeds {
		t.Fatalf("expected %d fresh feeds, got %d", researchFreshFeeds, len(fetcher.requested))
	}

	if !slices.Contains(online.queries, "BEV transformer") || !slices.Contains(online.queries, "end-to-end planning") {
		t.Fatalf("expected sub-queries to be searched, got %v", online.queries)
	}

	got := titles(ans.References)
	if len(got) != researchReferences {
		t.Fatalf("expected %d references, got %v", researchReferences, got)
	}

	if got[0] != "BEV transformer for autonomous perception" {
		t.Fatalf("expected on-topic recent news first, got %v", got)
	}

	if slices.Contains(got, "org/planner") && slices.Index(got, "org/planner") < slices.Index(got, "A paper on planning") {
		t.Fatalf("expected repositories ranked below papers, got %v", got)
	}
}

func TestAskResearchFallsBackWhenDecompositionFails(t *testing.T) {
	online := &stubOnline{}
	completer := &stubCompleter{decomposeErr: errors.New("rate limited")}

	s := newTestService(Options{Online: online, Completer: completer})

	if _, err := s.Ask(context.Background(), "什么是智能座舱？", ModeResearch); err != nil {
		t.Fatalf("ask: %v", err)
	}

	for _, want := range []string{"什么是智能座舱", "autonomous driving", "self-driving technology"} {
		if !slices.Contains(online.queries, want) {
			t.Fatalf("expected fallback query %q, got %v", want, online.queries)
		}
	}
}

func TestAskRetrievalFailuresDoNotFail(t *testing.T) {
	s := newTestService(Options{
		Store:     &stubStore{err: errors.New("db locked")},
		Online:    &stubOnline{newsErr: errors.New("503")},
		Completer: &stubCompleter{},
	})

	ans, err := s.Ask(context.Background(), "lidar", ModeQuick)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if ans.References == nil || len(ans.References) != 0 {
		t.Fatalf("expected empty references, got %v", ans.References)
	}
}

func TestAskCompletionFailure(t *testing.T) {
	s := newTestService(Options{Completer: &stubCompleter{answerErr: errors.New("boom")}})

	if _, err := s.Ask(context.Background(), "lidar", ModeQuick); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseSubQueries(t *testing.T) {
	got := parseSubQueries("Queries:\n1. \"BEV fusion\"\n2) occupancy networks\n* world models\n- extra\n")
	want := []string{"BEV fusion", "occupancy networks", "world models"}

	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
