package ask

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"lyrahub/internal/domain"
)

const newsRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>news</title>
<item><title>BEV perception ships</title><link>https://news.example.com/bev</link>
<description>&lt;a href="https://news.example.com/bev"&gt;BEV perception ships&lt;/a&gt; Reuters</description>
<pubDate>Mon, 02 Jun 2025 06:00:00 GMT</pubDate></item>
<item><title>Second story</title><link>https://news.example.com/second</link></item>
<item><title>Third story</title><link>https://news.example.com/third</link></item>
</channel></rss>`

const arxivAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>arXiv Query</title>
<entry>
<id>http://arxiv.org/abs/2506.00001v1</id>
<published>2025-06-01T17:00:00Z</published>
<title>Occupancy Networks for Planning</title>
<summary>We study occupancy networks.</summary>
<link href="http://arxiv.org/abs/2506.00001v1" rel="alternate" type="text/html"/>
</entry>
</feed>`

func newTestOnlineSearcher(t *testing.T) (*OnlineSearcher, *atomic.Int64, chan string) {
	t.Helper()

	var hits atomic.Int64
	queries := make(chan string, 8)

	mux := http.NewServeMux()
	mux.HandleFunc("/rss/search", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		queries <- r.URL.RawQuery
		_, _ = io.WriteString(w, newsRSS)
	})
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		queries <- r.URL.RawQuery
		_, _ = io.WriteString(w, arxivAtom)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s := NewOnlineSearcher(srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.newsURL = srv.URL + "/rss/search"
	s.arxivURL = srv.URL + "/api/query"
	s.now = func() time.Time { return testNow }

	return s, &hits, queries
}

func TestSearchNewsCachesResults(t *testing.T) {
	s, hits, queries := newTestOnlineSearcher(t)
	ctx := context.Background()

	items, err := s.SearchNews(ctx, "  BEV   perception ", 48, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected limit of 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "BEV perception ships" || first.Source != "google-news" || first.Kind != domain.SourceKindNews {
		t.Fatalf("unexpected item %+v", first)
	}

	if first.PublishedAt == nil || !first.PublishedAt.Equal(time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published time %v", first.PublishedAt)
	}

	if q := <-queries; !strings.Contains(q, "q=BEV+perception+when%3A48h") || !strings.Contains(q, "ceid=US%3Aen") {
		t.Fatalf("unexpected query %q", q)
	}

	if _, err = s.SearchNews(ctx, "bev perception", 48, 2); err != nil {
		t.Fatalf("search again: %v", err)
	}

	if hits.Load() != 1 {
		t.Fatalf("expected cached second lookup, got %d upstream hits", hits.Load())
	}

	s.now = func() time.Time { return testNow.Add(newsCacheTTL + time.Second) }

	if _, err = s.SearchNews(ctx, "bev perception", 48, 2); err != nil {
		t.Fatalf("search after expiry: %v", err)
	}

	if hits.Load() != 2 {
		t.Fatalf("expected refetch after expiry, got %d upstream hits", hits.Load())
	}
}

func TestSearchArxiv(t *testing.T) {
	s, _, queries := newTestOnlineSearcher(t)

	items, err := s.SearchArxiv(context.Background(), "occupancy networks", 14, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected one paper, got %d", len(items))
	}

	if items[0].URL != "http://arxiv.org/abs/2506.00001v1" || items[0].Kind != domain.SourceKindPaper {
		t.Fatalf("unexpected paper %+v", items[0])
	}

	q := <-queries
	window := fmt.Sprintf("submittedDate%%3A%%5B%s+TO+%s%%5D",
		testNow.AddDate(0, 0, -14).Format(arxivDateLayout), testNow.Format(arxivDateLayout))

	if !strings.Contains(q, "all%3Aoccupancy+networks") || !strings.Contains(q, window) || !strings.Contains(q, "max_results=3") {
		t.Fatalf("unexpected query %q", q)
	}
}

func TestSearchBlankQuery(t *testing.T) {
	s, hits, _ := newTestOnlineSearcher(t)

	items, err := s.SearchNews(context.Background(), "   ", 12, 3)
	if err != nil || items != nil || hits.Load() != 0 {
		t.Fatalf("expected no lookup for blank query, got %v %v", items, err)
	}
}

func TestSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewOnlineSearcher(srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.newsURL = srv.URL

	if _, err := s.SearchNews(context.Background(), "lidar", 12, 3); err == nil {
		t.Fatalf("expected error on upstream failure")
	}
}
