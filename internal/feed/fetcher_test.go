package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lyrahub/internal/domain"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Test feed</title>
  <item>
    <title>Autonomous driving update</title>
    <link>https://example.com/a</link>
    <description>&lt;p&gt;Lidar news&lt;/p&gt;</description>
    <pubDate>Mon, 03 Mar 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Cooking tips</title>
    <link>https://example.com/b</link>
  </item>
</channel>
</rss>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = io.WriteString(w, testRSS)
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	fetcher := NewFetcher(FetcherOptions{
		HTTPClient: srv.Client(),
		Keywords:   []string{"autonomous"},
		Timeout:    200 * time.Millisecond,
	}, discardLogger())

	sources := []domain.Source{
		{Name: "broken", URL: srv.URL + "/broken", Kind: domain.SourceKindNews},
		{Name: "ok", URL: srv.URL + "/ok", Kind: domain.SourceKindNews, Lang: domain.LanguageEN},
		{Name: "slow", URL: srv.URL + "/slow", Kind: domain.SourceKindNews},
		{Name: "repos", Kind: domain.SourceKindRepo, Query: "adas"},
	}

	results := fetcher.FetchAll(context.Background(), sources)
	if len(results) != len(sources) {
		t.Fatalf("expected %d results, got %d", len(sources), len(results))
	}

	if results[0].Err == nil {
		t.Fatalf("expected broken source to fail")
	}

	if results[1].Err != nil {
		t.Fatalf("unexpected error for ok source: %v", results[1].Err)
	}

	if len(results[1].Items) != 1 || results[1].Skipped != 1 {
		t.Fatalf("expected 1 kept and 1 skipped item, got %d/%d", len(results[1].Items), results[1].Skipped)
	}

	item := results[1].Items[0]
	if item.Source != "ok" || item.Summary != "Lidar news" || item.PublishedAt == nil {
		t.Fatalf("unexpected item %+v", item)
	}

	if results[2].Err == nil {
		t.Fatalf("expected slow source to time out")
	}

	if results[3].Err == nil {
		t.Fatalf("expected repo source without client to fail")
	}

	if err := Errors(results); err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected joined errors mentioning broken source, got %v", err)
	}
}

func TestFetchAllEmpty(t *testing.T) {
	fetcher := NewFetcher(FetcherOptions{}, discardLogger())

	if got := fetcher.FetchAll(context.Background(), nil); len(got) != 0 {
		t.Fatalf("expected no results, got %d", len(got))
	}
}

func TestGitHubSearchRepositories(t *testing.T) {
	var gotAuth, gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("q")

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[
			{"full_name":"acme/drive","html_url":"https://github.com/acme/drive","description":" planner "},
			{"full_name":"acme/empty","html_url":"","description":null},
			{"full_name":"acme/nodesc","html_url":"https://github.com/acme/nodesc","description":null}
		]}`)
	}))
	defer srv.Close()

	client := NewGitHubClient(srv.Client(), "token", discardLogger())
	client.baseURL = srv.URL

	fetcher := NewFetcher(FetcherOptions{GitHub: client}, discardLogger())

	results := fetcher.FetchAll(context.Background(), []domain.Source{
		{Name: "github", Kind: domain.SourceKindRepo, Query: "adas", Lang: domain.LanguageEN},
	})

	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}

	if gotAuth != "Bearer token" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}

	if !strings.HasPrefix(gotQuery, "adas in:name,description,readme") {
		t.Fatalf("unexpected query %q", gotQuery)
	}

	items := results[0].Items
	if len(items) != 2 {
		t.Fatalf("expected 2 repositories, got %d", len(items))
	}

	if items[0].Title != "acme/drive" || items[0].Summary != "planner" || items[0].Kind != domain.SourceKindRepo {
		t.Fatalf("unexpected item %+v", items[0])
	}

	if items[0].PublishedAt != nil || items[0].Lang != domain.LanguageEN || items[0].Source != "github" {
		t.Fatalf("unexpected item metadata %+v", items[0])
	}
}

func TestGitHubSearchReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewGitHubClient(srv.Client(), "", discardLogger())
	client.baseURL = srv.URL

	if _, err := client.SearchRepositories(context.Background(), "adas"); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}
