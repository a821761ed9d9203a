package ask

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lyrahub/internal/cache"
	"lyrahub/internal/domain"
	"lyrahub/internal/feed"
	"lyrahub/internal/metrics"

	"github.com/mmcdole/gofeed"
)

const (
	googleNewsURL = "https://news.google.com/rss/search"
	arxivURL      = "https://export.arxiv.org/api/query"

	newsCacheTTL          = 15 * time.Minute
	arxivCacheTTL         = 30 * time.Minute
	onlineCacheMaxEntries = 256
	onlineFetchTimeout    = 10 * time.Second

	arxivDateLayout = "200601021504"
)

var (
	googleNewsSource = domain.Source{Name: "google-news", Kind: domain.SourceKindNews, Lang: domain.LanguageEN}
	arxivSource      = domain.Source{Name: "arxiv", Kind: domain.SourceKindPaper, Lang: domain.LanguageEN}
)

// OnlineSearcher queries Google News and arXiv and keeps results for a short
// while so repeated questions do not hit the upstreams again.
type OnlineSearcher struct {
	libParser  *gofeed.Parser
	normalizer *feed.Normalizer
	cache      *cache.LRU[[]domain.ContentItem]

	newsURL  string
	arxivURL string

	now func() time.Time
	log *slog.Logger
}

func NewOnlineSearcher(httpClient *http.Client, log *slog.Logger) *OnlineSearcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: onlineFetchTimeout}
	}

	libParser := gofeed.NewParser()
	libParser.Client = httpClient

	return &OnlineSearcher{
		libParser:  libParser,
		normalizer: feed.NewNormalizer(nil),
		cache:      cache.New[[]domain.ContentItem](onlineCacheMaxEntries),
		newsURL:    googleNewsURL,
		arxivURL:   arxivURL,
		now:        time.Now,
		log:        log,
	}
}

// SearchNews returns up to limit Google News results from the last hours.
func (s *OnlineSearcher) SearchNews(ctx context.Context, query string, hours int, limit int) ([]domain.ContentItem, error) {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", fmt.Sprintf("%s when:%dh", query, hours))
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	key := fmt.Sprintf("gnews:%d:%d:%s", hours, limit, strings.ToLower(query))

	return s.search(ctx, key, s.newsURL+"?"+params.Encode(), googleNewsSource, limit, newsCacheTTL)
}

// SearchArxiv returns up to limit papers submitted in the last days, newest
// first.
func (s *OnlineSearcher) SearchArxiv(ctx context.Context, query string, days int, limit int) ([]domain.ContentItem, error) {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil, nil
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)

	params := url.Values{}
	params.Set("search_query", fmt.Sprintf("all:%s AND submittedDate:[%s TO %s]",
		query, start.Format(arxivDateLayout), end.Format(arxivDateLayout)))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	params.Set("max_results", strconv.Itoa(limit))

	key := fmt.Sprintf("arxiv:%d:%d:%s", days, limit, strings.ToLower(query))

	return s.search(ctx, key, s.arxivURL+"?"+params.Encode(), arxivSource, limit, arxivCacheTTL)
}

func (s *OnlineSearcher) search(
	ctx context.Context,
	key string,
	feedURL string,
	src domain.Source,
	limit int,
	ttl time.Duration,
) ([]domain.ContentItem, error) {
	now := s.now()

	if cached, ok := s.cache.Get(key, now); ok {
		metrics.RecordSearchCache(true)
		s.log.DebugContext(ctx, "Online search cache hit",
			"source", src.Name,
			"key", key)

		return cached, nil
	}

	metrics.RecordSearchCache(false)

	ctx, cancel := context.WithTimeout(ctx, onlineFetchTimeout)
	defer cancel()

	parsed, err := s.libParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", src.Name, err)
	}

	items := make([]domain.ContentItem, 0, min(limit, len(parsed.Items)))
	for _, entry := range parsed.Items {
		if len(items) == limit {
			break
		}

		item, ok := s.normalizer.Normalize(entry, src)
		if !ok {
			continue
		}

		items = append(items, item)
	}

	s.cache.Set(key, items, now.Add(ttl), now)

	return items, nil
}
