package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"lyrahub/internal/domain"

	"github.com/goccy/go-json"
)

const (
	gitHubAPIURL        = "https://api.github.com"
	gitHubSource        = "github"
	gitHubDefaultLimit  = 5
	gitHubPushedSince   = "2024-01-01"
	gitHubResponseLimit = 4 << 20
)

type gitHubSearchResponse struct {
	Items []gitHubRepo `json:"items"`
}

type gitHubRepo struct {
	FullName    string  `json:"full_name"`
	HTMLURL     string  `json:"html_url"`
	Description *string `json:"description"`
}

// GitHubClient searches public repositories. Results become undated items of
// the repository kind.
type GitHubClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limit      int
	log        *slog.Logger
}

func NewGitHubClient(httpClient *http.Client, token string, log *slog.Logger) *GitHubClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFetchTimeout}
	}

	return &GitHubClient{
		httpClient: httpClient,
		baseURL:    gitHubAPIURL,
		token:      strings.TrimSpace(token),
		limit:      gitHubDefaultLimit,
		log:        log,
	}
}

func (c *GitHubClient) SearchRepositories(ctx context.Context, query string) ([]domain.ContentItem, error) {
	params := url.Values{}
	params.Set("q", strings.TrimSpace(query)+" in:name,description,readme sort:stars pushed:>"+gitHubPushedSince)
	params.Set("per_page", strconv.Itoa(c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search/repositories?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"operation", "SearchRepositories",
				"query", query)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var body gitHubSearchResponse
	if err = json.NewDecoder(io.LimitReader(resp.Body, gitHubResponseLimit)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	items := make([]domain.ContentItem, 0, len(body.Items))
	for _, repo := range body.Items {
		link := strings.TrimSpace(repo.HTMLURL)
		if link == "" || repo.FullName == "" {
			continue
		}

		var description string
		if repo.Description != nil {
			description = strings.TrimSpace(*repo.Description)
		}

		items = append(items, domain.ContentItem{
			ID:      ItemID(link),
			Title:   repo.FullName,
			URL:     link,
			Source:  gitHubSource,
			Kind:    domain.SourceKindRepo,
			Summary: description,
		})
	}

	return items, nil
}
