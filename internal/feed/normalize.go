package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"lyrahub/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"mvdan.cc/xurls/v2"
)

const summaryMaxChars = 1200

var (
	httpURLRe = xurls.Strict()

	// Entries mentioning any of these pass even when no configured keyword
	// matches.
	coreTopicRe = regexp.MustCompile(`(?i)autonomous|自动驾驶|adas|smart cockpit|智能座舱|车载大模型`)
)

type Normalizer struct {
	keywords []string
}

// NewNormalizer keeps every entry when keywords is empty.
func NewNormalizer(keywords []string) *Normalizer {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}

	return &Normalizer{keywords: lowered}
}

// Normalize turns a feed entry into a content item. Entries without a title or
// a resolvable link, and entries off topic, are rejected.
func (n *Normalizer) Normalize(item *gofeed.Item, src domain.Source) (domain.ContentItem, bool) {
	if item == nil {
		return domain.ContentItem{}, false
	}

	title := collapseSpaces(HTMLToText(item.Title))
	link := entryLink(item)

	if title == "" || link == "" {
		return domain.ContentItem{}, false
	}

	summary := HTMLToText(firstNonEmpty(item.Description, item.Content))

	if !n.matches(title + "\n" + summary) {
		return domain.ContentItem{}, false
	}

	normalized := domain.ContentItem{
		ID:      ItemID(link),
		Title:   title,
		URL:     link,
		Source:  src.Name,
		Kind:    src.Kind,
		Lang:    src.Lang,
		Summary: truncate(summary, summaryMaxChars),
	}

	switch {
	case item.PublishedParsed != nil:
		published := item.PublishedParsed.UTC()
		normalized.PublishedAt = &published
	case item.UpdatedParsed != nil:
		updated := item.UpdatedParsed.UTC()
		normalized.PublishedAt = &updated
	}

	return normalized, true
}

func (n *Normalizer) matches(text string) bool {
	if len(n.keywords) == 0 {
		return true
	}

	lower := strings.ToLower(text)
	for _, k := range n.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}

	return coreTopicRe.MatchString(lower)
}

// ItemID derives the stable item identity from its canonical URL.
func ItemID(rawURL string) string {
	hash := sha256.Sum256([]byte(CanonicalURL(rawURL)))

	return hex.EncodeToString(hash[:])
}

// CanonicalURL lower-cases scheme and host and drops the fragment.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	return u.String()
}

// HTMLToText extracts the visible text of an HTML fragment. Plain text passes
// through with whitespace collapsed.
func HTMLToText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}

	if !strings.ContainsAny(fragment, "<&") {
		return collapseSpaces(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpaces(fragment)
	}

	doc.Find("script, style").Remove()

	return collapseSpaces(doc.Text())
}

func entryLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); isHTTPURL(link) {
		return link
	}

	for _, link := range item.Links {
		if link = strings.TrimSpace(link); isHTTPURL(link) {
			return link
		}
	}

	if guid := strings.TrimSpace(item.GUID); isHTTPURL(guid) {
		return guid
	}

	for _, text := range []string{item.Content, item.Description} {
		if found := httpURLRe.FindString(text); isHTTPURL(found) {
			return found
		}
	}

	return ""
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}

	return strings.TrimSpace(string(runes[:maxChars])) + "..."
}
