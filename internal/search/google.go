// internal/search/google.go

// Package search talks to the web: keyed web search and readable page fetching.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/metrics"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

var ErrSearchNotConfigured = errors.New("SEARCH_NOT_CONFIGURED")

// maxPerRequest is the Custom Search API ceiling for num.
const maxPerRequest = 10

type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]models.SearchResult, error)
}

type GoogleConfig struct {
	APIKey   string
	EngineID string
	// BaseURL overrides the API endpoint; empty uses Google's.
	BaseURL string
	Timeout time.Duration
}

type GoogleSearcher struct {
	svc      *customsearch.Service
	engineID string
	timeout  time.Duration
}

func NewGoogleSearcher(ctx context.Context, cfg GoogleConfig) (*GoogleSearcher, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, ErrSearchNotConfigured
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create custom search service: %w", err)
	}
	return &GoogleSearcher{svc: svc, engineID: cfg.EngineID, timeout: cfg.Timeout}, nil
}

func (g *GoogleSearcher) Search(ctx context.Context, query string, num int) ([]models.SearchResult, error) {
	if num <= 0 || num > maxPerRequest {
		num = maxPerRequest
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	res, err := g.svc.Cse.List().Q(query).Cx(g.engineID).Num(int64(num)).Context(ctx).Do()
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("web_search").Inc()
		return nil, apperrors.NewWebSearchFailedError(err)
	}

	items := make([]rawItem, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, rawItem{Link: it.Link, Title: it.Title, Snippet: it.Snippet, Mime: it.Mime})
	}
	return rankResults(items, num), nil
}

type rawItem struct {
	Link    string
	Title   string
	Snippet string
	Mime    string
}

var authoritativeHosts = []string{".gov", ".edu", "onetonline.org", "careeronestop.org"}

// rankResults drops non-HTML and duplicate links, boosts authoritative
// domains and keeps at most limit results. Ties keep the provider's order.
func rankResults(items []rawItem, limit int) []models.SearchResult {
	seen := make(map[string]bool)
	var out []models.SearchResult

	for _, item := range items {
		if item.Link == "" {
			continue
		}
		if item.Mime != "" && !strings.Contains(item.Mime, "html") {
			continue
		}
		key := strings.TrimSuffix(item.Link, "/")
		if seen[key] {
			continue
		}
		seen[key] = true

		relevance := 1.0
		host := hostOf(item.Link)
		for _, h := range authoritativeHosts {
			if strings.HasSuffix(host, h) || strings.Contains(host, h+".") {
				relevance += 0.2
				break
			}
		}
		if strings.Contains(strings.ToLower(item.Title), "official") {
			relevance += 0.1
		}

		out = append(out, models.SearchResult{
			Title:     item.Title,
			URL:       item.Link,
			Snippet:   item.Snippet,
			Relevance: relevance,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func hostOf(link string) string {
	s := strings.ToLower(link)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}
