// internal/search/fetcher.go
package search

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"code.sajari.com/docconv"
	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	commonhttp "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/http"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.ReadablePage, error)
}

type FetcherConfig struct {
	Timeout        time.Duration
	MaxChars       int
	UserAgent      string
	UseReadability bool
}

// PageFetcher downloads a page and reduces it to readable text.
type PageFetcher struct {
	client      *commonhttp.Client
	maxChars    int
	readability bool
}

func NewPageFetcher(cfg FetcherConfig) *PageFetcher {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 3000
	}
	return &PageFetcher{
		client:      commonhttp.NewClient(cfg.Timeout, commonhttp.WithUserAgent(cfg.UserAgent)),
		maxChars:    cfg.MaxChars,
		readability: cfg.UseReadability,
	}
}

func (f *PageFetcher) Fetch(ctx context.Context, url string) (*models.ReadablePage, error) {
	resp, err := f.client.Get(ctx, url, map[string][]string{
		"Accept": {"text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8"},
	})
	if err != nil {
		return nil, apperrors.NewPageFetchFailedError(url, err)
	}

	ct := strings.ToLower(resp.ContentType)
	if ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return nil, apperrors.NewPageFetchFailedError(url, fmt.Errorf("unsupported content type %q", resp.ContentType))
	}

	page := &models.ReadablePage{URL: url}

	if strings.HasPrefix(ct, "text/plain") {
		page.Text = Truncate(collapseSpace(string(resp.Body)), f.maxChars)
	} else {
		page.Title, page.Image = extractMeta(resp.Body)
		text, err := htmlToText(resp.Body, f.readability)
		if err != nil {
			return nil, apperrors.NewPageFetchFailedError(url, err)
		}
		page.Text = Truncate(text, f.maxChars)
	}

	if page.Text == "" {
		return nil, apperrors.NewPageFetchFailedError(url, fmt.Errorf("no readable text"))
	}
	if page.Title == "" {
		page.Title = url
	}
	return page, nil
}

// htmlToText strips markup. Readability mode can discard everything on
// list-style pages, so an empty result is retried without it.
func htmlToText(body []byte, readability bool) (string, error) {
	text, _, err := docconv.ConvertHTML(bytes.NewReader(body), readability)
	if err != nil {
		return "", err
	}
	text = collapseSpace(text)
	if text == "" && readability {
		text, _, err = docconv.ConvertHTML(bytes.NewReader(body), false)
		if err != nil {
			return "", err
		}
		text = collapseSpace(text)
	}
	return text, nil
}

// extractMeta returns the page title (og:title preferred) and og:image.
func extractMeta(body []byte) (title, image string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}
	title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	image = strings.TrimSpace(doc.Find(`meta[property="og:image"]`).AttrOr("content", ""))
	if image == "" {
		image = strings.TrimSpace(doc.Find(`meta[name="twitter:image"]`).AttrOr("content", ""))
	}
	return collapseSpace(title), image
}

var spaceRe = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Truncate cuts s to at most max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "…"
}
