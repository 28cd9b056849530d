package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
)

// ============================================================================
// Ranking
// ============================================================================

func TestRankResults(t *testing.T) {
	items := []rawItem{
		{Link: "https://blog.example.com/cnc", Title: "CNC blog", Mime: "text/html"},
		{Link: "https://www.bls.gov/ooh/production/machinists.htm", Title: "Machinists : OOH"},
		{Link: "https://blog.example.com/cnc/", Title: "duplicate with slash"},
		{Link: "https://files.example.com/guide.pdf", Title: "PDF", Mime: "application/pdf"},
		{Link: "https://www.onetonline.org/link/summary/51-4041.00", Title: "O*NET"},
		{Link: "", Title: "no link"},
		{Link: "https://tri-c.edu/cnc", Title: "Tri-C"},
	}

	out := rankResults(items, 10)
	require.Len(t, out, 4)

	// boosted results first, provider order preserved among equals
	assert.Equal(t, "https://www.bls.gov/ooh/production/machinists.htm", out[0].URL)
	assert.Equal(t, "https://www.onetonline.org/link/summary/51-4041.00", out[1].URL)
	assert.Equal(t, "https://tri-c.edu/cnc", out[2].URL)
	assert.Equal(t, "https://blog.example.com/cnc", out[3].URL)
	assert.InDelta(t, 1.2, out[0].Relevance, 0.0001)
	assert.InDelta(t, 1.0, out[3].Relevance, 0.0001)
}

func TestRankResults_Limit(t *testing.T) {
	items := []rawItem{
		{Link: "https://a.com"}, {Link: "https://b.com"}, {Link: "https://c.com"},
	}
	out := rankResults(items, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "https://a.com", out[0].URL)
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "www.bls.gov", hostOf("https://www.BLS.gov/ooh?x=1"))
	assert.Equal(t, "example.com", hostOf("example.com/path"))
}

// ============================================================================
// Google Custom Search
// ============================================================================

func TestNewGoogleSearcher_NotConfigured(t *testing.T) {
	_, err := NewGoogleSearcher(context.Background(), GoogleConfig{APIKey: "k"})
	assert.ErrorIs(t, err, ErrSearchNotConfigured)
}

func TestGoogleSearcher_Search(t *testing.T) {
	var gotQuery, gotCx, gotNum string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotCx = r.URL.Query().Get("cx")
		gotNum = r.URL.Query().Get("num")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{
				{"title": "Welders", "link": "https://example.com/welders", "snippet": "about welding"},
				{"title": "Welders BLS", "link": "https://www.bls.gov/ooh/welders.htm", "snippet": "pay"},
			},
		})
	}))
	defer srv.Close()

	s, err := NewGoogleSearcher(context.Background(), GoogleConfig{APIKey: "key", EngineID: "cx-1", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	out, err := s.Search(context.Background(), "welder salary", 5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "https://www.bls.gov/ooh/welders.htm", out[0].URL)
	assert.Equal(t, "welder salary", gotQuery)
	assert.Equal(t, "cx-1", gotCx)
	assert.Equal(t, "5", gotNum)
}

func TestGoogleSearcher_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quota"}}`))
	}))
	defer srv.Close()

	s, err := NewGoogleSearcher(context.Background(), GoogleConfig{APIKey: "key", EngineID: "cx", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "q", 3)
	require.Error(t, err)
	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeWebSearchFailed, stdErr.Code)
}

// ============================================================================
// Page fetcher
// ============================================================================

const samplePage = `<!doctype html>
<html><head>
<title>Welding Careers</title>
<meta property="og:title" content="Welding Careers  in Ohio">
<meta property="og:image" content="https://example.com/weld.png">
</head><body>
<h1>Welding</h1>
<p>Welders join metal parts using heat. Most learn through apprenticeships and community college programs.</p>
</body></html>`

func TestPageFetcher_Fetch(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(samplePage))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("line one\n\n   line two"))
		case "/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewPageFetcher(FetcherConfig{Timeout: 5 * time.Second, MaxChars: 3000, UserAgent: "coach-test"})

	t.Run("html", func(t *testing.T) {
		page, err := f.Fetch(context.Background(), srv.URL+"/page")
		require.NoError(t, err)
		assert.Equal(t, "Welding Careers in Ohio", page.Title)
		assert.Equal(t, "https://example.com/weld.png", page.Image)
		assert.Contains(t, page.Text, "Welders join metal parts")
		assert.NotContains(t, page.Text, "<p>")
		assert.Equal(t, "coach-test", ua)
	})

	t.Run("plain text", func(t *testing.T) {
		page, err := f.Fetch(context.Background(), srv.URL+"/plain")
		require.NoError(t, err)
		assert.Equal(t, "line one line two", page.Text)
		assert.Equal(t, srv.URL+"/plain", page.Title)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/pdf")
		require.Error(t, err)
		stdErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodePageFetchFailed, stdErr.Code)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/missing")
		require.Error(t, err)
	})
}

func TestExtractMeta_FallsBackToTitle(t *testing.T) {
	title, image := extractMeta([]byte(`<html><head><title> Plain  Title </title><meta name="twitter:image" content="x.png"></head></html>`))
	assert.Equal(t, "Plain Title", title)
	assert.Equal(t, "x.png", image)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc…", Truncate("abcdef", 3))
	assert.Equal(t, "héé…", Truncate("hééllo", 3))
	assert.Equal(t, "anything", Truncate("anything", 0))
	assert.Equal(t, 3001, len([]rune(Truncate(strings.Repeat("a", 5000), 3000))))
}
