// internal/pipeline/web-augmentation/handler.go
package webaugmentation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/metrics"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/textutil"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/llm"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/search"
)

const (
	TaskType = "web-augmentation"

	// SourcesHeading opens the list of fetched pages.
	SourcesHeading = "**Sources**"

	authorityBias = "(site:bls.gov OR site:onetonline.org OR site:.edu)"
)

var junkSites = []string{
	"pinterest.com",
	"quora.com",
	"reddit.com",
	"facebook.com",
	"tiktok.com",
	"youtube.com",
	"instagram.com",
}

var (
	overviewPhrasing = regexp.MustCompile(`^\s*(tell me about|what (is|are|does|do)( an?| the)?|what's( an?)?|describe|explain|overview of|give me an overview|how do i become|how to become)\b`)
	timeSensitive    = regexp.MustCompile(`\b(salary|salaries|wages?|pay|paid|earn\w*|openings?|hiring|jobs?|tuition|near me|(19|20)\d{2})\b`)

	// a sources section the model wrote on its own; ours replaces it
	modelSources = regexp.MustCompile(`(?is)\n\s*(#{1,6}\s*)?(\*\*)?\s*(sources|references)\s*:?\s*(\*\*)?\s*:?\s*\n.*$`)
)

// IsOverviewPhrasing reports a general "what is / tell me about" question.
func IsOverviewPhrasing(q string) bool {
	return overviewPhrasing.MatchString(textutil.Fold(q))
}

// HasTimeSensitiveTerms reports pay, hiring, tuition, locality or year terms.
func HasTimeSensitiveTerms(q string) bool {
	return timeSensitive.MatchString(textutil.Fold(q))
}

// Decision reasons, also used as metric labels.
const (
	ReasonInternalData  = "skip_internal"
	ReasonOverview      = "skip_overview"
	ReasonTimeSensitive = "time_sensitive"
	ReasonModelYes      = "model_yes"
	ReasonModelNo       = "model_no"
	ReasonModelError    = "model_error"
)

// heuristicDecision applies the cheap rules in order. decided is false when
// only a model can tell.
func heuristicDecision(query, internalContext string) (augment, decided bool, reason string) {
	if strings.TrimSpace(internalContext) != "" {
		return false, true, ReasonInternalData
	}
	ts := HasTimeSensitiveTerms(query)
	if IsOverviewPhrasing(query) && !ts {
		return false, true, ReasonOverview
	}
	if ts {
		return true, true, ReasonTimeSensitive
	}
	return false, false, ""
}

// BuildQuery biases the search toward authoritative sources and away from
// social and pin sites.
func BuildQuery(query, location string) string {
	q := strings.Join(strings.Fields(query), " ")
	if loc := strings.TrimSpace(location); loc != "" && !textutil.ContainsFold(q, loc) {
		q += " " + loc
	}
	parts := []string{q, authorityBias}
	for _, s := range junkSites {
		parts = append(parts, "-site:"+s)
	}
	return strings.Join(parts, " ")
}

const decideInstruction = `You review a draft answer from a manufacturing career coach.
Reply YES if answering well needs current facts from the web (wages, openings, tuition, program dates, local employers, recent changes).
Reply NO if the draft is complete without them. Answer with exactly one word: YES or NO.`

const synthesizeInstruction = `You are a manufacturing career coach writing an answer from web sources.
Use only the numbered sources provided. Cite them inline as [#1], [#2] and so on.
Never invent URLs, statistics or program names, and do not add a sources or references list.
Answer the question first, in concise markdown.`

type Handler struct {
	config   *Config
	llm      *llm.Registry
	searcher search.Searcher
	fetcher  search.Fetcher
	logger   logger.Logger
}

func NewHandler(config *Config, registry *llm.Registry, searcher search.Searcher, fetcher search.Fetcher, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		llm:      registry,
		searcher: searcher,
		fetcher:  fetcher,
		logger:   log.WithFields(map[string]interface{}{"stage": TaskType}),
	}
}

// ShouldAugment decides whether the draft needs web facts. Model errors count as no.
func (h *Handler) ShouldAugment(ctx context.Context, in *DecisionInput) bool {
	augment, reason := h.decide(ctx, in)
	metrics.WebAugmentations.WithLabelValues(reason).Inc()
	return augment
}

func (h *Handler) decide(ctx context.Context, in *DecisionInput) (bool, string) {
	if augment, decided, reason := heuristicDecision(in.Query, in.InternalContext); decided {
		return augment, reason
	}
	if h.searcher == nil {
		return false, ReasonModelNo
	}

	provider, err := h.llm.Get(in.Provider)
	if err != nil {
		return false, ReasonModelError
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.DecideTimeout)
	defer cancel()

	raw, err := provider.Complete(ctx, &llm.Request{
		Messages: []models.Message{
			llm.System(decideInstruction),
			llm.User("Question: " + in.Query + "\n\nDraft answer:\n" + in.Draft),
		},
		Temperature: 0,
		MaxTokens:   3,
	})
	if err != nil {
		h.logger.Warn("augmentation decision failed", map[string]interface{}{"error": err.Error()})
		return false, ReasonModelError
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(raw)), "YES") {
		return true, ReasonModelYes
	}
	return false, ReasonModelNo
}

// execute returns nil output when nothing usable came back and an error when
// the search itself failed. Either way the caller keeps its draft.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	if h.searcher == nil || h.fetcher == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	query := BuildQuery(input.Query, input.Location)
	results, err := h.searcher.Search(ctx, query, h.config.MaxResults)
	if err != nil {
		metrics.WebAugmentations.WithLabelValues("search_failed").Inc()
		return nil, fmt.Errorf("web search: %w", err)
	}

	pages := h.fetchPages(ctx, results)
	if len(pages) == 0 {
		h.logger.Info("no pages fetched", map[string]interface{}{"results": len(results)})
		metrics.WebAugmentations.WithLabelValues("no_pages").Inc()
		return nil, nil
	}

	answer, err := h.synthesize(ctx, input, pages)
	if err != nil {
		h.logger.Warn("synthesis failed, keeping draft", map[string]interface{}{"error": err.Error()})
		metrics.WebAugmentations.WithLabelValues("synthesis_failed").Inc()
		return nil, nil
	}

	sources := make([]Source, len(pages))
	for i, p := range pages {
		sources[i] = Source{Title: p.Title, URL: p.URL}
	}

	h.logger.Info("web augmentation completed", map[string]interface{}{
		"query": query,
		"pages": len(pages),
	})
	metrics.WebAugmentations.WithLabelValues("augmented").Inc()

	return &Output{
		Answer:  answer + "\n\n" + RenderSources(sources),
		Sources: sources,
	}, nil
}

// fetchPages fetches the top results concurrently. Failed pages are dropped
// and the rest keep search order.
func (h *Handler) fetchPages(ctx context.Context, results []models.SearchResult) []*models.ReadablePage {
	n := len(results)
	if n > h.config.MaxPages {
		n = h.config.MaxPages
	}
	fetched := make([]*models.ReadablePage, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i, url := i, results[i].URL
		g.Go(func() error {
			page, err := h.fetcher.Fetch(ctx, url)
			if err != nil {
				h.logger.Debug("page fetch failed", map[string]interface{}{"url": url, "error": err.Error()})
				return nil
			}
			fetched[i] = page
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]*models.ReadablePage, 0, n)
	for i, p := range fetched {
		if p == nil || strings.TrimSpace(p.Text) == "" {
			continue
		}
		if p.Title == "" || p.Title == p.URL {
			if t := strings.TrimSpace(results[i].Title); t != "" {
				p.Title = t
			}
		}
		p.Text = search.Truncate(p.Text, h.config.MaxChars)
		pages = append(pages, p)
	}
	return pages
}

func (h *Handler) synthesize(ctx context.Context, input *Input, pages []*models.ReadablePage) (string, error) {
	provider, err := h.llm.Get(input.Provider)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", input.Query)
	if input.Location != "" {
		fmt.Fprintf(&b, "User location: %s\n", input.Location)
	}
	b.WriteString("\nSources:\n")
	for i, p := range pages {
		fmt.Fprintf(&b, "\n[#%d] %s\n%s\n", i+1, p.Title, p.Text)
	}

	raw, err := provider.Complete(ctx, &llm.Request{
		Messages: []models.Message{
			llm.System(synthesizeInstruction),
			llm.User(b.String()),
		},
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(modelSources.ReplaceAllString(strings.TrimSpace(raw), ""))
	if answer == "" {
		return "", fmt.Errorf("empty synthesis")
	}
	return answer, nil
}

// RenderSources lists the fetched pages in fetch order.
func RenderSources(sources []Source) string {
	var b strings.Builder
	b.WriteString(SourcesHeading)
	for i, s := range sources {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = s.URL
		}
		b.WriteString("\n" + strconv.Itoa(i+1) + ". [" + escapeBrackets(title) + "](" + s.URL + ")")
	}
	return b.String()
}

var bracketEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeBrackets(s string) string {
	return bracketEscaper.Replace(s)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
