// internal/pipeline/query-internal-listings/handler.go
package queryinternallistings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/textutil"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/store"
)

const (
	TaskType = "query-internal-listings"

	// Heading opens every non-empty listings block.
	Heading = "### From our listings"
)

// ListingSearcher is the slice of the listings store this stage reads.
type ListingSearcher interface {
	SearchJobs(ctx context.Context, f store.JobFilter) ([]models.Job, error)
	SearchPrograms(ctx context.Context, f store.ProgramFilter) ([]models.Program, error)
}

var (
	jobTriggers            = regexp.MustCompile(`\b(jobs?|openings?|hiring|hire|positions?|employers?|vacanc(y|ies)|apprentice\w*|work near|roles?)\b`)
	programTriggers        = regexp.MustCompile(`\b(programs?|training|courses?|classes|class|certificates?|certifications?|schools?|colleges?|degrees?|bootcamps?)\b`)
	apprenticeshipTriggers = regexp.MustCompile(`\bapprentice\w*\b`)

	// trailing "in Cleveland, OH" / "near Akron"; the greedy prefix picks the last phrase.
	locationPhrase = regexp.MustCompile(`^(.*)\b(?i:in|near|around)\s+([A-Z][A-Za-z .'-]*?(?:,\s*[A-Za-z]{2,})?)\s*[?.!]*$`)
	// same phrase typed in lower case, at most three words
	looseLocationPhrase = regexp.MustCompile(`(?i)^(.*)\b(?:in|near|around)\s+([a-z][a-z'-]*(?:\s+[a-z][a-z'-]*){0,2}(?:,\s*[a-z]{2,})?)\s*[?.!]*$`)

	notAPlace = regexp.MustCompile(`(?i)^(a|an|the|this|that|my|your|our|general)\b`)

	stripWords = regexp.MustCompile(`\b(` +
		`jobs?|openings?|hiring|hire|positions?|employers?|vacanc(y|ies)|roles?|work|` +
		`programs?|training|courses?|classes|class|certificates?|schools?|colleges?|degrees?|bootcamps?|` +
		`apprentice\w*|` +
		`a|an|the|any|are|there|what|which|where|show|me|find|list|for|i|to|get|can|of|` +
		`looking|look|want|some|open|available|is|do|you|have|best|good|local|my|in|near|around|at|` +
		`please|tell|about|with|on|how|who` +
		`)\b`)
	nonWord    = regexp.MustCompile(`[^a-z0-9+#&/ -]+`)
	multiSpace = regexp.MustCompile(`\s+`)
)

// WantsJobs reports whether q asks for job listings.
func WantsJobs(q string) bool {
	return jobTriggers.MatchString(textutil.Fold(q))
}

// WantsPrograms reports whether q asks for training programs.
func WantsPrograms(q string) bool {
	return programTriggers.MatchString(textutil.Fold(q))
}

func WantsApprenticeship(q string) bool {
	return apprenticeshipTriggers.MatchString(textutil.Fold(q))
}

// splitLocation separates a trailing place phrase from the rest of q.
// A lower-case place only counts when the words before it still name a
// subject, so "welding jobs in cleveland" has a place and "training in
// welding" does not.
func splitLocation(q string) (rest, loc string) {
	s := strings.TrimSpace(q)
	if m := locationPhrase.FindStringSubmatch(s); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	if m := looseLocationPhrase.FindStringSubmatch(s); m != nil && keywordOf(m[1]) != "" && !notAPlace.MatchString(m[2]) {
		return m[1], strings.TrimSpace(m[2])
	}
	return s, ""
}

// ExtractLocation returns a trailing "in|near <place>" phrase, or "".
// "near me" is not a place.
func ExtractLocation(q string) string {
	_, loc := splitLocation(q)
	if strings.EqualFold(loc, "me") || strings.EqualFold(loc, "my area") {
		return ""
	}
	return loc
}

// ExtractKeyword reduces q to the subject words used for the substring match.
func ExtractKeyword(q string) string {
	rest, _ := splitLocation(q)
	return keywordOf(rest)
}

func keywordOf(s string) string {
	s = textutil.Fold(s)
	s = nonWord.ReplaceAllString(s, " ")
	s = stripWords.ReplaceAllString(s, " ")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.Trim(s, " -/")
}

// primaryPlace keeps the city from "City, ST" so the substring filter
// matches rows stored as "City, State" or "City, ST".
func primaryPlace(loc string) string {
	if i := strings.Index(loc, ","); i >= 0 {
		loc = loc[:i]
	}
	return strings.TrimSpace(loc)
}

func buildPlan(query, location string) plan {
	loc := strings.TrimSpace(location)
	if loc == "" {
		loc = ExtractLocation(query)
	}
	return plan{
		Jobs:           WantsJobs(query),
		Programs:       WantsPrograms(query),
		Apprenticeship: WantsApprenticeship(query),
		Keyword:        ExtractKeyword(query),
		Location:       primaryPlace(loc),
	}
}

type Handler struct {
	config      *Config
	listings    ListingSearcher
	redisClient *redis.Client
	logger      logger.Logger
}

func NewHandler(config *Config, listings ListingSearcher, redisClient *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config:      config,
		listings:    listings,
		redisClient: redisClient,
		logger:      log.WithFields(map[string]interface{}{"stage": TaskType}),
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	p := buildPlan(input.Query, input.Location)
	if !p.Jobs && !p.Programs {
		return &Output{}, nil
	}

	key := buildCacheKey(p)
	if h.redisClient != nil {
		if val, err := h.redisClient.Get(ctx, key).Result(); err == nil && val != "" {
			return &Output{Markdown: val, Cached: true}, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	var (
		jobs     []models.Job
		programs []models.Program
	)
	if p.Jobs {
		f := store.JobFilter{Keyword: p.Keyword, Location: p.Location, Limit: h.config.PerTable}
		if p.Apprenticeship {
			yes := true
			f.Apprenticeship = &yes
		}
		var err error
		jobs, err = h.listings.SearchJobs(ctx, f)
		if err != nil {
			h.logger.Warn("job lookup failed, treating as no results", map[string]interface{}{"error": err.Error()})
			jobs = nil
		}
	}
	if p.Programs {
		var err error
		programs, err = h.listings.SearchPrograms(ctx, store.ProgramFilter{Keyword: p.Keyword, Location: p.Location, Limit: h.config.PerTable})
		if err != nil {
			h.logger.Warn("program lookup failed, treating as no results", map[string]interface{}{"error": err.Error()})
			programs = nil
		}
	}

	if len(jobs) > h.config.PerTable {
		jobs = jobs[:h.config.PerTable]
	}
	if len(programs) > h.config.PerTable {
		programs = programs[:h.config.PerTable]
	}

	md := Render(jobs, programs)
	if md != "" && h.redisClient != nil && h.config.CacheTTL > 0 {
		if err := h.redisClient.Set(ctx, key, md, h.config.CacheTTL).Err(); err != nil {
			h.logger.Debug("listings cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}

	h.logger.Info("internal listings queried", map[string]interface{}{
		"keyword":  p.Keyword,
		"location": p.Location,
		"jobs":     len(jobs),
		"programs": len(programs),
	})

	return &Output{Markdown: md, JobCount: len(jobs), ProgramCount: len(programs)}, nil
}

func buildCacheKey(p plan) string {
	raw := fmt.Sprintf("%t|%t|%t|%s|%s", p.Jobs, p.Programs, p.Apprenticeship, p.Keyword, textutil.Fold(p.Location))
	sum := sha256.Sum256([]byte(raw))
	return "chat:internal:" + hex.EncodeToString(sum[:16])
}

// Render formats listings under Heading. No rows means "".
func Render(jobs []models.Job, programs []models.Program) string {
	if len(jobs) == 0 && len(programs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(Heading)
	b.WriteString("\n")

	if len(jobs) > 0 {
		b.WriteString("\n**Jobs**\n")
		for _, j := range jobs {
			b.WriteString("- ")
			b.WriteString(JobLine(j))
			b.WriteString("\n")
		}
	}
	if len(programs) > 0 {
		b.WriteString("\n**Training programs**\n")
		for _, p := range programs {
			b.WriteString("- ")
			b.WriteString(ProgramLine(p))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// JobLine renders one job as a markdown bullet body.
func JobLine(j models.Job) string {
	parts := []string{"**" + j.Title + "**"}
	if j.Company != "" {
		parts = append(parts, j.Company)
	}
	if j.Location != "" {
		parts = append(parts, j.Location)
	}
	if pay := FormatPay(j.PayMin, j.PayMax); pay != "" {
		parts = append(parts, pay)
	}
	if j.Apprenticeship {
		parts = append(parts, "Apprenticeship")
	}
	line := strings.Join(parts, " · ")
	if link := firstNonEmpty(j.ApplyURL, j.ExternalURL); link != "" {
		line += " · [Apply](" + link + ")"
	}
	return line
}

func ProgramLine(p models.Program) string {
	parts := []string{"**" + p.Title + "**"}
	if p.School != "" {
		parts = append(parts, p.School)
	}
	if p.Location != "" {
		parts = append(parts, p.Location)
	}
	if p.Delivery != "" {
		parts = append(parts, string(p.Delivery))
	}
	if p.LengthWeeks != nil {
		parts = append(parts, strconv.Itoa(*p.LengthWeeks)+" weeks")
	}
	if p.Cost != nil {
		parts = append(parts, "$"+commas(*p.Cost))
	}
	line := strings.Join(parts, " · ")
	if link := firstNonEmpty(p.URL, p.ExternalURL); link != "" {
		line += " · [Details](" + link + ")"
	}
	return line
}

// FormatPay renders a pay range. Values under 1000 are taken as hourly.
func FormatPay(min, max *int) string {
	switch {
	case min == nil && max == nil:
		return ""
	case min != nil && max != nil && *min != *max:
		return "$" + commas(*min) + "–$" + commas(*max) + payUnit(*max)
	case min != nil:
		return "$" + commas(*min) + payUnit(*min)
	default:
		return "up to $" + commas(*max) + payUnit(*max)
	}
}

func payUnit(v int) string {
	if v < 1000 {
		return "/hr"
	}
	return "/yr"
}

func commas(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Lookup returns the listings markdown for query, or "".
func (h *Handler) Lookup(ctx context.Context, query, location string) string {
	out, err := h.execute(ctx, &Input{Query: query, Location: location})
	if err != nil {
		return ""
	}
	return out.Markdown
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
