// internal/pipeline/featured-match/handler.go
package featuredmatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/textutil"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	queryinternallistings "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/query-internal-listings"
)

const (
	TaskType = "featured-match"

	Heading = "### Featured opportunities"
)

// FeaturedSource is the part of the listings store this stage reads.
type FeaturedSource interface {
	ListFeatured(ctx context.Context, limit int) ([]models.Featured, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetProgram(ctx context.Context, id string) (*models.Program, error)
}

// MatchFeatured keeps rows whose category hint occurs in queryText and whose
// metro hint occurs in locationText. Empty hints match anything. Input order
// is kept and at most max rows are returned.
func MatchFeatured(rows []models.Featured, queryText, locationText string, max int) []models.Featured {
	if max <= 0 {
		max = 6
	}
	out := make([]models.Featured, 0, max)
	for _, row := range rows {
		if len(out) == max {
			break
		}
		if !textutil.ContainsFold(queryText, row.CategoryHint) {
			continue
		}
		if !textutil.ContainsFold(locationText, row.MetroHint) {
			continue
		}
		out = append(out, row)
	}
	return out
}

type Handler struct {
	config *Config
	source FeaturedSource
	logger logger.Logger
}

func NewHandler(config *Config, source FeaturedSource, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		source: source,
		logger: log.WithFields(map[string]interface{}{"stage": TaskType}),
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	if h.source == nil {
		return &Output{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	rows, err := h.source.ListFeatured(ctx, h.config.ScanLimit)
	if err != nil {
		h.logger.Warn("featured lookup failed", map[string]interface{}{"error": err.Error()})
		return &Output{}, nil
	}

	location := input.Location
	if strings.TrimSpace(location) == "" {
		location = input.Query
	}
	matches := MatchFeatured(rows, input.Query, location, h.config.MaxMatches)

	lines := make([]string, 0, h.config.MaxShown)
	for _, m := range matches {
		if len(lines) == h.config.MaxShown {
			break
		}
		line, ok := h.resolve(ctx, m)
		if !ok {
			continue
		}
		lines = append(lines, line)
	}

	h.logger.Debug("featured rows matched", map[string]interface{}{
		"scanned": len(rows),
		"matched": len(matches),
		"shown":   len(lines),
	})

	if len(lines) == 0 {
		return &Output{Matched: len(matches)}, nil
	}
	return &Output{
		Markdown: Heading + "\n" + "- " + strings.Join(lines, "\n- "),
		Matched:  len(matches),
		Shown:    len(lines),
	}, nil
}

// resolve follows the weak ref. Dangling refs and lookup errors are skipped.
func (h *Handler) resolve(ctx context.Context, f models.Featured) (string, bool) {
	switch f.Kind {
	case models.FeaturedJob:
		job, err := h.source.GetJob(ctx, f.RefID)
		if err != nil || job == nil {
			h.logDangling(f, err)
			return "", false
		}
		return queryinternallistings.JobLine(*job), true
	case models.FeaturedProgram:
		prog, err := h.source.GetProgram(ctx, f.RefID)
		if err != nil || prog == nil {
			h.logDangling(f, err)
			return "", false
		}
		return queryinternallistings.ProgramLine(*prog), true
	}
	return "", false
}

func (h *Handler) logDangling(f models.Featured, err error) {
	fields := map[string]interface{}{"featuredId": f.ID, "refId": f.RefID, "kind": string(f.Kind)}
	if err != nil {
		fields["error"] = err.Error()
	}
	h.logger.Debug("skipping unresolved featured row", fields)
}

// Block returns the featured markdown for the turn, or "".
func (h *Handler) Block(ctx context.Context, query, location string) string {
	out, err := h.execute(ctx, &Input{Query: query, Location: location})
	if err != nil {
		return ""
	}
	return out.Markdown
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
