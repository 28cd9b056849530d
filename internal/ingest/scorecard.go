// internal/ingest/scorecard.go
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	commonhttp "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/http"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/metrics"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

const scorecardFields = "id,school.name,school.city,school.state,school.school_url," +
	"latest.cost.tuition.in_state,latest.programs.cip_4_digit"

type ScorecardConfig struct {
	BaseURL string
	APIKey  string
	PerPage int
}

// ScorecardClient reads schools and their programs from the College Scorecard API.
type ScorecardClient struct {
	config ScorecardConfig
	client *commonhttp.Client
}

func NewScorecardClient(config ScorecardConfig, client *commonhttp.Client) *ScorecardClient {
	if config.PerPage <= 0 {
		config.PerPage = 50
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &ScorecardClient{config: config, client: client}
}

type scorecardResponse struct {
	Results []scorecardSchool `json:"results"`
}

type scorecardSchool struct {
	ID       int                `json:"id"`
	Name     string             `json:"school.name"`
	City     string             `json:"school.city"`
	State    string             `json:"school.state"`
	URL      string             `json:"school.school_url"`
	Tuition  *float64           `json:"latest.cost.tuition.in_state"`
	Programs []scorecardProgram `json:"latest.programs.cip_4_digit"`
}

type scorecardProgram struct {
	Code       string `json:"code"`
	Title      string `json:"title"`
	Credential struct {
		Level int    `json:"level"`
		Title string `json:"title"`
	} `json:"credential"`
}

// CIP4 reduces "48.0501", "4805" or "480501" to the four digit family code.
func CIP4(code string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, code)
	if len(digits) < 4 {
		return "", false
	}
	return digits[:4], true
}

// Programs returns every program in the CIP family offered by schools in state.
func (c *ScorecardClient) Programs(ctx context.Context, cipCode, state string) ([]models.Program, error) {
	cip, ok := CIP4(cipCode)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid CIP code %q", cipCode))
	}

	q := url.Values{}
	q.Set("api_key", c.config.APIKey)
	q.Set("latest.programs.cip_4_digit.code", cip)
	q.Set("fields", scorecardFields)
	q.Set("per_page", strconv.Itoa(c.config.PerPage))
	if state != "" {
		q.Set("school.state", state)
	}

	resp, err := c.client.Get(ctx, c.config.BaseURL+"/schools?"+q.Encode(), nil)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("college_scorecard").Inc()
		return nil, apperrors.NewIngestionFailedError("college_scorecard", err)
	}

	var body scorecardResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, apperrors.NewIngestionFailedError("college_scorecard", fmt.Errorf("decode response: %w", err))
	}

	out := []models.Program{}
	for _, school := range body.Results {
		for _, p := range school.Programs {
			if p.Code != cip {
				continue
			}
			out = append(out, toProgram(school, p))
		}
	}
	return out, nil
}

func toProgram(s scorecardSchool, p scorecardProgram) models.Program {
	title := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p.Title), "."))
	if cred := strings.TrimSpace(p.Credential.Title); cred != "" {
		title += ": " + cred
	}

	location := s.City
	if s.State != "" {
		if location != "" {
			location += ", "
		}
		location += s.State
	}

	var cost *int
	if s.Tuition != nil && *s.Tuition > 0 {
		n := int(math.Round(*s.Tuition))
		cost = &n
	}

	schoolURL := strings.TrimSpace(s.URL)
	if schoolURL != "" && !strings.HasPrefix(schoolURL, "http") {
		schoolURL = "https://" + schoolURL
	}

	return models.Program{
		School:      s.Name,
		Title:       title,
		Location:    location,
		Delivery:    models.DeliveryInPerson,
		Cost:        cost,
		Certs:       []string{},
		URL:         schoolURL,
		ExternalURL: fmt.Sprintf("https://collegescorecard.ed.gov/school/?%d#%s-%d", s.ID, p.Code, p.Credential.Level),
		Description: fmt.Sprintf("%s at %s (CIP %s).", title, s.Name, p.Code),
	}
}
