// internal/pipeline/query-internal-listings/models.go
package queryinternallistings

type Input struct {
	Query    string `json:"query"`
	Location string `json:"location,omitempty"`
}

type Output struct {
	Markdown     string `json:"markdown"`
	JobCount     int    `json:"jobCount"`
	ProgramCount int    `json:"programCount"`
	Cached       bool   `json:"cached"`
}

// plan is what the triggers decided to look up.
type plan struct {
	Jobs           bool
	Programs       bool
	Apprenticeship bool
	Keyword        string
	Location       string
}
