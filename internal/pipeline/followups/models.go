// internal/pipeline/followups/models.go
package followups

type Input struct {
	Query    string `json:"query"`
	Answer   string `json:"answer"`
	Provider string `json:"provider,omitempty"`
}

type Output struct {
	Followups []string `json:"followups"`
	Fallback  bool     `json:"fallback"`
}

// payload is the JSON object the model is asked to return.
type payload struct {
	Followups []string `json:"followups"`
}
