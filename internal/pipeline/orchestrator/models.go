// internal/pipeline/orchestrator/models.go
package orchestrator

import (
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	webaugmentation "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/web-augmentation"
)

type ChatRequest struct {
	Messages []models.Message `json:"messages"`
	Location string           `json:"location,omitempty"`
	Provider string           `json:"provider,omitempty"`
}

type ChatResponse struct {
	Answer    string                   `json:"answer"`
	Followups []string                 `json:"followups"`
	Provider  string                   `json:"provider,omitempty"`
	Rejected  bool                     `json:"rejected,omitempty"`
	Augmented bool                     `json:"augmented,omitempty"`
	Sources   []webaugmentation.Source `json:"sources,omitempty"`
}
