// internal/pipeline/answer-generator/models.go
package answergenerator

import "github.com/rkhurana000/skillstrong-pro-sub000/internal/models"

type Input struct {
	Messages        []models.Message `json:"messages"`
	InternalContext string           `json:"internalContext,omitempty"`
	Location        string           `json:"location,omitempty"`
	Provider        string           `json:"provider,omitempty"`
}

type Output struct {
	Answer   string `json:"answer"`
	Provider string `json:"provider"`
}
