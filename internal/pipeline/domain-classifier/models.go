// internal/pipeline/domain-classifier/models.go
package domainclassifier

type Input struct {
	Utterance string `json:"utterance"`
	Provider  string `json:"provider,omitempty"`
}

type Output struct {
	InDomain bool   `json:"inDomain"`
	Source   string `json:"source"`
}

// Verdict sources.
const (
	SourceEmpty   = "empty"
	SourceKeyword = "keyword"
	SourceCache   = "cache"
	SourceModel   = "model"
)
