// internal/pipeline/web-augmentation/models.go
package webaugmentation

type Input struct {
	Query    string `json:"query"`
	Location string `json:"location,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type DecisionInput struct {
	Query           string `json:"query"`
	Draft           string `json:"draft"`
	InternalContext string `json:"internalContext,omitempty"`
	Provider        string `json:"provider,omitempty"`
}

type Output struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source is a page that was actually fetched and shown to the model.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
