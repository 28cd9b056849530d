// internal/pipeline/featured-match/models.go
package featuredmatch

type Input struct {
	Query    string `json:"query"`
	Location string `json:"location,omitempty"`
}

type Output struct {
	Markdown string `json:"markdown"`
	Matched  int    `json:"matched"`
	Shown    int    `json:"shown"`
}
