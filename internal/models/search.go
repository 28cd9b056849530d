// internal/models/search.go
package models

// SearchResult is one web search hit. Never persisted.
type SearchResult struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance,omitempty"`
}

// ReadablePage is a fetched page reduced to plain text.
type ReadablePage struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// ListingHit is one site search result over jobs and programs.
type ListingHit struct {
	Kind     FeaturedKind `json:"kind"`
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Subtitle string       `json:"subtitle"`
	Location string       `json:"location"`
	Featured bool         `json:"featured"`
}
