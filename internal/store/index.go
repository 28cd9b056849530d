// internal/store/index.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

// ListingIndex mirrors jobs and programs into Elasticsearch for site search.
// A nil *ListingIndex is valid and does nothing.
type ListingIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewListingIndex(es *elasticsearch.Client, index string) *ListingIndex {
	if es == nil {
		return nil
	}
	if index == "" {
		index = "listings"
	}
	return &ListingIndex{es: es, index: index}
}

type indexDoc struct {
	Kind     models.FeaturedKind `json:"kind"`
	ID       string              `json:"id"`
	Title    string              `json:"title"`
	Subtitle string              `json:"subtitle"`
	Location string              `json:"location"`
	Featured bool                `json:"featured"`
	Text     string              `json:"text"`
}

func (ix *ListingIndex) IndexJob(ctx context.Context, j *models.Job) error {
	if ix == nil {
		return nil
	}
	return ix.put(ctx, indexDoc{
		Kind:     models.FeaturedJob,
		ID:       j.ID,
		Title:    j.Title,
		Subtitle: j.Company,
		Location: j.Location,
		Featured: j.Featured,
		Text:     j.Description + " " + strings.Join(j.Skills, " "),
	})
}

func (ix *ListingIndex) IndexProgram(ctx context.Context, p *models.Program) error {
	if ix == nil {
		return nil
	}
	return ix.put(ctx, indexDoc{
		Kind:     models.FeaturedProgram,
		ID:       p.ID,
		Title:    p.Title,
		Subtitle: p.School,
		Location: p.Location,
		Featured: p.Featured,
		Text:     p.Description + " " + strings.Join(p.Certs, " "),
	})
}

func (ix *ListingIndex) put(ctx context.Context, doc indexDoc) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      ix.index,
		DocumentID: string(doc.Kind) + ":" + doc.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, ix.es)
	if err != nil {
		return fmt.Errorf("index %s %s: %w", doc.Kind, doc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index %s %s: %s", doc.Kind, doc.ID, res.String())
	}
	return nil
}

func (ix *ListingIndex) Search(ctx context.Context, q string, limit int) ([]models.ListingHit, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  q,
						"fields": []string{"title^3", "subtitle^2", "location", "text"},
					},
				},
				"should": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"featured": map[string]interface{}{"value": true, "boost": 2}}},
				},
			},
		},
		"size": limit,
	}
	body, _ := json.Marshal(query)

	req := esapi.SearchRequest{
		Index: []string{ix.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, ix.es)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.String())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source indexDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	hits := make([]models.ListingHit, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		hits = append(hits, h.Source.hit())
	}
	return hits, nil
}

func (d indexDoc) hit() models.ListingHit {
	return models.ListingHit{
		Kind:     d.Kind,
		ID:       d.ID,
		Title:    d.Title,
		Subtitle: d.Subtitle,
		Location: d.Location,
		Featured: d.Featured,
	}
}

// SiteSearch answers keyword search over all listings, preferring the
// index and falling back to Postgres when it is absent or failing.
type SiteSearch struct {
	listings *Listings
	index    *ListingIndex
	logger   logger.Logger
}

func NewSiteSearch(listings *Listings, index *ListingIndex, log logger.Logger) *SiteSearch {
	return &SiteSearch{
		listings: listings,
		index:    index,
		logger:   log.WithFields(map[string]interface{}{"component": "site-search"}),
	}
}

func (s *SiteSearch) Search(ctx context.Context, q string, limit int) ([]models.ListingHit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.ListingHit{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	if s.index != nil {
		hits, err := s.index.Search(ctx, q, limit)
		if err == nil {
			return hits, nil
		}
		s.logger.Warn("index search failed, falling back to postgres", map[string]interface{}{"error": err})
	}

	jobs, err := s.listings.SearchJobs(ctx, JobFilter{Keyword: q, Limit: limit})
	if err != nil {
		return nil, err
	}
	programs, err := s.listings.SearchPrograms(ctx, ProgramFilter{Keyword: q, Limit: limit})
	if err != nil {
		return nil, err
	}

	hits := make([]models.ListingHit, 0, len(jobs)+len(programs))
	for _, j := range jobs {
		hits = append(hits, models.ListingHit{Kind: models.FeaturedJob, ID: j.ID, Title: j.Title, Subtitle: j.Company, Location: j.Location, Featured: j.Featured})
	}
	for _, p := range programs {
		hits = append(hits, models.ListingHit{Kind: models.FeaturedProgram, ID: p.ID, Title: p.Title, Subtitle: p.School, Location: p.Location, Featured: p.Featured})
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
