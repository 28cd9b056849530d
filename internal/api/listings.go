// internal/api/listings.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/store"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// queryParams collects the first parse error so handlers check once.
type queryParams struct {
	values url.Values
	err    error
}

func (q *queryParams) str(name string) string {
	return strings.TrimSpace(q.values.Get(name))
}

func (q *queryParams) csv(name string) []string {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (q *queryParams) intPtr(name string) *int {
	raw := q.str(name)
	if raw == "" || q.err != nil {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		q.err = apperrors.NewValidationError(fmt.Sprintf("%s must be a non-negative integer", name))
		return nil
	}
	return &n
}

func (q *queryParams) num(name string) int {
	if p := q.intPtr(name); p != nil {
		return *p
	}
	return 0
}

func (q *queryParams) boolPtr(name string) *bool {
	raw := q.str(name)
	if raw == "" || q.err != nil {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.err = apperrors.NewValidationError(fmt.Sprintf("%s must be true or false", name))
		return nil
	}
	return &b
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := &queryParams{values: r.URL.Query()}
	f := store.JobFilter{
		Keyword:        q.str("keyword"),
		Location:       q.str("location"),
		Skills:         q.csv("skills"),
		PayMin:         q.intPtr("pay_min"),
		PayMax:         q.intPtr("pay_max"),
		Apprenticeship: q.boolPtr("apprenticeship"),
		Limit:          q.num("limit"),
		Offset:         q.num("offset"),
	}
	if q.err != nil {
		s.errors.WriteError(w, r, q.err)
		return
	}

	jobs, err := s.deps.Listings.SearchJobs(r.Context(), f)
	if err != nil {
		s.errors.WriteError(w, r, apperrors.NewDatabaseQueryFailedError("search_jobs", err))
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.deps.Listings.GetJob(r.Context(), id)
	if err != nil {
		s.errors.WriteError(w, r, apperrors.NewDatabaseQueryFailedError("get_job", err))
		return
	}
	if job == nil {
		s.errors.WriteError(w, r, apperrors.NewNotFoundError("job", id))
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, job)
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var j models.Job
	if err := json.NewDecoder(r.Body).Decode(&j); err != nil {
		s.errors.WriteError(w, r, apperrors.NewValidationError("invalid JSON body"))
		return
	}
	j.Title = strings.TrimSpace(j.Title)
	if j.Title == "" {
		s.errors.WriteError(w, r, apperrors.NewValidationError("title is required"))
		return
	}
	if j.PayMin != nil && j.PayMax != nil && *j.PayMax < *j.PayMin {
		s.errors.WriteError(w, r, apperrors.NewValidationError("pay_max must not be below pay_min"))
		return
	}
	j.ID = ""

	if err := s.deps.Listings.CreateJob(r.Context(), &j); err != nil {
		s.errors.WriteError(w, r, apperrors.NewDatabaseQueryFailedError("create_job", err))
		return
	}
	if s.deps.Index != nil {
		if err := s.deps.Index.IndexJob(r.Context(), &j); err != nil {
			s.logger.Warn("indexing job failed", map[string]interface{}{"id": j.ID, "error": err.Error()})
		}
	}
	apperrors.WriteJSON(w, http.StatusCreated, j)
}

func (s *Server) listPrograms(w http.ResponseWriter, r *http.Request) {
	q := &queryParams{values: r.URL.Query()}
	f := store.ProgramFilter{
		Keyword:  q.str("keyword"),
		Location: q.str("location"),
		Delivery: models.Delivery(strings.ToLower(q.str("delivery"))),
		MaxWeeks: q.intPtr("max_weeks"),
		MaxCost:  q.intPtr("max_cost"),
		Certs:    q.csv("certs"),
		Limit:    q.num("limit"),
		Offset:   q.num("offset"),
	}
	if q.err == nil && f.Delivery != "" && !f.Delivery.Valid() {
		q.err = apperrors.NewValidationError("delivery must be in-person, online or hybrid")
	}
	if q.err != nil {
		s.errors.WriteError(w, r, q.err)
		return
	}

	programs, err := s.deps.Listings.SearchPrograms(r.Context(), f)
	if err != nil {
		s.errors.WriteError(w, r, apperrors.NewDatabaseQueryFailedError("search_programs", err))
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{"programs": programs})
}

func (s *Server) getProgram(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.deps.Listings.GetProgram(r.Context(), id)
	if err != nil {
		s.errors.WriteError(w, r, apperrors.NewDatabaseQueryFailedError("get_program", err))
		return
	}
	if p == nil {
		s.errors.WriteError(w, r, apperrors.NewNotFoundError("program", id))
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) createProgram(w http.ResponseWriter, r *http.Request) {
	var p models.Program
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.errors.WriteError(w, r, apperrors.NewValidationError("invalid JSON body"))
		return
	}
	p.Title = strings.TrimSpace(p.Title)
	p.School = strings.TrimSpace(p.School)
	if p.Title == "" || p.School == "" {
		s.errors.WriteError(w, r, apperrors.NewValidationError("school and title are required"))
		return
	}
	if p.Delivery != "" && !p.Delivery.Valid() {
		s.errors.WriteError(w, r, apperrors.NewValidationError("delivery must be in-person, online or hybrid"))
		return
	}
	p.ID = ""

	if err := s.deps.Listings.CreateProgram(r.Context(), &p); err != nil {
		s.errors.WriteError(w, r, apperrors.NewDatabaseQueryFailedError("create_program", err))
		return
	}
	if s.deps.Index != nil {
		if err := s.deps.Index.IndexProgram(r.Context(), &p); err != nil {
			s.logger.Warn("indexing program failed", map[string]interface{}{"id": p.ID, "error": err.Error()})
		}
	}
	apperrors.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := &queryParams{values: r.URL.Query()}
	text := q.str("q")
	limit := q.num("limit")
	if q.err != nil {
		s.errors.WriteError(w, r, q.err)
		return
	}
	if text == "" {
		s.errors.WriteError(w, r, apperrors.NewValidationError("q is required"))
		return
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	hits, err := s.deps.Search.Search(r.Context(), text, limit)
	if err != nil {
		s.errors.WriteError(w, r, apperrors.NewDatabaseQueryFailedError("site_search", err))
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{"query": text, "results": hits})
}
