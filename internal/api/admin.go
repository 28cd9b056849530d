// internal/api/admin.go
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

type featuredBody struct {
	Kind         models.FeaturedKind `json:"kind"`
	RefID        string              `json:"ref_id"`
	CategoryHint string              `json:"category_hint"`
	MetroHint    string              `json:"metro_hint"`
}

type ingestJobsBody struct {
	Queries  []string `json:"queries"`
	Location string   `json:"location"`
}

type ingestProgramsBody struct {
	CIPCodes []string `json:"cip_codes"`
	State    string   `json:"state"`
}

// createFeatured checks that the reference resolves when the row is written.
// Later deletions can still leave it dangling.
func (s *Server) createFeatured(w http.ResponseWriter, r *http.Request) {
	var body featuredBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errors.WriteError(w, r, apperrors.NewValidationError("invalid JSON body"))
		return
	}
	body.RefID = strings.TrimSpace(body.RefID)
	if _, err := uuid.Parse(body.RefID); err != nil {
		s.errors.WriteError(w, r, apperrors.NewValidationError("ref_id must be a uuid"))
		return
	}

	ctx := r.Context()
	var exists bool
	switch body.Kind {
	case models.FeaturedJob:
		j, err := s.deps.Listings.GetJob(ctx, body.RefID)
		if err != nil {
			s.errors.WriteError(w, r, apperrors.NewDatabaseQueryFailedError("get_job", err))
			return
		}
		exists = j != nil
	case models.FeaturedProgram:
		p, err := s.deps.Listings.GetProgram(ctx, body.RefID)
		if err != nil {
			s.errors.WriteError(w, r, apperrors.NewDatabaseQueryFailedError("get_program", err))
			return
		}
		exists = p != nil
	default:
		s.errors.WriteError(w, r, apperrors.NewValidationError("kind must be job or program"))
		return
	}
	if !exists {
		s.errors.WriteError(w, r, apperrors.NewNotFoundError(string(body.Kind), body.RefID))
		return
	}

	f := &models.Featured{
		Kind:         body.Kind,
		RefID:        body.RefID,
		CategoryHint: body.CategoryHint,
		MetroHint:    body.MetroHint,
	}
	if err := s.deps.Listings.CreateFeatured(ctx, f); err != nil {
		s.errors.WriteError(w, r, apperrors.NewDatabaseQueryFailedError("create_featured", err))
		return
	}
	apperrors.WriteJSON(w, http.StatusCreated, f)
}

func (s *Server) ingestJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingest == nil {
		s.errors.WriteError(w, r, apperrors.NewForbiddenError("ingestion is disabled"))
		return
	}
	var body ingestJobsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errors.WriteError(w, r, apperrors.NewValidationError("invalid JSON body"))
		return
	}
	sum, err := s.deps.Ingest.IngestJobs(r.Context(), body.Queries, body.Location)
	if err != nil && sum == nil {
		s.errors.WriteError(w, r, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	apperrors.WriteJSON(w, status, sum)
}

func (s *Server) ingestPrograms(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingest == nil {
		s.errors.WriteError(w, r, apperrors.NewForbiddenError("ingestion is disabled"))
		return
	}
	var body ingestProgramsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errors.WriteError(w, r, apperrors.NewValidationError("invalid JSON body"))
		return
	}
	sum, err := s.deps.Ingest.IngestPrograms(r.Context(), body.CIPCodes, body.State)
	if err != nil && sum == nil {
		s.errors.WriteError(w, r, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	apperrors.WriteJSON(w, status, sum)
}
