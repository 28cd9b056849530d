// internal/api/conversations.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/auth"
	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/store"
)

type conversationBody struct {
	Title    string           `json:"title"`
	Messages []models.Message `json:"messages"`
	Provider string           `json:"provider"`
}

func (b *conversationBody) decode(r *http.Request) error {
	if err := json.NewDecoder(r.Body).Decode(b); err != nil {
		return apperrors.NewValidationError("invalid JSON body")
	}
	for i, m := range b.Messages {
		if !m.Role.Valid() {
			return apperrors.NewValidationError(fmt.Sprintf("messages[%d]: invalid role %q", i, m.Role))
		}
	}
	if b.Messages == nil {
		b.Messages = []models.Message{}
	}
	return nil
}

// conversationError maps store errors onto API errors.
func conversationError(op, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFoundError("conversation", id)
	}
	return apperrors.NewDatabaseQueryFailedError(op, err)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	list, err := s.deps.Conversations.List(r.Context(), p.UserID)
	if err != nil {
		s.errors.WriteError(w, r, conversationError("list_conversations", "", err))
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{"conversations": list})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	id := chi.URLParam(r, "id")
	c, err := s.deps.Conversations.Get(r.Context(), p.UserID, id)
	if err != nil {
		s.errors.WriteError(w, r, conversationError("get_conversation", id, err))
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	var body conversationBody
	if err := body.decode(r); err != nil {
		s.errors.WriteError(w, r, err)
		return
	}
	c := &models.Conversation{
		UserID:   p.UserID,
		Title:    body.Title,
		Messages: body.Messages,
		Provider: body.Provider,
	}
	if err := s.deps.Conversations.Create(r.Context(), c); err != nil {
		s.errors.WriteError(w, r, conversationError("create_conversation", "", err))
		return
	}
	apperrors.WriteJSON(w, http.StatusCreated, c)
}

func (s *Server) updateConversation(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	id := chi.URLParam(r, "id")
	var body conversationBody
	if err := body.decode(r); err != nil {
		s.errors.WriteError(w, r, err)
		return
	}
	c := &models.Conversation{
		ID:       id,
		Title:    body.Title,
		Messages: body.Messages,
		Provider: body.Provider,
	}
	if err := s.deps.Conversations.Update(r.Context(), p.UserID, c); err != nil {
		s.errors.WriteError(w, r, conversationError("update_conversation", id, err))
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := s.deps.Conversations.Delete(r.Context(), p.UserID, id); err != nil {
		s.errors.WriteError(w, r, conversationError("delete_conversation", id, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clearConversations removes every conversation owned by the caller.
func (s *Server) clearConversations(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	n, err := s.deps.Conversations.DeleteAll(r.Context(), p.UserID)
	if err != nil {
		s.errors.WriteError(w, r, conversationError("clear_conversations", "", err))
		return
	}
	s.logger.Info("conversation history cleared", map[string]interface{}{"userId": p.UserID, "deleted": n})
	apperrors.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
