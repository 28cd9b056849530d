// internal/api/chat.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/auth"
	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/followups"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/orchestrator"
	webaugmentation "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/web-augmentation"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/store"
)

// ApologyMessage answers a turn the pipeline could not complete.
const ApologyMessage = "Sorry, I ran into a problem answering that. Please try again in a moment."

const maxChatBody = 1 << 20

type chatRequest struct {
	Messages       []models.Message `json:"messages"`
	Location       string           `json:"location,omitempty"`
	Provider       string           `json:"provider,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Answer         string                   `json:"answer"`
	Followups      []string                 `json:"followups"`
	Provider       string                   `json:"provider,omitempty"`
	Sources        []webaugmentation.Source `json:"sources,omitempty"`
	ConversationID string                   `json:"conversation_id,omitempty"`
}

func (req *chatRequest) validate() error {
	if len(req.Messages) == 0 {
		return apperrors.NewValidationError("messages must not be empty")
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			return apperrors.NewValidationError(fmt.Sprintf("messages[%d]: invalid role %q", i, m.Role))
		}
	}
	return nil
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		s.errors.WriteError(w, r, apperrors.NewValidationError("invalid JSON body"))
		return
	}
	if err := req.validate(); err != nil {
		s.errors.WriteError(w, r, err)
		return
	}

	out, err := s.runChat(r.Context(), &orchestrator.ChatRequest{
		Messages: req.Messages,
		Location: req.Location,
		Provider: req.Provider,
	})
	if err == nil && out == nil {
		err = errors.New("chat pipeline returned no response")
	}
	if err != nil {
		if stdErr, ok := apperrors.As(err); ok && stdErr.Code == apperrors.ErrCodeValidationFailed {
			s.errors.WriteError(w, r, err)
			return
		}
		s.logger.Error("chat turn failed", map[string]interface{}{"error": err.Error(), "provider": req.Provider})
		apperrors.WriteJSON(w, http.StatusOK, chatResponse{
			Answer:    ApologyMessage,
			Followups: followups.Defaults(),
		})
		return
	}

	resp := chatResponse{
		Answer:    out.Answer,
		Followups: out.Followups,
		Provider:  out.Provider,
		Sources:   out.Sources,
	}
	if p := auth.FromContext(r.Context()); p != nil && s.deps.Conversations != nil {
		resp.ConversationID = s.saveTurn(r, p.UserID, &req, out)
	}
	apperrors.WriteJSON(w, http.StatusOK, resp)
}

// runChat turns a panic anywhere in the pipeline into an error so the
// caller still answers with the apology.
func (s *Server) runChat(ctx context.Context, req *orchestrator.ChatRequest) (out *orchestrator.ChatResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("chat pipeline panicked", map[string]interface{}{
				"panic": fmt.Sprint(rec),
				"stack": string(debug.Stack()),
			})
			out, err = nil, fmt.Errorf("chat pipeline panic: %v", rec)
		}
	}()
	return s.deps.Chat.Run(ctx, req)
}

// saveTurn records the exchange for a signed-in user and returns the
// conversation id. Failures are logged and the answer is still returned.
func (s *Server) saveTurn(r *http.Request, userID string, req *chatRequest, out *orchestrator.ChatResponse) string {
	msgs := make([]models.Message, 0, len(req.Messages)+1)
	msgs = append(msgs, req.Messages...)
	msgs = append(msgs, models.Message{Role: models.RoleAssistant, Content: out.Answer})

	provider := out.Provider
	if provider == "" {
		provider = req.Provider
	}
	conv := &models.Conversation{
		ID:       strings.TrimSpace(req.ConversationID),
		UserID:   userID,
		Messages: msgs,
		Provider: provider,
	}
	ctx := r.Context()

	if conv.ID != "" {
		err := s.deps.Conversations.Update(ctx, userID, conv)
		if err == nil {
			return conv.ID
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("saving conversation failed", map[string]interface{}{"conversationId": conv.ID, "error": err.Error()})
			return conv.ID
		}
		// unknown or foreign id: start a new conversation instead
		conv.ID = ""
		conv.Title = ""
	}

	if err := s.deps.Conversations.Create(ctx, conv); err != nil {
		s.logger.Error("creating conversation failed", map[string]interface{}{"error": err.Error()})
		return ""
	}
	return conv.ID
}
