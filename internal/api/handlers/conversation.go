package handlers

import (
	"docchat/internal/repository/db"
	"docchat/pkg/validation"
	"fmt"
	"net/http"
	"time"
)

type ConversationInfo struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	DocID       *int64 `json:"doc_id"`
	Title       string `json:"title"`
	Active      bool   `json:"active"`
	Summary     string `json:"summary"`
	Model       string `json:"model,omitempty"`
	AssistantID *int64 `json:"assistant_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type HistoryData struct {
	ID             int64  `json:"id"`
	ConversationID *int64 `json:"conversation_id"`
	Prompt         string `json:"prompt"`
	Answer         string `json:"answer"`
	FollowUp       string `json:"followup"`
	Feedback       int    `json:"feedback"`
	Sources        string `json:"sources"`
	CreatedAt      string `json:"created_at"`
}

func conversationInfo(c *db.Conversation) ConversationInfo {
	return ConversationInfo{
		ID:          c.ID,
		UserID:      c.UserID,
		DocID:       c.DocID,
		Title:       c.Title,
		Active:      c.Active,
		Summary:     c.Summary,
		Model:       c.Model,
		AssistantID: c.AssistantID,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handlers) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.ConversationCreateRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	conv, err := h.config.Conversations.CreateConversation(r.Context(), db.NewConversation{
		UserID:      req.UserID,
		DocID:       req.DocumentID,
		Title:       req.Title,
		Model:       req.Model,
		AssistantID: req.AssistantID,
	})
	if err != nil {
		h.sendServiceError(w, r, "Error creating conversation", err)
		return
	}

	h.sendJSON(w, http.StatusOK, conversationInfo(conv))
}

func (h *Handlers) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.ConversationRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	conv, err := h.config.Conversations.GetConversation(r.Context(), req.ConversationID, req.UserID)
	if err != nil {
		h.sendServiceError(w, r, "Error retrieving conversation", err)
		return
	}

	h.sendJSON(w, http.StatusOK, conversationInfo(conv))
}

// ListConversationsHandler returns the user's active conversations
func (h *Handlers) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.UserRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	conversations, err := h.config.Conversations.GetUserConversations(r.Context(), req.UserID)
	if err != nil {
		h.sendServiceError(w, r, "Error retrieving conversations", err)
		return
	}

	infos := make([]ConversationInfo, 0, len(conversations))
	for i := range conversations {
		infos = append(infos, conversationInfo(&conversations[i]))
	}
	h.sendJSON(w, http.StatusOK, infos)
}

// ConversationHistoryHandler returns turns newest first
func (h *Handlers) ConversationHistoryHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.ConversationHistoryRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	history, err := h.config.Conversations.GetConversationHistory(r.Context(), req.ConversationID, req.UserID, req.Limit)
	if err != nil {
		h.sendServiceError(w, r, "Error retrieving history", err)
		return
	}

	turns := make([]HistoryData, 0, len(history))
	for _, t := range history {
		turns = append(turns, HistoryData{
			ID:             t.ID,
			ConversationID: t.ConversationID,
			Prompt:         t.Prompt,
			Answer:         t.Answer,
			FollowUp:       t.FollowUp,
			Feedback:       t.Feedback,
			Sources:        t.Sources,
			CreatedAt:      t.CreatedAt.Format(time.RFC3339),
		})
	}
	h.sendJSON(w, http.StatusOK, turns)
}

func (h *Handlers) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.FeedbackRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	if err := h.config.Conversations.SetFeedback(r.Context(), req.HistoryID, req.UserID, req.Feedback); err != nil {
		h.sendServiceError(w, r, "Error saving feedback", err)
		return
	}

	h.sendJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Feedback saved"})
}

// ClearHistoryHandler deletes every turn of a conversation but keeps the conversation
func (h *Handlers) ClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.ConversationRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	n, err := h.config.Conversations.ClearHistory(r.Context(), req.ConversationID, req.UserID)
	if err != nil {
		h.sendServiceError(w, r, "Error clearing history", err)
		return
	}

	h.sendJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: fmt.Sprintf("Deleted %d turns", n)})
}

func (h *Handlers) DeleteHistoryTurnHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.HistoryTurnRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	if err := h.config.Conversations.DeleteTurn(r.Context(), req.HistoryID, req.UserID); err != nil {
		h.sendServiceError(w, r, "Error deleting history turn", err)
		return
	}

	h.sendJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "History turn deleted"})
}

func (h *Handlers) UpdateConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.ConversationUpdateRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	if err := h.config.Conversations.UpdateConversation(r.Context(), req.ConversationID, req.UserID, req.Field, req.Value); err != nil {
		h.sendServiceError(w, r, "Error updating conversation", err)
		return
	}

	h.sendJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Conversation updated"})
}

func (h *Handlers) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.ConversationRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	if err := h.config.Conversations.DeleteConversation(r.Context(), req.ConversationID, req.UserID); err != nil {
		h.sendServiceError(w, r, "Error deleting conversation", err)
		return
	}

	h.sendJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Conversation deleted successfully"})
}
