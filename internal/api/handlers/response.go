package handlers

import (
	"docchat/internal/logger"
	"docchat/internal/service/qa"
	"docchat/pkg/validation"
	"net/http"

	"github.com/sirupsen/logrus"
)

func toQARequest(req validation.QARequest) qa.Request {
	return qa.Request{
		Prompt:         req.UserMessage,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		DocumentID:     req.Document,
		MemoryWindow:   req.Memory,
	}
}

// SimpleResponseHandler answers without document retrieval. Orchestration
// failures are reported inside the envelope, not as HTTP errors.
func (h *Handlers) SimpleResponseHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.QARequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	logger.FromContext(r.Context()).WithFields(logrus.Fields{
		"user_id":         req.UserID,
		"conversation_id": req.ConversationID,
	}).Info("Simple response request")

	result := h.config.Orchestrator.AnswerSimple(r.Context(), toQARequest(req))
	h.sendJSON(w, http.StatusOK, result)
}

// DocResponseHandler answers grounded in the selected document
func (h *Handlers) DocResponseHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.QARequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	logger.FromContext(r.Context()).WithFields(logrus.Fields{
		"user_id":         req.UserID,
		"conversation_id": req.ConversationID,
		"document":        req.Document,
	}).Info("Document response request")

	result := h.config.Orchestrator.AnswerOverDocument(r.Context(), toQARequest(req))
	h.sendJSON(w, http.StatusOK, result)
}
