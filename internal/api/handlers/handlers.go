package handlers

import (
	"docchat/internal/app"
	"docchat/internal/auth"
	"docchat/internal/logger"
	"docchat/internal/repository/db"
	"docchat/internal/service/conversation"
	"docchat/internal/service/ingest"
	"docchat/pkg/validation"
	"encoding/json"
	"errors"
	"net/http"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// Envelope wraps every successful (and /response/* error) reply
type Envelope struct {
	Response any  `json:"response"`
	Debug    bool `json:"debug"`
	Code     int  `json:"code"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Handlers serves the HTTP API on top of the application services
type Handlers struct {
	config *app.Config
}

func NewHandlers(config *app.Config) *Handlers {
	return &Handlers{config: config}
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{
		Response: response,
		Debug:    h.config.AppConfig.Server.Debug,
		Code:     status,
	})
}

// sendError sends a standardized JSON error response
func (h *Handlers) sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(errResp)
}

// decode reads a JSON body into req and validates it. It writes the error
// response itself and reports false on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := validation.Validate(req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// authorize checks that the authenticated caller may act for userID
func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request, userID int64) bool {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok || !principal.CanActFor(userID) {
		logger.FromContext(r.Context()).WithField("user_id", userID).Warn("Caller may not act for user")
		h.sendError(w, http.StatusForbidden, "Unauthorized", nil)
		return false
	}
	return true
}

// sendServiceError maps service and store errors onto HTTP statuses
func (h *Handlers) sendServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	logger.FromContext(r.Context()).WithError(err).Error(message)

	switch {
	case errors.Is(err, conversation.ErrForbidden), errors.Is(err, ingest.ErrForbidden):
		h.sendError(w, http.StatusForbidden, "Unauthorized", err)
	case errors.Is(err, conversation.ErrConversationNotFound):
		h.sendError(w, http.StatusNotFound, "Conversation not found", err)
	case errors.Is(err, db.ErrNotFound):
		h.sendError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, db.ErrDuplicate), errors.Is(err, ingest.ErrDocumentExists):
		h.sendError(w, http.StatusConflict, message, err)
	case errors.Is(err, db.ErrUnknownField), errors.Is(err, db.ErrInvalidValue),
		errors.Is(err, ingest.ErrUnsupportedType), errors.Is(err, ingest.ErrEmptyDocument):
		h.sendError(w, http.StatusBadRequest, message, err)
	default:
		h.sendError(w, http.StatusInternalServerError, message, err)
	}
}
