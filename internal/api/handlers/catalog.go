package handlers

import (
	"docchat/internal/auth"
	"docchat/internal/repository/db"
	"docchat/pkg/validation"
	"net/http"
	"time"
)

type ModelInfo struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	PriceIn     float64 `json:"price_in"`
	PriceOut    float64 `json:"price_out"`
	Default     bool    `json:"default"`
}

type ErrorInfo struct {
	Text     string `json:"error_text"`
	Metadata string `json:"metadata"`
	Date     string `json:"date"`
}

type AssistantInfo struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Welcome      string `json:"welcome"`
	SystemPrompt string `json:"system_prompt"`
}

func assistantInfo(a *db.Assistant) AssistantInfo {
	return AssistantInfo{
		ID:           a.ID,
		UserID:       a.UserID,
		Name:         a.Name,
		Description:  a.Description,
		Welcome:      a.Welcome,
		SystemPrompt: a.SystemPrompt,
	}
}

// ListModelsHandler returns the priced model catalog
func (h *Handlers) ListModelsHandler(w http.ResponseWriter, r *http.Request) {
	models, err := h.config.DB.ListModels(r.Context())
	if err != nil {
		h.sendServiceError(w, r, "Error retrieving models", err)
		return
	}

	defaultModel := ""
	if mc := h.config.ModelsConfig(); mc != nil {
		defaultModel = mc.GetDefaultModel()
	}

	infos := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		infos = append(infos, ModelInfo{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			PriceIn:     m.PriceIn,
			PriceOut:    m.PriceOut,
			Default:     m.Name == defaultModel,
		})
	}
	h.sendJSON(w, http.StatusOK, infos)
}

// CreateModelHandler adds a catalog entry; only service callers may do so
func (h *Handlers) CreateModelHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateModelRequest
	if !h.decode(w, r, &req) {
		return
	}
	if principal, ok := auth.PrincipalFrom(r.Context()); !ok || !principal.Service {
		h.sendError(w, http.StatusForbidden, "Unauthorized", nil)
		return
	}

	m, err := h.config.DB.CreateModel(r.Context(), db.Model{
		Name:        req.Name,
		Description: req.Description,
		PriceIn:     req.PriceIn,
		PriceOut:    req.PriceOut,
	})
	if err != nil {
		h.sendServiceError(w, r, "Error creating model", err)
		return
	}

	h.sendJSON(w, http.StatusOK, ModelInfo{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		PriceIn:     m.PriceIn,
		PriceOut:    m.PriceOut,
	})
}

func (h *Handlers) ListAssistantsHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.UserRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	assistants, err := h.config.DB.ListAssistants(r.Context(), req.UserID)
	if err != nil {
		h.sendServiceError(w, r, "Error retrieving assistants", err)
		return
	}

	infos := make([]AssistantInfo, 0, len(assistants))
	for i := range assistants {
		infos = append(infos, assistantInfo(&assistants[i]))
	}
	h.sendJSON(w, http.StatusOK, infos)
}

func (h *Handlers) CreateAssistantHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateAssistantRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	a, err := h.config.DB.CreateAssistant(r.Context(), db.Assistant{
		UserID:       req.UserID,
		Name:         req.Name,
		Description:  req.Description,
		Welcome:      req.Welcome,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		h.sendServiceError(w, r, "Error creating assistant", err)
		return
	}

	h.sendJSON(w, http.StatusOK, assistantInfo(a))
}

// ListErrorsHandler returns stored failure reports, newest first. Service callers only.
func (h *Handlers) ListErrorsHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.ErrorListRequest
	if !h.decode(w, r, &req) {
		return
	}
	if principal, ok := auth.PrincipalFrom(r.Context()); !ok || !principal.Service {
		h.sendError(w, http.StatusForbidden, "Unauthorized", nil)
		return
	}

	hours := req.Hours
	if hours == 0 {
		hours = 24
	}
	records, err := h.config.DB.ListErrors(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		h.sendServiceError(w, r, "Error listing errors", err)
		return
	}

	infos := make([]ErrorInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, ErrorInfo{Text: rec.Text, Metadata: rec.Metadata, Date: rec.Date.Format(time.RFC3339)})
	}
	h.sendJSON(w, http.StatusOK, infos)
}
