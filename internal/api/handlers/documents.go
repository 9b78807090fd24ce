package handlers

import (
	"docchat/internal/auth"
	"docchat/internal/logger"
	"docchat/internal/repository/db"
	"docchat/internal/service/ingest"
	"docchat/pkg/validation"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultMaxUploadBytes = 10 << 20

type DocumentInfo struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"`
	Summary string `json:"summary"`
	Updated string `json:"updated"`
}

type UploadResponse struct {
	Document     DocumentInfo `json:"document"`
	Chunks       int          `json:"chunks"`
	Replaced     bool         `json:"replaced"`
	SummaryError string       `json:"summary_error,omitempty"`
}

func documentInfo(d *db.Document) DocumentInfo {
	return DocumentInfo{
		ID:      d.ID,
		UserID:  d.UserID,
		Name:    d.Name,
		Summary: d.Summary,
		Updated: d.Updated.Format(time.RFC3339),
	}
}

// ListDocumentsHandler lists the user's documents. Service callers may pass
// user_id 0 to list every document.
func (h *Handlers) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.DocumentListRequest
	if !h.decode(w, r, &req) {
		return
	}

	var (
		docs []db.Document
		err  error
	)
	if req.UserID == 0 {
		if principal, ok := auth.PrincipalFrom(r.Context()); !ok || !principal.Service {
			h.sendError(w, http.StatusForbidden, "Unauthorized", nil)
			return
		}
		docs, err = h.config.Ingest.ListAll(r.Context())
	} else {
		if !h.authorize(w, r, req.UserID) {
			return
		}
		docs, err = h.config.Ingest.List(r.Context(), req.UserID)
	}
	if err != nil {
		h.sendServiceError(w, r, "Can't get docs", err)
		return
	}

	infos := make([]DocumentInfo, 0, len(docs))
	for i := range docs {
		infos = append(infos, documentInfo(&docs[i]))
	}
	h.sendJSON(w, http.StatusOK, infos)
}

// UploadDocumentHandler accepts a multipart form with file, user_id and force
func (h *Handlers) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	limit := h.config.AppConfig.Server.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.sendError(w, http.StatusRequestEntityTooLarge, "File too large", err)
			return
		}
		h.sendError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "Validation failed", fmt.Errorf("%w: file is required", validation.ErrInvalidRequest))
		return
	}
	defer file.Close()

	form, err := parseUploadForm(r, header.Filename)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	if !h.authorize(w, r, form.UserID) {
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "Error reading file", err)
		return
	}

	logger.FromContext(r.Context()).WithFields(logrus.Fields{
		"user_id": form.UserID,
		"file":    form.FileName,
		"bytes":   len(content),
		"force":   form.Force,
	}).Info("Document upload request")

	result, err := h.config.Ingest.Upload(r.Context(), ingest.UploadRequest{
		UserID:   form.UserID,
		FileName: form.FileName,
		Content:  content,
		Force:    form.Force,
	})
	if err != nil {
		h.sendServiceError(w, r, "Error indexing document", err)
		return
	}

	h.sendJSON(w, http.StatusOK, UploadResponse{
		Document:     documentInfo(result.Document),
		Chunks:       result.Chunks,
		Replaced:     result.Replaced,
		SummaryError: result.SummaryError,
	})
}

func parseUploadForm(r *http.Request, fileName string) (*validation.UploadForm, error) {
	userID, err := strconv.ParseInt(r.FormValue("user_id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id must be an integer", validation.ErrInvalidRequest)
	}
	form := &validation.UploadForm{UserID: userID, FileName: fileName}
	if raw := r.FormValue("force"); raw != "" {
		form.Force, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: force must be a boolean", validation.ErrInvalidRequest)
		}
	}
	if err := validation.Validate(form); err != nil {
		return nil, err
	}
	return form, nil
}

func (h *Handlers) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.DocumentRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	if err := h.config.Ingest.Delete(r.Context(), req.DocumentID, req.UserID); err != nil {
		h.sendServiceError(w, r, "Error deleting document", err)
		return
	}

	h.sendJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Document deleted successfully"})
}
