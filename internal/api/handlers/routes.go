package handlers

import (
	"net/http"

	"golang.org/x/time/rate"
)

// NewRouter registers every route. metricsHandler serves GET /metrics.
func NewRouter(h *Handlers, metricsHandler http.Handler) http.Handler {
	serverConfig := h.config.AppConfig.Server
	protect := h.config.Auth.Middleware

	var limiter *rate.Limiter
	if serverConfig.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(serverConfig.RateLimit), max(serverConfig.RateBurst, 1))
	}

	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", h.HealthHandler)
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("POST /user/create", h.CreateUserHandler)
	mux.HandleFunc("POST /user/login", h.LoginHandler)

	// Question answering
	mux.HandleFunc("POST /response/simple", protect(h.RateLimit(limiter, h.SimpleResponseHandler)))
	mux.HandleFunc("POST /response/doc", protect(h.RateLimit(limiter, h.DocResponseHandler)))

	// Conversations
	mux.HandleFunc("POST /conv/create", protect(h.CreateConversationHandler))
	mux.HandleFunc("POST /conv/get", protect(h.GetConversationHandler))
	mux.HandleFunc("POST /conv/list", protect(h.ListConversationsHandler))
	mux.HandleFunc("POST /conv/history", protect(h.ConversationHistoryHandler))
	mux.HandleFunc("POST /conv/history/feedback", protect(h.FeedbackHandler))
	mux.HandleFunc("POST /conv/history/clear", protect(h.ClearHistoryHandler))
	mux.HandleFunc("POST /conv/history/delete", protect(h.DeleteHistoryTurnHandler))
	mux.HandleFunc("POST /conv/update", protect(h.UpdateConversationHandler))
	mux.HandleFunc("POST /conv/delete", protect(h.DeleteConversationHandler))

	// Documents
	mux.HandleFunc("POST /docs/list", protect(h.ListDocumentsHandler))
	mux.HandleFunc("POST /docs/upload", protect(h.UploadDocumentHandler))
	mux.HandleFunc("POST /docs/delete", protect(h.DeleteDocumentHandler))

	// Users
	mux.HandleFunc("POST /user/get", protect(h.GetUserHandler))
	mux.HandleFunc("POST /user/update_password", protect(h.UpdatePasswordHandler))

	// Catalog
	mux.HandleFunc("GET /models", protect(h.ListModelsHandler))
	mux.HandleFunc("POST /models/create", protect(h.CreateModelHandler))
	mux.HandleFunc("POST /assistants/list", protect(h.ListAssistantsHandler))
	mux.HandleFunc("POST /assistants/create", protect(h.CreateAssistantHandler))

	// Operations
	mux.HandleFunc("POST /errors/list", protect(h.ListErrorsHandler))

	return EnableCORS(serverConfig.AllowedOrigins, RequestLogger(h.config.Metrics, mux))
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
