package app

import (
	"docchat/internal/auth"
	"docchat/internal/config"
	"docchat/internal/observability"
	"docchat/internal/repository/db"
	"docchat/internal/service/conversation"
	"docchat/internal/service/errlog"
	"docchat/internal/service/ingest"
	"docchat/internal/service/llm"
	"docchat/internal/service/qa"
	"docchat/internal/service/retrieval"
	"docchat/internal/service/summary"
)

// Config holds all application dependencies and configuration
type Config struct {
	// Database interface for data persistence
	DB db.Database
	// Centralized application configuration
	AppConfig *config.AppConfig

	Metrics       *observability.Metrics
	Auth          *auth.Authenticator
	Reporter      *errlog.Reporter
	Conversations *conversation.ConversationService
	Orchestrator  *qa.Orchestrator
	Ingest        *ingest.Service
}

// NewConfig wires the services on top of the store, the model backends and
// the vector index. metrics may be nil.
func NewConfig(database db.Database, appConfig *config.AppConfig, backends *llm.Backends,
	index retrieval.VectorIndex, metrics *observability.Metrics) *Config {
	reporter := errlog.NewReporter(database)
	retriever := retrieval.NewRetriever(backends.Provider, index, appConfig.Retrieval.TopK)
	summarizer := summary.NewSummaryService(database, backends.Provider, appConfig.Retrieval.SummaryLimit)

	temperature := appConfig.LLM.Temperature

	return &Config{
		DB:            database,
		AppConfig:     appConfig,
		Metrics:       metrics,
		Auth:          auth.NewAuthenticator(appConfig.Auth),
		Reporter:      reporter,
		Conversations: conversation.NewConversationService(database),
		Orchestrator: qa.NewOrchestrator(qa.Deps{
			DB:          database,
			Completion:  backends.Provider,
			Retriever:   retriever,
			Moderation:  backends.Moderation,
			Reporter:    reporter,
			Metrics:     metrics,
			Models:      appConfig.Models,
			QA:          appConfig.QA,
			Temperature: &temperature,
		}),
		Ingest: ingest.NewService(database, backends.Provider, index, summarizer, reporter, metrics, appConfig.Retrieval),
	}
}

func (c *Config) ModelsConfig() *config.ModelsConfig {
	return c.AppConfig.Models
}
