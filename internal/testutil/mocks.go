package testutil

import (
	"context"
	"docchat/internal/config"
	"docchat/internal/repository/db"
	"docchat/internal/service/llm"
	"errors"
	"time"
)

var errNotImplemented = errors.New("not implemented")

// MockDatabase is a mock implementation of db.Database for testing
type MockDatabase struct {
	// User mocks
	CreateUserFunc         func(ctx context.Context, name, email, passwordHash, role string) (*db.User, error)
	GetUserFunc            func(ctx context.Context, id int64) (*db.User, error)
	GetUserByEmailFunc     func(ctx context.Context, email string) (*db.User, error)
	UpdateUserFieldFunc    func(ctx context.Context, id int64, field db.UserField, value any) error
	UpdateUserPasswordFunc func(ctx context.Context, id int64, passwordHash string) error
	DeleteUserFunc         func(ctx context.Context, id int64) error

	// Conversation mocks
	CreateConversationFunc      func(ctx context.Context, conv db.NewConversation) (*db.Conversation, error)
	GetConversationFunc         func(ctx context.Context, id int64) (*db.Conversation, error)
	ListConversationsFunc       func(ctx context.Context, userID int64) ([]db.Conversation, error)
	UpdateConversationFieldFunc func(ctx context.Context, id int64, field db.ConversationField, value any) error
	DeleteConversationFunc      func(ctx context.Context, id int64) error

	// History mocks
	AddHistoryFunc         func(ctx context.Context, convID *int64, prompt, answer, followup string, feedback int) (int64, error)
	GetHistoryFunc         func(ctx context.Context, convID int64, limit int) ([]db.HistoryTurn, error)
	GetHistoryTurnFunc     func(ctx context.Context, id int64) (*db.HistoryTurn, error)
	UpdateHistoryFieldFunc func(ctx context.Context, id int64, field db.HistoryField, value any) error
	DeleteHistoryTurnFunc  func(ctx context.Context, id int64) error
	ClearHistoryFunc       func(ctx context.Context, convID int64) (int64, error)

	// Document mocks
	CreateDocumentFunc      func(ctx context.Context, userID int64, name string) (*db.Document, error)
	GetDocumentFunc         func(ctx context.Context, id int64) (*db.Document, error)
	GetDocumentByNameFunc   func(ctx context.Context, userID int64, name string) (*db.Document, error)
	ListDocumentsFunc       func(ctx context.Context, userID int64) ([]db.Document, error)
	ListAllDocumentsFunc    func(ctx context.Context) ([]db.Document, error)
	UpdateDocumentFieldFunc func(ctx context.Context, id int64, field db.DocumentField, value any) error
	DeleteDocumentFunc      func(ctx context.Context, id int64) error

	// Catalog mocks
	CreateModelFunc          func(ctx context.Context, m db.Model) (*db.Model, error)
	GetModelFunc             func(ctx context.Context, id int64) (*db.Model, error)
	ListModelsFunc           func(ctx context.Context) ([]db.Model, error)
	UpdateModelFieldFunc     func(ctx context.Context, id int64, field db.ModelField, value any) error
	DeleteModelFunc          func(ctx context.Context, id int64) error
	CreateAssistantFunc      func(ctx context.Context, a db.Assistant) (*db.Assistant, error)
	GetAssistantFunc         func(ctx context.Context, id int64) (*db.Assistant, error)
	ListAssistantsFunc       func(ctx context.Context, userID int64) ([]db.Assistant, error)
	UpdateAssistantFieldFunc func(ctx context.Context, id int64, field db.AssistantField, value any) error
	DeleteAssistantFunc      func(ctx context.Context, id int64) error

	// Error mocks
	SaveErrorFunc  func(ctx context.Context, text, metadata string) error
	ListErrorsFunc func(ctx context.Context, since time.Time) ([]db.ErrorRecord, error)
}

// User methods
func (m *MockDatabase) CreateUser(ctx context.Context, name, email, passwordHash, role string) (*db.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, name, email, passwordHash, role)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetUser(ctx context.Context, id int64) (*db.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	if m.GetUserByEmailFunc != nil {
		return m.GetUserByEmailFunc(ctx, email)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateUserField(ctx context.Context, id int64, field db.UserField, value any) error {
	if m.UpdateUserFieldFunc != nil {
		return m.UpdateUserFieldFunc(ctx, id, field, value)
	}
	return errNotImplemented
}

func (m *MockDatabase) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	if m.UpdateUserPasswordFunc != nil {
		return m.UpdateUserPasswordFunc(ctx, id, passwordHash)
	}
	return errNotImplemented
}

func (m *MockDatabase) DeleteUser(ctx context.Context, id int64) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, id)
	}
	return errNotImplemented
}

// Conversation methods
func (m *MockDatabase) CreateConversation(ctx context.Context, conv db.NewConversation) (*db.Conversation, error) {
	if m.CreateConversationFunc != nil {
		return m.CreateConversationFunc(ctx, conv)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetConversation(ctx context.Context, id int64) (*db.Conversation, error) {
	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) ListConversations(ctx context.Context, userID int64) ([]db.Conversation, error) {
	if m.ListConversationsFunc != nil {
		return m.ListConversationsFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateConversationField(ctx context.Context, id int64, field db.ConversationField, value any) error {
	if m.UpdateConversationFieldFunc != nil {
		return m.UpdateConversationFieldFunc(ctx, id, field, value)
	}
	return errNotImplemented
}

func (m *MockDatabase) DeleteConversation(ctx context.Context, id int64) error {
	if m.DeleteConversationFunc != nil {
		return m.DeleteConversationFunc(ctx, id)
	}
	return errNotImplemented
}

// History methods
func (m *MockDatabase) AddHistory(ctx context.Context, convID *int64, prompt, answer, followup string, feedback int) (int64, error) {
	if m.AddHistoryFunc != nil {
		return m.AddHistoryFunc(ctx, convID, prompt, answer, followup, feedback)
	}
	return 0, errNotImplemented
}

func (m *MockDatabase) GetHistory(ctx context.Context, convID int64, limit int) ([]db.HistoryTurn, error) {
	if m.GetHistoryFunc != nil {
		return m.GetHistoryFunc(ctx, convID, limit)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetHistoryTurn(ctx context.Context, id int64) (*db.HistoryTurn, error) {
	if m.GetHistoryTurnFunc != nil {
		return m.GetHistoryTurnFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateHistoryField(ctx context.Context, id int64, field db.HistoryField, value any) error {
	if m.UpdateHistoryFieldFunc != nil {
		return m.UpdateHistoryFieldFunc(ctx, id, field, value)
	}
	return errNotImplemented
}

func (m *MockDatabase) DeleteHistoryTurn(ctx context.Context, id int64) error {
	if m.DeleteHistoryTurnFunc != nil {
		return m.DeleteHistoryTurnFunc(ctx, id)
	}
	return errNotImplemented
}

func (m *MockDatabase) ClearHistory(ctx context.Context, convID int64) (int64, error) {
	if m.ClearHistoryFunc != nil {
		return m.ClearHistoryFunc(ctx, convID)
	}
	return 0, errNotImplemented
}

// Document methods
func (m *MockDatabase) CreateDocument(ctx context.Context, userID int64, name string) (*db.Document, error) {
	if m.CreateDocumentFunc != nil {
		return m.CreateDocumentFunc(ctx, userID, name)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetDocument(ctx context.Context, id int64) (*db.Document, error) {
	if m.GetDocumentFunc != nil {
		return m.GetDocumentFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetDocumentByName(ctx context.Context, userID int64, name string) (*db.Document, error) {
	if m.GetDocumentByNameFunc != nil {
		return m.GetDocumentByNameFunc(ctx, userID, name)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) ListDocuments(ctx context.Context, userID int64) ([]db.Document, error) {
	if m.ListDocumentsFunc != nil {
		return m.ListDocumentsFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) ListAllDocuments(ctx context.Context) ([]db.Document, error) {
	if m.ListAllDocumentsFunc != nil {
		return m.ListAllDocumentsFunc(ctx)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateDocumentField(ctx context.Context, id int64, field db.DocumentField, value any) error {
	if m.UpdateDocumentFieldFunc != nil {
		return m.UpdateDocumentFieldFunc(ctx, id, field, value)
	}
	return errNotImplemented
}

func (m *MockDatabase) DeleteDocument(ctx context.Context, id int64) error {
	if m.DeleteDocumentFunc != nil {
		return m.DeleteDocumentFunc(ctx, id)
	}
	return errNotImplemented
}

// Model and assistant methods
func (m *MockDatabase) CreateModel(ctx context.Context, model db.Model) (*db.Model, error) {
	if m.CreateModelFunc != nil {
		return m.CreateModelFunc(ctx, model)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetModel(ctx context.Context, id int64) (*db.Model, error) {
	if m.GetModelFunc != nil {
		return m.GetModelFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) ListModels(ctx context.Context) ([]db.Model, error) {
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateModelField(ctx context.Context, id int64, field db.ModelField, value any) error {
	if m.UpdateModelFieldFunc != nil {
		return m.UpdateModelFieldFunc(ctx, id, field, value)
	}
	return errNotImplemented
}

func (m *MockDatabase) DeleteModel(ctx context.Context, id int64) error {
	if m.DeleteModelFunc != nil {
		return m.DeleteModelFunc(ctx, id)
	}
	return errNotImplemented
}

func (m *MockDatabase) CreateAssistant(ctx context.Context, a db.Assistant) (*db.Assistant, error) {
	if m.CreateAssistantFunc != nil {
		return m.CreateAssistantFunc(ctx, a)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetAssistant(ctx context.Context, id int64) (*db.Assistant, error) {
	if m.GetAssistantFunc != nil {
		return m.GetAssistantFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) ListAssistants(ctx context.Context, userID int64) ([]db.Assistant, error) {
	if m.ListAssistantsFunc != nil {
		return m.ListAssistantsFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateAssistantField(ctx context.Context, id int64, field db.AssistantField, value any) error {
	if m.UpdateAssistantFieldFunc != nil {
		return m.UpdateAssistantFieldFunc(ctx, id, field, value)
	}
	return errNotImplemented
}

func (m *MockDatabase) DeleteAssistant(ctx context.Context, id int64) error {
	if m.DeleteAssistantFunc != nil {
		return m.DeleteAssistantFunc(ctx, id)
	}
	return errNotImplemented
}

// Error methods. SaveError succeeds by default so tests that do not care
// about error reporting need not stub it.
func (m *MockDatabase) SaveError(ctx context.Context, text, metadata string) error {
	if m.SaveErrorFunc != nil {
		return m.SaveErrorFunc(ctx, text, metadata)
	}
	return nil
}

func (m *MockDatabase) ListErrors(ctx context.Context, since time.Time) ([]db.ErrorRecord, error) {
	if m.ListErrorsFunc != nil {
		return m.ListErrorsFunc(ctx, since)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) Close() error { return nil }

// MockLLMProvider is a mock implementation of llm.Provider
type MockLLMProvider struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (string, error)
	EmbedFunc    func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *MockLLMProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", errNotImplemented
}

func (m *MockLLMProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts)
	}
	return nil, errNotImplemented
}

func (m *MockLLMProvider) Name() string { return "mock" }

// MockModeration is a mock implementation of llm.ModerationService
type MockModeration struct {
	IsFlaggedFunc func(ctx context.Context, text string) (bool, error)
}

func (m *MockModeration) IsFlagged(ctx context.Context, text string) (bool, error) {
	if m.IsFlaggedFunc != nil {
		return m.IsFlaggedFunc(ctx, text)
	}
	return false, nil
}

// NewMockAppConfig returns an AppConfig with the defaults the services expect
func NewMockAppConfig() *config.AppConfig {
	models, _ := config.NewModelsConfig("", "test-model")
	return &config.AppConfig{
		Server: config.ServerConfig{Port: "8080", RateLimit: 100, RateBurst: 100, MaxUploadBytes: 1 << 20},
		LLM:    config.LLMConfig{Provider: "openai", ChatModel: "test-model", EmbeddingModel: "test-embed"},
		Retrieval: config.RetrievalConfig{
			ClassName: "DocumentChunk", TopK: 4, ChunkSize: 1000, ChunkOverlap: 100, EmbedBatch: 64, SummaryLimit: 4,
		},
		QA:     config.QAConfig{MemoryWindow: 2, FollowUpHistory: 3, RequestTimeout: time.Minute},
		Auth:   config.AuthConfig{PublicAPIKey: "test-key", JWTSecret: []byte("0123456789abcdef0123456789abcdef"), TokenExpiration: time.Hour},
		Models: models,
	}
}
