package db

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("record already exists")
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidValue = errors.New("invalid field value")
)

type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash, role string) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUserField(ctx context.Context, id int64, field UserField, value any) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	DeleteUser(ctx context.Context, id int64) error
}

type ConversationStore interface {
	CreateConversation(ctx context.Context, conv NewConversation) (*Conversation, error)
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]Conversation, error)
	UpdateConversationField(ctx context.Context, id int64, field ConversationField, value any) error
	// DeleteConversation removes the conversation and its history atomically
	DeleteConversation(ctx context.Context, id int64) error
}

type HistoryStore interface {
	// AddHistory appends a turn; convID may be nil for turns outside any conversation
	AddHistory(ctx context.Context, convID *int64, prompt, answer, followup string, feedback int) (int64, error)
	// GetHistory returns turns newest-first; limit <= 0 returns all
	GetHistory(ctx context.Context, convID int64, limit int) ([]HistoryTurn, error)
	GetHistoryTurn(ctx context.Context, id int64) (*HistoryTurn, error)
	UpdateHistoryField(ctx context.Context, id int64, field HistoryField, value any) error
	DeleteHistoryTurn(ctx context.Context, id int64) error
	ClearHistory(ctx context.Context, convID int64) (int64, error)
}

type DocumentStore interface {
	CreateDocument(ctx context.Context, userID int64, name string) (*Document, error)
	GetDocument(ctx context.Context, id int64) (*Document, error)
	GetDocumentByName(ctx context.Context, userID int64, name string) (*Document, error)
	ListDocuments(ctx context.Context, userID int64) ([]Document, error)
	ListAllDocuments(ctx context.Context) ([]Document, error)
	UpdateDocumentField(ctx context.Context, id int64, field DocumentField, value any) error
	// DeleteDocument marks the document inactive
	DeleteDocument(ctx context.Context, id int64) error
}

type ModelStore interface {
	CreateModel(ctx context.Context, m Model) (*Model, error)
	GetModel(ctx context.Context, id int64) (*Model, error)
	ListModels(ctx context.Context) ([]Model, error)
	UpdateModelField(ctx context.Context, id int64, field ModelField, value any) error
	DeleteModel(ctx context.Context, id int64) error
}

type AssistantStore interface {
	CreateAssistant(ctx context.Context, a Assistant) (*Assistant, error)
	GetAssistant(ctx context.Context, id int64) (*Assistant, error)
	ListAssistants(ctx context.Context, userID int64) ([]Assistant, error)
	UpdateAssistantField(ctx context.Context, id int64, field AssistantField, value any) error
	DeleteAssistant(ctx context.Context, id int64) error
}

type ErrorStore interface {
	SaveError(ctx context.Context, text, metadata string) error
	ListErrors(ctx context.Context, since time.Time) ([]ErrorRecord, error)
}

// Database is the full record store
type Database interface {
	UserStore
	ConversationStore
	HistoryStore
	DocumentStore
	ModelStore
	AssistantStore
	ErrorStore
	Close() error
}
