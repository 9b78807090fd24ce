package db

import "time"

// User represents an account
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Active       bool
}

// Conversation represents a chat thread, optionally bound to one document
type Conversation struct {
	ID          int64
	UserID      int64
	DocID       *int64
	Title       string
	Active      bool
	Summary     string
	Model       string
	AssistantID *int64
	CreatedAt   time.Time
}

// NewConversation carries the fields accepted on creation
type NewConversation struct {
	UserID      int64
	DocID       *int64
	Title       string
	Model       string
	AssistantID *int64
}

// HistoryTurn is one completed question/answer exchange
type HistoryTurn struct {
	ID             int64
	ConversationID *int64
	Prompt         string
	Answer         string
	FollowUp       string // newline-joined follow-up questions
	Feedback       int
	Sources        string // JSON array of {source, title}
	CreatedAt      time.Time
}

// Document is an uploaded file with its generated summary
type Document struct {
	ID      int64
	UserID  int64
	Name    string
	Summary string
	Steps   string // intermediate per-chunk summaries, JSON encoded
	Updated time.Time
	Active  bool
}

// Model is a priced completion model entry
type Model struct {
	ID          int64
	Name        string
	Description string
	PriceIn     float64
	PriceOut    float64
}

// Assistant is a named persona with its own system prompt
type Assistant struct {
	ID           int64
	UserID       int64
	Name         string
	Description  string
	Welcome      string
	SystemPrompt string
}

// ErrorRecord is a persisted failure report
type ErrorRecord struct {
	Text     string
	Metadata string
	Date     time.Time
}
