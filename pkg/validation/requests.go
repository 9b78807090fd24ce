package validation

// QARequest is the body of /response/simple and /response/doc
type QARequest struct {
	UserMessage    string `json:"user_message" validate:"notblank,maxbytes"`
	ConversationID *int64 `json:"conversation_id"`
	UserID         int64  `json:"user_id" validate:"gt=0"`
	Document       *int64 `json:"document"`
	Memory         *int   `json:"memory" validate:"omitempty,lte=50"`
}

type ConversationCreateRequest struct {
	UserID      int64  `json:"user_id" validate:"gt=0"`
	Title       string `json:"title" validate:"max=200"`
	DocumentID  *int64 `json:"doc_id" validate:"omitempty,gt=0"`
	Model       string `json:"model" validate:"max=100"`
	AssistantID *int64 `json:"assistant_id" validate:"omitempty,gt=0"`
}

type ConversationRequest struct {
	UserID         int64 `json:"user_id" validate:"gt=0"`
	ConversationID int64 `json:"conversation_id" validate:"gt=0"`
}

type ConversationHistoryRequest struct {
	UserID         int64 `json:"user_id" validate:"gt=0"`
	ConversationID int64 `json:"conversation_id" validate:"gt=0"`
	Limit          int   `json:"limit" validate:"gte=0,lte=500"`
}

type ConversationUpdateRequest struct {
	UserID         int64  `json:"user_id" validate:"gt=0"`
	ConversationID int64  `json:"conversation_id" validate:"gt=0"`
	Field          string `json:"field" validate:"required,oneof=title active summary model assistant doc_id"`
	Value          any    `json:"value"`
}

type FeedbackRequest struct {
	UserID    int64 `json:"user_id" validate:"gt=0"`
	HistoryID int64 `json:"history_id" validate:"gt=0"`
	Feedback  int   `json:"feedback" validate:"oneof=-1 0 1"`
}

// HistoryTurnRequest addresses one turn of the user's history
type HistoryTurnRequest struct {
	UserID    int64 `json:"user_id" validate:"gt=0"`
	HistoryID int64 `json:"history_id" validate:"gt=0"`
}

// ErrorListRequest filters stored failure reports. Hours 0 means the last day.
type ErrorListRequest struct {
	Hours int `json:"hours" validate:"gte=0,lte=720"`
}

// UserRequest carries only the acting user, e.g. for list endpoints
type UserRequest struct {
	UserID int64 `json:"user_id" validate:"gt=0"`
}

// DocumentListRequest lists one user's documents; user_id 0 lists all of them
type DocumentListRequest struct {
	UserID int64 `json:"user_id" validate:"gte=0"`
}

type DocumentRequest struct {
	UserID     int64 `json:"user_id" validate:"gt=0"`
	DocumentID int64 `json:"doc_id" validate:"gt=0"`
}

// UploadForm holds the non-file fields of a multipart upload
type UploadForm struct {
	UserID   int64  `json:"user_id" validate:"gt=0"`
	FileName string `json:"file" validate:"notblank,max=255"`
	Force    bool   `json:"force"`
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdatePasswordRequest struct {
	UserID      int64  `json:"user_id" validate:"gt=0"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128,nefield=OldPassword"`
}

type CreateModelRequest struct {
	Name        string  `json:"name" validate:"notblank,max=100"`
	Description string  `json:"description" validate:"max=500"`
	PriceIn     float64 `json:"price_in" validate:"gte=0"`
	PriceOut    float64 `json:"price_out" validate:"gte=0"`
}

type CreateAssistantRequest struct {
	UserID       int64  `json:"user_id" validate:"gt=0"`
	Name         string `json:"name" validate:"notblank,max=100"`
	Description  string `json:"description" validate:"max=500"`
	Welcome      string `json:"welcome" validate:"max=1000"`
	SystemPrompt string `json:"system_prompt" validate:"notblank,maxbytes"`
}
