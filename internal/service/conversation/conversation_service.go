package conversation

import (
	"context"
	"docchat/internal/repository/db"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrForbidden            = errors.New("unauthorized: user does not own this resource")
)

// Ref identifies the conversation a turn belongs to. A nil *Ref means the
// turn is not attached to any conversation.
type Ref struct {
	ID          int64
	UserID      int64
	DocID       *int64
	Model       string
	AssistantID *int64
}

// IDPtr returns the id as a pointer, nil for a nil Ref
func (r *Ref) IDPtr() *int64 {
	if r == nil {
		return nil
	}
	id := r.ID
	return &id
}

// Turn is one (prompt, answer) pair in memory
type Turn struct {
	Prompt string
	Answer string
}

// ConversationService resolves conversations, builds memory from history and
// handles conversation management
type ConversationService struct {
	db db.Database
}

// NewConversationService creates a new ConversationService
func NewConversationService(database db.Database) *ConversationService {
	return &ConversationService{
		db: database,
	}
}

// Resolve maps a caller-supplied id to a conversation. nil or non-positive ids
// yield (nil, nil): no conversation. Unknown ids yield ErrConversationNotFound
// and a conversation owned by another user yields ErrForbidden.
func (s *ConversationService) Resolve(ctx context.Context, convID *int64, userID int64, docID *int64) (*Ref, error) {
	if convID == nil || *convID <= 0 {
		return nil, nil
	}

	conv, err := s.db.GetConversation(ctx, *convID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrConversationNotFound, *convID)
		}
		return nil, fmt.Errorf("failed to load conversation %d: %w", *convID, err)
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("%w: conversation %d", ErrForbidden, *convID)
	}

	return &Ref{
		ID:          conv.ID,
		UserID:      conv.UserID,
		DocID:       conv.DocID,
		Model:       conv.Model,
		AssistantID: conv.AssistantID,
	}, nil
}

// Memory returns up to window most recent turns, oldest first. A window <= 0
// or a nil conversation gives an empty memory.
func (s *ConversationService) Memory(ctx context.Context, ref *Ref, window int) ([]Turn, error) {
	if ref == nil || window <= 0 {
		return []Turn{}, nil
	}

	history, err := s.db.GetHistory(ctx, ref.ID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) > window {
		history = history[:window]
	}

	turns := make([]Turn, len(history))
	for i, h := range history {
		turns[len(history)-1-i] = Turn{Prompt: h.Prompt, Answer: h.Answer}
	}
	return turns, nil
}

// Transcript renders turns the way the grounded template expects them
func Transcript(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Human: %s\nAI: %s", t.Prompt, t.Answer)
	}
	return b.String()
}

// QATranscript renders turns as question/answer lines
func QATranscript(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "question: %s\nanswer: %s\n", t.Prompt, t.Answer)
	}
	return b.String()
}

// Tail returns at most n of the last turns
func Tail(turns []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}

// CreateConversation starts a new conversation for the user
func (s *ConversationService) CreateConversation(ctx context.Context, nc db.NewConversation) (*db.Conversation, error) {
	if nc.Title == "" {
		nc.Title = "New conversation"
	}
	if nc.DocID != nil {
		if _, err := s.ownedDocument(ctx, *nc.DocID, nc.UserID); err != nil {
			return nil, err
		}
	}

	conv, err := s.db.CreateConversation(ctx, nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns a conversation the user owns
func (s *ConversationService) GetConversation(ctx context.Context, conversationID, userID int64) (*db.Conversation, error) {
	return s.owned(ctx, conversationID, userID)
}

// GetUserConversations retrieves all active conversations for a user
func (s *ConversationService) GetUserConversations(ctx context.Context, userID int64) ([]db.Conversation, error) {
	conversations, err := s.db.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve conversations: %w", err)
	}
	return conversations, nil
}

// GetConversationHistory retrieves the turns of a conversation, newest first
func (s *ConversationService) GetConversationHistory(ctx context.Context, conversationID, userID int64, limit int) ([]db.HistoryTurn, error) {
	if _, err := s.owned(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	history, err := s.db.GetHistory(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve history: %w", err)
	}
	return history, nil
}

// UpdateConversation sets one field of a conversation the user owns
func (s *ConversationService) UpdateConversation(ctx context.Context, conversationID, userID int64, field string, value any) error {
	f, err := db.ParseConversationField(field)
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.db.UpdateConversationField(ctx, conversationID, f, value); err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// SetFeedback records the user's score for one turn of their conversation
func (s *ConversationService) SetFeedback(ctx context.Context, historyID, userID int64, feedback int) error {
	turn, err := s.db.GetHistoryTurn(ctx, historyID)
	if err != nil {
		return fmt.Errorf("history not found: %w", err)
	}
	if turn.ConversationID == nil {
		return ErrForbidden
	}
	if _, err := s.owned(ctx, *turn.ConversationID, userID); err != nil {
		return err
	}
	if err := s.db.UpdateHistoryField(ctx, historyID, db.HistoryFieldFeedback, feedback); err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}
	return nil
}

// DeleteTurn removes one turn of a conversation the user owns
func (s *ConversationService) DeleteTurn(ctx context.Context, historyID, userID int64) error {
	turn, err := s.db.GetHistoryTurn(ctx, historyID)
	if err != nil {
		return fmt.Errorf("history not found: %w", err)
	}
	if turn.ConversationID == nil {
		return ErrForbidden
	}
	if _, err := s.owned(ctx, *turn.ConversationID, userID); err != nil {
		return err
	}
	if err := s.db.DeleteHistoryTurn(ctx, historyID); err != nil {
		return fmt.Errorf("failed to delete history turn: %w", err)
	}
	return nil
}

// ClearHistory removes all turns of a conversation the user owns, keeping the conversation
func (s *ConversationService) ClearHistory(ctx context.Context, conversationID, userID int64) (int64, error) {
	if _, err := s.owned(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	n, err := s.db.ClearHistory(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return n, nil
}

// DeleteConversation deletes a conversation if the user owns it
func (s *ConversationService) DeleteConversation(ctx context.Context, conversationID, userID int64) error {
	if _, err := s.owned(ctx, conversationID, userID); err != nil {
		return err
	}

	if err := s.db.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	return nil
}

func (s *ConversationService) owned(ctx context.Context, conversationID, userID int64) (*db.Conversation, error) {
	conv, err := s.db.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrConversationNotFound, conversationID)
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv.UserID != userID {
		return nil, ErrForbidden
	}
	return conv, nil
}

func (s *ConversationService) ownedDocument(ctx context.Context, docID, userID int64) (*db.Document, error) {
	doc, err := s.db.GetDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("document not found: %w", err)
	}
	if doc.UserID != userID {
		return nil, ErrForbidden
	}
	return doc, nil
}
