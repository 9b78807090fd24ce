// Package qa answers user prompts, either directly or grounded in one
// uploaded document, and records every completed turn in history.
package qa

import (
	"context"
	"docchat/internal/config"
	"docchat/internal/observability"
	"docchat/internal/repository/db"
	"docchat/internal/service/conversation"
	"docchat/internal/service/errlog"
	"docchat/internal/service/llm"
	"docchat/internal/service/retrieval"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("docchat/qa")

const (
	StatusSuccess = "success"
	StatusError   = "error"

	MsgConversationNotFound = "Conversation not found or can't be created"
	MsgNoDocument           = "No document selected"
	MsgDocumentNotFound     = "Document not found"
	MsgContentPolicy        = "Message violates the content policy"

	pathSimple = "simple"
	pathDoc    = "doc"

	followUpCount = 3
)

var (
	ErrNoDocument        = errors.New("no document selected")
	ErrContentPolicy     = errors.New("message flagged by moderation")
	ErrDocumentForbidden = errors.New("document does not belong to user")
)

// Request is one user turn. Nil ConversationID means no conversation; nil
// MemoryWindow selects the configured default and -1 disables memory.
type Request struct {
	Prompt         string
	ConversationID *int64
	UserID         int64
	DocumentID     *int64
	MemoryWindow   *int
}

// Data is the payload of a successful turn
type Data struct {
	Response          string                `json:"response"`
	FollowUpQuestions []string              `json:"follow_up_questions"`
	Source            []retrieval.SourceRef `json:"source"`
	ConversationID    string                `json:"conversation_id"`
	HistoryID         int64                 `json:"history_id"`
}

// Result is the envelope returned for every call, success or not
type Result struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	ConversationID *int64 `json:"conversation_id"`
	Data           *Data  `json:"data,omitempty"`
}

func (r *Result) OK() bool { return r.Status == StatusSuccess }

func errorResult(message string, convID *int64) *Result {
	return &Result{Status: StatusError, Message: message, ConversationID: convID}
}

func successResult(ref *conversation.Ref, data *Data) *Result {
	if ref != nil {
		data.ConversationID = strconv.FormatInt(ref.ID, 10)
	}
	if data.FollowUpQuestions == nil {
		data.FollowUpQuestions = []string{}
	}
	if data.Source == nil {
		data.Source = []retrieval.SourceRef{}
	}
	return &Result{Status: StatusSuccess, Message: "Success", ConversationID: ref.IDPtr(), Data: data}
}

// Orchestrator coordinates one question answering turn
type Orchestrator struct {
	db            db.Database
	conversations *conversation.ConversationService
	completion    llm.CompletionService
	retriever     *retrieval.Retriever
	moderation    llm.ModerationService
	reporter      *errlog.Reporter
	metrics       *observability.Metrics
	models        *config.ModelsConfig
	cfg           config.QAConfig
	temperature   *float64
}

// Deps are the collaborators of an Orchestrator. Moderation and Metrics may be nil.
type Deps struct {
	DB          db.Database
	Completion  llm.CompletionService
	Retriever   *retrieval.Retriever
	Moderation  llm.ModerationService
	Reporter    *errlog.Reporter
	Metrics     *observability.Metrics
	Models      *config.ModelsConfig
	QA          config.QAConfig
	Temperature *float64
}

func NewOrchestrator(deps Deps) *Orchestrator {
	reporter := deps.Reporter
	if reporter == nil {
		reporter = errlog.NewReporter(deps.DB)
	}
	return &Orchestrator{
		db:            deps.DB,
		conversations: conversation.NewConversationService(deps.DB),
		completion:    deps.Completion,
		retriever:     deps.Retriever,
		moderation:    deps.Moderation,
		reporter:      reporter,
		metrics:       deps.Metrics,
		models:        deps.Models,
		cfg:           deps.QA,
		temperature:   deps.Temperature,
	}
}

func (o *Orchestrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) window(req Request) int {
	if req.MemoryWindow != nil {
		return *req.MemoryWindow
	}
	return o.cfg.MemoryWindow
}

// model picks the conversation's model when it is on the allow list;
// "" leaves the choice to the provider.
func (o *Orchestrator) model(ref *conversation.Ref) string {
	if ref == nil || ref.Model == "" || o.models == nil {
		return ""
	}
	return o.models.Resolve(ref.Model)
}

// moderate returns true when the prompt must be rejected. Moderation outages
// let the prompt through.
func (o *Orchestrator) moderate(ctx context.Context, req Request) bool {
	if o.moderation == nil {
		return false
	}
	flagged, err := o.moderation.IsFlagged(ctx, req.Prompt)
	if err != nil {
		o.reporter.Report(ctx, err, map[string]any{"stage": "moderation", "user_id": req.UserID})
		return false
	}
	if flagged {
		o.metrics.ModerationFlagged()
		o.reporter.Report(ctx, ErrContentPolicy, map[string]any{"stage": "moderation", "user_id": req.UserID})
	}
	return flagged
}

// resolve returns the conversation, or a terminal error envelope
func (o *Orchestrator) resolve(ctx context.Context, req Request) (*conversation.Ref, *Result) {
	ref, err := o.conversations.Resolve(ctx, req.ConversationID, req.UserID, req.DocumentID)
	if err == nil {
		return ref, nil
	}
	o.reporter.Report(ctx, err, map[string]any{"stage": "resolve", "conversation_id": req.ConversationID, "user_id": req.UserID})
	if errors.Is(err, conversation.ErrConversationNotFound) || errors.Is(err, conversation.ErrForbidden) {
		return nil, errorResult(MsgConversationNotFound, req.ConversationID)
	}
	return nil, errorResult(err.Error(), req.ConversationID)
}

// simpleComplete is the ungrounded generation step shared by the simple path
// and the last escalation of the grounded path.
func (o *Orchestrator) simpleComplete(ctx context.Context, ref *conversation.Ref, memory []conversation.Turn, prompt, model string) (string, error) {
	system := o.systemPrompt(ctx, ref)
	human, err := simplePrompt.Format(map[string]any{"human_input": prompt})
	if err != nil {
		return "", err
	}
	return o.completion.Complete(ctx, llm.CompletionRequest{
		System:      system,
		History:     toMessages(memory),
		Prompt:      human,
		Model:       model,
		Temperature: o.temperature,
	})
}

// systemPrompt uses the conversation's assistant persona when one is set
func (o *Orchestrator) systemPrompt(ctx context.Context, ref *conversation.Ref) string {
	if ref != nil && ref.AssistantID != nil {
		a, err := o.db.GetAssistant(ctx, *ref.AssistantID)
		if err == nil && a.SystemPrompt != "" {
			return a.SystemPrompt
		}
		if err != nil {
			o.reporter.Report(ctx, err, map[string]any{"stage": "assistant", "assistant_id": *ref.AssistantID})
		}
	}
	return simplePrompt.System()
}

func (o *Orchestrator) request(prompt, model string) llm.CompletionRequest {
	return llm.CompletionRequest{Prompt: prompt, Model: model, Temperature: o.temperature}
}

func toMessages(memory []conversation.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(memory))
	for _, t := range memory {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.Prompt},
			llm.Message{Role: llm.RoleAssistant, Content: t.Answer},
		)
	}
	return msgs
}
