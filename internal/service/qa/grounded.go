package qa

import (
	"context"
	"docchat/internal/logger"
	"docchat/internal/repository/db"
	"docchat/internal/service/conversation"
	"docchat/internal/service/formatter"
	"docchat/internal/service/prompts"
	"docchat/internal/service/retrieval"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AnswerOverDocument answers from the selected document's passages. A NONE
// answer is retried once with a refined prompt; a second NONE falls back to
// one ungrounded completion of the refined prompt.
func (o *Orchestrator) AnswerOverDocument(ctx context.Context, req Request) (res *Result) {
	start := time.Now()
	defer func() { o.metrics.ObserveQA(pathDoc, start, res.OK()) }()

	if req.DocumentID == nil || *req.DocumentID <= 0 {
		o.reporter.Report(ctx, ErrNoDocument, map[string]any{"stage": "validate", "user_id": req.UserID})
		return errorResult(MsgNoDocument, nil)
	}
	docID := *req.DocumentID

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "qa.AnswerOverDocument")
	defer span.End()
	span.SetAttributes(attribute.Int64("doc_id", docID))

	if o.moderate(ctx, req) {
		return errorResult(MsgContentPolicy, req.ConversationID)
	}

	ref, rejected := o.resolve(ctx, req)
	if rejected != nil {
		span.SetStatus(codes.Error, rejected.Message)
		return rejected
	}
	convID := ref.IDPtr()

	doc, err := o.db.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			o.reporter.Report(ctx, err, map[string]any{"stage": "document", "doc_id": docID})
			return errorResult(MsgDocumentNotFound, convID)
		}
		return o.fail(ctx, span, err, "document", convID)
	}
	if doc.UserID != req.UserID {
		o.reporter.Report(ctx, ErrDocumentForbidden, map[string]any{"stage": "document", "doc_id": docID, "user_id": req.UserID})
		return errorResult(MsgDocumentNotFound, convID)
	}

	docRetriever := o.retriever.ForDocument(docID)

	memory, err := o.conversations.Memory(ctx, ref, o.window(req))
	if err != nil {
		return o.fail(ctx, span, err, "memory", convID)
	}
	model := o.model(ref)

	answer, passages, err := o.grounded(ctx, docRetriever, memory, req.Prompt, model)
	if err != nil {
		return o.fail(ctx, span, err, "retrieve", convID)
	}

	level := "primary"
	if answer == prompts.NoneAnswer {
		level = "refined"
		o.metrics.Escalation(level)
		refined := o.refine(ctx, doc, memory, req.Prompt, model)

		answer, passages, err = o.grounded(ctx, docRetriever, memory, refined, model)
		if err != nil {
			return o.fail(ctx, span, err, "retrieve_refined", convID)
		}

		if answer == prompts.NoneAnswer {
			level = "ungrounded"
			o.metrics.Escalation(level)
			answer, err = o.simpleComplete(ctx, ref, memory, refined, model)
			if err != nil {
				return o.fail(ctx, span, err, "ungrounded", convID)
			}
		}
	}
	span.SetAttributes(attribute.String("answer_level", level))

	followUps := o.followUps(ctx, doc, memory, req.Prompt, answer, model)

	historyID, err := o.db.AddHistory(ctx, convID, req.Prompt, answer, strings.Join(followUps, "\n"), 0)
	if err != nil {
		return o.fail(ctx, span, err, "persist", convID)
	}
	if err := o.db.UpdateHistoryField(ctx, historyID, db.HistoryFieldSources, retrieval.FormatSources(passages)); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("history_id", historyID).Warn("Failed to store sources")
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"conversation_id": convID,
		"doc_id":          docID,
		"history_id":      historyID,
		"level":           level,
		"passages":        len(passages),
	}).Info("Document answer stored")

	return successResult(ref, &Data{
		Response:          answer,
		FollowUpQuestions: followUps,
		Source:            retrieval.Sources(passages),
		HistoryID:         historyID,
	})
}

// grounded runs one retrieval-augmented attempt and returns the formatted answer
func (o *Orchestrator) grounded(ctx context.Context, r *retrieval.DocumentRetriever, memory []conversation.Turn, question, model string) (string, []retrieval.Passage, error) {
	passages, err := r.Retrieve(ctx, question)
	if err != nil {
		return "", nil, err
	}

	text, err := prompts.DocumentQA.Format(map[string]any{
		"context":  retrieval.Context(passages),
		"history":  conversation.Transcript(memory),
		"question": question,
	})
	if err != nil {
		return "", nil, err
	}

	raw, err := o.completion.Complete(ctx, o.request(text, model))
	if err != nil {
		return "", nil, err
	}
	return formatter.Format(raw).Answer, passages, nil
}

// refine asks for a prompt closer to the document. Any failure keeps the
// original prompt.
func (o *Orchestrator) refine(ctx context.Context, doc *db.Document, memory []conversation.Turn, prompt, model string) string {
	text, err := prompts.Refine.Format(map[string]any{
		"summary": doc.Summary,
		"name":    doc.Name,
		"history": conversation.QATranscript(conversation.Tail(memory, o.followUpHistory())),
		"prompt":  prompt,
	})
	if err == nil {
		var raw string
		raw, err = o.completion.Complete(ctx, o.request(text, model))
		if err == nil {
			refined := strings.TrimSpace(strings.ReplaceAll(raw, prompts.OptimizedPrefix, ""))
			if refined != "" {
				return refined
			}
			return prompt
		}
	}
	o.reporter.Report(ctx, err, map[string]any{"stage": "refine", "doc_id": doc.ID})
	return prompt
}

// followUps never fails the turn: any error yields an empty list
func (o *Orchestrator) followUps(ctx context.Context, doc *db.Document, memory []conversation.Turn, prompt, answer, model string) []string {
	window := append(append([]conversation.Turn(nil), memory...), conversation.Turn{Prompt: prompt, Answer: answer})

	text, err := prompts.FollowUp.Format(map[string]any{
		"summary": doc.Summary,
		"name":    doc.Name,
		"history": conversation.QATranscript(conversation.Tail(window, o.followUpHistory())),
	})
	if err == nil {
		var raw string
		raw, err = o.completion.Complete(ctx, o.request(text, model))
		if err == nil {
			questions := formatter.SplitLines(strings.ReplaceAll(raw, prompts.FollowUpPrefix, ""))
			if len(questions) > followUpCount {
				questions = questions[:followUpCount]
			}
			return questions
		}
	}
	o.metrics.FollowUpFailed()
	o.reporter.Report(ctx, err, map[string]any{"stage": "follow_up", "doc_id": doc.ID})
	return []string{}
}

func (o *Orchestrator) followUpHistory() int {
	if o.cfg.FollowUpHistory > 0 {
		return o.cfg.FollowUpHistory
	}
	return followUpCount
}

// fail reports err and converts it to an error envelope
func (o *Orchestrator) fail(ctx context.Context, span trace.Span, err error, stage string, convID *int64) *Result {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	o.reporter.Report(ctx, err, map[string]any{"stage": stage, "conversation_id": convID})
	return errorResult(err.Error(), convID)
}
