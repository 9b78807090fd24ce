package qa

import (
	"context"
	"docchat/internal/logger"
	"docchat/internal/service/prompts"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var simplePrompt = prompts.Simple

// AnswerSimple answers without retrieval, using the conversation's recent
// turns as chat history, and persists exactly one history turn on success.
func (o *Orchestrator) AnswerSimple(ctx context.Context, req Request) (res *Result) {
	start := time.Now()
	defer func() { o.metrics.ObserveQA(pathSimple, start, res.OK()) }()

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "qa.AnswerSimple")
	defer span.End()

	if o.moderate(ctx, req) {
		return errorResult(MsgContentPolicy, req.ConversationID)
	}

	ref, rejected := o.resolve(ctx, req)
	if rejected != nil {
		span.SetStatus(codes.Error, rejected.Message)
		return rejected
	}
	convID := ref.IDPtr()

	memory, err := o.conversations.Memory(ctx, ref, o.window(req))
	if err != nil {
		return o.fail(ctx, span, err, "memory", convID)
	}

	answer, err := o.simpleComplete(ctx, ref, memory, req.Prompt, o.model(ref))
	if err != nil {
		return o.fail(ctx, span, err, "complete", convID)
	}

	historyID, err := o.db.AddHistory(ctx, convID, req.Prompt, answer, "", 0)
	if err != nil {
		return o.fail(ctx, span, err, "persist", convID)
	}

	span.SetAttributes(attribute.Int64("history_id", historyID), attribute.Int("memory_turns", len(memory)))
	logger.FromContext(ctx).WithFields(logrus.Fields{
		"conversation_id": convID,
		"history_id":      historyID,
	}).Debug("Simple answer stored")

	return successResult(ref, &Data{Response: answer, HistoryID: historyID})
}
