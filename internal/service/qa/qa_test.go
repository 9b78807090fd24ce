package qa

import (
	"context"
	"docchat/internal/config"
	"docchat/internal/observability"
	"docchat/internal/repository/db"
	"docchat/internal/service/llm"
	"docchat/internal/service/prompts"
	"docchat/internal/service/retrieval"
	"docchat/internal/testutil"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

type fakeIndex struct {
	passages []retrieval.Passage
	err      error
	searches int
}

func (f *fakeIndex) Search(ctx context.Context, docID int64, vector []float32, limit int) ([]retrieval.Passage, error) {
	f.searches++
	return f.passages, f.err
}

func (f *fakeIndex) Store(ctx context.Context, docID int64, chunks []retrieval.Chunk) (int, error) {
	return len(chunks), nil
}

func (f *fakeIndex) DeleteDocument(ctx context.Context, docID int64) error { return nil }

type savedTurn struct {
	convID   *int64
	prompt   string
	answer   string
	followup string
}

// harness wires an Orchestrator to in-memory fakes and records every call
type harness struct {
	t *testing.T

	db      *testutil.MockDatabase
	index   *fakeIndex
	metrics *observability.Metrics

	grounded  []string // queued replies to grounded prompts
	refined   string
	followUp  string
	simple    string
	failOn    string // "grounded", "refine", "followup", "simple"
	embedCall int

	groundedQuestions []string
	simplePrompts     []string
	simpleRequests    []llm.CompletionRequest
	refineCalls       int
	followUpCalls     int
	completeCalls     int

	saved   []savedTurn
	sources string
	flagged bool
	modErr  error
	modCall int
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		t:        t,
		index:    &fakeIndex{passages: []retrieval.Passage{{Content: "Paris is the capital of France.", Source: "uploads/geo/france.txt", Score: 0.9}}},
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		refined:  "Optimized prompt: What city is the French capital?",
		followUp: "Follow up questions: What is its population?\nWhat river runs through it?\nWhen was it founded?",
		simple:   "fallback answer",
	}
	h.db = &testutil.MockDatabase{
		GetConversationFunc: func(ctx context.Context, id int64) (*db.Conversation, error) {
			if id == 7 {
				return &db.Conversation{ID: 7, UserID: 1, Model: "test-model"}, nil
			}
			if id == 8 {
				return &db.Conversation{ID: 8, UserID: 1, AssistantID: int64Ptr(3)}, nil
			}
			return nil, fmt.Errorf("conversation %d: %w", id, db.ErrNotFound)
		},
		GetHistoryFunc: func(ctx context.Context, convID int64, limit int) ([]db.HistoryTurn, error) {
			all := []db.HistoryTurn{
				{ID: 3, Prompt: "q3", Answer: "a3"},
				{ID: 2, Prompt: "q2", Answer: "a2"},
				{ID: 1, Prompt: "q1", Answer: "a1"},
			}
			if limit > 0 && limit < len(all) {
				all = all[:limit]
			}
			return all, nil
		},
		GetDocumentFunc: func(ctx context.Context, id int64) (*db.Document, error) {
			if id == 5 {
				return &db.Document{ID: 5, UserID: 1, Name: "france.txt", Summary: "About France."}, nil
			}
			return nil, db.ErrNotFound
		},
		GetAssistantFunc: func(ctx context.Context, id int64) (*db.Assistant, error) {
			return &db.Assistant{ID: id, SystemPrompt: "You are a pirate."}, nil
		},
		AddHistoryFunc: func(ctx context.Context, convID *int64, prompt, answer, followup string, feedback int) (int64, error) {
			h.saved = append(h.saved, savedTurn{convID, prompt, answer, followup})
			return int64(100 + len(h.saved)), nil
		},
		UpdateHistoryFieldFunc: func(ctx context.Context, id int64, field db.HistoryField, value any) error {
			if field == db.HistoryFieldSources {
				h.sources, _ = value.(string)
			}
			return nil
		},
	}
	return h
}

func (h *harness) complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	h.completeCalls++
	switch {
	case strings.Contains(req.Prompt, "<ctx>"):
		q := req.Prompt[strings.LastIndex(req.Prompt, "------\n")+len("------\n"):]
		h.groundedQuestions = append(h.groundedQuestions, strings.TrimSuffix(q, "\nAnswer: "))
		if h.failOn == "grounded" {
			return "", errors.New("completion quota exceeded")
		}
		if len(h.grounded) == 0 {
			h.t.Fatal("unexpected grounded completion")
		}
		reply := h.grounded[0]
		h.grounded = h.grounded[1:]
		return reply, nil
	case strings.HasSuffix(req.Prompt, prompts.OptimizedPrefix):
		h.refineCalls++
		if h.failOn == "refine" {
			return "", errors.New("refine timeout")
		}
		return h.refined, nil
	case strings.HasSuffix(req.Prompt, prompts.FollowUpPrefix):
		h.followUpCalls++
		if h.failOn == "followup" {
			return "", errors.New("follow-up timeout")
		}
		return h.followUp, nil
	default:
		h.simplePrompts = append(h.simplePrompts, req.Prompt)
		h.simpleRequests = append(h.simpleRequests, req)
		if h.failOn == "simple" {
			return "", errors.New("upstream 503")
		}
		return h.simple, nil
	}
}

func (h *harness) orchestrator(moderated bool) *Orchestrator {
	provider := &testutil.MockLLMProvider{
		CompleteFunc: h.complete,
		EmbedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			h.embedCall++
			return [][]float32{{0.1, 0.2}}, nil
		},
	}
	models, _ := config.NewModelsConfig("", "test-model")
	deps := Deps{
		DB:         h.db,
		Completion: provider,
		Retriever:  retrieval.NewRetriever(provider, h.index, 4),
		Metrics:    h.metrics,
		Models:     models,
		QA:         config.QAConfig{MemoryWindow: 2, FollowUpHistory: 3, RequestTimeout: time.Minute},
	}
	if moderated {
		deps.Moderation = &testutil.MockModeration{
			IsFlaggedFunc: func(ctx context.Context, text string) (bool, error) {
				h.modCall++
				return h.flagged, h.modErr
			},
		}
	}
	return NewOrchestrator(deps)
}

func docRequest(prompt string) Request {
	return Request{Prompt: prompt, ConversationID: int64Ptr(7), UserID: 1, DocumentID: int64Ptr(5)}
}

func TestAnswerOverDocument_NoDocument(t *testing.T) {
	h := newHarness(t)
	req := docRequest("anything")
	req.DocumentID = nil

	res := h.orchestrator(true).AnswerOverDocument(context.Background(), req)

	if res.Status != StatusError || res.Message != MsgNoDocument || res.ConversationID != nil {
		t.Errorf("result = %+v", res)
	}
	if h.completeCalls != 0 || h.embedCall != 0 || h.index.searches != 0 || h.modCall != 0 {
		t.Errorf("external calls made: complete=%d embed=%d search=%d moderate=%d",
			h.completeCalls, h.embedCall, h.index.searches, h.modCall)
	}
}

func TestAnswerOverDocument_ConversationNotFound(t *testing.T) {
	h := newHarness(t)
	req := docRequest("anything")
	req.ConversationID = int64Ptr(42)

	res := h.orchestrator(false).AnswerOverDocument(context.Background(), req)

	if res.Status != StatusError || res.Message != MsgConversationNotFound {
		t.Fatalf("result = %+v", res)
	}
	if res.ConversationID == nil || *res.ConversationID != 42 {
		t.Errorf("conversation id = %v, want 42", res.ConversationID)
	}
	if h.completeCalls != 0 || len(h.saved) != 0 {
		t.Errorf("rejected call reached completion (%d) or store (%d)", h.completeCalls, len(h.saved))
	}
}

func TestAnswerOverDocument_Escalation(t *testing.T) {
	tests := []struct {
		name          string
		grounded      []string
		wantAnswer    string
		wantQuestions []string
		wantRefines   int
		wantSimple    int
		wantLevels    map[string]float64
	}{
		{
			name:          "primary answer",
			grounded:      []string{"ANSWER: Paris."},
			wantAnswer:    "Paris.",
			wantQuestions: []string{"What is the capital of France?"},
			wantLevels:    map[string]float64{"refined": 0, "ungrounded": 0},
		},
		{
			name:          "one NONE escalates to a refined prompt",
			grounded:      []string{"NONE", "Answer: Paris, on the Seine."},
			wantAnswer:    "Paris, on the Seine.",
			wantQuestions: []string{"What is the capital of France?", "What city is the French capital?"},
			wantRefines:   1,
			wantLevels:    map[string]float64{"refined": 1, "ungrounded": 0},
		},
		{
			name:          "two NONE fall back to one ungrounded answer",
			grounded:      []string{"NONE", "ANSWER: NONE"},
			wantAnswer:    "fallback answer",
			wantQuestions: []string{"What is the capital of France?", "What city is the French capital?"},
			wantRefines:   1,
			wantSimple:    1,
			wantLevels:    map[string]float64{"refined": 1, "ungrounded": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.grounded = tt.grounded

			res := h.orchestrator(false).AnswerOverDocument(context.Background(), docRequest("What is the capital of France?"))
			if !res.OK() {
				t.Fatalf("result = %+v", res)
			}
			if res.Data.Response != tt.wantAnswer {
				t.Errorf("answer = %q, want %q", res.Data.Response, tt.wantAnswer)
			}
			if !reflect.DeepEqual(h.groundedQuestions, tt.wantQuestions) {
				t.Errorf("grounded questions = %q, want %q", h.groundedQuestions, tt.wantQuestions)
			}
			if h.refineCalls != tt.wantRefines {
				t.Errorf("refine calls = %d, want %d", h.refineCalls, tt.wantRefines)
			}
			if len(h.simplePrompts) != tt.wantSimple {
				t.Errorf("ungrounded calls = %d, want %d", len(h.simplePrompts), tt.wantSimple)
			}
			if tt.wantSimple > 0 && h.simplePrompts[0] != "What city is the French capital?" {
				t.Errorf("ungrounded prompt = %q, want the refined prompt", h.simplePrompts[0])
			}
			for level, want := range tt.wantLevels {
				if got := promtest.ToFloat64(h.metrics.QAEscalationsTotal.WithLabelValues(level)); got != want {
					t.Errorf("escalations{%s} = %v, want %v", level, got, want)
				}
			}

			if len(h.saved) != 1 {
				t.Fatalf("saved %d turns, want 1", len(h.saved))
			}
			turn := h.saved[0]
			if turn.prompt != "What is the capital of France?" || turn.answer != tt.wantAnswer {
				t.Errorf("saved turn = %+v", turn)
			}
			if turn.followup != "What is its population?\nWhat river runs through it?\nWhen was it founded?" {
				t.Errorf("saved followup = %q", turn.followup)
			}
			if res.Data.HistoryID != 101 || res.Data.ConversationID != "7" {
				t.Errorf("data = %+v", res.Data)
			}
			if len(res.Data.Source) != 1 || res.Data.Source[0].Title != "france.txt" {
				t.Errorf("sources = %+v", res.Data.Source)
			}
			if h.sources != `[{"source":"uploads/geo/france.txt","title":"france.txt"}]` {
				t.Errorf("stored sources = %s", h.sources)
			}
		})
	}
}

func TestAnswerOverDocument_RefineFailureKeepsOriginalPrompt(t *testing.T) {
	h := newHarness(t)
	h.grounded = []string{"NONE", "Paris."}
	h.failOn = "refine"

	res := h.orchestrator(false).AnswerOverDocument(context.Background(), docRequest("capital?"))
	if !res.OK() || res.Data.Response != "Paris." {
		t.Fatalf("result = %+v", res)
	}
	if len(h.groundedQuestions) != 2 || h.groundedQuestions[1] != "capital?" {
		t.Errorf("second attempt question = %q, want the original prompt", h.groundedQuestions)
	}
}

func TestAnswerOverDocument_FollowUpFailure(t *testing.T) {
	h := newHarness(t)
	h.grounded = []string{"Paris."}
	h.failOn = "followup"

	res := h.orchestrator(false).AnswerOverDocument(context.Background(), docRequest("capital?"))
	if !res.OK() {
		t.Fatalf("follow-up failure should not fail the call: %+v", res)
	}
	if res.Data.FollowUpQuestions == nil || len(res.Data.FollowUpQuestions) != 0 {
		t.Errorf("follow-ups = %#v, want empty list", res.Data.FollowUpQuestions)
	}
	if len(h.saved) != 1 || h.saved[0].followup != "" {
		t.Errorf("saved = %+v", h.saved)
	}
	if got := promtest.ToFloat64(h.metrics.FollowUpFailuresTotal); got != 1 {
		t.Errorf("follow-up failures = %v, want 1", got)
	}
}

func TestAnswerOverDocument_UpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.failOn = "grounded"

	res := h.orchestrator(false).AnswerOverDocument(context.Background(), docRequest("capital?"))
	if res.Status != StatusError || res.Message != "completion quota exceeded" {
		t.Fatalf("result = %+v", res)
	}
	if res.ConversationID == nil || *res.ConversationID != 7 {
		t.Errorf("conversation id = %v, want 7", res.ConversationID)
	}
	if len(h.saved) != 0 {
		t.Error("failed turn should not be persisted")
	}
	if got := promtest.ToFloat64(h.metrics.QARequestsTotal.WithLabelValues("doc", "error")); got != 1 {
		t.Errorf("doc errors = %v, want 1", got)
	}
}

func TestAnswerOverDocument_FallbackFailure(t *testing.T) {
	h := newHarness(t)
	h.grounded = []string{"NONE", "NONE"}
	h.failOn = "simple"

	res := h.orchestrator(false).AnswerOverDocument(context.Background(), docRequest("capital?"))
	if res.Status != StatusError || res.Message != "upstream 503" {
		t.Errorf("result = %+v", res)
	}
	if len(h.simplePrompts) != 1 {
		t.Errorf("ungrounded calls = %d, want exactly 1", len(h.simplePrompts))
	}
}

func TestAnswerOverDocument_RetrievalFailure(t *testing.T) {
	h := newHarness(t)
	h.index.err = errors.New("weaviate unavailable")

	res := h.orchestrator(false).AnswerOverDocument(context.Background(), docRequest("capital?"))
	if res.Status != StatusError || !strings.Contains(res.Message, "weaviate unavailable") {
		t.Errorf("result = %+v", res)
	}
	if h.completeCalls != 0 {
		t.Errorf("completion called %d times after a retrieval failure", h.completeCalls)
	}
}

func TestAnswerOverDocument_UnindexedDocument(t *testing.T) {
	h := newHarness(t)
	h.index.passages = nil

	res := h.orchestrator(false).AnswerOverDocument(context.Background(), docRequest("capital?"))
	if res.Status != StatusError || !strings.Contains(res.Message, retrieval.ErrNoPassages.Error()) {
		t.Errorf("result = %+v", res)
	}
	if h.completeCalls != 0 || len(h.saved) != 0 {
		t.Errorf("completions = %d, saved = %d, want none for an unindexed document", h.completeCalls, len(h.saved))
	}
}

func TestAnswerOverDocument_ForeignDocument(t *testing.T) {
	h := newHarness(t)
	req := docRequest("capital?")
	req.ConversationID = nil
	req.UserID = 2

	res := h.orchestrator(false).AnswerOverDocument(context.Background(), req)
	if res.Status != StatusError || res.Message != MsgDocumentNotFound {
		t.Errorf("result = %+v", res)
	}
}

func TestAnswerOverDocument_MemoryInPrompt(t *testing.T) {
	h := newHarness(t)
	h.grounded = []string{"Paris."}
	var groundedPrompt string
	base := h.complete
	o := h.orchestrator(false)
	o.completion = &testutil.MockLLMProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			if strings.Contains(req.Prompt, "<ctx>") {
				groundedPrompt = req.Prompt
			}
			return base(ctx, req)
		},
	}

	res := o.AnswerOverDocument(context.Background(), docRequest("capital?"))
	if !res.OK() {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(groundedPrompt, "<hs>\nHuman: q2\nAI: a2\nHuman: q3\nAI: a3\n</hs>") {
		t.Errorf("grounded prompt history not chronological:\n%s", groundedPrompt)
	}
}

func TestAnswerSimple(t *testing.T) {
	h := newHarness(t)

	res := h.orchestrator(false).AnswerSimple(context.Background(), Request{
		Prompt:         "hello",
		ConversationID: int64Ptr(7),
		UserID:         1,
		MemoryWindow:   intPtr(2),
	})
	if !res.OK() {
		t.Fatalf("result = %+v", res)
	}
	if len(h.saved) != 1 {
		t.Fatalf("saved %d turns, want exactly 1", len(h.saved))
	}
	if res.Data.HistoryID != 101 {
		t.Errorf("history id = %d, want the store's 101", res.Data.HistoryID)
	}
	if res.Data.Response != "fallback answer" || len(res.Data.FollowUpQuestions) != 0 || h.saved[0].followup != "" {
		t.Errorf("data = %+v, saved = %+v", res.Data, h.saved[0])
	}

	req := h.simpleRequests[0]
	if req.System != prompts.Simple.System() {
		t.Errorf("system = %q", req.System)
	}
	if req.Model != "test-model" {
		t.Errorf("model = %q, want the conversation's model", req.Model)
	}
	want := []llm.Message{
		{Role: llm.RoleUser, Content: "q2"}, {Role: llm.RoleAssistant, Content: "a2"},
		{Role: llm.RoleUser, Content: "q3"}, {Role: llm.RoleAssistant, Content: "a3"},
	}
	if !reflect.DeepEqual(req.History, want) {
		t.Errorf("history = %+v, want %+v", req.History, want)
	}
}

func TestAnswerSimple_Variants(t *testing.T) {
	t.Run("no conversation", func(t *testing.T) {
		h := newHarness(t)
		res := h.orchestrator(false).AnswerSimple(context.Background(), Request{Prompt: "hi", UserID: 1})
		if !res.OK() || res.Data.ConversationID != "" || res.ConversationID != nil {
			t.Fatalf("result = %+v", res)
		}
		if h.saved[0].convID != nil {
			t.Error("turn without conversation should be stored with a nil conversation id")
		}
		if len(h.simpleRequests[0].History) != 0 {
			t.Error("no conversation means no memory")
		}
	})

	t.Run("memory disabled", func(t *testing.T) {
		h := newHarness(t)
		res := h.orchestrator(false).AnswerSimple(context.Background(), Request{Prompt: "hi", ConversationID: int64Ptr(7), UserID: 1, MemoryWindow: intPtr(-1)})
		if !res.OK() || len(h.simpleRequests[0].History) != 0 {
			t.Errorf("result = %+v history = %+v", res, h.simpleRequests[0].History)
		}
	})

	t.Run("assistant persona", func(t *testing.T) {
		h := newHarness(t)
		res := h.orchestrator(false).AnswerSimple(context.Background(), Request{Prompt: "hi", ConversationID: int64Ptr(8), UserID: 1})
		if !res.OK() || h.simpleRequests[0].System != "You are a pirate." {
			t.Errorf("system = %q", h.simpleRequests[0].System)
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		h := newHarness(t)
		h.failOn = "simple"
		res := h.orchestrator(false).AnswerSimple(context.Background(), Request{Prompt: "hi", ConversationID: int64Ptr(7), UserID: 1})
		if res.Status != StatusError || res.Message != "upstream 503" || *res.ConversationID != 7 {
			t.Errorf("result = %+v", res)
		}
		if len(h.saved) != 0 {
			t.Error("failed turn should not be persisted")
		}
	})

	t.Run("missing conversation", func(t *testing.T) {
		h := newHarness(t)
		res := h.orchestrator(false).AnswerSimple(context.Background(), Request{Prompt: "hi", ConversationID: int64Ptr(42), UserID: 1})
		if res.Message != MsgConversationNotFound || *res.ConversationID != 42 {
			t.Errorf("result = %+v", res)
		}
	})
}

func TestForeignConversation(t *testing.T) {
	answer := map[string]func(*Orchestrator, context.Context, Request) *Result{
		"simple":   (*Orchestrator).AnswerSimple,
		"document": (*Orchestrator).AnswerOverDocument,
	}
	for name, fn := range answer {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.grounded = []string{"Paris."}
			historyReads := 0
			h.db.GetHistoryFunc = func(ctx context.Context, convID int64, limit int) ([]db.HistoryTurn, error) {
				historyReads++
				return []db.HistoryTurn{{ID: 3, Prompt: "q3", Answer: "a3"}}, nil
			}

			res := fn(h.orchestrator(false), context.Background(), Request{
				Prompt:         "what did they ask?",
				ConversationID: int64Ptr(7),
				UserID:         2,
				DocumentID:     int64Ptr(5),
			})
			if res.Status != StatusError || res.Message != MsgConversationNotFound || *res.ConversationID != 7 {
				t.Errorf("result = %+v", res)
			}
			if len(h.saved) != 0 {
				t.Errorf("turn appended to another user's conversation: %+v", h.saved)
			}
			if historyReads != 0 || h.completeCalls != 0 {
				t.Errorf("history reads = %d, completions = %d, want none", historyReads, h.completeCalls)
			}
		})
	}
}

func TestModerationGate(t *testing.T) {
	t.Run("flagged input is rejected", func(t *testing.T) {
		h := newHarness(t)
		h.flagged = true
		res := h.orchestrator(true).AnswerSimple(context.Background(), Request{Prompt: "bad", ConversationID: int64Ptr(7), UserID: 1})
		if res.Status != StatusError || res.Message != MsgContentPolicy {
			t.Errorf("result = %+v", res)
		}
		if h.completeCalls != 0 {
			t.Errorf("flagged prompt reached completion %d times", h.completeCalls)
		}
		if got := promtest.ToFloat64(h.metrics.ModerationFlaggedTotal); got != 1 {
			t.Errorf("flagged counter = %v", got)
		}
	})

	t.Run("moderation outage fails open", func(t *testing.T) {
		h := newHarness(t)
		h.grounded = []string{"Paris."}
		h.modErr = errors.New("moderation down")
		res := h.orchestrator(true).AnswerOverDocument(context.Background(), docRequest("capital?"))
		if !res.OK() {
			t.Errorf("result = %+v", res)
		}
	})
}

func TestAnswerOverDocument_Cancelled(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(false)
	o.completion = &testutil.MockLLMProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := o.AnswerOverDocument(ctx, docRequest("capital?"))
	if res.Status != StatusError || !strings.Contains(res.Message, "context canceled") {
		t.Errorf("result = %+v", res)
	}
}
