package conversation

import (
	"context"
	"docchat/internal/repository/db"
	"docchat/internal/testutil"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func int64Ptr(v int64) *int64 { return &v }

func TestNewConversationService(t *testing.T) {
	mockDB := &testutil.MockDatabase{}
	service := NewConversationService(mockDB)

	if service == nil {
		t.Fatal("NewConversationService returned nil")
	}
	if service.db == nil {
		t.Error("ConversationService database not set")
	}
}

func TestResolve(t *testing.T) {
	docID := int64(9)
	mockDB := &testutil.MockDatabase{
		GetConversationFunc: func(ctx context.Context, id int64) (*db.Conversation, error) {
			switch id {
			case 7:
				return &db.Conversation{ID: 7, UserID: 1, DocID: &docID, Model: "m"}, nil
			case 13:
				return nil, errors.New("connection reset")
			default:
				return nil, fmt.Errorf("conversation %d: %w", id, db.ErrNotFound)
			}
		},
	}
	service := NewConversationService(mockDB)

	tests := []struct {
		name    string
		convID  *int64
		userID  int64
		wantRef bool
		wantErr error
	}{
		{name: "nil id means no conversation", convID: nil},
		{name: "zero id means no conversation", convID: int64Ptr(0)},
		{name: "negative sentinel means no conversation", convID: int64Ptr(-1)},
		{name: "existing conversation", convID: int64Ptr(7), wantRef: true},
		{name: "missing conversation is rejected", convID: int64Ptr(42), wantErr: ErrConversationNotFound},
		{name: "foreign conversation is rejected", convID: int64Ptr(7), userID: 2, wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := tt.userID
			if userID == 0 {
				userID = 1
			}
			ref, err := service.Resolve(context.Background(), tt.convID, userID, &docID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				if ref != nil {
					t.Error("rejected resolve should not return a ref")
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if (ref != nil) != tt.wantRef {
				t.Fatalf("Resolve() ref = %+v, wantRef %v", ref, tt.wantRef)
			}
			if ref != nil && (ref.ID != 7 || ref.Model != "m" || *ref.DocID != docID) {
				t.Errorf("Resolve() ref = %+v", ref)
			}
		})
	}

	t.Run("store failure is not a reject", func(t *testing.T) {
		_, err := service.Resolve(context.Background(), int64Ptr(13), 1, nil)
		if err == nil || errors.Is(err, ErrConversationNotFound) {
			t.Errorf("Resolve() error = %v, want a plain store error", err)
		}
	})
}

func TestRef_IDPtr(t *testing.T) {
	var none *Ref
	if none.IDPtr() != nil {
		t.Error("nil ref should give a nil id")
	}
	if got := (&Ref{ID: 5}).IDPtr(); got == nil || *got != 5 {
		t.Errorf("IDPtr() = %v", got)
	}
}

// newestFirst returns n turns numbered n..1 the way the store orders them
func newestFirst(n int) []db.HistoryTurn {
	turns := make([]db.HistoryTurn, n)
	for i := 0; i < n; i++ {
		k := n - i
		turns[i] = db.HistoryTurn{ID: int64(k), Prompt: fmt.Sprintf("q%d", k), Answer: fmt.Sprintf("a%d", k)}
	}
	return turns
}

func TestMemory(t *testing.T) {
	tests := []struct {
		name      string
		available int
		window    int
		want      []string
	}{
		{name: "disabled", available: 5, window: -1, want: []string{}},
		{name: "zero window", available: 5, window: 0, want: []string{}},
		{name: "window smaller than history", available: 5, window: 2, want: []string{"q4", "q5"}},
		{name: "window larger than history", available: 3, window: 10, want: []string{"q1", "q2", "q3"}},
		{name: "empty history", available: 0, window: 2, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			mockDB := &testutil.MockDatabase{
				GetHistoryFunc: func(ctx context.Context, convID int64, limit int) ([]db.HistoryTurn, error) {
					calls++
					all := newestFirst(tt.available)
					if limit > 0 && limit < len(all) {
						all = all[:limit]
					}
					return all, nil
				},
			}
			service := NewConversationService(mockDB)

			turns, err := service.Memory(context.Background(), &Ref{ID: 1}, tt.window)
			if err != nil {
				t.Fatalf("Memory() error = %v", err)
			}
			if len(turns) != len(tt.want) {
				t.Fatalf("Memory() len = %d, want %d", len(turns), len(tt.want))
			}
			for i, w := range tt.want {
				if turns[i].Prompt != w {
					t.Errorf("turn %d prompt = %q, want %q", i, turns[i].Prompt, w)
				}
			}
			if tt.window <= 0 && calls != 0 {
				t.Errorf("disabled memory should not touch the store, got %d calls", calls)
			}
		})
	}

	t.Run("no conversation", func(t *testing.T) {
		service := NewConversationService(&testutil.MockDatabase{})
		turns, err := service.Memory(context.Background(), nil, 2)
		if err != nil || len(turns) != 0 {
			t.Errorf("Memory(nil) = %v, %v", turns, err)
		}
	})

	t.Run("store error", func(t *testing.T) {
		service := NewConversationService(&testutil.MockDatabase{})
		if _, err := service.Memory(context.Background(), &Ref{ID: 1}, 2); err == nil {
			t.Error("Memory() should surface store errors")
		}
	})
}

// A turn appended after Memory returned must not show up in the snapshot.
func TestMemory_SnapshotIsStable(t *testing.T) {
	var mu sync.Mutex
	stored := newestFirst(2)
	mockDB := &testutil.MockDatabase{
		GetHistoryFunc: func(ctx context.Context, convID int64, limit int) ([]db.HistoryTurn, error) {
			mu.Lock()
			defer mu.Unlock()
			out := make([]db.HistoryTurn, len(stored))
			copy(out, stored)
			return out, nil
		},
		AddHistoryFunc: func(ctx context.Context, convID *int64, prompt, answer, followup string, feedback int) (int64, error) {
			mu.Lock()
			defer mu.Unlock()
			stored = append([]db.HistoryTurn{{ID: 3, Prompt: prompt, Answer: answer}}, stored...)
			return 3, nil
		},
	}
	service := NewConversationService(mockDB)

	snapshot, err := service.Memory(context.Background(), &Ref{ID: 1}, 5)
	if err != nil {
		t.Fatalf("Memory() error = %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mockDB.AddHistory(context.Background(), int64Ptr(1), "q3", "a3", "", 0)
	}()
	wg.Wait()

	if len(snapshot) != 2 || snapshot[1].Prompt != "q2" {
		t.Errorf("snapshot changed after concurrent append: %+v", snapshot)
	}

	fresh, _ := service.Memory(context.Background(), &Ref{ID: 1}, 5)
	if len(fresh) != 3 || fresh[2].Prompt != "q3" {
		t.Errorf("fresh memory = %+v, want q3 last", fresh)
	}
}

func TestTranscripts(t *testing.T) {
	turns := []Turn{{"q1", "a1"}, {"q2", "a2"}}

	if got, want := Transcript(turns), "Human: q1\nAI: a1\nHuman: q2\nAI: a2"; got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}
	if got, want := QATranscript(turns), "question: q1\nanswer: a1\nquestion: q2\nanswer: a2\n"; got != want {
		t.Errorf("QATranscript() = %q, want %q", got, want)
	}
	if Transcript(nil) != "" {
		t.Error("empty transcript should be empty")
	}

	if got := Tail([]Turn{{"1", ""}, {"2", ""}, {"3", ""}, {"4", ""}}, 3); len(got) != 3 || got[0].Prompt != "2" {
		t.Errorf("Tail() = %+v", got)
	}
	if got := Tail(turns, 0); len(got) != 0 {
		t.Errorf("Tail(0) = %+v", got)
	}
}

func TestGetConversation_Ownership(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		GetConversationFunc: func(ctx context.Context, id int64) (*db.Conversation, error) {
			if id == 1 {
				return &db.Conversation{ID: 1, UserID: 10, Title: "mine"}, nil
			}
			return nil, db.ErrNotFound
		},
	}
	service := NewConversationService(mockDB)

	conv, err := service.GetConversation(context.Background(), 1, 10)
	if err != nil || conv.Title != "mine" {
		t.Fatalf("GetConversation() = %+v, %v", conv, err)
	}
	if _, err := service.GetConversation(context.Background(), 1, 11); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign conversation error = %v, want ErrForbidden", err)
	}
	if _, err := service.GetConversation(context.Background(), 2, 10); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("missing conversation error = %v, want ErrConversationNotFound", err)
	}
}

func TestCreateConversation(t *testing.T) {
	var created db.NewConversation
	mockDB := &testutil.MockDatabase{
		GetDocumentFunc: func(ctx context.Context, id int64) (*db.Document, error) {
			return &db.Document{ID: id, UserID: 10}, nil
		},
		CreateConversationFunc: func(ctx context.Context, nc db.NewConversation) (*db.Conversation, error) {
			created = nc
			return &db.Conversation{ID: 3, UserID: nc.UserID, Title: nc.Title, DocID: nc.DocID}, nil
		},
	}
	service := NewConversationService(mockDB)

	conv, err := service.CreateConversation(context.Background(), db.NewConversation{UserID: 10, DocID: int64Ptr(4)})
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if conv.ID != 3 || created.Title != "New conversation" {
		t.Errorf("created %+v from %+v", conv, created)
	}

	if _, err := service.CreateConversation(context.Background(), db.NewConversation{UserID: 11, DocID: int64Ptr(4)}); !errors.Is(err, ErrForbidden) {
		t.Errorf("binding a foreign document error = %v, want ErrForbidden", err)
	}
}

func TestUpdateConversation(t *testing.T) {
	var gotField db.ConversationField
	mockDB := &testutil.MockDatabase{
		GetConversationFunc: func(ctx context.Context, id int64) (*db.Conversation, error) {
			return &db.Conversation{ID: id, UserID: 10}, nil
		},
		UpdateConversationFieldFunc: func(ctx context.Context, id int64, field db.ConversationField, value any) error {
			gotField = field
			return nil
		},
	}
	service := NewConversationService(mockDB)

	if err := service.UpdateConversation(context.Background(), 1, 10, "title", "renamed"); err != nil {
		t.Fatalf("UpdateConversation() error = %v", err)
	}
	if gotField != db.ConversationFieldTitle {
		t.Errorf("updated field = %q", gotField)
	}

	if err := service.UpdateConversation(context.Background(), 1, 10, "user_id; DROP TABLE", 1); !errors.Is(err, db.ErrUnknownField) {
		t.Errorf("unknown field error = %v, want ErrUnknownField", err)
	}
}

func TestSetFeedback(t *testing.T) {
	var gotValue any
	mockDB := &testutil.MockDatabase{
		GetHistoryTurnFunc: func(ctx context.Context, id int64) (*db.HistoryTurn, error) {
			if id == 2 {
				return &db.HistoryTurn{ID: 2}, nil
			}
			return &db.HistoryTurn{ID: id, ConversationID: int64Ptr(1)}, nil
		},
		GetConversationFunc: func(ctx context.Context, id int64) (*db.Conversation, error) {
			return &db.Conversation{ID: id, UserID: 10}, nil
		},
		UpdateHistoryFieldFunc: func(ctx context.Context, id int64, field db.HistoryField, value any) error {
			gotValue = value
			return nil
		},
	}
	service := NewConversationService(mockDB)

	if err := service.SetFeedback(context.Background(), 1, 10, -1); err != nil {
		t.Fatalf("SetFeedback() error = %v", err)
	}
	if gotValue != -1 {
		t.Errorf("feedback value = %v", gotValue)
	}
	if err := service.SetFeedback(context.Background(), 2, 10, 1); !errors.Is(err, ErrForbidden) {
		t.Errorf("detached turn error = %v, want ErrForbidden", err)
	}
}

func TestDeleteConversation(t *testing.T) {
	deleted := int64(0)
	mockDB := &testutil.MockDatabase{
		GetConversationFunc: func(ctx context.Context, id int64) (*db.Conversation, error) {
			return &db.Conversation{ID: id, UserID: 10}, nil
		},
		DeleteConversationFunc: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	service := NewConversationService(mockDB)

	if err := service.DeleteConversation(context.Background(), 5, 11); !errors.Is(err, ErrForbidden) {
		t.Errorf("DeleteConversation() by non-owner error = %v", err)
	}
	if deleted != 0 {
		t.Fatal("non-owner delete reached the store")
	}
	if err := service.DeleteConversation(context.Background(), 5, 10); err != nil || deleted != 5 {
		t.Errorf("DeleteConversation() = %v, deleted %d", err, deleted)
	}
}

func TestClearHistory(t *testing.T) {
	var cleared int64
	mockDB := &testutil.MockDatabase{
		GetConversationFunc: func(ctx context.Context, id int64) (*db.Conversation, error) {
			if id != 5 {
				return nil, db.ErrNotFound
			}
			return &db.Conversation{ID: id, UserID: 10}, nil
		},
		ClearHistoryFunc: func(ctx context.Context, convID int64) (int64, error) {
			cleared = convID
			return 3, nil
		},
	}
	service := NewConversationService(mockDB)

	if _, err := service.ClearHistory(context.Background(), 6, 10); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("ClearHistory() on missing conversation error = %v", err)
	}
	if _, err := service.ClearHistory(context.Background(), 5, 11); !errors.Is(err, ErrForbidden) {
		t.Errorf("ClearHistory() by non-owner error = %v", err)
	}
	if cleared != 0 {
		t.Fatal("rejected clear reached the store")
	}

	n, err := service.ClearHistory(context.Background(), 5, 10)
	if err != nil || n != 3 || cleared != 5 {
		t.Errorf("ClearHistory() = %d, %v; cleared %d", n, err, cleared)
	}
}

func TestDeleteTurn(t *testing.T) {
	var deleted int64
	mockDB := &testutil.MockDatabase{
		GetHistoryTurnFunc: func(ctx context.Context, id int64) (*db.HistoryTurn, error) {
			switch id {
			case 1:
				return &db.HistoryTurn{ID: 1, ConversationID: int64Ptr(5)}, nil
			case 2:
				return &db.HistoryTurn{ID: 2}, nil
			default:
				return nil, db.ErrNotFound
			}
		},
		GetConversationFunc: func(ctx context.Context, id int64) (*db.Conversation, error) {
			return &db.Conversation{ID: id, UserID: 10}, nil
		},
		DeleteHistoryTurnFunc: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	service := NewConversationService(mockDB)

	if err := service.DeleteTurn(context.Background(), 9, 10); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("DeleteTurn() on missing turn error = %v", err)
	}
	if err := service.DeleteTurn(context.Background(), 1, 11); !errors.Is(err, ErrForbidden) {
		t.Errorf("DeleteTurn() by non-owner error = %v", err)
	}
	if err := service.DeleteTurn(context.Background(), 2, 10); !errors.Is(err, ErrForbidden) {
		t.Errorf("DeleteTurn() on a turn without conversation error = %v", err)
	}
	if deleted != 0 {
		t.Fatal("rejected delete reached the store")
	}

	if err := service.DeleteTurn(context.Background(), 1, 10); err != nil || deleted != 1 {
		t.Errorf("DeleteTurn() = %v; deleted %d", err, deleted)
	}
}
