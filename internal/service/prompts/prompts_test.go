package prompts

import (
	"errors"
	"strings"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{Name: "ok", Template: "Q: {{.question}} C: {{ .context }}", InputVariables: []string{"question", "context"}},
		},
		{
			name: "no variables",
			cfg:  Config{Name: "static", Template: "Say hello."},
		},
		{
			name:    "empty template",
			cfg:     Config{Name: "empty", InputVariables: []string{"x"}},
			wantErr: true,
		},
		{
			name:    "declared but unused",
			cfg:     Config{Name: "unused", Template: "{{.a}}", InputVariables: []string{"a", "b"}},
			wantErr: true,
		},
		{
			name:    "used but undeclared",
			cfg:     Config{Name: "undeclared", Template: "{{.a}} {{.b}}", InputVariables: []string{"a"}},
			wantErr: true,
		},
		{
			name:    "duplicate variable",
			cfg:     Config{Name: "dup", Template: "{{.a}}", InputVariables: []string{"a", "a"}},
			wantErr: true,
		},
		{
			name:    "python style placeholder",
			cfg:     Config{Name: "fstring", Template: "{question}", InputVariables: []string{"question"}},
			wantErr: true,
		},
		{
			name:    "unparseable template",
			cfg:     Config{Name: "broken", Template: "{{.a}} {{if}}", InputVariables: []string{"a"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("error %v does not wrap ErrInvalidConfig", err)
				}
				return
			}
			if p.Name() != tt.cfg.Name {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.cfg.Name)
			}
		})
	}
}

func TestMustNew_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustNew() should panic on an invalid config")
		}
	}()
	MustNew(Config{Name: "bad"})
}

func TestFormat(t *testing.T) {
	p := MustNew(Config{
		Name:               "greet",
		SystemInstructions: "be kind",
		Template:           "Hello {{.name}}, <b>{{.item}}</b>",
		InputVariables:     []string{"name", "item"},
	})

	got, err := p.Format(map[string]any{"name": "Ada", "item": "a & b"})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if want := "Hello Ada, <b>a & b</b>"; got != want {
		t.Errorf("Format() = %q, want %q (no escaping)", got, want)
	}
	if p.System() != "be kind" {
		t.Errorf("System() = %q", p.System())
	}

	if _, err := p.Format(map[string]any{"name": "Ada"}); err == nil {
		t.Error("Format() with a missing value should fail")
	}
}

func TestBuiltinTemplates(t *testing.T) {
	got, err := DocumentQA.Format(map[string]any{
		"context":  "Paris is the capital of France.",
		"history":  "Human: hi\nAI: hello",
		"question": "What is the capital?",
	})
	if err != nil {
		t.Fatalf("DocumentQA.Format() error = %v", err)
	}
	for _, want := range []string{`reply "NONE"`, "<ctx>\nParis is the capital of France.\n</ctx>", "<hs>\nHuman: hi\nAI: hello\n</hs>", "What is the capital?\nAnswer: "} {
		if !strings.Contains(got, want) {
			t.Errorf("DocumentQA output missing %q:\n%s", want, got)
		}
	}

	refined, err := Refine.Format(map[string]any{"summary": "S", "name": "N.pdf", "history": "", "prompt": "P"})
	if err != nil {
		t.Fatalf("Refine.Format() error = %v", err)
	}
	if !strings.HasSuffix(refined, "<original prompt>P</original prompt>"+OptimizedPrefix) {
		t.Errorf("Refine output ends with %q", refined[len(refined)-60:])
	}

	follow, err := FollowUp.Format(map[string]any{"summary": "S", "name": "N.pdf", "history": "question: q\nanswer: a\n"})
	if err != nil {
		t.Fatalf("FollowUp.Format() error = %v", err)
	}
	if !strings.Contains(follow, "<history>question: q\nanswer: a\n</history>,") || !strings.HasSuffix(follow, FollowUpPrefix) {
		t.Errorf("FollowUp output = %q", follow)
	}

	if Simple.System() == "" {
		t.Error("Simple prompt should carry system instructions")
	}
}
