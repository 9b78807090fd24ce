package formatter

import (
	"reflect"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		answer    string
		followUps []string
	}{
		{
			name:      "answer label with newline separated questions",
			raw:       "ANSWER: Paris is the capital.\nFOLLOW UP QUESTIONS:\nWhat is its population?\nWhat river runs through it?",
			answer:    "Paris is the capital.",
			followUps: []string{"What is its population?", "What river runs through it?"},
		},
		{
			name:      "no delimiter",
			raw:       "The sky is blue.",
			answer:    "The sky is blue.",
			followUps: []string{},
		},
		{
			name:      "no delimiter with label",
			raw:       "  ANSWER: 42  ",
			answer:    "42",
			followUps: []string{},
		},
		{
			name:      "questions on one line are split on question marks",
			raw:       "Answer: Yes.\nFollow up questions: Why? How often? ",
			answer:    "Yes.",
			followUps: []string{"Why?", "How often?"},
		},
		{
			name:      "single fragment without a question mark stays as written",
			raw:       "Answer: Sure.\nFollow up questions: Tell me more",
			answer:    "Sure.",
			followUps: []string{"Tell me more"},
		},
		{
			name:      "trailing fragment without a question mark",
			raw:       "Answer: Sure.\nFollow up questions: What is X? Tell me more about Y",
			answer:    "Sure.",
			followUps: []string{"What is X?", "Tell me more about Y"},
		},
		{
			name:      "hyphenated lowercase short form",
			raw:       "answer: it depends\nfollow-up:\n- first\n- second",
			answer:    "it depends",
			followUps: []string{"- first", "- second"},
		},
		{
			name:      "priority picks the earliest listed delimiter",
			raw:       "A\nfollowup: x\nFOLLOW UP QUESTIONS:\nq1\nq2",
			answer:    "A\nfollowup: x",
			followUps: []string{"q1", "q2"},
		},
		{
			name:      "delimiter with nothing after it",
			raw:       "Done. Followup questions:",
			answer:    "Done.",
			followUps: []string{},
		},
		{
			name:      "empty input",
			raw:       "",
			answer:    "",
			followUps: []string{},
		},
		{
			name:      "NONE sentinel survives",
			raw:       "NONE",
			answer:    "NONE",
			followUps: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.raw)
			if got.Answer != tt.answer {
				t.Errorf("Answer = %q, want %q", got.Answer, tt.answer)
			}
			if !reflect.DeepEqual(got.FollowUpQuestions, tt.followUps) {
				t.Errorf("FollowUpQuestions = %#v, want %#v", got.FollowUpQuestions, tt.followUps)
			}
			if again := Format(tt.raw); !reflect.DeepEqual(again, got) {
				t.Errorf("second call = %#v, first = %#v", again, got)
			}
		})
	}
}

func TestFormat_NeverNilList(t *testing.T) {
	inputs := []string{"", "?", "\n\n", "Followup:", "FOLLOWUP:??", "answer:", "\x00\xff"}
	for _, in := range inputs {
		got := Format(in)
		if got.FollowUpQuestions == nil {
			t.Errorf("Format(%q) returned a nil question list", in)
		}
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("1. a\n\n  2. b  \n")
	want := []string{"1. a", "2. b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitLines() = %#v, want %#v", got, want)
	}
	if got := SplitLines(""); got == nil || len(got) != 0 {
		t.Errorf("SplitLines(\"\") = %#v, want empty non-nil", got)
	}
}
