// Package formatter splits a raw completion into an answer and the follow-up
// questions a model sometimes appends after a "follow up questions" label.
package formatter

import "strings"

// Response is the structured shape of a completion
type Response struct {
	Answer            string   `json:"answer"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// delimiters are tried in order; the first one present wins.
var delimiters = []string{
	"FOLLOW UP QUESTIONS:",
	"FOLLOWUP QUESTIONS:",
	"FOLLOW-UP QUESTIONS:",
	"Follow up questions:",
	"Followup questions:",
	"Follow-up questions:",
	"Follow Up Questions:",
	"Follow-Up Questions:",
	"follow up questions:",
	"followup questions:",
	"follow-up questions:",
	"Followup:",
	"FOLLOWUP:",
	"Follow-up:",
	"followup:",
	"follow-up:",
}

var answerLabels = []string{"ANSWER:", "Answer:", "answer:"}

// Format never fails: text without a recognised delimiter is returned whole
// as the answer with no follow-up questions.
func Format(raw string) Response {
	for _, d := range delimiters {
		before, after, found := strings.Cut(raw, d)
		if !found {
			continue
		}
		return Response{
			Answer:            stripLabel(before),
			FollowUpQuestions: splitQuestions(after),
		}
	}
	return Response{Answer: stripLabel(raw), FollowUpQuestions: []string{}}
}

func stripLabel(s string) string {
	s = strings.TrimSpace(s)
	for _, l := range answerLabels {
		if rest, ok := strings.CutPrefix(s, l); ok {
			return strings.TrimSpace(rest)
		}
	}
	return s
}

func splitQuestions(s string) []string {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "\n")
	questionMarks := false
	if len(parts) == 1 {
		parts = strings.Split(s, "?")
		questionMarks = true
	}

	out := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// only fragments that were cut at a question mark get it back
		if questionMarks && i < len(parts)-1 {
			p += "?"
		}
		out = append(out, p)
	}
	return out
}

// SplitLines breaks a newline separated list, dropping blank lines
func SplitLines(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
