package summary

import (
	"context"
	"docchat/internal/logger"
	"docchat/internal/repository/db"
	"docchat/internal/service/llm"
	"docchat/internal/service/prompts"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"
)

const (
	// chunks for summarising are larger than the retrieval chunks
	summaryChunkSize    = 2048
	summaryChunkOverlap = 64
	defaultConcurrency  = 4
)

var ErrEmptyText = errors.New("nothing to summarize")

// Result holds the combined summary and the per-chunk summaries it was built from
type Result struct {
	Summary string
	Steps   []string
}

// SummaryService builds document summaries with a map-reduce over chunks
type SummaryService struct {
	db          db.DocumentStore
	completion  llm.CompletionService
	splitter    textsplitter.TextSplitter
	concurrency int
}

// NewSummaryService creates a new SummaryService. concurrency bounds the
// number of chunk summaries requested at once.
func NewSummaryService(store db.DocumentStore, completion llm.CompletionService, concurrency int) *SummaryService {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &SummaryService{
		db:         store,
		completion: completion,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(summaryChunkSize),
			textsplitter.WithChunkOverlap(summaryChunkOverlap),
		),
		concurrency: concurrency,
	}
}

// Summarize maps every chunk to a summary concurrently, then combines them
func (s *SummaryService) Summarize(ctx context.Context, text string) (*Result, error) {
	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	chunks = nonEmpty(chunks)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	steps := make([]string, len(chunks))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := s.run(gCtx, prompts.SummaryMap, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			steps[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("LLM error during summarization: %w", err)
	}

	combined, err := s.run(ctx, prompts.SummaryCombine, strings.Join(steps, "\n"))
	if err != nil {
		return nil, fmt.Errorf("LLM error combining summaries: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"chunks":        len(chunks),
		"summary_chars": len(combined),
	}).Info("Generated summary")

	return &Result{Summary: combined, Steps: steps}, nil
}

// SummarizeDocument summarizes text and stores the result on the document
func (s *SummaryService) SummarizeDocument(ctx context.Context, docID int64, text string) (*Result, error) {
	res, err := s.Summarize(ctx, text)
	if err != nil {
		return nil, err
	}

	steps, err := json.Marshal(res.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary steps: %w", err)
	}
	if err := s.db.UpdateDocumentField(ctx, docID, db.DocumentFieldSummary, res.Summary); err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}
	if err := s.db.UpdateDocumentField(ctx, docID, db.DocumentFieldSteps, string(steps)); err != nil {
		return nil, fmt.Errorf("failed to save summary steps: %w", err)
	}
	return res, nil
}

func (s *SummaryService) run(ctx context.Context, p *prompts.Prompt, text string) (string, error) {
	prompt, err := p.Format(map[string]any{"text": text})
	if err != nil {
		return "", err
	}
	out, err := s.completion.Complete(ctx, llm.CompletionRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func nonEmpty(chunks []string) []string {
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}
