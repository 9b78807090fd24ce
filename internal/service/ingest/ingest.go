// Package ingest turns uploaded files into indexed, summarized documents.
package ingest

import (
	"context"
	"docchat/internal/config"
	"docchat/internal/logger"
	"docchat/internal/observability"
	"docchat/internal/repository/db"
	"docchat/internal/service/errlog"
	"docchat/internal/service/llm"
	"docchat/internal/service/retrieval"
	"docchat/internal/service/summary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/textsplitter"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrDocumentExists  = errors.New("document already exists")
	ErrEmptyDocument   = errors.New("document has no text")
	ErrForbidden       = errors.New("unauthorized: user does not own this document")
)

var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// UploadRequest is one file to ingest for a user. Force replaces an existing
// document with the same name.
type UploadRequest struct {
	UserID   int64
	FileName string
	Content  []byte
	Force    bool
}

// UploadResult reports what was stored. SummaryError is set when the
// document was indexed but could not be summarized.
type UploadResult struct {
	Document     *db.Document
	Chunks       int
	Replaced     bool
	SummaryError string
}

// Service indexes documents into the vector store and summarizes them
type Service struct {
	db         db.DocumentStore
	embedder   llm.Embedder
	index      retrieval.VectorIndex
	summarizer *summary.SummaryService
	reporter   *errlog.Reporter
	metrics    *observability.Metrics
	cfg        config.RetrievalConfig
}

func NewService(store db.DocumentStore, embedder llm.Embedder, index retrieval.VectorIndex,
	summarizer *summary.SummaryService, reporter *errlog.Reporter, metrics *observability.Metrics,
	cfg config.RetrievalConfig) *Service {
	return &Service{
		db:         store,
		embedder:   embedder,
		index:      index,
		summarizer: summarizer,
		reporter:   reporter,
		metrics:    metrics,
		cfg:        cfg,
	}
}

func splitterFor(fileName string, cfg config.RetrievalConfig) textsplitter.TextSplitter {
	if strings.ToLower(filepath.Ext(fileName)) == ".md" {
		return textsplitter.NewMarkdownTextSplitter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		)
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
	)
}

// Upload indexes a file and then summarizes it
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	name := filepath.Base(strings.ReplaceAll(req.FileName, "\\", "/"))
	if !supportedExtensions[strings.ToLower(filepath.Ext(name))] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(name))
	}
	if !utf8.Valid(req.Content) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrUnsupportedType)
	}
	text := string(req.Content)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	chunks, err := splitterFor(name, s.cfg).SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split document: %w", err)
	}
	chunks = nonEmpty(chunks)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	doc, replaced, err := s.documentFor(ctx, req.UserID, name, req.Force)
	if err != nil {
		return nil, err
	}

	stored, err := s.indexChunks(ctx, doc.ID, name, chunks)
	if err != nil {
		return nil, err
	}
	s.metrics.ChunksIngested(stored)

	result := &UploadResult{Document: doc, Chunks: stored, Replaced: replaced}

	sum, err := s.summarizer.SummarizeDocument(ctx, doc.ID, text)
	if err != nil {
		s.reporter.Report(ctx, err, map[string]any{"stage": "summary", "doc_id": doc.ID})
		result.SummaryError = err.Error()
	} else {
		doc.Summary = sum.Summary
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"doc_id":   doc.ID,
		"name":     name,
		"chunks":   stored,
		"replaced": replaced,
	}).Info("Document ingested")

	return result, nil
}

// documentFor returns the row to index into, clearing the old index when
// force replaces an existing document.
func (s *Service) documentFor(ctx context.Context, userID int64, name string, force bool) (*db.Document, bool, error) {
	existing, err := s.db.GetDocumentByName(ctx, userID, name)
	switch {
	case err == nil:
		if !force {
			return nil, false, fmt.Errorf("%w: %s", ErrDocumentExists, name)
		}
		if err := s.index.DeleteDocument(ctx, existing.ID); err != nil {
			return nil, false, fmt.Errorf("failed to clear previous index: %w", err)
		}
		return existing, true, nil
	case errors.Is(err, db.ErrNotFound):
		doc, err := s.db.CreateDocument(ctx, userID, name)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create document: %w", err)
		}
		return doc, false, nil
	default:
		return nil, false, fmt.Errorf("failed to look up document: %w", err)
	}
}

// indexChunks embeds chunks in batches and stores them
func (s *Service) indexChunks(ctx context.Context, docID int64, source string, texts []string) (int, error) {
	batch := s.cfg.EmbedBatch
	if batch <= 0 {
		batch = len(texts)
	}

	chunks := make([]retrieval.Chunk, 0, len(texts))
	for startIdx := 0; startIdx < len(texts); startIdx += batch {
		end := min(startIdx+batch, len(texts))
		vectors, err := s.embedder.Embed(ctx, texts[startIdx:end])
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vectors) != end-startIdx {
			return 0, fmt.Errorf("embedding returned %d vectors for %d chunks", len(vectors), end-startIdx)
		}
		for i, v := range vectors {
			chunks = append(chunks, retrieval.Chunk{Content: texts[startIdx+i], Source: source, Vector: v})
		}
	}

	stored, err := s.index.Store(ctx, docID, chunks)
	if err != nil {
		return stored, fmt.Errorf("failed to index document: %w", err)
	}
	return stored, nil
}

// List returns the user's active documents
func (s *Service) List(ctx context.Context, userID int64) ([]db.Document, error) {
	docs, err := s.db.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve documents: %w", err)
	}
	return docs, nil
}

// ListAll returns every active document
func (s *Service) ListAll(ctx context.Context) ([]db.Document, error) {
	docs, err := s.db.ListAllDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve documents: %w", err)
	}
	return docs, nil
}

// Delete drops the document's vectors and marks it inactive
func (s *Service) Delete(ctx context.Context, docID, userID int64) error {
	doc, err := s.db.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("document not found: %w", err)
	}
	if doc.UserID != userID {
		return ErrForbidden
	}
	if err := s.index.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	if err := s.db.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
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
