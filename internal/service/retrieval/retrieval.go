package retrieval

import (
	"context"
	"docchat/internal/service/llm"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("docchat/retrieval")

var ErrNoPassages = errors.New("no passages indexed for document")

// Passage is one retrieved chunk of a document
type Passage struct {
	Content string
	Source  string
	Score   float64
}

// Chunk is a piece of a document ready to be indexed
type Chunk struct {
	Content string
	Source  string
	Vector  []float32
}

// VectorIndex stores chunk vectors per document and searches them
type VectorIndex interface {
	Search(ctx context.Context, docID int64, vector []float32, limit int) ([]Passage, error)
	Store(ctx context.Context, docID int64, chunks []Chunk) (int, error)
	DeleteDocument(ctx context.Context, docID int64) error
}

// Retriever embeds queries and searches the index
type Retriever struct {
	embedder llm.Embedder
	index    VectorIndex
	topK     int
}

func NewRetriever(embedder llm.Embedder, index VectorIndex, topK int) *Retriever {
	if topK <= 0 {
		topK = 4
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}
}

// DocumentRetriever is a Retriever scoped to one document
type DocumentRetriever struct {
	r     *Retriever
	docID int64
}

// ForDocument scopes retrieval to docID
func (r *Retriever) ForDocument(docID int64) *DocumentRetriever {
	return &DocumentRetriever{r: r, docID: docID}
}

// Retrieve returns the top passages for query, best first. An empty result is
// reported as ErrNoPassages since an unindexed document cannot ground an answer.
func (d *DocumentRetriever) Retrieve(ctx context.Context, query string) ([]Passage, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int64("doc_id", d.docID), attribute.Int("top_k", d.r.topK))

	vectors, err := d.r.embedder.Embed(ctx, []string{query})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("failed to embed query: got %d vectors", len(vectors))
	}

	passages, err := d.r.index.Search(ctx, d.docID, vectors[0], d.r.topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, fmt.Errorf("failed to search document %d: %w", d.docID, err)
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNoPassages, d.docID)
	}
	span.SetAttributes(attribute.Int("passages", len(passages)))
	return passages, nil
}

// Context joins passage contents for the grounded prompt
func Context(passages []Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Content
	}
	return strings.Join(parts, "\n\n")
}

// SourceRef is a citation returned alongside an answer
type SourceRef struct {
	Source string `json:"source"`
	Title  string `json:"title"`
}

// Sources turns passages into citations, one per distinct source, in rank order
func Sources(passages []Passage) []SourceRef {
	seen := make(map[string]bool, len(passages))
	refs := make([]SourceRef, 0, len(passages))
	for _, p := range passages {
		if seen[p.Source] {
			continue
		}
		seen[p.Source] = true
		refs = append(refs, SourceRef{Source: p.Source, Title: Title(p.Source)})
	}
	return refs
}

// FormatSources renders citations as the JSON array stored with a history turn
func FormatSources(passages []Passage) string {
	out, err := json.Marshal(Sources(passages))
	if err != nil {
		return "[]"
	}
	return string(out)
}

// Title is the file name part of a source path
func Title(source string) string {
	if source == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(source, "\\", "/"))
}
