package retrieval

import (
	"context"
	"crypto/sha256"
	"docchat/internal/logger"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	propContent = "content"
	propSource  = "source"
	propDocID   = "doc_id"
	propChunk   = "chunk"
)

// WeaviateIndex keeps every document's chunks in one class, partitioned by doc_id
type WeaviateIndex struct {
	client    *weaviate.Client
	className string
}

// NewWeaviateClient parses rawURL ("http://host:port") into a client
func NewWeaviateClient(rawURL string) (*weaviate.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid weaviate url %q", rawURL)
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return client, nil
}

func NewWeaviateIndex(client *weaviate.Client, className string) *WeaviateIndex {
	return &WeaviateIndex{client: client, className: className}
}

func chunkClass(name string) *models.Class {
	filterable := true
	return &models.Class{
		Class:       name,
		Description: "A chunk of an uploaded document",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: propContent, DataType: []string{"text"}},
			{Name: propSource, DataType: []string{"text"}, IndexFilterable: &filterable, Tokenization: "field"},
			{Name: propDocID, DataType: []string{"int"}, IndexFilterable: &filterable},
			{Name: propChunk, DataType: []string{"int"}},
		},
	}
}

// EnsureSchema creates the chunk class if it does not exist yet
func (w *WeaviateIndex) EnsureSchema(ctx context.Context) error {
	if _, err := w.client.Schema().ClassGetter().WithClassName(w.className).Do(ctx); err == nil {
		logger.Log.WithField("class", w.className).Debug("Weaviate class already exists")
		return nil
	}

	logger.Log.WithField("class", w.className).Info("Creating Weaviate class")
	if err := w.client.Schema().ClassCreator().WithClass(chunkClass(w.className)).Do(ctx); err != nil {
		return fmt.Errorf("creating %s schema: %w", w.className, err)
	}
	return nil
}

func docFilter(docID int64) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{propDocID}).
		WithOperator(filters.Equal).
		WithValueInt(docID)
}

// Search runs a nearVector query restricted to one document
func (w *WeaviateIndex) Search(ctx context.Context, docID int64, vector []float32, limit int) ([]Passage, error) {
	ctx, span := tracer.Start(ctx, "weaviate.Search")
	defer span.End()
	span.SetAttributes(attribute.String("class", w.className), attribute.Int64("doc_id", docID))

	fields := []graphql.Field{
		{Name: propContent},
		{Name: propSource},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}
	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	result, err := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithFields(fields...).
		WithWhere(docFilter(docID)).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "graphql failed")
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	if len(result.Errors) > 0 {
		span.SetStatus(codes.Error, result.Errors[0].Message)
		return nil, fmt.Errorf("search error: %s", result.Errors[0].Message)
	}

	return parsePassages(result.Data, w.className)
}

type chunkHit struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Additional struct {
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

// parsePassages decodes the Get.<class> array of a GraphQL response
func parsePassages(data map[string]models.JSONObject, className string) ([]Passage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql data: %w", err)
	}

	var parsed struct {
		Get map[string][]chunkHit `json:"Get"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse graphql data: %w", err)
	}

	hits := parsed.Get[className]
	passages := make([]Passage, 0, len(hits))
	for _, h := range hits {
		passages = append(passages, Passage{Content: h.Content, Source: h.Source, Score: h.Additional.Certainty})
	}
	return passages, nil
}

// objectID is stable for (document, chunk index) so re-indexing overwrites
func objectID(docID int64, index int) strfmt.UUID {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d:%d", docID, index)))
	id, _ := uuid.FromBytes(hash[:16])
	return strfmt.UUID(id.String())
}

func (w *WeaviateIndex) objects(docID int64, chunks []Chunk) []*models.Object {
	objects := make([]*models.Object, len(chunks))
	for i, c := range chunks {
		objects[i] = &models.Object{
			Class:  w.className,
			ID:     objectID(docID, i),
			Vector: c.Vector,
			Properties: map[string]interface{}{
				propContent: c.Content,
				propSource:  c.Source,
				propDocID:   docID,
				propChunk:   i,
			},
		}
	}
	return objects
}

// Store writes chunks in one batch and returns how many were accepted
func (w *WeaviateIndex) Store(ctx context.Context, docID int64, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	ctx, span := tracer.Start(ctx, "weaviate.Store")
	defer span.End()
	span.SetAttributes(attribute.Int64("doc_id", docID), attribute.Int("chunks", len(chunks)))

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(w.objects(docID, chunks)...).Do(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to save objects to weaviate: %w", err)
	}

	stored := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			logger.Log.WithFields(map[string]interface{}{
				"doc_id": docID,
				"error":  item.Result.Errors.Error[0].Message,
			}).Warn("Weaviate rejected a chunk")
			continue
		}
		stored++
	}
	if stored < len(chunks) {
		return stored, fmt.Errorf("weaviate stored %d of %d chunks", stored, len(chunks))
	}
	return stored, nil
}

// DeleteDocument removes every chunk of a document
func (w *WeaviateIndex) DeleteDocument(ctx context.Context, docID int64) error {
	_, err := w.client.Batch().ObjectsBatchDeleter().
		WithClassName(w.className).
		WithWhere(docFilter(docID)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("deleting chunks of document %d: %w", docID, err)
	}
	return nil
}
