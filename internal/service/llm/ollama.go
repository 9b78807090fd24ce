package llm

import (
	"context"
	"docchat/internal/config"
	"docchat/internal/logger"
	"docchat/internal/observability"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"
)

// OllamaProvider serves completions and embeddings from a local Ollama daemon
type OllamaProvider struct {
	client         *api.Client
	chatModel      string
	embeddingModel string
	temperature    float64
	metrics        *observability.Metrics
}

// NewOllamaProvider uses BaseURL when set, otherwise OLLAMA_HOST
func NewOllamaProvider(llmConfig config.LLMConfig, metrics *observability.Metrics) (*OllamaProvider, error) {
	var client *api.Client
	if llmConfig.BaseURL != "" {
		base, err := url.Parse(llmConfig.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base url: %w", err)
		}
		client = api.NewClient(base, http.DefaultClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	logger.Log.WithFields(logrus.Fields{
		"chat_model":      llmConfig.ChatModel,
		"embedding_model": llmConfig.EmbeddingModel,
	}).Info("Initializing Ollama provider")

	return newOllamaProvider(client, llmConfig, metrics), nil
}

func newOllamaProvider(client *api.Client, llmConfig config.LLMConfig, metrics *observability.Metrics) *OllamaProvider {
	return &OllamaProvider{
		client:         client,
		chatModel:      llmConfig.ChatModel,
		embeddingModel: llmConfig.EmbeddingModel,
		temperature:    llmConfig.Temperature,
		metrics:        metrics,
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

// Complete runs a non-streaming chat
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (answer string, err error) {
	start := time.Now()
	defer func() { p.metrics.ObserveLLM(p.Name(), "complete", start, err) }()

	model := req.Model
	if model == "" {
		model = p.chatModel
	}
	temperature := p.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	msgs := req.Messages()
	wire := make([]api.Message, len(msgs))
	for i, m := range msgs {
		wire[i] = api.Message{Role: m.Role, Content: m.Content}
	}

	stream := false
	var out strings.Builder
	err = p.client.Chat(ctx, &api.ChatRequest{
		Model:    model,
		Messages: wire,
		Stream:   &stream,
		Options:  map[string]any{"temperature": temperature},
	}, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	if out.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return out.String(), nil
}

// Embed batches all texts into one /api/embed call
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { p.metrics.ObserveLLM(p.Name(), "embed", start, err) }()

	resp, err := p.client.Embed(ctx, &api.EmbedRequest{
		Model: p.embeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}
