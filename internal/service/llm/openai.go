package llm

import (
	"context"
	"docchat/internal/config"
	"docchat/internal/logger"
	"docchat/internal/observability"
	"fmt"
	"sort"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIProvider talks to any OpenAI-compatible endpoint (OpenAI, OpenRouter,
// vLLM) through go-openai. It also serves moderation.
type OpenAIProvider struct {
	client          *openai.Client
	chatModel       string
	embeddingModel  string
	moderationModel string
	temperature     float64
	metrics         *observability.Metrics
}

// NewOpenAIProvider creates a provider from LLM config; BaseURL overrides the endpoint
func NewOpenAIProvider(llmConfig config.LLMConfig, metrics *observability.Metrics) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(llmConfig.APIKey)
	if llmConfig.BaseURL != "" {
		clientConfig.BaseURL = llmConfig.BaseURL
	}

	logger.Log.WithFields(logrus.Fields{
		"chat_model":      llmConfig.ChatModel,
		"embedding_model": llmConfig.EmbeddingModel,
		"base_url":        clientConfig.BaseURL,
	}).Info("Initializing OpenAI-compatible provider")

	return &OpenAIProvider{
		client:          openai.NewClientWithConfig(clientConfig),
		chatModel:       llmConfig.ChatModel,
		embeddingModel:  llmConfig.EmbeddingModel,
		moderationModel: llmConfig.ModerationModel,
		temperature:     llmConfig.Temperature,
		metrics:         metrics,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Complete sends a non-streaming chat completion
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (answer string, err error) {
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
	wire := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		wire[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"model":         model,
		"message_count": len(wire),
	}).Debug("Sending chat completion")

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    wire,
		Temperature: float32(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"model":         resp.Model,
		"finish_reason": resp.Choices[0].FinishReason,
		"total_tokens":  resp.Usage.TotalTokens,
	}).Debug("Received chat completion")

	return resp.Choices[0].Message.Content, nil
}

// Embed returns one vector per text in input order
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { p.metrics.ObserveLLM(p.Name(), "embed", start, err) }()

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vectors = make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// IsFlagged runs the moderation endpoint on text
func (p *OpenAIProvider) IsFlagged(ctx context.Context, text string) (flagged bool, err error) {
	start := time.Now()
	defer func() { p.metrics.ObserveLLM(p.Name(), "moderate", start, err) }()

	resp, err := p.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: p.moderationModel,
	})
	if err != nil {
		return false, fmt.Errorf("moderation request failed: %w", err)
	}
	for _, r := range resp.Results {
		if r.Flagged {
			return true, nil
		}
	}
	return false, nil
}
