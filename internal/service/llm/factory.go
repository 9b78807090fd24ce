package llm

import (
	"docchat/internal/config"
	"docchat/internal/logger"
	"docchat/internal/observability"
	"fmt"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// ParseProviderType parses a string into a ProviderType
func ParseProviderType(s string) (ProviderType, error) {
	switch s {
	case "openai", "openrouter", "":
		return ProviderOpenAI, nil
	case "ollama":
		return ProviderOllama, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// Backends is what the rest of the service needs from the model layer.
// Moderation is nil when disabled or unsupported by the provider.
type Backends struct {
	Provider   Provider
	Moderation ModerationService
}

// NewBackends creates the configured provider and, if enabled, moderation
func NewBackends(llmConfig config.LLMConfig, metrics *observability.Metrics) (*Backends, error) {
	providerType, err := ParseProviderType(llmConfig.Provider)
	if err != nil {
		return nil, err
	}

	switch providerType {
	case ProviderOpenAI:
		p := NewOpenAIProvider(llmConfig, metrics)
		b := &Backends{Provider: p}
		if llmConfig.ModerationEnabled {
			b.Moderation = p
		}
		return b, nil
	case ProviderOllama:
		p, err := NewOllamaProvider(llmConfig, metrics)
		if err != nil {
			return nil, err
		}
		if llmConfig.ModerationEnabled {
			logger.Log.Warn("Moderation requested but the ollama provider has no moderation endpoint; gate disabled")
		}
		return &Backends{Provider: p}, nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
