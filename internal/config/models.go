package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ChatModel is a completion model a conversation may select
type ChatModel struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	PriceIn     float64 `json:"price_in"`
	PriceOut    float64 `json:"price_out"`
}

// ModelsConfig is the allow-list of chat models. The first entry is the default.
type ModelsConfig struct {
	models []ChatModel
}

// NewModelsConfig reads the allow-list from a JSON file. An empty path yields a
// single-entry list built from fallbackID.
func NewModelsConfig(configPath, fallbackID string) (*ModelsConfig, error) {
	if configPath == "" {
		return &ModelsConfig{models: []ChatModel{{ID: fallbackID, Name: fallbackID}}}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var models []ChatModel
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, err
	}
	for i, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("model at index %d has no id", i)
		}
	}
	if len(models) == 0 && fallbackID != "" {
		models = []ChatModel{{ID: fallbackID, Name: fallbackID}}
	}

	return &ModelsConfig{models: models}, nil
}

// GetAvailableModels returns the list of available models
func (mc *ModelsConfig) GetAvailableModels() []ChatModel {
	return mc.models
}

// IsValidModel checks if a model ID is in the list of available models
func (mc *ModelsConfig) IsValidModel(modelID string) bool {
	for _, model := range mc.models {
		if model.ID == modelID {
			return true
		}
	}
	return false
}

// GetDefaultModel returns the first model, or "" for an empty list
func (mc *ModelsConfig) GetDefaultModel() string {
	if len(mc.models) > 0 {
		return mc.models[0].ID
	}
	return ""
}

// Resolve returns requested when it is allowed, otherwise the default.
func (mc *ModelsConfig) Resolve(requested string) string {
	if requested != "" && mc.IsValidModel(requested) {
		return requested
	}
	return mc.GetDefaultModel()
}
