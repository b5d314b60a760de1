package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"mentora/internal/config"
)

// Safety filters are disabled on every category the API lets us configure.
var geminiSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
}

func newGeminiChatModel(ctx context.Context, provCfg config.ProviderConfig) (model.ToolCallingChatModel, error) {
	modelName := provCfg.Model
	if modelName == "" {
		modelName = config.DefaultGeminiModel
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  provCfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if provCfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: provCfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:         client,
		Model:          modelName,
		SafetySettings: geminiSafetySettings,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini model: %w", err)
	}
	return chatModel, nil
}
