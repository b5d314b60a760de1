package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mentora/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"
)

const systemInstruction = "You are a business assistant for a small company. " +
	"Answer questions about the company's products and sales using the provided tools whenever data is needed. " +
	"Never guess numbers the tools can provide. Prices are in Indonesian Rupiah (Rp)."

// Turn is one earlier prompt/response exchange, oldest first when passed to a ChatModel.
type Turn struct {
	Prompt   string
	Response string
}

// ChatModel answers a prompt given prior turns, resolving tool calls through tools.
type ChatModel interface {
	Chat(ctx context.Context, history []Turn, prompt string, tools *ToolSet) (string, error)
}

// NewChatModel builds the client for cfg.LLM.Provider.
func NewChatModel(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ChatModel, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if provider == "" {
		provider = "gemini"
	}
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}
	if provCfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s has no api key", provider)
	}
	maxRounds := cfg.LLM.MaxToolSteps
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "gemini":
		chatModel, err = newGeminiChatModel(ctx, provCfg)
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s model: %w", provider, err)
	}
	return NewEinoModel(chatModel, maxRounds, logger), nil
}
