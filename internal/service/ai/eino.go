package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const defaultMaxToolRounds = 5

// EinoModel drives an eino tool-calling chat model (gemini, openai, claude) through a react agent.
type EinoModel struct {
	model     model.ToolCallingChatModel
	maxRounds int
	logger    *zap.Logger
}

func NewEinoModel(chatModel model.ToolCallingChatModel, maxRounds int, logger *zap.Logger) *EinoModel {
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EinoModel{model: chatModel, maxRounds: maxRounds, logger: logger.Named("agent")}
}

func (m *EinoModel) Chat(ctx context.Context, history []Turn, prompt string, tools *ToolSet) (string, error) {
	if m.model == nil {
		return "", errors.New("chat model not initialized")
	}
	cfg := &react.AgentConfig{
		ToolCallingModel: m.model,
		// Each round is one model node plus one tools node; the final answer adds a model node.
		MaxStep: m.maxRounds*2 + 1,
	}
	if tools != nil {
		cfg.ToolsConfig = compose.ToolsNodeConfig{
			Tools: m.einoTools(tools),
			UnknownToolsHandler: func(_ context.Context, name, _ string) (string, error) {
				m.logger.Warn("model called a tool outside the allow-list", zap.String("tool", name))
				return toolError(fmt.Errorf("%w: %s", ErrUnknownTool, name)), nil
			},
		}
	}
	agent, err := react.NewAgent(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("init react agent: %w", err)
	}

	out, err := agent.Generate(ctx, buildEinoMessages(history, prompt))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if out == nil || out.Content == "" {
		return "", errors.New("model returned an empty answer")
	}
	return out.Content, nil
}

func buildEinoMessages(history []Turn, prompt string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)*2+2)
	messages = append(messages, schema.SystemMessage(systemInstruction))
	for _, turn := range history {
		messages = append(messages,
			schema.UserMessage(turn.Prompt),
			schema.AssistantMessage(turn.Response, nil),
		)
	}
	return append(messages, schema.UserMessage(prompt))
}

// toolError is what the model sees when a tool cannot answer; the turn continues.
func toolError(err error) string {
	return "error: " + err.Error()
}

// einoTool exposes one allow-listed tool of a ToolSet as an eino InvokableTool.
type einoTool struct {
	spec   toolSpec
	tools  *ToolSet
	logger *zap.Logger
}

func (m *EinoModel) einoTools(tools *ToolSet) []tool.BaseTool {
	out := make([]tool.BaseTool, 0, len(toolTable))
	for _, spec := range toolTable {
		out = append(out, &einoTool{spec: spec, tools: tools, logger: m.logger})
	}
	return out
}

func (t *einoTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: t.spec.name, Desc: t.spec.description}, nil
}

// InvokableRun ignores arguments; none of the tools take parameters.
func (t *einoTool) InvokableRun(ctx context.Context, _ string, _ ...tool.Option) (string, error) {
	t.logger.Debug("tool call", zap.String("tool", t.spec.name), zap.Int64("company_id", t.tools.CompanyID()))
	out, err := t.tools.Dispatch(ctx, t.spec.name)
	if err != nil {
		t.logger.Warn("tool failed", zap.String("tool", t.spec.name), zap.Error(err))
		return toolError(err), nil
	}
	return out, nil
}
