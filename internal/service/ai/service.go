package ai

import (
	"context"
	"time"

	"mentora/internal/models"

	"go.uber.org/zap"
)

const (
	// FallbackResponse replaces any answer the model could not produce.
	FallbackResponse = "Sorry, our AI system ran into a problem. Please try again in a moment."

	historyTurns = 5
)

// HistoryReader loads recent exchanges of a company, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, companyID int64, n int) ([]models.ChatHistory, error)
}

// Service assembles context for a chat turn and hands it to the configured model.
type Service struct {
	model   ChatModel
	history HistoryReader
	data    DataSource
	logger  *zap.Logger
	now     func() time.Time
	pick    func(n int) int
}

// NewService wires the orchestrator. model may be nil, in which case every answer is FallbackResponse.
func NewService(model ChatModel, history HistoryReader, data DataSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		model:   model,
		history: history,
		data:    data,
		logger:  logger.Named("ai"),
	}
}

// Tools builds the tool set bound to companyID.
func (s *Service) Tools(companyID int64) *ToolSet {
	ts := NewToolSet(s.data, companyID)
	if s.now != nil {
		ts.now = s.now
	}
	if s.pick != nil {
		ts.pick = s.pick
	}
	return ts
}

// Ask answers prompt for the company. Failures are logged and replaced by FallbackResponse.
// The caller is responsible for persisting the exchange.
func (s *Service) Ask(ctx context.Context, companyID int64, prompt string) string {
	logger := s.logger.With(zap.Int64("company_id", companyID))
	if s.model == nil {
		logger.Warn("chat requested but no model is configured")
		return FallbackResponse
	}

	turns := s.recentTurns(ctx, companyID, logger)
	answer, err := s.model.Chat(ctx, turns, prompt, s.Tools(companyID))
	if err != nil {
		logger.Error("chat model failed", zap.Error(err))
		return FallbackResponse
	}
	return answer
}

// ProactiveSuggestion runs the suggestion tool directly, without the model.
func (s *Service) ProactiveSuggestion(ctx context.Context, companyID int64) (string, error) {
	return s.Tools(companyID).Dispatch(ctx, ToolProactiveSuggestion)
}

// recentTurns returns up to historyTurns exchanges, oldest first.
func (s *Service) recentTurns(ctx context.Context, companyID int64, logger *zap.Logger) []Turn {
	if s.history == nil {
		return nil
	}
	rows, err := s.history.Recent(ctx, companyID, historyTurns)
	if err != nil {
		logger.Warn("load chat history failed, continuing without it", zap.Error(err))
		return nil
	}
	turns := make([]Turn, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		turns = append(turns, Turn{Prompt: rows[i].Prompt, Response: rows[i].Response})
	}
	return turns
}
