package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mentora/internal/models"

	"github.com/jmoiron/sqlx"
)

var ErrEmptyExchange = errors.New("prompt and response cannot be empty")

// Service persists chatbot exchanges per company.
type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// Append stores a prompt/response pair for the company.
func (s *Service) Append(ctx context.Context, companyID int64, prompt, response string) (*models.ChatHistory, error) {
	if strings.TrimSpace(prompt) == "" || strings.TrimSpace(response) == "" {
		return nil, ErrEmptyExchange
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_histories (company_id, prompt, response, created_at) VALUES (?, ?, ?, ?)`,
		companyID, prompt, response, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("chat history id: %w", err)
	}
	return &models.ChatHistory{ID: id, CompanyID: companyID, Prompt: prompt, Response: response, CreatedAt: now}, nil
}

// List returns every exchange of the company, newest first.
func (s *Service) List(ctx context.Context, companyID int64) ([]models.ChatHistory, error) {
	return s.query(ctx, companyID, 0)
}

// Recent returns at most n exchanges of the company, newest first.
func (s *Service) Recent(ctx context.Context, companyID int64, n int) ([]models.ChatHistory, error) {
	if n <= 0 {
		return []models.ChatHistory{}, nil
	}
	return s.query(ctx, companyID, n)
}

func (s *Service) query(ctx context.Context, companyID int64, limit int) ([]models.ChatHistory, error) {
	q := `SELECT id, company_id, prompt, response, created_at FROM chat_histories
		WHERE company_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{companyID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows := []models.ChatHistory{}
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	return rows, nil
}
