package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mentora/internal/auth"
	"mentora/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrMissingFields      = errors.New("username, company_name and password are required")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrCompanyTaken       = errors.New("company name is already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service handles user and company lifecycle.
type Service struct {
	db *sqlx.DB
}

// NewService builds an account service.
func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// Register creates a user and the company it owns in one transaction.
func (s *Service) Register(ctx context.Context, username, companyName, password string) (*models.User, *models.Company, error) {
	username = strings.TrimSpace(username)
	companyName = strings.TrimSpace(companyName)
	if username == "" || companyName == "" || password == "" {
		return nil, nil, ErrMissingFields
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username,
	); err != nil {
		return nil, nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, nil, ErrUsernameTaken
	}
	if err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM companies WHERE name = ?)`, companyName,
	); err != nil {
		return nil, nil, fmt.Errorf("check company: %w", err)
	}
	if exists {
		return nil, nil, ErrCompanyTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, hash, now,
	)
	if err != nil {
		// Lost a race against a concurrent registration with the same name.
		if isUniqueViolation(err) {
			return nil, nil, ErrUsernameTaken
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}
	userID, err := res.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("user id: %w", err)
	}
	res, err = tx.ExecContext(ctx,
		`INSERT INTO companies (name, owner_id, created_at) VALUES (?, ?, ?)`,
		companyName, userID, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, ErrCompanyTaken
		}
		return nil, nil, fmt.Errorf("create company: %w", err)
	}
	companyID, err := res.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("company id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit registration: %w", err)
	}

	user := &models.User{ID: userID, Username: username, PasswordHash: hash, CreatedAt: now}
	company := &models.Company{ID: companyID, Name: companyName, OwnerID: userID, CreatedAt: now}
	return user, company, nil
}

// Authenticate validates credentials and returns the user with its company.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, *models.Company, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	var user models.User
	if err := s.db.GetContext(ctx, &user,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("query user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}
	company, err := s.CompanyForUser(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return &user, company, nil
}

// CompanyForUser returns the company owned by the user, or sql.ErrNoRows.
func (s *Service) CompanyForUser(ctx context.Context, userID int64) (*models.Company, error) {
	var company models.Company
	if err := s.db.GetContext(ctx, &company,
		`SELECT id, name, owner_id, created_at FROM companies WHERE owner_id = ?`, userID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("query company: %w", err)
	}
	return &company, nil
}

// DeleteUser removes a user; the company and all of its rows cascade.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid user id")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const mysqlDuplicateEntry = 1062

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return false
}
