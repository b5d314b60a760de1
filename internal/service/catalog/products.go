package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mentora/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidProduct  = errors.New("product name is required and price must be a non-negative amount with at most 2 decimal places")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	maxPrice = decimal.New(1, 8)
)

// Service owns products and sales. Every method takes the caller's company id and never
// reads or writes rows of another company.
type Service struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewService builds a catalog service.
func NewService(db *sqlx.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger.Named("catalog")}
}

// ValidateProduct normalizes name and checks the price fits a DECIMAL(10,2) column.
func ValidateProduct(name string, price decimal.Decimal) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return "", ErrInvalidProduct
	}
	if price.IsNegative() || !price.Equal(price.Round(2)) || price.GreaterThanOrEqual(maxPrice) {
		return "", ErrInvalidProduct
	}
	return name, nil
}

// ListProducts returns the company's products in creation order.
func (s *Service) ListProducts(ctx context.Context, companyID int64) ([]models.Product, error) {
	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products,
		`SELECT id, company_id, name, price, created_at FROM products WHERE company_id = ? ORDER BY id`,
		companyID,
	); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetProduct returns sql.ErrNoRows when the id is unknown or belongs to another company.
func (s *Service) GetProduct(ctx context.Context, companyID, id int64) (*models.Product, error) {
	var product models.Product
	if err := s.db.GetContext(ctx, &product,
		`SELECT id, company_id, name, price, created_at FROM products WHERE id = ? AND company_id = ?`,
		id, companyID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &product, nil
}

// CreateProduct adds a product to the company.
func (s *Service) CreateProduct(ctx context.Context, companyID int64, name string, price decimal.Decimal) (*models.Product, error) {
	name, err := ValidateProduct(name, price)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (company_id, name, price, created_at) VALUES (?, ?, ?, ?)`,
		companyID, name, price, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("product id: %w", err)
	}
	return &models.Product{ID: id, CompanyID: companyID, Name: name, Price: price, CreatedAt: now}, nil
}

// UpdateProduct replaces name and price of a product owned by the company.
func (s *Service) UpdateProduct(ctx context.Context, companyID, id int64, name string, price decimal.Decimal) (*models.Product, error) {
	name, err := ValidateProduct(name, price)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE products SET name = ?, price = ? WHERE id = ? AND company_id = ?`,
		name, price, id, companyID,
	); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return s.GetProduct(ctx, companyID, id)
}

// DeleteProduct removes a product owned by the company; its sales cascade.
func (s *Service) DeleteProduct(ctx context.Context, companyID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ? AND company_id = ?`, id, companyID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
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

// ImportProducts inserts all products or none.
func (s *Service) ImportProducts(ctx context.Context, companyID int64, products []models.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO products (company_id, name, price, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, p := range products {
		name, err := ValidateProduct(p.Name, p.Price)
		if err != nil {
			return 0, fmt.Errorf("product %d: %w", i+1, err)
		}
		if _, err := stmt.ExecContext(ctx, companyID, name, p.Price, now); err != nil {
			return 0, fmt.Errorf("import product %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	s.logger.Info("products imported", zap.Int64("company_id", companyID), zap.Int("count", len(products)))
	return len(products), nil
}

// CountProducts returns how many products the company has.
func (s *Service) CountProducts(ctx context.Context, companyID int64) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products WHERE company_id = ?`, companyID); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// MostExpensiveProduct returns sql.ErrNoRows when the company has no products.
func (s *Service) MostExpensiveProduct(ctx context.Context, companyID int64) (*models.Product, error) {
	var product models.Product
	if err := s.db.GetContext(ctx, &product,
		`SELECT id, company_id, name, price, created_at FROM products
		 WHERE company_id = ? ORDER BY price DESC, id ASC LIMIT 1`,
		companyID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("most expensive product: %w", err)
	}
	return &product, nil
}
