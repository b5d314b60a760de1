package catalog

import (
	"context"
	"fmt"
	"time"

	"mentora/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordSale stores a sale dated now. The product must belong to the company.
func (s *Service) RecordSale(ctx context.Context, companyID, productID, quantity int64) (*models.Sale, error) {
	return s.recordSale(ctx, companyID, productID, quantity, time.Now().UTC())
}

func (s *Service) recordSale(ctx context.Context, companyID, productID, quantity int64, at time.Time) (*models.Sale, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	product, err := s.GetProduct(ctx, companyID, productID)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sales (company_id, product_id, quantity, sale_date) VALUES (?, ?, ?, ?)`,
		companyID, productID, quantity, at,
	)
	if err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sale id: %w", err)
	}
	s.logger.Debug("sale recorded",
		zap.Int64("company_id", companyID),
		zap.Int64("product_id", productID),
		zap.Int64("quantity", quantity),
	)
	return &models.Sale{
		ID:          id,
		CompanyID:   companyID,
		ProductID:   productID,
		ProductName: product.Name,
		Quantity:    quantity,
		SaleDate:    at,
	}, nil
}

// ListSales returns the company's sales, newest first.
func (s *Service) ListSales(ctx context.Context, companyID int64) ([]models.Sale, error) {
	sales := []models.Sale{}
	if err := s.db.SelectContext(ctx, &sales,
		`SELECT s.id, s.company_id, s.product_id, p.name AS product_name, s.quantity, s.sale_date
		 FROM sales s JOIN products p ON p.id = s.product_id
		 WHERE s.company_id = ?
		 ORDER BY s.sale_date DESC, s.id DESC`,
		companyID,
	); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

// RevenueBetween sums price × quantity of sales dated in [from, to).
func (s *Service) RevenueBetween(ctx context.Context, companyID int64, from, to time.Time) (decimal.Decimal, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT s.quantity, p.price FROM sales s JOIN products p ON p.id = s.product_id
		 WHERE s.company_id = ? AND p.company_id = ? AND s.sale_date >= ? AND s.sale_date < ?`,
		companyID, companyID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("query revenue: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var (
			quantity int64
			price    decimal.Decimal
		)
		if err := rows.Scan(&quantity, &price); err != nil {
			return decimal.Zero, fmt.Errorf("scan revenue: %w", err)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(quantity)))
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("iterate revenue: %w", err)
	}
	return total, nil
}

// QuantityByProduct totals units sold per product since the given time, lowest seller first.
// Products without sales in the window are not listed.
func (s *Service) QuantityByProduct(ctx context.Context, companyID int64, since time.Time) ([]models.ProductQuantity, error) {
	totals := []models.ProductQuantity{}
	if err := s.db.SelectContext(ctx, &totals,
		`SELECT p.id AS product_id, p.name AS name, SUM(s.quantity) AS total
		 FROM sales s JOIN products p ON p.id = s.product_id
		 WHERE s.company_id = ? AND p.company_id = ? AND s.sale_date >= ?
		 GROUP BY p.id, p.name
		 ORDER BY total ASC, p.name ASC`,
		companyID, companyID, since.UTC(),
	); err != nil {
		return nil, fmt.Errorf("quantity by product: %w", err)
	}
	return totals, nil
}
