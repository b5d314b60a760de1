package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64           `json:"id" db:"id"`
	CompanyID int64           `json:"-" db:"company_id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// ProductQuantity is the number of units sold for a product over some window.
type ProductQuantity struct {
	ProductID int64  `db:"product_id"`
	Name      string `db:"name"`
	Total     int64  `db:"total"`
}
