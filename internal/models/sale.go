package models

import "time"

type Sale struct {
	ID          int64     `json:"id" db:"id"`
	CompanyID   int64     `json:"-" db:"company_id"`
	ProductID   int64     `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	Quantity    int64     `json:"quantity" db:"quantity"`
	SaleDate    time.Time `json:"sale_date" db:"sale_date"`
}
