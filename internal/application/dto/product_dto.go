package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest entrada para crear un producto. OpeningStock se registra como movimiento.
type CreateProductRequest struct {
	SKU          string          `json:"sku" validate:"required,min=1,max=100"`
	Name         string          `json:"name" validate:"required,min=1,max=200"`
	MinStock     int64           `json:"min_stock" validate:"min=0"`
	PiecesPerBox int64           `json:"pieces_per_box" validate:"min=0"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	OpeningStock int64           `json:"opening_stock" validate:"min=0"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID            string          `json:"id"`
	CompanyID     string          `json:"company_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	StockQuantity int64           `json:"stock_quantity"`
	MinStock      int64           `json:"min_stock"`
	PiecesPerBox  int64           `json:"pieces_per_box"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LowStock      bool            `json:"low_stock"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
