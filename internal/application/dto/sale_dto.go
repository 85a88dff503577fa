package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateSaleRequest body para POST /api/sales. Quantity se expresa en UnitType (PIECE o BOX).
type CreateSaleRequest struct {
	CustomerID string          `json:"customer_id" validate:"required"`
	ProductID  string          `json:"product_id" validate:"required"`
	UnitType   string          `json:"unit_type" validate:"omitempty,oneof=PIECE BOX"`
	Quantity   int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	SaleDate   *time.Time      `json:"sale_date"`
	Notes      string          `json:"notes" validate:"max=500"`
}

// BulkSaleItem línea de una venta masiva.
type BulkSaleItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	UnitType  string          `json:"unit_type" validate:"omitempty,oneof=PIECE BOX"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// BulkSaleRequest body para POST /api/sales/bulk. Todas las líneas o ninguna.
type BulkSaleRequest struct {
	CustomerID string         `json:"customer_id" validate:"required"`
	SaleDate   *time.Time     `json:"sale_date"`
	Notes      string         `json:"notes" validate:"max=500"`
	Items      []BulkSaleItem `json:"items" validate:"required,min=1,max=200,dive"`
}

// UpdateSaleRequest body para PUT /api/sales/:id.
type UpdateSaleRequest struct {
	CustomerID string          `json:"customer_id" validate:"required"`
	ProductID  string          `json:"product_id" validate:"required"`
	UnitType   string          `json:"unit_type" validate:"omitempty,oneof=PIECE BOX"`
	Quantity   int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	SaleDate   *time.Time      `json:"sale_date"`
	Notes      string          `json:"notes" validate:"max=500"`
}

// SaleResponse salida de una venta.
type SaleResponse struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	ProductID      string          `json:"product_id"`
	UnitType       string          `json:"unit_type"`
	Quantity       int64           `json:"quantity"`
	ActualQuantity int64           `json:"actual_quantity"`
	PiecesPerBox   int64           `json:"pieces_per_box"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	SaleDate       time.Time       `json:"sale_date"`
	Notes          string          `json:"notes,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SaleResult venta junto con los movimientos que generó.
type SaleResult struct {
	Sale      SaleResponse       `json:"sale"`
	Movements []MovementResponse `json:"movements"`
}

// BulkSaleResult resultado de una venta masiva.
type BulkSaleResult struct {
	Sales     []SaleResponse     `json:"sales"`
	Movements []MovementResponse `json:"movements"`
}

// SaleListResponse lista paginada de ventas.
type SaleListResponse struct {
	Items []SaleResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}
