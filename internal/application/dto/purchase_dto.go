package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatePurchaseRequest body para POST /api/purchases. Quantity en unidad base.
type CreatePurchaseRequest struct {
	SupplierID      string          `json:"supplier_id" validate:"required"`
	ProductID       string          `json:"product_id" validate:"required"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	Quantity        int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Notes           string          `json:"notes" validate:"max=500"`
}

// BulkPurchaseItem línea de una compra masiva.
type BulkPurchaseItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// BulkPurchaseRequest body para POST /api/purchases/bulk. Todas las líneas o ninguna.
type BulkPurchaseRequest struct {
	SupplierID      string             `json:"supplier_id" validate:"required"`
	ReferenceNumber string             `json:"reference_number" validate:"max=100"`
	Notes           string             `json:"notes" validate:"max=500"`
	Items           []BulkPurchaseItem `json:"items" validate:"required,min=1,max=200,dive"`
}

// UpdatePurchaseRequest body para PUT /api/purchases/:id.
type UpdatePurchaseRequest struct {
	SupplierID      string          `json:"supplier_id" validate:"required"`
	ProductID       string          `json:"product_id" validate:"required"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	Quantity        int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Notes           string          `json:"notes" validate:"max=500"`
}

// CreatePurchaseReturnRequest body para POST /api/purchases/:id/returns.
type CreatePurchaseReturnRequest struct {
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason" validate:"max=500"`
	Status   string `json:"status" validate:"omitempty,oneof=WAITING SENT CONFIRMED"`
}

// UpdateReturnStatusRequest body para PATCH /api/purchase-returns/:id/status.
type UpdateReturnStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=WAITING SENT CONFIRMED"`
}

// PurchaseResponse salida de una compra.
type PurchaseResponse struct {
	ID              string          `json:"id"`
	SupplierID      string          `json:"supplier_id"`
	ProductID       string          `json:"product_id"`
	ReferenceNumber string          `json:"reference_number"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PurchaseResult compra junto con los movimientos que generó.
type PurchaseResult struct {
	Purchase  PurchaseResponse   `json:"purchase"`
	Movements []MovementResponse `json:"movements"`
}

// BulkPurchaseResult resultado de una compra masiva.
type BulkPurchaseResult struct {
	Purchases []PurchaseResponse `json:"purchases"`
	Movements []MovementResponse `json:"movements"`
}

// PurchaseListResponse lista paginada de compras.
type PurchaseListResponse struct {
	Items []PurchaseResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// PurchaseReturnResponse salida de una devolución a proveedor.
type PurchaseReturnResponse struct {
	ID         string    `json:"id"`
	PurchaseID string    `json:"purchase_id"`
	Quantity   int64     `json:"quantity"`
	Reason     string    `json:"reason,omitempty"`
	Status     string    `json:"status"`
	CreatedBy  string    `json:"created_by"`
	UpdatedBy  string    `json:"updated_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PurchaseReturnResult devolución junto con su movimiento RETURN.
type PurchaseReturnResult struct {
	Return   PurchaseReturnResponse `json:"return"`
	Movement MovementResponse       `json:"movement"`
}
