package dto

import "time"

// AdjustStockRequest body para POST /api/inventory/movements (ajuste manual).
type AdjustStockRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,ne=0"`
	Reason    string `json:"reason" validate:"max=500"`
}

// ReverseMovementRequest body opcional para POST /api/inventory/movements/:id/reverse.
type ReverseMovementRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

// MovementResponse salida de un movimiento del libro.
type MovementResponse struct {
	ID               int64     `json:"id"`
	ProductID        string    `json:"product_id"`
	MovementType     string    `json:"movement_type"`
	Quantity         int64     `json:"quantity"`
	ReferenceType    string    `json:"reference_type"`
	ReferenceID      string    `json:"reference_id"`
	PreviousQuantity int64     `json:"previous_quantity"`
	NewQuantity      int64     `json:"new_quantity"`
	ReversesID       *int64    `json:"reverses_id,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// HistoryQuery parámetros de GET /api/products/:id/movements.
type HistoryQuery struct {
	From   string `query:"from"`
	To     string `query:"to"`
	Type   string `query:"type"`
	Limit  int    `query:"limit" validate:"min=0,max=500"`
	Before int64  `query:"before" validate:"min=0"`
}

// HistoryResponse página del historial. NextBefore se pasa como ?before= para la siguiente.
type HistoryResponse struct {
	Items      []MovementResponse `json:"items"`
	NextBefore int64              `json:"next_before,omitempty"`
}

// StockResponse stock actual de un producto.
type StockResponse struct {
	ProductID     string `json:"product_id"`
	StockQuantity int64  `json:"stock_quantity"`
}

// AvailabilityResponse resultado de GET /api/products/:id/availability.
type AvailabilityResponse struct {
	ProductID string `json:"product_id"`
	Requested int64  `json:"requested"`
	Stock     int64  `json:"stock"`
	Available bool   `json:"available"`
}
