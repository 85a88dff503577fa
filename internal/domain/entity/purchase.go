package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase representa una compra a proveedor de un producto (cantidad en unidad base).
type Purchase struct {
	ID              string
	CompanyID       string
	SupplierID      string
	ProductID       string
	ReferenceNumber string
	Quantity        int64
	UnitPrice       decimal.Decimal
	TotalAmount     decimal.Decimal
	Notes           string
	CreatedBy       string
	UpdatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReturnStatus estado de una devolución a proveedor.
type ReturnStatus string

// Estados de devolución.
const (
	ReturnStatusWaiting   ReturnStatus = "WAITING"
	ReturnStatusSent      ReturnStatus = "SENT"
	ReturnStatusConfirmed ReturnStatus = "CONFIRMED"
)

// ParseReturnStatus convierte texto a ReturnStatus; vacío equivale a WAITING.
func ParseReturnStatus(s string) (ReturnStatus, error) {
	switch st := ReturnStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case "":
		return ReturnStatusWaiting, nil
	case ReturnStatusWaiting, ReturnStatusSent, ReturnStatusConfirmed:
		return st, nil
	}
	return "", fmt.Errorf("estado de devolución desconocido %q", s)
}

// PurchaseReturn devolución (parcial o total) de una compra al proveedor.
type PurchaseReturn struct {
	ID         string
	PurchaseID string
	Quantity   int64
	Reason     string
	Status     ReturnStatus
	CreatedBy  string
	UpdatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CanTransitionTo indica si el estado puede avanzar a next (WAITING → SENT → CONFIRMED).
// Mantener el mismo estado es válido.
func (s ReturnStatus) CanTransitionTo(next ReturnStatus) bool {
	rank := map[ReturnStatus]int{ReturnStatusWaiting: 0, ReturnStatusSent: 1, ReturnStatusConfirmed: 2}
	from, ok1 := rank[s]
	to, ok2 := rank[next]
	return ok1 && ok2 && to >= from
}
