package entity

import (
	"fmt"
	"strings"
	"time"
)

// MovementType es el tipo de movimiento de stock (enumeración cerrada).
type MovementType string

// Tipos de movimiento.
const (
	MovementTypePurchase   MovementType = "PURCHASE"
	MovementTypeSale       MovementType = "SALE"
	MovementTypeReturn     MovementType = "RETURN"
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
)

var movementTypes = map[MovementType]struct{}{
	MovementTypePurchase:   {},
	MovementTypeSale:       {},
	MovementTypeReturn:     {},
	MovementTypeAdjustment: {},
}

// Valid indica si el valor pertenece a la enumeración.
func (t MovementType) Valid() bool {
	_, ok := movementTypes[t]
	return ok
}

// ParseMovementType convierte texto (sin distinguir mayúsculas) a MovementType.
func ParseMovementType(s string) (MovementType, error) {
	t := MovementType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("tipo de movimiento desconocido %q", s)
	}
	return t, nil
}

// ReferenceType identifica la transacción de negocio que originó el movimiento.
type ReferenceType string

// Tipos de referencia.
const (
	ReferenceTypePurchase         ReferenceType = "PURCHASE"
	ReferenceTypeSale             ReferenceType = "SALE"
	ReferenceTypePurchaseReturn   ReferenceType = "PURCHASE_RETURN"
	ReferenceTypeAdjustment       ReferenceType = "ADJUSTMENT"
	ReferenceTypePurchaseDeletion ReferenceType = "PURCHASE_DELETION"
	ReferenceTypeSaleDeletion     ReferenceType = "SALE_DELETION"
	ReferenceTypeReversal         ReferenceType = "REVERSAL"
	ReferenceTypeOpeningStock     ReferenceType = "OPENING_STOCK"
)

var referenceTypes = map[ReferenceType]struct{}{
	ReferenceTypePurchase:         {},
	ReferenceTypeSale:             {},
	ReferenceTypePurchaseReturn:   {},
	ReferenceTypeAdjustment:       {},
	ReferenceTypePurchaseDeletion: {},
	ReferenceTypeSaleDeletion:     {},
	ReferenceTypeReversal:         {},
	ReferenceTypeOpeningStock:     {},
}

// Valid indica si el valor pertenece a la enumeración.
func (t ReferenceType) Valid() bool {
	_, ok := referenceTypes[t]
	return ok
}

// StockMovement es una entrada del libro de movimientos. Nunca se actualiza ni se borra:
// las reversiones son registros compensatorios nuevos.
type StockMovement struct {
	ID               int64 // asignado por el log, creciente en orden de inserción
	ProductID        string
	Type             MovementType
	Quantity         int64 // delta con signo aplicado
	ReferenceType    ReferenceType
	ReferenceID      string
	PreviousQuantity int64
	NewQuantity      int64
	ReversesID       *int64 // movimiento que este registro compensa
	Notes            string
	CreatedBy        string
	CreatedAt        time.Time
}

// IsReversal indica si el movimiento compensa a otro.
func (m *StockMovement) IsReversal() bool {
	return m.ReversesID != nil
}

// MovementFilter filtros de consulta del historial de un producto.
type MovementFilter struct {
	From *time.Time
	To   *time.Time
	Type MovementType // vacío = todos
}
