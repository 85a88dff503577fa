// Package inventory contiene la lógica pura del libro de movimientos de stock
// (servicio de dominio sin dependencias de infraestructura).
package inventory

import (
	"fmt"
	"math"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// ApplyDelta calcula el nuevo stock a partir del anterior y un delta con signo.
// Un delta cero es inválido; un resultado negativo solo se acepta si allowNegative.
func ApplyDelta(previous, delta int64, allowNegative bool) (int64, error) {
	if delta == 0 {
		return 0, fmt.Errorf("%w: la cantidad no puede ser cero", domain.ErrInvalidInput)
	}
	if (delta > 0 && previous > math.MaxInt64-delta) || (delta < 0 && previous < math.MinInt64-delta) {
		return 0, fmt.Errorf("%w: la cantidad desborda el stock", domain.ErrInvalidInput)
	}
	next := previous + delta
	if next < 0 && !allowNegative {
		return 0, fmt.Errorf("%w: stock %d, solicitado %d", domain.ErrInsufficientStock, previous, -delta)
	}
	return next, nil
}

// Issue describe una inconsistencia encontrada en la cadena de movimientos.
type Issue struct {
	MovementID int64  `json:"movement_id"`
	Message    string `json:"message"`
}

// VerifyChain revisa una secuencia de movimientos de un producto ordenada por inserción
// (ascendente). Cada registro debe cumplir new = previous + quantity y enlazar con el
// anterior; el primero debe partir de cero.
func VerifyChain(movements []*entity.StockMovement) []Issue {
	var issues []Issue
	var expectedPrev int64
	for i, m := range movements {
		if m.NewQuantity != m.PreviousQuantity+m.Quantity {
			issues = append(issues, Issue{
				MovementID: m.ID,
				Message: fmt.Sprintf("new_quantity %d != previous_quantity %d + quantity %d",
					m.NewQuantity, m.PreviousQuantity, m.Quantity),
			})
		}
		if m.PreviousQuantity != expectedPrev {
			what := "el movimiento anterior"
			if i == 0 {
				what = "el stock inicial"
			}
			issues = append(issues, Issue{
				MovementID: m.ID,
				Message: fmt.Sprintf("previous_quantity %d no enlaza con %s (%d)",
					m.PreviousQuantity, what, expectedPrev),
			})
		}
		expectedPrev = m.NewQuantity
	}
	return issues
}

// Replay suma los deltas de la secuencia partiendo de cero.
func Replay(movements []*entity.StockMovement) int64 {
	var total int64
	for _, m := range movements {
		total += m.Quantity
	}
	return total
}

// Negate devuelve el delta que compensa exactamente a original.
func Negate(original *entity.StockMovement) (delta int64, err error) {
	if original.Quantity == math.MinInt64 {
		return 0, fmt.Errorf("%w: cantidad no reversible", domain.ErrInvalidInput)
	}
	return -original.Quantity, nil
}
