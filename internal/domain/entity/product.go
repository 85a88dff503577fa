package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del inventario.
// StockQuantity está en la unidad base (piezas) y solo lo modifica el libro de movimientos.
type Product struct {
	ID            string
	CompanyID     string
	SKU           string
	Name          string
	StockQuantity int64
	MinStock      int64 // punto de reorden, solo informativo para el libro
	PiecesPerBox  int64 // conversión BOX → PIECE; 1 si el producto no se vende por caja
	UnitPrice     decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsLowStock indica si el stock actual está en o por debajo del mínimo.
func (p *Product) IsLowStock() bool {
	return p.StockQuantity <= p.MinStock
}

// BoxSize devuelve las piezas por caja, nunca menor que 1.
func (p *Product) BoxSize() int64 {
	if p.PiecesPerBox < 1 {
		return 1
	}
	return p.PiecesPerBox
}
