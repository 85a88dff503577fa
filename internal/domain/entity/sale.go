package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnitType unidad en la que se registró una venta.
type UnitType string

// Unidades de venta.
const (
	UnitTypePiece UnitType = "PIECE"
	UnitTypeBox   UnitType = "BOX"
)

// ParseUnitType convierte texto a UnitType; vacío equivale a PIECE.
func ParseUnitType(s string) (UnitType, error) {
	switch u := UnitType(strings.ToUpper(strings.TrimSpace(s))); u {
	case "":
		return UnitTypePiece, nil
	case UnitTypePiece, UnitTypeBox:
		return u, nil
	}
	return "", fmt.Errorf("unidad desconocida %q", s)
}

// Sale representa una venta a cliente. ActualQuantity es la cantidad en piezas que sale del stock.
type Sale struct {
	ID             string
	CompanyID      string
	CustomerID     string
	ProductID      string
	UnitType       UnitType
	Quantity       int64
	ActualQuantity int64
	PiecesPerBox   int64
	UnitPrice      decimal.Decimal
	TotalAmount    decimal.Decimal
	SaleDate       time.Time
	Notes          string
	CreatedBy      string
	UpdatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
