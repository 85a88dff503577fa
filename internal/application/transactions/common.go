// Package transactions contiene los iniciadores de transacciones de negocio (compras, devoluciones
// y ventas). Cada uno escribe su fila de negocio y sus movimientos de stock en una sola transacción.
package transactions

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain"
)

// lockProducts bloquea los productos en orden ascendente de id para evitar deadlocks
// entre operaciones masivas concurrentes.
func lockProducts(ctx context.Context, tx *inventory.Tx, companyID string, productIDs []string) error {
	ids := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p, err := tx.Products.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := checkCompany(companyID, p.CompanyID); err != nil {
			return err
		}
	}
	return nil
}

func checkCompany(actorCompany, rowCompany string) error {
	if actorCompany != "" && actorCompany != rowCompany {
		return domain.ErrForbidden
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: el precio no puede ser negativo", domain.ErrInvalidInput)
	}
	return nil
}

func validateQuantity(q int64) error {
	if q <= 0 {
		return fmt.Errorf("%w: la cantidad debe ser mayor que cero", domain.ErrInvalidInput)
	}
	return nil
}

// baseUnits convierte cantidad × piezas por caja sin desbordar.
func baseUnits(quantity, perUnit int64) (int64, error) {
	if perUnit < 1 {
		perUnit = 1
	}
	if quantity > math.MaxInt64/perUnit {
		return 0, fmt.Errorf("%w: la cantidad desborda", domain.ErrInvalidInput)
	}
	return quantity * perUnit, nil
}


