package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// ProductRepository define el puerto de persistencia para Product (DIP).
// StockQuantity solo se modifica con UpdateStock, desde el libro de movimientos.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	// GetByID devuelve domain.ErrNotFound si el producto no existe.
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// GetForUpdate lee el producto y bloquea la fila hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Product, error)
	// UpdateStock escribe newQty solo si el stock actual sigue siendo expected
	// (compare-and-set); si no, devuelve domain.ErrConflict.
	UpdateStock(ctx context.Context, id string, expected, newQty int64) error
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Product, error)
	ListLowStock(ctx context.Context, companyID string) ([]*entity.Product, error)
}
