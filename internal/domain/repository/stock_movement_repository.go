package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// StockMovementRepository puerto del log de movimientos: solo inserción, nunca update ni delete.
type StockMovementRepository interface {
	// Append inserta el movimiento y completa ID y CreatedAt asignados por el log.
	Append(ctx context.Context, movement *entity.StockMovement) error
	// GetByID devuelve domain.ErrNotFound si no existe.
	GetByID(ctx context.Context, id int64) (*entity.StockMovement, error)
	ListByReference(ctx context.Context, refType entity.ReferenceType, refID string) ([]*entity.StockMovement, error)
	// FindReversalOf devuelve el movimiento que compensa a id, o nil si no hay.
	FindReversalOf(ctx context.Context, id int64) (*entity.StockMovement, error)
	// Query devuelve hasta limit movimientos del producto, del más reciente al más antiguo
	// (created_at desc, id desc). beforeID > 0 pagina por debajo de ese id.
	Query(ctx context.Context, productID string, filter entity.MovementFilter, limit int, beforeID int64) ([]*entity.StockMovement, error)
	// ListAllByProduct devuelve todos los movimientos del producto en orden de inserción.
	ListAllByProduct(ctx context.Context, productID string) ([]*entity.StockMovement, error)
}
