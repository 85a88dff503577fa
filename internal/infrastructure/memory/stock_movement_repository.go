package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepository)(nil)

// StockMovementRepository log de movimientos en memoria (solo inserción).
type StockMovementRepository struct {
	s  *Store
	tx *tx
}

// Append asigna id y created_at al insertar. El id se consume aunque la transacción se revierta.
func (r *StockMovementRepository) Append(ctx context.Context, movement *entity.StockMovement) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error {
			return (&StockMovementRepository{s: r.s, tx: t}).Append(ctx, movement)
		})
	}
	products := &ProductRepository{s: r.s, tx: r.tx}
	if _, ok := products.find(movement.ProductID); !ok {
		return fmt.Errorf("%w: producto %s", domain.ErrNotFound, movement.ProductID)
	}
	if movement.ReversesID != nil {
		existing, err := r.FindReversalOf(ctx, *movement.ReversesID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: el movimiento %d ya fue revertido", domain.ErrConflict, *movement.ReversesID)
		}
	}

	r.s.mu.Lock()
	r.s.nextID++
	movement.ID = r.s.nextID
	movement.CreatedAt = r.s.tick()
	r.s.mu.Unlock()

	r.tx.movements = append(r.tx.movements, cloneMovement(movement))
	return nil
}

// GetByID devuelve ErrNotFound si no existe.
func (r *StockMovementRepository) GetByID(ctx context.Context, id int64) (*entity.StockMovement, error) {
	for _, m := range r.all() {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: movimiento %d", domain.ErrNotFound, id)
}

// ListByReference movimientos de una transacción de negocio, en orden de inserción.
func (r *StockMovementRepository) ListByReference(ctx context.Context, refType entity.ReferenceType, refID string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for _, m := range r.all() {
		if m.ReferenceType == refType && m.ReferenceID == refID {
			out = append(out, m)
		}
	}
	return out, nil
}

// FindReversalOf devuelve nil si el movimiento no fue revertido.
func (r *StockMovementRepository) FindReversalOf(ctx context.Context, id int64) (*entity.StockMovement, error) {
	for _, m := range r.all() {
		if m.ReversesID != nil && *m.ReversesID == id {
			return m, nil
		}
	}
	return nil, nil
}

// Query historial descendente (created_at desc, id desc) con paginación por id.
func (r *StockMovementRepository) Query(ctx context.Context, productID string, filter entity.MovementFilter, limit int, beforeID int64) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for _, m := range r.all() {
		if m.ProductID != productID {
			continue
		}
		if beforeID > 0 && m.ID >= beforeID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.From != nil && m.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && m.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, limit, 0), nil
}

// ListAllByProduct todos los movimientos del producto por id ascendente.
func (r *StockMovementRepository) ListAllByProduct(ctx context.Context, productID string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for _, m := range r.all() {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

// all copia del log confirmado más los pendientes de la transacción, ordenado por id.
func (r *StockMovementRepository) all() []*entity.StockMovement {
	r.s.mu.RLock()
	out := make([]*entity.StockMovement, 0, len(r.s.movements))
	for _, m := range r.s.movements {
		out = append(out, cloneMovement(m))
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		for _, m := range r.tx.movements {
			out = append(out, cloneMovement(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
