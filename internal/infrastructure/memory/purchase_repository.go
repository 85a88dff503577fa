package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.PurchaseRepository = (*PurchaseRepository)(nil)

// PurchaseRepository compras y devoluciones en memoria.
type PurchaseRepository struct {
	s  *Store
	tx *tx
}

func (r *PurchaseRepository) write(fn func(repo *PurchaseRepository) error) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error { return fn(&PurchaseRepository{s: r.s, tx: t}) })
	}
	return fn(r)
}

func (r *PurchaseRepository) find(id string) (*entity.Purchase, bool) {
	if r.tx != nil {
		if p, ok := r.tx.purchases[id]; ok {
			return p, p != nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.purchases[id]
	return p, ok
}

// Create agrega la compra.
func (r *PurchaseRepository) Create(ctx context.Context, purchase *entity.Purchase) error {
	return r.write(func(repo *PurchaseRepository) error {
		if _, ok := repo.find(purchase.ID); ok {
			return fmt.Errorf("%w: compra %s", domain.ErrDuplicate, purchase.ID)
		}
		stampCreate(&purchase.CreatedAt, &purchase.UpdatedAt, repo.s.now())
		repo.tx.purchases[purchase.ID] = clonePurchase(purchase)
		return nil
	})
}

// GetByID devuelve ErrNotFound si no existe.
func (r *PurchaseRepository) GetByID(ctx context.Context, id string) (*entity.Purchase, error) {
	p, ok := r.find(id)
	if !ok {
		return nil, fmt.Errorf("%w: compra %s", domain.ErrNotFound, id)
	}
	return clonePurchase(p), nil
}

// Update reemplaza la compra existente.
func (r *PurchaseRepository) Update(ctx context.Context, purchase *entity.Purchase) error {
	return r.write(func(repo *PurchaseRepository) error {
		if _, ok := repo.find(purchase.ID); !ok {
			return fmt.Errorf("%w: compra %s", domain.ErrNotFound, purchase.ID)
		}
		purchase.UpdatedAt = repo.s.now()
		repo.tx.purchases[purchase.ID] = clonePurchase(purchase)
		return nil
	})
}

// Delete borra la compra.
func (r *PurchaseRepository) Delete(ctx context.Context, id string) error {
	return r.write(func(repo *PurchaseRepository) error {
		if _, ok := repo.find(id); !ok {
			return fmt.Errorf("%w: compra %s", domain.ErrNotFound, id)
		}
		repo.tx.purchases[id] = nil
		return nil
	})
}

// ListByCompany compras de la empresa, más recientes primero.
func (r *PurchaseRepository) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Purchase, error) {
	r.s.mu.RLock()
	merged := make(map[string]*entity.Purchase, len(r.s.purchases))
	for id, p := range r.s.purchases {
		merged[id] = p
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		for id, p := range r.tx.purchases {
			merged[id] = p
		}
	}
	var list []*entity.Purchase
	for _, p := range merged {
		if p != nil && p.CompanyID == companyID {
			list = append(list, clonePurchase(p))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return paginate(list, limit, offset), nil
}

// CreateReturn agrega una devolución; la compra debe existir.
func (r *PurchaseRepository) CreateReturn(ctx context.Context, ret *entity.PurchaseReturn) error {
	return r.write(func(repo *PurchaseRepository) error {
		if _, ok := repo.find(ret.PurchaseID); !ok {
			return fmt.Errorf("%w: compra %s", domain.ErrNotFound, ret.PurchaseID)
		}
		if _, ok := repo.findReturn(ret.ID); ok {
			return fmt.Errorf("%w: devolución %s", domain.ErrDuplicate, ret.ID)
		}
		stampCreate(&ret.CreatedAt, &ret.UpdatedAt, repo.s.now())
		repo.tx.returns[ret.ID] = cloneReturn(ret)
		return nil
	})
}

// GetReturnByID devuelve ErrNotFound si no existe.
func (r *PurchaseRepository) GetReturnByID(ctx context.Context, id string) (*entity.PurchaseReturn, error) {
	ret, ok := r.findReturn(id)
	if !ok {
		return nil, fmt.Errorf("%w: devolución %s", domain.ErrNotFound, id)
	}
	return cloneReturn(ret), nil
}

// UpdateReturnStatus cambia el estado de la devolución.
func (r *PurchaseRepository) UpdateReturnStatus(ctx context.Context, id string, status entity.ReturnStatus, updatedBy string) error {
	return r.write(func(repo *PurchaseRepository) error {
		ret, ok := repo.findReturn(id)
		if !ok {
			return fmt.Errorf("%w: devolución %s", domain.ErrNotFound, id)
		}
		updated := cloneReturn(ret)
		updated.Status = status
		updated.UpdatedBy = updatedBy
		updated.UpdatedAt = repo.s.now()
		repo.tx.returns[id] = updated
		return nil
	})
}

// ReturnedQuantity suma lo ya devuelto de la compra.
func (r *PurchaseRepository) ReturnedQuantity(ctx context.Context, purchaseID string) (int64, error) {
	r.s.mu.RLock()
	merged := make(map[string]*entity.PurchaseReturn, len(r.s.returns))
	for id, ret := range r.s.returns {
		merged[id] = ret
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		for id, ret := range r.tx.returns {
			merged[id] = ret
		}
	}
	var total int64
	for _, ret := range merged {
		if ret.PurchaseID == purchaseID {
			total += ret.Quantity
		}
	}
	return total, nil
}

func (r *PurchaseRepository) findReturn(id string) (*entity.PurchaseReturn, bool) {
	if r.tx != nil {
		if ret, ok := r.tx.returns[id]; ok {
			return ret, true
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ret, ok := r.s.returns[id]
	return ret, ok
}

func stampCreate(createdAt, updatedAt *time.Time, now time.Time) {
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = now
	}
}
