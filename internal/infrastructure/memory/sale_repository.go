package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepository)(nil)

// SaleRepository ventas en memoria.
type SaleRepository struct {
	s  *Store
	tx *tx
}

func (r *SaleRepository) write(fn func(repo *SaleRepository) error) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error { return fn(&SaleRepository{s: r.s, tx: t}) })
	}
	return fn(r)
}

func (r *SaleRepository) find(id string) (*entity.Sale, bool) {
	if r.tx != nil {
		if sale, ok := r.tx.sales[id]; ok {
			return sale, sale != nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sale, ok := r.s.sales[id]
	return sale, ok
}

// Create agrega la venta.
func (r *SaleRepository) Create(ctx context.Context, sale *entity.Sale) error {
	return r.write(func(repo *SaleRepository) error {
		if _, ok := repo.find(sale.ID); ok {
			return fmt.Errorf("%w: venta %s", domain.ErrDuplicate, sale.ID)
		}
		stampCreate(&sale.CreatedAt, &sale.UpdatedAt, repo.s.now())
		repo.tx.sales[sale.ID] = cloneSale(sale)
		return nil
	})
}

// GetByID devuelve ErrNotFound si no existe.
func (r *SaleRepository) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	sale, ok := r.find(id)
	if !ok {
		return nil, fmt.Errorf("%w: venta %s", domain.ErrNotFound, id)
	}
	return cloneSale(sale), nil
}

// Update reemplaza la venta existente.
func (r *SaleRepository) Update(ctx context.Context, sale *entity.Sale) error {
	return r.write(func(repo *SaleRepository) error {
		if _, ok := repo.find(sale.ID); !ok {
			return fmt.Errorf("%w: venta %s", domain.ErrNotFound, sale.ID)
		}
		sale.UpdatedAt = repo.s.now()
		repo.tx.sales[sale.ID] = cloneSale(sale)
		return nil
	})
}

// Delete borra la venta.
func (r *SaleRepository) Delete(ctx context.Context, id string) error {
	return r.write(func(repo *SaleRepository) error {
		if _, ok := repo.find(id); !ok {
			return fmt.Errorf("%w: venta %s", domain.ErrNotFound, id)
		}
		repo.tx.sales[id] = nil
		return nil
	})
}

// ListByCompany ventas de la empresa por fecha de venta descendente.
func (r *SaleRepository) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Sale, error) {
	r.s.mu.RLock()
	merged := make(map[string]*entity.Sale, len(r.s.sales))
	for id, sale := range r.s.sales {
		merged[id] = sale
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		for id, sale := range r.tx.sales {
			merged[id] = sale
		}
	}
	var list []*entity.Sale
	for _, sale := range merged {
		if sale != nil && sale.CompanyID == companyID {
			list = append(list, cloneSale(sale))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SaleDate.Equal(list[j].SaleDate) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].SaleDate.After(list[j].SaleDate)
	})
	return paginate(list, limit, offset), nil
}
