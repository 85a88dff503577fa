package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepository)(nil)

// ProductRepository productos en memoria. tx nil significa fuera de transacción.
type ProductRepository struct {
	s  *Store
	tx *tx
}

func (r *ProductRepository) find(id string) (*entity.Product, bool) {
	if r.tx != nil {
		if p, ok := r.tx.products[id]; ok {
			return p, true
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	return p, ok
}

// Create agrega el producto; ErrDuplicate si el id o el SKU de la empresa ya existen.
func (r *ProductRepository) Create(ctx context.Context, product *entity.Product) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error {
			return (&ProductRepository{s: r.s, tx: t}).Create(ctx, product)
		})
	}
	if product.ID == "" {
		return fmt.Errorf("%w: id de producto vacío", domain.ErrInvalidInput)
	}
	if _, ok := r.find(product.ID); ok {
		return fmt.Errorf("%w: producto %s", domain.ErrDuplicate, product.ID)
	}
	for _, p := range r.snapshot() {
		if p.CompanyID == product.CompanyID && p.SKU == product.SKU {
			return fmt.Errorf("%w: SKU %s", domain.ErrDuplicate, product.SKU)
		}
	}
	now := r.s.now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}
	r.tx.products[product.ID] = cloneProduct(product)
	r.tx.newProducts[product.ID] = true
	return nil
}

// GetByID devuelve ErrNotFound si no existe.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	p, ok := r.find(id)
	if !ok {
		return nil, fmt.Errorf("%w: producto %s", domain.ErrNotFound, id)
	}
	return cloneProduct(p), nil
}

// GetForUpdate toma el candado del producto hasta el fin de la transacción.
func (r *ProductRepository) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	if r.tx != nil {
		if err := r.tx.lock(ctx, id); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

// UpdateStock compare-and-set sobre el stock. El valor base se vuelve a comprobar en el commit.
func (r *ProductRepository) UpdateStock(ctx context.Context, id string, expected, newQty int64) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error {
			return (&ProductRepository{s: r.s, tx: t}).UpdateStock(ctx, id, expected, newQty)
		})
	}
	p, ok := r.find(id)
	if !ok {
		return fmt.Errorf("%w: producto %s", domain.ErrNotFound, id)
	}
	if p.StockQuantity != expected {
		return fmt.Errorf("%w: stock esperado %d, actual %d", domain.ErrConflict, expected, p.StockQuantity)
	}
	if _, tracked := r.tx.stockBase[id]; !tracked && !r.tx.newProducts[id] {
		r.tx.stockBase[id] = expected
	}
	updated := cloneProduct(p)
	updated.StockQuantity = newQty
	updated.UpdatedAt = r.s.now()
	r.tx.products[id] = updated
	return nil
}

// ListByCompany lista productos de la empresa, más recientes primero.
func (r *ProductRepository) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Product, error) {
	var list []*entity.Product
	for _, p := range r.snapshot() {
		if p.CompanyID == companyID {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return paginate(list, limit, offset), nil
}

// ListLowStock productos con stock en o por debajo del mínimo.
func (r *ProductRepository) ListLowStock(ctx context.Context, companyID string) ([]*entity.Product, error) {
	var list []*entity.Product
	for _, p := range r.snapshot() {
		if p.CompanyID == companyID && p.IsLowStock() {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].StockQuantity == list[j].StockQuantity {
			return list[i].Name < list[j].Name
		}
		return list[i].StockQuantity < list[j].StockQuantity
	})
	return list, nil
}

// snapshot copia del estado confirmado con las escrituras de la transacción encima.
func (r *ProductRepository) snapshot() map[string]*entity.Product {
	r.s.mu.RLock()
	out := make(map[string]*entity.Product, len(r.s.products))
	for id, p := range r.s.products {
		out[id] = cloneProduct(p)
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		for id, p := range r.tx.products {
			out[id] = cloneProduct(p)
		}
	}
	return out
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
