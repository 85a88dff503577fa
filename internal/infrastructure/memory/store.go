// Package memory implementa los repositorios y el TxRunner en memoria.
// Se usa con STORE_DRIVER=memory y en tests. Las escrituras de una transacción
// quedan en un buffer hasta el commit; GetForUpdate toma un candado por producto
// que se libera al terminar la transacción.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

var _ inventory.TxRunner = (*Store)(nil)

// Store estado confirmado de la base en memoria.
type Store struct {
	mu        sync.RWMutex
	products  map[string]*entity.Product
	movements []*entity.StockMovement
	purchases map[string]*entity.Purchase
	returns   map[string]*entity.PurchaseReturn
	sales     map[string]*entity.Sale
	rowLocks  map[string]chan struct{}
	nextID    int64
	lastAt    time.Time
	now       func() time.Time
}

// NewStore crea una base vacía.
func NewStore() *Store {
	return &Store{
		products:  make(map[string]*entity.Product),
		purchases: make(map[string]*entity.Purchase),
		returns:   make(map[string]*entity.PurchaseReturn),
		sales:     make(map[string]*entity.Sale),
		rowLocks:  make(map[string]chan struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Repos devuelve repositorios fuera de transacción: cada escritura se confirma sola.
func (s *Store) Repos() inventory.Repos {
	return s.reposFor(nil)
}

// Products repositorio de productos fuera de transacción.
func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }

// Movements log de movimientos fuera de transacción.
func (s *Store) Movements() *StockMovementRepository { return &StockMovementRepository{s: s} }

// Purchases repositorio de compras fuera de transacción.
func (s *Store) Purchases() *PurchaseRepository { return &PurchaseRepository{s: s} }

// Sales repositorio de ventas fuera de transacción.
func (s *Store) Sales() *SaleRepository { return &SaleRepository{s: s} }

func (s *Store) reposFor(t *tx) inventory.Repos {
	return inventory.Repos{
		Products:  &ProductRepository{s: s, tx: t},
		Movements: &StockMovementRepository{s: s, tx: t},
		Purchases: &PurchaseRepository{s: s, tx: t},
		Sales:     &SaleRepository{s: s, tx: t},
	}
}

// Run ejecuta fn en una transacción: si fn devuelve error (o entra en pánico) nada de lo
// escrito queda visible; si no, se confirma todo junto.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, repos inventory.Repos) error) error {
	t := newTx(s)
	defer t.release()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if err := fn(ctx, s.reposFor(t)); err != nil {
		return err
	}
	return t.commit()
}

// autocommit ejecuta una escritura aislada como si fuera su propia transacción.
func (s *Store) autocommit(write func(t *tx) error) error {
	t := newTx(s)
	defer t.release()
	if err := write(t); err != nil {
		return err
	}
	return t.commit()
}

// tick devuelve una marca de tiempo que nunca retrocede. Requiere s.mu tomado.
func (s *Store) tick() time.Time {
	now := s.now()
	if now.Before(s.lastAt) {
		now = s.lastAt
	}
	s.lastAt = now
	return now
}

func (s *Store) rowLock(id string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.rowLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[id] = ch
	}
	return ch
}

// tx buffer de escrituras pendientes. Un valor nil en purchases o sales marca un borrado.
type tx struct {
	s           *Store
	held        map[string]chan struct{}
	products    map[string]*entity.Product
	newProducts map[string]bool
	stockBase   map[string]int64
	movements   []*entity.StockMovement
	purchases   map[string]*entity.Purchase
	returns     map[string]*entity.PurchaseReturn
	sales       map[string]*entity.Sale
	done        bool
}

func newTx(s *Store) *tx {
	return &tx{
		s:           s,
		held:        make(map[string]chan struct{}),
		products:    make(map[string]*entity.Product),
		newProducts: make(map[string]bool),
		stockBase:   make(map[string]int64),
		purchases:   make(map[string]*entity.Purchase),
		returns:     make(map[string]*entity.PurchaseReturn),
		sales:       make(map[string]*entity.Sale),
	}
}

// lock toma el candado de fila del producto; reentrante dentro de la misma transacción.
func (t *tx) lock(ctx context.Context, productID string) error {
	if _, ok := t.held[productID]; ok {
		return nil
	}
	ch := t.s.rowLock(productID)
	select {
	case ch <- struct{}{}:
		t.held[productID] = ch
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: esperando bloqueo de producto: %v", domain.ErrStoreUnavailable, ctx.Err())
	}
}

func (t *tx) release() {
	for id, ch := range t.held {
		<-ch
		delete(t.held, id)
	}
	t.done = true
}

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, base := range t.stockBase {
		current, ok := s.products[id]
		if !ok {
			return fmt.Errorf("%w: producto %s", domain.ErrNotFound, id)
		}
		if current.StockQuantity != base {
			return fmt.Errorf("%w: el stock del producto %s cambió", domain.ErrConflict, id)
		}
	}
	for id := range t.newProducts {
		if _, exists := s.products[id]; exists {
			return fmt.Errorf("%w: producto %s", domain.ErrDuplicate, id)
		}
		p := t.products[id]
		for _, other := range s.products {
			if other.CompanyID == p.CompanyID && other.SKU == p.SKU {
				return fmt.Errorf("%w: SKU %s", domain.ErrDuplicate, p.SKU)
			}
		}
	}

	for id, p := range t.products {
		s.products[id] = p
	}
	s.movements = append(s.movements, t.movements...)
	for id, p := range t.purchases {
		if p == nil {
			delete(s.purchases, id)
			continue
		}
		s.purchases[id] = p
	}
	for id, r := range t.returns {
		s.returns[id] = r
	}
	for id, sale := range t.sales {
		if sale == nil {
			delete(s.sales, id)
			continue
		}
		s.sales[id] = sale
	}
	return nil
}

func cloneProduct(p *entity.Product) *entity.Product {
	c := *p
	return &c
}

func cloneMovement(m *entity.StockMovement) *entity.StockMovement {
	c := *m
	if m.ReversesID != nil {
		id := *m.ReversesID
		c.ReversesID = &id
	}
	return &c
}

func clonePurchase(p *entity.Purchase) *entity.Purchase {
	c := *p
	return &c
}

func cloneReturn(r *entity.PurchaseReturn) *entity.PurchaseReturn {
	c := *r
	return &c
}

func cloneSale(s *entity.Sale) *entity.Sale {
	c := *s
	return &c
}
