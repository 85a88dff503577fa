package inventory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

// ─── Helpers ─────────────────────────────────────────────────────────────────

func newLedger(t *testing.T, cfg inventory.LedgerConfig, cache inventory.StockCache) (*inventory.LedgerService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := inventory.NewLedgerService(store, store.Products(), store.Movements(), cache, cfg, logger.Nop())
	return svc, store
}

// seed crea el producto y registra su stock inicial como movimiento.
func seed(t *testing.T, svc *inventory.LedgerService, store *memory.Store, id string, opening int64) {
	t.Helper()
	require.NoError(t, store.Products().Create(context.Background(), &entity.Product{
		ID: id, CompanyID: "c1", SKU: "SKU-" + id, Name: "Producto " + id, PiecesPerBox: 1,
	}))
	if opening == 0 {
		return
	}
	_, err := svc.RecordMovement(context.Background(), inventory.MovementInput{
		ProductID: id, Type: entity.MovementTypeAdjustment, Quantity: opening,
		ReferenceType: entity.ReferenceTypeOpeningStock, ReferenceID: id, ActorID: "u1",
	})
	require.NoError(t, err)
}

func stockOf(t *testing.T, store *memory.Store, id string) int64 {
	t.Helper()
	p, err := store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func history(t *testing.T, svc *inventory.LedgerService, id string) []*entity.StockMovement {
	t.Helper()
	var out []*entity.StockMovement
	for m, err := range svc.GetHistory(context.Background(), "", id, entity.MovementFilter{}) {
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

// ─── Escenarios ──────────────────────────────────────────────────────────────

func TestLedger_EscenariosCompraVentaReversion(t *testing.T) {
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), nil)
	ctx := context.Background()
	seed(t, svc, store, "p1", 50)

	purchase, err := svc.RecordMovement(ctx, inventory.MovementInput{
		ProductID: "p1", Type: entity.MovementTypePurchase, Quantity: 20,
		ReferenceType: entity.ReferenceTypePurchase, ReferenceID: "compra-1", ActorID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), purchase.PreviousQuantity)
	assert.Equal(t, int64(70), purchase.NewQuantity)
	assert.Equal(t, int64(70), stockOf(t, store, "p1"))

	sale, err := svc.RecordMovement(ctx, inventory.MovementInput{
		ProductID: "p1", Type: entity.MovementTypeSale, Quantity: -15,
		ReferenceType: entity.ReferenceTypeSale, ReferenceID: "venta-1", ActorID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(70), sale.PreviousQuantity)
	assert.Equal(t, int64(55), sale.NewQuantity)

	reversal, err := svc.Reverse(ctx, inventory.ReverseInput{
		MovementID: sale.ID, ReferenceType: entity.ReferenceTypeSaleDeletion, ReferenceID: "venta-1", ActorID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.MovementTypeAdjustment, reversal.Type)
	assert.Equal(t, int64(15), reversal.Quantity)
	assert.Equal(t, int64(55), reversal.PreviousQuantity)
	assert.Equal(t, int64(70), reversal.NewQuantity)
	require.NotNil(t, reversal.ReversesID)
	assert.Equal(t, sale.ID, *reversal.ReversesID)
	assert.Equal(t, int64(70), stockOf(t, store, "p1"))

	// Historial: más reciente primero.
	h := history(t, svc, "p1")
	require.Len(t, h, 4)
	assert.Equal(t, reversal.ID, h[0].ID)
	assert.Equal(t, purchase.ID, h[2].ID)
}

func TestRecordMovement_ProductoInexistente(t *testing.T) {
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), nil)
	ctx := context.Background()
	seed(t, svc, store, "p1", 10)

	_, err := svc.RecordMovement(ctx, inventory.MovementInput{
		ProductID: "ghost", Type: entity.MovementTypePurchase, Quantity: 5,
		ReferenceType: entity.ReferenceTypePurchase, ReferenceID: "x",
	})
	require.ErrorIs(t, err, domain.ErrNotFound)

	all, err := store.Movements().ListAllByProduct(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, int64(10), stockOf(t, store, "p1"))
}

// ─── Validación ──────────────────────────────────────────────────────────────

func TestRecordMovement_Validaciones(t *testing.T) {
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), nil)
	seed(t, svc, store, "p1", 10)

	cases := []struct {
		name string
		in   inventory.MovementInput
	}{
		{"cantidad cero", inventory.MovementInput{ProductID: "p1", Type: entity.MovementTypeAdjustment, ReferenceType: entity.ReferenceTypeAdjustment}},
		{"tipo desconocido", inventory.MovementInput{ProductID: "p1", Type: "TRANSFER", Quantity: 1, ReferenceType: entity.ReferenceTypeAdjustment}},
		{"referencia desconocida", inventory.MovementInput{ProductID: "p1", Type: entity.MovementTypeAdjustment, Quantity: 1, ReferenceType: "INVOICE"}},
		{"sin producto", inventory.MovementInput{Type: entity.MovementTypeAdjustment, Quantity: 1, ReferenceType: entity.ReferenceTypeAdjustment}},
		{"compra negativa", inventory.MovementInput{ProductID: "p1", Type: entity.MovementTypePurchase, Quantity: -1, ReferenceType: entity.ReferenceTypePurchase}},
		{"venta positiva", inventory.MovementInput{ProductID: "p1", Type: entity.MovementTypeSale, Quantity: 1, ReferenceType: entity.ReferenceTypeSale}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordMovement(context.Background(), tc.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
	assert.Equal(t, int64(10), stockOf(t, store, "p1"))
	assert.Len(t, history(t, svc, "p1"), 1)
}

func TestRecordMovement_PoliticaStockNegativo(t *testing.T) {
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), nil)
	seed(t, svc, store, "p1", 5)

	_, err := svc.RecordMovement(context.Background(), inventory.MovementInput{
		ProductID: "p1", Type: entity.MovementTypeSale, Quantity: -6,
		ReferenceType: entity.ReferenceTypeSale, ReferenceID: "v",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(5), stockOf(t, store, "p1"))

	cfg := inventory.DefaultLedgerConfig()
	cfg.AllowNegativeStock = true
	permissive, store2 := newLedger(t, cfg, nil)
	seed(t, permissive, store2, "p1", 5)
	m, err := permissive.RecordMovement(context.Background(), inventory.MovementInput{
		ProductID: "p1", Type: entity.MovementTypeSale, Quantity: -6,
		ReferenceType: entity.ReferenceTypeSale, ReferenceID: "v",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), m.NewQuantity)
}

func TestRecordMovement_EmpresaAjena(t *testing.T) {
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), nil)
	seed(t, svc, store, "p1", 5)

	_, err := svc.Adjust(context.Background(), "otra-empresa", "p1", 3, "conteo", "u1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, int64(5), stockOf(t, store, "p1"))
}

// ─── Reversión ───────────────────────────────────────────────────────────────

func TestReverse_Idempotente(t *testing.T) {
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), nil)
	ctx := context.Background()
	seed(t, svc, store, "p1", 10)

	adj, err := svc.Adjust(ctx, "c1", "p1", -4, "merma", "u1")
	require.NoError(t, err)

	first, err := svc.Reverse(ctx, inventory.ReverseInput{MovementID: adj.ID, ActorID: "u1"})
	require.NoError(t, err)
	second, err := svc.Reverse(ctx, inventory.ReverseInput{MovementID: adj.ID, ActorID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, entity.ReferenceTypeReversal, first.ReferenceType)
	assert.Equal(t, int64(10), stockOf(t, store, "p1"))
	assert.Len(t, history(t, svc, "p1"), 3)

	_, err = svc.Reverse(ctx, inventory.ReverseInput{MovementID: first.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Reverse(ctx, inventory.ReverseInput{MovementID: 9999})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReverse_ConcurrenteCreaUnaSolaCompensacion(t *testing.T) {
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), nil)
	ctx := context.Background()
	seed(t, svc, store, "p1", 10)
	adj, err := svc.Adjust(ctx, "c1", "p1", 5, "conteo", "u1")
	require.NoError(t, err)

	var g errgroup.Group
	ids := make([]int64, 8)
	for i := range ids {
		g.Go(func() error {
			r, err := svc.Reverse(ctx, inventory.ReverseInput{MovementID: adj.ID})
			if err != nil {
				return err
			}
			ids[i] = r.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, int64(10), stockOf(t, store, "p1"))
}

// ─── Invariantes y concurrencia ──────────────────────────────────────────────

func TestLedger_EscritoresConcurrentesMantienenInvariantes(t *testing.T) {
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), nil)
	ctx := context.Background()
	seed(t, svc, store, "p1", 100)

	const writers = 40
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			typ, qty, ref := entity.MovementTypeSale, int64(-2), entity.ReferenceTypeSale
			if i%2 == 0 {
				typ, qty, ref = entity.MovementTypePurchase, 3, entity.ReferenceTypePurchase
			}
			_, err := svc.RecordMovement(ctx, inventory.MovementInput{
				ProductID: "p1", Type: typ, Quantity: qty, ReferenceType: ref, ReferenceID: "r",
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	// 20 compras de +3 y 20 ventas de -2.
	assert.Equal(t, int64(120), stockOf(t, store, "p1"))

	report, err := svc.VerifyLedger(ctx, "", "p1")
	require.NoError(t, err)
	assert.True(t, report.Consistent, "issues: %v", report.Issues)
	assert.Equal(t, writers+1, report.Movements)
	assert.Equal(t, int64(120), report.ReplayedStock)

	for _, m := range history(t, svc, "p1") {
		assert.Equal(t, m.PreviousQuantity+m.Quantity, m.NewQuantity)
	}
}

func TestLedger_VentasConcurrentesNoSobrevenden(t *testing.T) {
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), nil)
	ctx := context.Background()
	seed(t, svc, store, "p1", 20)

	var ok, insufficient atomic.Int32
	var g errgroup.Group
	for i := 0; i < 30; i++ {
		g.Go(func() error {
			_, err := svc.RecordMovement(ctx, inventory.MovementInput{
				ProductID: "p1", Type: entity.MovementTypeSale, Quantity: -1,
				ReferenceType: entity.ReferenceTypeSale, ReferenceID: "v",
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(20), ok.Load())
	assert.Equal(t, int32(10), insufficient.Load())
	assert.Equal(t, int64(0), stockOf(t, store, "p1"))
}

func TestVerifyLedger_DetectaStockDescuadrado(t *testing.T) {
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), nil)
	ctx := context.Background()
	seed(t, svc, store, "p1", 8)

	// Escritura directa que salta el libro.
	require.NoError(t, store.Products().UpdateStock(ctx, "p1", 8, 11))

	report, err := svc.VerifyLedger(ctx, "", "p1")
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, int64(8), report.ReplayedStock)
	assert.Equal(t, int64(11), report.StoredStock)
	assert.NotEmpty(t, report.Issues)
}

// ─── Reintentos ──────────────────────────────────────────────────────────────

type flakyProducts struct {
	repository.ProductRepository
	failures *atomic.Int32
}

func (f *flakyProducts) UpdateStock(ctx context.Context, id string, expected, newQty int64) error {
	if f.failures.Add(-1) >= 0 {
		return domain.ErrConflict
	}
	return f.ProductRepository.UpdateStock(ctx, id, expected, newQty)
}

type flakyRunner struct {
	store    *memory.Store
	failures *atomic.Int32
	attempts atomic.Int32
}

func (r *flakyRunner) Run(ctx context.Context, fn func(ctx context.Context, repos inventory.Repos) error) error {
	r.attempts.Add(1)
	return r.store.Run(ctx, func(ctx context.Context, repos inventory.Repos) error {
		repos.Products = &flakyProducts{ProductRepository: repos.Products, failures: r.failures}
		return fn(ctx, repos)
	})
}

func TestRecordMovement_ReintentaConflictos(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Products().Create(context.Background(), &entity.Product{ID: "p1", CompanyID: "c1", SKU: "A"}))

	failures := &atomic.Int32{}
	failures.Store(2)
	runner := &flakyRunner{store: store, failures: failures}
	svc := inventory.NewLedgerService(runner, store.Products(), store.Movements(), nil, inventory.DefaultLedgerConfig(), logger.Nop())

	m, err := svc.RecordMovement(context.Background(), inventory.MovementInput{
		ProductID: "p1", Type: entity.MovementTypePurchase, Quantity: 4,
		ReferenceType: entity.ReferenceTypePurchase, ReferenceID: "c",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), m.NewQuantity)
	assert.Equal(t, int32(3), runner.attempts.Load())
}

func TestRecordMovement_ConflictoPersistenteSeReporta(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Products().Create(context.Background(), &entity.Product{ID: "p1", CompanyID: "c1", SKU: "A"}))

	failures := &atomic.Int32{}
	failures.Store(100)
	runner := &flakyRunner{store: store, failures: failures}
	cfg := inventory.DefaultLedgerConfig()
	cfg.Retry.MaxRetries = 2
	svc := inventory.NewLedgerService(runner, store.Products(), store.Movements(), nil, cfg, logger.Nop())

	_, err := svc.RecordMovement(context.Background(), inventory.MovementInput{
		ProductID: "p1", Type: entity.MovementTypePurchase, Quantity: 4,
		ReferenceType: entity.ReferenceTypePurchase, ReferenceID: "c",
	})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, int32(3), runner.attempts.Load())

	all, err := store.Movements().ListAllByProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

// ─── Caché ───────────────────────────────────────────────────────────────────

type mapCache struct {
	mu          sync.Mutex
	values      map[string]inventory.CachedStock
	invalidated []string
}

func (c *mapCache) GetStock(_ context.Context, id string) (*inventory.CachedStock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c *mapCache) SetStock(_ context.Context, id string, v inventory.CachedStock) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[id] = v
	return nil
}

func (c *mapCache) Invalidate(ctx context.Context, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.values, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

func TestCurrentStock_CacheAsideEInvalidacion(t *testing.T) {
	cache := &mapCache{values: map[string]inventory.CachedStock{}}
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), cache)
	ctx := context.Background()
	seed(t, svc, store, "p1", 12)

	qty, err := svc.CurrentStock(ctx, "c1", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), qty)
	assert.Equal(t, int64(12), cache.values["p1"].Quantity)

	_, err = svc.CurrentStock(ctx, "c2", "p1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Adjust(ctx, "c1", "p1", 3, "conteo", "u1")
	require.NoError(t, err)
	_, cached := cache.values["p1"]
	assert.False(t, cached)

	qty, err = svc.CurrentStock(ctx, "c1", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), qty)
}

func TestTransact_InvalidaAunqueElContextoSeCancele(t *testing.T) {
	cache := &mapCache{values: map[string]inventory.CachedStock{}}
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), cache)
	seed(t, svc, store, "p1", 12)

	_, err := svc.CurrentStock(context.Background(), "c1", "p1")
	require.NoError(t, err)
	require.Contains(t, cache.values, "p1")

	// El cliente se desconecta justo después del commit.
	ctx, cancel := context.WithCancel(context.Background())
	err = svc.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		defer cancel()
		_, err := svc.RecordInTx(ctx, tx, inventory.MovementInput{
			CompanyID: "c1", ProductID: "p1", Type: entity.MovementTypeAdjustment, Quantity: 3,
			ReferenceType: entity.ReferenceTypeAdjustment, ReferenceID: "p1",
		})
		return err
	})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.NotContains(t, cache.values, "p1")
	qty, err := svc.CurrentStock(context.Background(), "c1", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), qty)
}

func TestCheckAvailability(t *testing.T) {
	svc, store := newLedger(t, inventory.DefaultLedgerConfig(), nil)
	seed(t, svc, store, "p1", 7)

	ok, stock, err := svc.CheckAvailability(context.Background(), "c1", "p1", 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), stock)

	ok, _, err = svc.CheckAvailability(context.Background(), "c1", "p1", 8)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = svc.CheckAvailability(context.Background(), "c1", "p1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
