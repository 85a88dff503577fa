package transactions_test

import (
	"context"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/transactions"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

type fixture struct {
	store     *memory.Store
	ledger    *inventory.LedgerService
	purchases *transactions.PurchaseUseCase
	sales     *transactions.SaleUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, inventory.DefaultLedgerConfig())
}

func newFixtureWithConfig(t *testing.T, cfg inventory.LedgerConfig) *fixture {
	t.Helper()
	store := memory.NewStore()
	ledger := inventory.NewLedgerService(store, store.Products(), store.Movements(), nil, cfg, logger.Nop())
	return &fixture{
		store:     store,
		ledger:    ledger,
		purchases: transactions.NewPurchaseUseCase(ledger, store.Purchases(), logger.Nop()),
		sales:     transactions.NewSaleUseCase(ledger, store.Sales(), store.Products(), logger.Nop()),
	}
}

func (f *fixture) product(t *testing.T, id string, piecesPerBox, opening int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Products().Create(ctx, &entity.Product{
		ID: id, CompanyID: "c1", SKU: "SKU-" + id, Name: "Producto " + id, PiecesPerBox: piecesPerBox,
	}))
	if opening > 0 {
		_, err := f.ledger.RecordMovement(ctx, inventory.MovementInput{
			ProductID: id, Type: entity.MovementTypeAdjustment, Quantity: opening,
			ReferenceType: entity.ReferenceTypeOpeningStock, ReferenceID: id,
		})
		require.NoError(t, err)
	}
}

func (f *fixture) stock(t *testing.T, id string) int64 {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *fixture) consistent(t *testing.T, id string) {
	t.Helper()
	report, err := f.ledger.VerifyLedger(context.Background(), "c1", id)
	require.NoError(t, err)
	assert.True(t, report.Consistent, "issues: %v", report.Issues)
}

func purchaseReq(productID string, qty int64) dto.CreatePurchaseRequest {
	return dto.CreatePurchaseRequest{
		SupplierID: "prov-1", ProductID: productID, ReferenceNumber: "FAC-1",
		Quantity: qty, UnitPrice: decimal.RequireFromString("2.50"),
	}
}

func TestPurchase_CreateSumaStock(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 1, 5)

	res, err := f.purchases.Create(context.Background(), "c1", "u1", purchaseReq("p1", 10))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25").Equal(res.Purchase.TotalAmount))
	require.Len(t, res.Movements, 1)
	assert.Equal(t, "PURCHASE", res.Movements[0].MovementType)
	assert.Equal(t, res.Purchase.ID, res.Movements[0].ReferenceID)
	assert.Equal(t, int64(15), f.stock(t, "p1"))
	f.consistent(t, "p1")
}

func TestPurchase_CreateValidaciones(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 1, 0)
	ctx := context.Background()

	_, err := f.purchases.Create(ctx, "c1", "u1", purchaseReq("p1", 0))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	req := purchaseReq("p1", 1)
	req.UnitPrice = decimal.NewFromInt(-1)
	_, err = f.purchases.Create(ctx, "c1", "u1", req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.purchases.Create(ctx, "c1", "u1", purchaseReq("ghost", 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.purchases.Create(ctx, "otra", "u1", purchaseReq("p1", 1))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	list, err := f.purchases.List(ctx, "c1", dto.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

func TestPurchase_BulkTodoONada(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 1, 0)
	f.product(t, "p2", 1, 0)
	ctx := context.Background()

	_, err := f.purchases.CreateBulk(ctx, "c1", "u1", dto.BulkPurchaseRequest{
		SupplierID: "prov-1",
		Items: []dto.BulkPurchaseItem{
			{ProductID: "p1", Quantity: 3},
			{ProductID: "ghost", Quantity: 4},
		},
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.stock(t, "p1"))

	res, err := f.purchases.CreateBulk(ctx, "c1", "u1", dto.BulkPurchaseRequest{
		SupplierID: "prov-1",
		Items: []dto.BulkPurchaseItem{
			{ProductID: "p2", Quantity: 4},
			{ProductID: "p1", Quantity: 3},
		},
	})
	require.NoError(t, err)
	assert.Len(t, res.Purchases, 2)
	assert.Len(t, res.Movements, 2)
	assert.Equal(t, int64(3), f.stock(t, "p1"))
	assert.Equal(t, int64(4), f.stock(t, "p2"))

	_, err = f.purchases.CreateBulk(ctx, "c1", "u1", dto.BulkPurchaseRequest{SupplierID: "prov-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPurchase_UpdateCantidadRegistraAjuste(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 1, 0)
	ctx := context.Background()
	created, err := f.purchases.Create(ctx, "c1", "u1", purchaseReq("p1", 10))
	require.NoError(t, err)

	res, err := f.purchases.Update(ctx, "c1", "u2", created.Purchase.ID, dto.UpdatePurchaseRequest{
		SupplierID: "prov-1", ProductID: "p1", Quantity: 15, UnitPrice: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	require.Len(t, res.Movements, 1)
	assert.Equal(t, "ADJUSTMENT", res.Movements[0].MovementType)
	assert.Equal(t, int64(5), res.Movements[0].Quantity)
	assert.Equal(t, int64(15), f.stock(t, "p1"))

	// Sin cambio de cantidad no hay movimiento.
	res, err = f.purchases.Update(ctx, "c1", "u2", created.Purchase.ID, dto.UpdatePurchaseRequest{
		SupplierID: "prov-2", ProductID: "p1", Quantity: 15, UnitPrice: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Movements)
	assert.Equal(t, "prov-2", res.Purchase.SupplierID)
	f.consistent(t, "p1")
}

func TestPurchase_UpdateCambioDeProducto(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 1, 0)
	f.product(t, "p2", 1, 0)
	ctx := context.Background()
	created, err := f.purchases.Create(ctx, "c1", "u1", purchaseReq("p1", 10))
	require.NoError(t, err)
	_, err = f.purchases.Update(ctx, "c1", "u1", created.Purchase.ID, dto.UpdatePurchaseRequest{
		SupplierID: "prov-1", ProductID: "p1", Quantity: 12,
	})
	require.NoError(t, err)

	res, err := f.purchases.Update(ctx, "c1", "u1", created.Purchase.ID, dto.UpdatePurchaseRequest{
		SupplierID: "prov-1", ProductID: "p2", Quantity: 7,
	})
	require.NoError(t, err)
	// Se revierten la compra y el ajuste del producto anterior.
	require.Len(t, res.Movements, 3)
	assert.Zero(t, f.stock(t, "p1"))
	assert.Equal(t, int64(7), f.stock(t, "p2"))
	assert.Equal(t, "p2", res.Purchase.ProductID)
	f.consistent(t, "p1")
	f.consistent(t, "p2")
}

func TestPurchase_DevolucionesConTope(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 1, 0)
	ctx := context.Background()
	created, err := f.purchases.Create(ctx, "c1", "u1", purchaseReq("p1", 10))
	require.NoError(t, err)
	id := created.Purchase.ID

	ret, err := f.purchases.CreateReturn(ctx, "c1", "u1", id, dto.CreatePurchaseReturnRequest{Quantity: 6, Reason: "dañado"})
	require.NoError(t, err)
	assert.Equal(t, "WAITING", ret.Return.Status)
	assert.Equal(t, "RETURN", ret.Movement.MovementType)
	assert.Equal(t, int64(-6), ret.Movement.Quantity)
	assert.Equal(t, int64(4), f.stock(t, "p1"))

	_, err = f.purchases.CreateReturn(ctx, "c1", "u1", id, dto.CreatePurchaseReturnRequest{Quantity: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.purchases.CreateReturn(ctx, "c1", "u1", id, dto.CreatePurchaseReturnRequest{Quantity: 4, Status: "SENT"})
	require.NoError(t, err)
	assert.Zero(t, f.stock(t, "p1"))

	// Con devoluciones, la compra no se borra ni cambia de producto.
	_, err = f.purchases.Delete(ctx, "c1", "u1", id)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.purchases.Update(ctx, "c1", "u1", id, dto.UpdatePurchaseRequest{SupplierID: "prov-1", ProductID: "p1", Quantity: 8})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	f.consistent(t, "p1")
}

func TestPurchase_DevolucionEnormeNoDesbordaElTope(t *testing.T) {
	cfg := inventory.DefaultLedgerConfig()
	cfg.AllowNegativeStock = true
	f := newFixtureWithConfig(t, cfg)
	f.product(t, "p1", 1, 0)
	ctx := context.Background()
	created, err := f.purchases.Create(ctx, "c1", "u1", purchaseReq("p1", 10))
	require.NoError(t, err)
	id := created.Purchase.ID

	_, err = f.purchases.CreateReturn(ctx, "c1", "u1", id, dto.CreatePurchaseReturnRequest{Quantity: 1})
	require.NoError(t, err)

	// returned+quantity desbordaría int64 y pasaría el tope.
	_, err = f.purchases.CreateReturn(ctx, "c1", "u1", id, dto.CreatePurchaseReturnRequest{Quantity: math.MaxInt64})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, int64(9), f.stock(t, "p1"))

	_, err = f.purchases.CreateReturn(ctx, "c1", "u1", id, dto.CreatePurchaseReturnRequest{Quantity: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, int64(9), f.stock(t, "p1"))
	f.consistent(t, "p1")
}

func TestPurchase_EstadoDeDevolucionSoloAvanza(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 1, 0)
	ctx := context.Background()
	created, err := f.purchases.Create(ctx, "c1", "u1", purchaseReq("p1", 3))
	require.NoError(t, err)
	ret, err := f.purchases.CreateReturn(ctx, "c1", "u1", created.Purchase.ID, dto.CreatePurchaseReturnRequest{Quantity: 1})
	require.NoError(t, err)
	retID := ret.Return.ID

	out, err := f.purchases.UpdateReturnStatus(ctx, "c1", "u2", retID, dto.UpdateReturnStatusRequest{Status: "SENT"})
	require.NoError(t, err)
	assert.Equal(t, "SENT", out.Status)
	assert.Equal(t, "u2", out.UpdatedBy)

	_, err = f.purchases.UpdateReturnStatus(ctx, "c1", "u2", retID, dto.UpdateReturnStatusRequest{Status: "WAITING"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.purchases.UpdateReturnStatus(ctx, "c1", "u2", retID, dto.UpdateReturnStatusRequest{Status: "CONFIRMED"})
	require.NoError(t, err)
	_, err = f.purchases.UpdateReturnStatus(ctx, "otra", "u2", retID, dto.UpdateReturnStatusRequest{Status: "CONFIRMED"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Cambiar el estado no mueve stock.
	assert.Equal(t, int64(2), f.stock(t, "p1"))
}

func TestPurchase_DeleteRevierteMovimientos(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 1, 2)
	ctx := context.Background()
	created, err := f.purchases.Create(ctx, "c1", "u1", purchaseReq("p1", 10))
	require.NoError(t, err)

	reversals, err := f.purchases.Delete(ctx, "c1", "u1", created.Purchase.ID)
	require.NoError(t, err)
	require.Len(t, reversals, 1)
	assert.Equal(t, "PURCHASE_DELETION", reversals[0].ReferenceType)
	assert.Equal(t, int64(-10), reversals[0].Quantity)
	require.NotNil(t, reversals[0].ReversesID)
	assert.Equal(t, int64(2), f.stock(t, "p1"))

	_, err = f.purchases.GetByID(ctx, "c1", created.Purchase.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.consistent(t, "p1")
}

func TestPurchase_DeleteSinStockSuficienteFalla(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 1, 0)
	ctx := context.Background()
	created, err := f.purchases.Create(ctx, "c1", "u1", purchaseReq("p1", 10))
	require.NoError(t, err)
	_, err = f.sales.Create(ctx, "c1", "u1", dto.CreateSaleRequest{CustomerID: "cli", ProductID: "p1", Quantity: 8})
	require.NoError(t, err)

	_, err = f.purchases.Delete(ctx, "c1", "u1", created.Purchase.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	got, err := f.purchases.GetByID(ctx, "c1", created.Purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Quantity)
	assert.Equal(t, int64(2), f.stock(t, "p1"))
}
