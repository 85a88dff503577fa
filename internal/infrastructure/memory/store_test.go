package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
)

func seedProduct(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	require.NoError(t, store.Products().Create(context.Background(), &entity.Product{
		ID: id, CompanyID: "c1", SKU: "SKU-" + id, Name: "Producto " + id, PiecesPerBox: 1,
	}))
}

func TestRun_RollbackNoDejaEscrituras(t *testing.T) {
	store := memory.NewStore()
	seedProduct(t, store, "p1")
	ctx := context.Background()
	boom := errors.New("fallo del iniciador")

	err := store.Run(ctx, func(ctx context.Context, repos inventory.Repos) error {
		p, err := repos.Products.GetForUpdate(ctx, "p1")
		require.NoError(t, err)
		require.NoError(t, repos.Products.UpdateStock(ctx, "p1", p.StockQuantity, 10))
		require.NoError(t, repos.Movements.Append(ctx, &entity.StockMovement{
			ProductID: "p1", Type: entity.MovementTypePurchase, Quantity: 10,
			ReferenceType: entity.ReferenceTypePurchase, ReferenceID: "x", NewQuantity: 10,
		}))
		require.NoError(t, repos.Purchases.Create(ctx, &entity.Purchase{ID: "x", CompanyID: "c1", ProductID: "p1", Quantity: 10}))

		// Dentro de la transacción se ven las escrituras propias.
		inTx, err := repos.Products.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, int64(10), inTx.StockQuantity)
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := store.Products().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.StockQuantity)

	movements, err := store.Movements().ListAllByProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, movements)

	_, err = store.Purchases().GetByID(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRun_CommitDetectaCambioConcurrente(t *testing.T) {
	store := memory.NewStore()
	seedProduct(t, store, "p1")
	ctx := context.Background()

	err := store.Run(ctx, func(ctx context.Context, repos inventory.Repos) error {
		require.NoError(t, repos.Products.UpdateStock(ctx, "p1", 0, 5))
		// Otro escritor sin bloqueo cambia el stock antes del commit.
		require.NoError(t, store.Products().UpdateStock(ctx, "p1", 0, 3))
		return nil
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	p, err := store.Products().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.StockQuantity)
}

func TestUpdateStock_CompareAndSet(t *testing.T) {
	store := memory.NewStore()
	seedProduct(t, store, "p1")
	ctx := context.Background()

	require.NoError(t, store.Products().UpdateStock(ctx, "p1", 0, 7))
	err := store.Products().UpdateStock(ctx, "p1", 0, 9)
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = store.Products().UpdateStock(ctx, "nope", 0, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetForUpdate_EsperaRespetaContexto(t *testing.T) {
	store := memory.NewStore()
	seedProduct(t, store, "p1")

	locked := make(chan struct{})
	releaseLock := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.Run(context.Background(), func(ctx context.Context, repos inventory.Repos) error {
			if _, err := repos.Products.GetForUpdate(ctx, "p1"); err != nil {
				return err
			}
			close(locked)
			<-releaseLock
			return nil
		})
	}()
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := store.Run(ctx, func(ctx context.Context, repos inventory.Repos) error {
		_, err := repos.Products.GetForUpdate(ctx, "p1")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	close(releaseLock)
	require.NoError(t, <-done)

	// Liberado el candado, otra transacción puede tomarlo.
	err = store.Run(context.Background(), func(ctx context.Context, repos inventory.Repos) error {
		_, err := repos.Products.GetForUpdate(ctx, "p1")
		return err
	})
	assert.NoError(t, err)
}

func TestAppend_AsignaIDsCrecientesYUnicaReversion(t *testing.T) {
	store := memory.NewStore()
	seedProduct(t, store, "p1")
	ctx := context.Background()
	log := store.Movements()

	first := &entity.StockMovement{ProductID: "p1", Type: entity.MovementTypePurchase, Quantity: 5, NewQuantity: 5,
		ReferenceType: entity.ReferenceTypePurchase, ReferenceID: "a"}
	second := &entity.StockMovement{ProductID: "p1", Type: entity.MovementTypeAdjustment, Quantity: -5, PreviousQuantity: 5,
		ReferenceType: entity.ReferenceTypeReversal, ReferenceID: "1", ReversesID: new(int64)}
	require.NoError(t, log.Append(ctx, first))
	*second.ReversesID = first.ID
	require.NoError(t, log.Append(ctx, second))
	assert.Greater(t, second.ID, first.ID)
	assert.False(t, second.CreatedAt.Before(first.CreatedAt))

	dup := *second
	dup.ID = 0
	err := log.Append(ctx, &dup)
	assert.ErrorIs(t, err, domain.ErrConflict)

	rev, err := log.FindReversalOf(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, rev)
	assert.Equal(t, second.ID, rev.ID)

	err = log.Append(ctx, &entity.StockMovement{ProductID: "ghost", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreate_SKUDuplicadoPorEmpresa(t *testing.T) {
	store := memory.NewStore()
	seedProduct(t, store, "p1")
	err := store.Products().Create(context.Background(), &entity.Product{ID: "p2", CompanyID: "c1", SKU: "SKU-p1"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	err = store.Products().Create(context.Background(), &entity.Product{ID: "p3", CompanyID: "c2", SKU: "SKU-p1"})
	assert.NoError(t, err)
}
