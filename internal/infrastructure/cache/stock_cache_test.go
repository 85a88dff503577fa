package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
)

func newTestCache(t *testing.T) (*StockCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStockCache(client, time.Minute), mr
}

func TestStockCache_GuardaLeeEInvalida(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	got, err := c.GetStock(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.SetStock(ctx, "p1", inventory.CachedStock{CompanyID: "c1", Quantity: 42}))
	require.NoError(t, c.SetStock(ctx, "p2", inventory.CachedStock{CompanyID: "c1", Quantity: 7}))
	assert.True(t, mr.Exists("stock:product:p1"))
	assert.Equal(t, time.Minute, mr.TTL("stock:product:p1"))

	got, err = c.GetStock(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.Quantity)
	assert.Equal(t, "c1", got.CompanyID)

	require.NoError(t, c.Invalidate(ctx, "p1", "p2"))
	for _, id := range []string{"p1", "p2"} {
		got, err = c.GetStock(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, DefaultInvalidationGrace, mr.TTL("stock:product:p1"))
}

func TestStockCache_LecturaViejaNoPisaLaInvalidacion(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	// Un lector leyó 10 de la base; antes de que cachee, un escritor confirma 7 e invalida.
	stale := inventory.CachedStock{CompanyID: "c1", Quantity: 10}
	require.NoError(t, c.Invalidate(ctx, "p1"))
	require.NoError(t, c.SetStock(ctx, "p1", stale))

	got, err := c.GetStock(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Vencida la marca, el siguiente lector vuelve a llenar la caché.
	mr.FastForward(DefaultInvalidationGrace + time.Second)
	require.NoError(t, c.SetStock(ctx, "p1", inventory.CachedStock{CompanyID: "c1", Quantity: 7}))
	got, err = c.GetStock(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.Quantity)
}

func TestStockCache_SetNoPisaValorVigente(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetStock(ctx, "p1", inventory.CachedStock{Quantity: 3}))
	require.NoError(t, c.SetStock(ctx, "p1", inventory.CachedStock{Quantity: 99}))

	got, err := c.GetStock(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.Quantity)
}

func TestStockCache_ExpiraConTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetStock(ctx, "p1", inventory.CachedStock{Quantity: 1}))
	mr.FastForward(2 * time.Minute)

	got, err := c.GetStock(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStockCache_ValorCorruptoSeDescarta(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("stock:product:p1", "{no-json"))

	got, err := c.GetStock(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("stock:product:p1"))
}

func TestStockCache_NilNoHaceNada(t *testing.T) {
	var c *StockCache
	ctx := context.Background()
	got, err := c.GetStock(ctx, "p1")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.SetStock(ctx, "p1", inventory.CachedStock{}))
	assert.NoError(t, c.Invalidate(ctx, "p1"))
}

func TestStockCache_RedisCaidoDevuelveError(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()
	_, err := c.GetStock(context.Background(), "p1")
	assert.Error(t, err)
}
