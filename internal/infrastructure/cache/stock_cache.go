package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
)

const (
	stockKeyPrefix = "stock:product:"
	// tombstone marca una clave recién invalidada; mientras vive, SetStock no escribe.
	tombstone = "-"
	// DefaultInvalidationGrace vida de la marca de invalidación.
	DefaultInvalidationGrace = 5 * time.Second
)

var _ inventory.StockCache = (*StockCache)(nil)

// StockCache cache-aside del stock actual en Redis. Un *StockCache nil no hace nada.
//
// Invalidate no borra la clave: deja una marca corta que impide que un lector que leyó
// la base antes del commit vuelva a guardar el valor viejo con SetStock.
type StockCache struct {
	client *redis.Client
	ttl    time.Duration
	grace  time.Duration
}

// NewStockCache construye la caché; ttl <= 0 deja las claves sin expiración.
func NewStockCache(client *redis.Client, ttl time.Duration) *StockCache {
	return &StockCache{client: client, ttl: ttl, grace: DefaultInvalidationGrace}
}

func stockKey(productID string) string {
	return stockKeyPrefix + productID
}

// GetStock devuelve nil, nil si la clave no existe.
func (c *StockCache) GetStock(ctx context.Context, productID string) (*inventory.CachedStock, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, stockKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get stock: %w", err)
	}
	if string(raw) == tombstone {
		return nil, nil
	}
	var value inventory.CachedStock
	if err := json.Unmarshal(raw, &value); err != nil {
		// Valor corrupto: se descarta y se trata como fallo de caché.
		_ = c.client.Del(ctx, stockKey(productID)).Err()
		return nil, nil
	}
	return &value, nil
}

// SetStock guarda el stock del producto solo si la clave no existe: no pisa un valor
// vigente ni una marca de invalidación.
func (c *StockCache) SetStock(ctx context.Context, productID string, value inventory.CachedStock) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.SetNX(ctx, stockKey(productID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set stock: %w", err)
	}
	return nil
}

// Invalidate reemplaza el valor de cada producto por la marca de invalidación.
func (c *StockCache) Invalidate(ctx context.Context, productIDs ...string) error {
	if c == nil || c.client == nil || len(productIDs) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range productIDs {
			pipe.Set(ctx, stockKey(id), tombstone, c.grace)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: invalidate stock: %w", err)
	}
	return nil
}
