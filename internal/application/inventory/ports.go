package inventory

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// Repos agrupa los repositorios atados a una misma transacción de BD.
type Repos struct {
	Products  repository.ProductRepository
	Movements repository.StockMovementRepository
	Purchases repository.PurchaseRepository
	Sales     repository.SaleRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error la transacción se revierte completa.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}

// CachedStock valor cacheado por producto.
type CachedStock struct {
	CompanyID string `json:"company_id"`
	Quantity  int64  `json:"quantity"`
}

// StockCache caché opcional del stock actual por producto.
type StockCache interface {
	// GetStock devuelve nil, nil si el producto no está en caché.
	GetStock(ctx context.Context, productID string) (*CachedStock, error)
	SetStock(ctx context.Context, productID string, value CachedStock) error
	Invalidate(ctx context.Context, productIDs ...string) error
}

// StockCardRenderer genera la tarjeta de kárdex de un producto en un formato concreto.
type StockCardRenderer interface {
	Format() string
	ContentType() string
	Render(ctx context.Context, product *entity.Product, movements []*entity.StockMovement) ([]byte, error)
}
