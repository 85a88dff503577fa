package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// PurchaseRepository puerto de persistencia para compras y devoluciones a proveedor.
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *entity.Purchase) error
	GetByID(ctx context.Context, id string) (*entity.Purchase, error)
	Update(ctx context.Context, purchase *entity.Purchase) error
	Delete(ctx context.Context, id string) error
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Purchase, error)

	CreateReturn(ctx context.Context, ret *entity.PurchaseReturn) error
	GetReturnByID(ctx context.Context, id string) (*entity.PurchaseReturn, error)
	UpdateReturnStatus(ctx context.Context, id string, status entity.ReturnStatus, updatedBy string) error
	// ReturnedQuantity suma las cantidades ya devueltas de la compra.
	ReturnedQuantity(ctx context.Context, purchaseID string) (int64, error)
}
