package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// SaleRepository puerto de persistencia para ventas.
type SaleRepository interface {
	Create(ctx context.Context, sale *entity.Sale) error
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	Update(ctx context.Context, sale *entity.Sale) error
	Delete(ctx context.Context, id string) error
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Sale, error)
}
