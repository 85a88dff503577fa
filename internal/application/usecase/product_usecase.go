package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

// ProductUseCase catálogo mínimo de productos. El stock solo cambia vía movimientos.
type ProductUseCase struct {
	ledger *inventory.LedgerService
	repo   repository.ProductRepository
	log    *logger.Logger
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(ledger *inventory.LedgerService, repo repository.ProductRepository, log *logger.Logger) *ProductUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &ProductUseCase{ledger: ledger, repo: repo, log: log.Component("products")}
}

// Create crea el producto con stock 0. Si hay stock inicial se registra como
// ADJUSTMENT/OPENING_STOCK en la misma transacción.
func (uc *ProductUseCase) Create(ctx context.Context, companyID, userID string, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	sku := strings.TrimSpace(in.SKU)
	name := strings.TrimSpace(in.Name)
	if companyID == "" || sku == "" || name == "" {
		return nil, fmt.Errorf("%w: empresa, SKU y nombre son obligatorios", domain.ErrInvalidInput)
	}
	if in.MinStock < 0 || in.PiecesPerBox < 0 || in.OpeningStock < 0 {
		return nil, fmt.Errorf("%w: cantidades negativas", domain.ErrInvalidInput)
	}
	if in.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: el precio no puede ser negativo", domain.ErrInvalidInput)
	}
	piecesPerBox := in.PiecesPerBox
	if piecesPerBox == 0 {
		piecesPerBox = 1
	}

	var product *entity.Product
	err := uc.ledger.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		p := &entity.Product{
			ID:           uuid.New().String(),
			CompanyID:    companyID,
			SKU:          sku,
			Name:         name,
			MinStock:     in.MinStock,
			PiecesPerBox: piecesPerBox,
			UnitPrice:    in.UnitPrice,
		}
		if err := tx.Products.Create(ctx, p); err != nil {
			return err
		}
		if in.OpeningStock > 0 {
			m, err := uc.ledger.RecordInTx(ctx, tx, inventory.MovementInput{
				CompanyID:     companyID,
				ProductID:     p.ID,
				Type:          entity.MovementTypeAdjustment,
				Quantity:      in.OpeningStock,
				ReferenceType: entity.ReferenceTypeOpeningStock,
				ReferenceID:   p.ID,
				ActorID:       userID,
				Notes:         "Stock inicial",
			})
			if err != nil {
				return err
			}
			p.StockQuantity = m.NewQuantity
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("product_id", product.ID).Str("sku", product.SKU).
		Int64("opening_stock", in.OpeningStock).Msg("producto creado")
	return toProductResponse(product), nil
}

// GetByID obtiene un producto de la empresa.
func (uc *ProductUseCase) GetByID(ctx context.Context, companyID, id string) (*dto.ProductResponse, error) {
	product, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if companyID != "" && product.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return toProductResponse(product), nil
}

// List lista productos por empresa con paginación.
func (uc *ProductUseCase) List(ctx context.Context, companyID string, page dto.PageRequest) (*dto.ProductListResponse, error) {
	page = page.Normalize()
	list, err := uc.repo.ListByCompany(ctx, companyID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return &dto.ProductListResponse{
		Items: toProductResponses(list),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}, nil
}

// ListLowStock productos con stock en o por debajo del mínimo.
func (uc *ProductUseCase) ListLowStock(ctx context.Context, companyID string) ([]dto.ProductResponse, error) {
	list, err := uc.repo.ListLowStock(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return toProductResponses(list), nil
}

func toProductResponses(list []*entity.Product) []dto.ProductResponse {
	items := make([]dto.ProductResponse, 0, len(list))
	for _, p := range list {
		items = append(items, *toProductResponse(p))
	}
	return items
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:            p.ID,
		CompanyID:     p.CompanyID,
		SKU:           p.SKU,
		Name:          p.Name,
		StockQuantity: p.StockQuantity,
		MinStock:      p.MinStock,
		PiecesPerBox:  p.PiecesPerBox,
		UnitPrice:     p.UnitPrice,
		LowStock:      p.IsLowStock(),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
