package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

// SaleUseCase ventas a cliente. La cantidad se convierte a piezas (BOX × pieces_per_box)
// antes de registrar el movimiento SALE negativo.
type SaleUseCase struct {
	ledger   *inventory.LedgerService
	sales    repository.SaleRepository
	products repository.ProductRepository
	log      *logger.Logger
	now      func() time.Time
}

// NewSaleUseCase construye el caso de uso.
func NewSaleUseCase(ledger *inventory.LedgerService, sales repository.SaleRepository, products repository.ProductRepository, log *logger.Logger) *SaleUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &SaleUseCase{
		ledger:   ledger,
		sales:    sales,
		products: products,
		log:      log.Component("sales"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type saleLine struct {
	ProductID string
	UnitType  string
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Create registra la venta y su movimiento SALE en la misma transacción.
func (uc *SaleUseCase) Create(ctx context.Context, companyID, userID string, in dto.CreateSaleRequest) (*dto.SaleResult, error) {
	line := saleLine{ProductID: in.ProductID, UnitType: in.UnitType, Quantity: in.Quantity, UnitPrice: in.UnitPrice}
	if err := validateLine(line); err != nil {
		return nil, err
	}

	var result *dto.SaleResult
	err := uc.ledger.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		sale, m, err := uc.createInTx(ctx, tx, companyID, userID, in.CustomerID, uc.saleDate(in.SaleDate), in.Notes, line)
		if err != nil {
			return err
		}
		result = &dto.SaleResult{
			Sale:      toSaleResponse(sale),
			Movements: inventory.ToMovementResponses([]*entity.StockMovement{m}),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("sale_id", result.Sale.ID).Str("product_id", in.ProductID).
		Int64("actual_quantity", result.Sale.ActualQuantity).Msg("venta registrada")
	return result, nil
}

// CreateBulk registra varias ventas al mismo cliente: todas o ninguna.
func (uc *SaleUseCase) CreateBulk(ctx context.Context, companyID, userID string, in dto.BulkSaleRequest) (*dto.BulkSaleResult, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: la venta no tiene líneas", domain.ErrInvalidInput)
	}
	lines := make([]saleLine, len(in.Items))
	productIDs := make([]string, len(in.Items))
	for i, item := range in.Items {
		lines[i] = saleLine{ProductID: item.ProductID, UnitType: item.UnitType, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
		if err := validateLine(lines[i]); err != nil {
			return nil, fmt.Errorf("línea %d: %w", i+1, err)
		}
		productIDs[i] = item.ProductID
	}
	date := uc.saleDate(in.SaleDate)

	var result *dto.BulkSaleResult
	err := uc.ledger.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		if err := lockProducts(ctx, tx, companyID, productIDs); err != nil {
			return err
		}
		res := &dto.BulkSaleResult{}
		for i, line := range lines {
			sale, m, err := uc.createInTx(ctx, tx, companyID, userID, in.CustomerID, date, in.Notes, line)
			if err != nil {
				return fmt.Errorf("línea %d: %w", i+1, err)
			}
			res.Sales = append(res.Sales, toSaleResponse(sale))
			res.Movements = append(res.Movements, inventory.ToMovementResponse(m))
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Int("lines", len(lines)).Str("customer_id", in.CustomerID).Msg("venta masiva registrada")
	return result, nil
}

func (uc *SaleUseCase) createInTx(ctx context.Context, tx *inventory.Tx, companyID, userID, customerID string, date time.Time, notes string, line saleLine) (*entity.Sale, *entity.StockMovement, error) {
	product, err := tx.Products.GetForUpdate(ctx, line.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkCompany(companyID, product.CompanyID); err != nil {
		return nil, nil, err
	}
	unit, _ := entity.ParseUnitType(line.UnitType)
	sale := &entity.Sale{
		ID:           uuid.New().String(),
		CompanyID:    product.CompanyID,
		CustomerID:   customerID,
		ProductID:    product.ID,
		UnitType:     unit,
		Quantity:     line.Quantity,
		PiecesPerBox: product.BoxSize(),
		UnitPrice:    line.UnitPrice,
		TotalAmount:  line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)),
		SaleDate:     date,
		Notes:        notes,
		CreatedBy:    userID,
	}
	if sale.ActualQuantity, err = actualQuantity(unit, line.Quantity, sale.PiecesPerBox); err != nil {
		return nil, nil, err
	}
	if err := tx.Sales.Create(ctx, sale); err != nil {
		return nil, nil, err
	}
	m, err := uc.ledger.RecordInTx(ctx, tx, inventory.MovementInput{
		CompanyID:     companyID,
		ProductID:     product.ID,
		Type:          entity.MovementTypeSale,
		Quantity:      -sale.ActualQuantity,
		ReferenceType: entity.ReferenceTypeSale,
		ReferenceID:   sale.ID,
		ActorID:       userID,
		Notes:         notes,
	})
	if err != nil {
		return nil, nil, err
	}
	return sale, m, nil
}

// Update edita la venta. Un cambio de cantidad registra ADJUSTMENT −(nueva − anterior) en piezas;
// un cambio de producto revierte los movimientos anteriores y registra una venta nueva.
func (uc *SaleUseCase) Update(ctx context.Context, companyID, userID, id string, in dto.UpdateSaleRequest) (*dto.SaleResult, error) {
	line := saleLine{ProductID: in.ProductID, UnitType: in.UnitType, Quantity: in.Quantity, UnitPrice: in.UnitPrice}
	if err := validateLine(line); err != nil {
		return nil, err
	}
	unit, _ := entity.ParseUnitType(in.UnitType)

	var result *dto.SaleResult
	err := uc.ledger.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		sale, err := tx.Sales.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkCompany(companyID, sale.CompanyID); err != nil {
			return err
		}
		if err := lockProducts(ctx, tx, companyID, []string{sale.ProductID, in.ProductID}); err != nil {
			return err
		}

		piecesPerBox := sale.PiecesPerBox
		if in.ProductID != sale.ProductID || piecesPerBox < 1 {
			product, err := tx.Products.GetByID(ctx, in.ProductID)
			if err != nil {
				return err
			}
			piecesPerBox = product.BoxSize()
		}
		newActual, err := actualQuantity(unit, in.Quantity, piecesPerBox)
		if err != nil {
			return err
		}

		var movements []*entity.StockMovement
		switch {
		case in.ProductID != sale.ProductID:
			reversals, err := uc.ledger.ReverseReferenceInTx(ctx, tx, entity.ReferenceTypeSale, id, inventory.ReverseInput{
				CompanyID:     companyID,
				ReferenceType: entity.ReferenceTypeSale,
				ReferenceID:   id,
				ActorID:       userID,
				Notes:         "Cambio de producto en la venta",
			})
			if err != nil {
				return err
			}
			movements = append(movements, reversals...)
			m, err := uc.ledger.RecordInTx(ctx, tx, inventory.MovementInput{
				CompanyID:     companyID,
				ProductID:     in.ProductID,
				Type:          entity.MovementTypeSale,
				Quantity:      -newActual,
				ReferenceType: entity.ReferenceTypeSale,
				ReferenceID:   id,
				ActorID:       userID,
				Notes:         in.Notes,
			})
			if err != nil {
				return err
			}
			movements = append(movements, m)

		case newActual != sale.ActualQuantity:
			m, err := uc.ledger.RecordInTx(ctx, tx, inventory.MovementInput{
				CompanyID:     companyID,
				ProductID:     sale.ProductID,
				Type:          entity.MovementTypeAdjustment,
				Quantity:      -(newActual - sale.ActualQuantity),
				ReferenceType: entity.ReferenceTypeSale,
				ReferenceID:   id,
				ActorID:       userID,
				Notes:         fmt.Sprintf("Ajuste de venta: %d → %d piezas", sale.ActualQuantity, newActual),
			})
			if err != nil {
				return err
			}
			movements = append(movements, m)
		}

		sale.CustomerID = in.CustomerID
		sale.ProductID = in.ProductID
		sale.UnitType = unit
		sale.Quantity = in.Quantity
		sale.ActualQuantity = newActual
		sale.PiecesPerBox = piecesPerBox
		sale.UnitPrice = in.UnitPrice
		sale.TotalAmount = in.UnitPrice.Mul(decimal.NewFromInt(in.Quantity))
		if in.SaleDate != nil {
			sale.SaleDate = in.SaleDate.UTC()
		}
		sale.Notes = in.Notes
		sale.UpdatedBy = userID
		if err := tx.Sales.Update(ctx, sale); err != nil {
			return err
		}
		result = &dto.SaleResult{Sale: toSaleResponse(sale), Movements: inventory.ToMovementResponses(movements)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete borra la venta devolviendo el stock con reversiones SALE_DELETION.
func (uc *SaleUseCase) Delete(ctx context.Context, companyID, userID, id string) ([]dto.MovementResponse, error) {
	var reversals []*entity.StockMovement
	err := uc.ledger.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		sale, err := tx.Sales.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkCompany(companyID, sale.CompanyID); err != nil {
			return err
		}
		if err := lockProducts(ctx, tx, companyID, []string{sale.ProductID}); err != nil {
			return err
		}
		reversals, err = uc.ledger.ReverseReferenceInTx(ctx, tx, entity.ReferenceTypeSale, id, inventory.ReverseInput{
			CompanyID:     companyID,
			ReferenceType: entity.ReferenceTypeSaleDeletion,
			ReferenceID:   id,
			ActorID:       userID,
			Notes:         "Venta eliminada",
		})
		if err != nil {
			return err
		}
		return tx.Sales.Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("sale_id", id).Int("reversals", len(reversals)).Msg("venta eliminada")
	return inventory.ToMovementResponses(reversals), nil
}

// CheckAvailability indica si hay stock para vender quantity en la unidad indicada.
func (uc *SaleUseCase) CheckAvailability(ctx context.Context, companyID, productID, unitType string, quantity int64) (*dto.AvailabilityResponse, error) {
	unit, err := entity.ParseUnitType(unitType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	product, err := uc.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := checkCompany(companyID, product.CompanyID); err != nil {
		return nil, err
	}
	requested, err := actualQuantity(unit, quantity, product.BoxSize())
	if err != nil {
		return nil, err
	}
	ok, stock, err := uc.ledger.CheckAvailability(ctx, companyID, productID, requested)
	if err != nil {
		return nil, err
	}
	return &dto.AvailabilityResponse{ProductID: productID, Requested: requested, Stock: stock, Available: ok}, nil
}

// GetByID obtiene una venta de la empresa.
func (uc *SaleUseCase) GetByID(ctx context.Context, companyID, id string) (*dto.SaleResponse, error) {
	sale, err := uc.sales.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkCompany(companyID, sale.CompanyID); err != nil {
		return nil, err
	}
	out := toSaleResponse(sale)
	return &out, nil
}

// List lista ventas de la empresa con paginación.
func (uc *SaleUseCase) List(ctx context.Context, companyID string, page dto.PageRequest) (*dto.SaleListResponse, error) {
	page = page.Normalize()
	list, err := uc.sales.ListByCompany(ctx, companyID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.SaleResponse, 0, len(list))
	for _, s := range list {
		items = append(items, toSaleResponse(s))
	}
	return &dto.SaleListResponse{Items: items, Page: dto.PageResponse{Limit: page.Limit, Offset: page.Offset}}, nil
}

func (uc *SaleUseCase) saleDate(d *time.Time) time.Time {
	if d == nil || d.IsZero() {
		return uc.now()
	}
	return d.UTC()
}

func validateLine(l saleLine) error {
	if _, err := entity.ParseUnitType(l.UnitType); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := validateQuantity(l.Quantity); err != nil {
		return err
	}
	return validatePrice(l.UnitPrice)
}

func actualQuantity(unit entity.UnitType, quantity, piecesPerBox int64) (int64, error) {
	if unit == entity.UnitTypeBox {
		return baseUnits(quantity, piecesPerBox)
	}
	return quantity, nil
}

func toSaleResponse(s *entity.Sale) dto.SaleResponse {
	return dto.SaleResponse{
		ID:             s.ID,
		CustomerID:     s.CustomerID,
		ProductID:      s.ProductID,
		UnitType:       string(s.UnitType),
		Quantity:       s.Quantity,
		ActualQuantity: s.ActualQuantity,
		PiecesPerBox:   s.PiecesPerBox,
		UnitPrice:      s.UnitPrice,
		TotalAmount:    s.TotalAmount,
		SaleDate:       s.SaleDate,
		Notes:          s.Notes,
		CreatedBy:      s.CreatedBy,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}
