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

// PurchaseUseCase compras a proveedor y devoluciones. Cada compra suma stock con un
// movimiento PURCHASE; editar la cantidad registra un ADJUSTMENT por la diferencia.
type PurchaseUseCase struct {
	ledger    *inventory.LedgerService
	purchases repository.PurchaseRepository
	log       *logger.Logger
}

// NewPurchaseUseCase construye el caso de uso.
func NewPurchaseUseCase(ledger *inventory.LedgerService, purchases repository.PurchaseRepository, log *logger.Logger) *PurchaseUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &PurchaseUseCase{ledger: ledger, purchases: purchases, log: log.Component("purchases")}
}

// Create registra la compra y su movimiento PURCHASE en la misma transacción.
func (uc *PurchaseUseCase) Create(ctx context.Context, companyID, userID string, in dto.CreatePurchaseRequest) (*dto.PurchaseResult, error) {
	if err := validateQuantity(in.Quantity); err != nil {
		return nil, err
	}
	if err := validatePrice(in.UnitPrice); err != nil {
		return nil, err
	}

	var result *dto.PurchaseResult
	err := uc.ledger.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		purchase := newPurchase(companyID, userID, in.SupplierID, in.ProductID, in.ReferenceNumber, in.Quantity, in.UnitPrice, in.Notes)
		m, err := uc.createInTx(ctx, tx, purchase)
		if err != nil {
			return err
		}
		result = &dto.PurchaseResult{
			Purchase:  toPurchaseResponse(purchase),
			Movements: inventory.ToMovementResponses([]*entity.StockMovement{m}),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("purchase_id", result.Purchase.ID).Str("product_id", in.ProductID).
		Int64("quantity", in.Quantity).Msg("compra registrada")
	return result, nil
}

// CreateBulk registra varias compras del mismo proveedor: todas o ninguna.
func (uc *PurchaseUseCase) CreateBulk(ctx context.Context, companyID, userID string, in dto.BulkPurchaseRequest) (*dto.BulkPurchaseResult, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: la compra no tiene líneas", domain.ErrInvalidInput)
	}
	productIDs := make([]string, len(in.Items))
	for i, item := range in.Items {
		if err := validateQuantity(item.Quantity); err != nil {
			return nil, fmt.Errorf("línea %d: %w", i+1, err)
		}
		if err := validatePrice(item.UnitPrice); err != nil {
			return nil, fmt.Errorf("línea %d: %w", i+1, err)
		}
		productIDs[i] = item.ProductID
	}

	var result *dto.BulkPurchaseResult
	err := uc.ledger.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		if err := lockProducts(ctx, tx, companyID, productIDs); err != nil {
			return err
		}
		res := &dto.BulkPurchaseResult{}
		for i, item := range in.Items {
			purchase := newPurchase(companyID, userID, in.SupplierID, item.ProductID, in.ReferenceNumber, item.Quantity, item.UnitPrice, in.Notes)
			m, err := uc.createInTx(ctx, tx, purchase)
			if err != nil {
				return fmt.Errorf("línea %d: %w", i+1, err)
			}
			res.Purchases = append(res.Purchases, toPurchaseResponse(purchase))
			res.Movements = append(res.Movements, inventory.ToMovementResponse(m))
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Int("lines", len(in.Items)).Str("supplier_id", in.SupplierID).Msg("compra masiva registrada")
	return result, nil
}

func (uc *PurchaseUseCase) createInTx(ctx context.Context, tx *inventory.Tx, purchase *entity.Purchase) (*entity.StockMovement, error) {
	if err := tx.Purchases.Create(ctx, purchase); err != nil {
		return nil, err
	}
	return uc.ledger.RecordInTx(ctx, tx, inventory.MovementInput{
		CompanyID:     purchase.CompanyID,
		ProductID:     purchase.ProductID,
		Type:          entity.MovementTypePurchase,
		Quantity:      purchase.Quantity,
		ReferenceType: entity.ReferenceTypePurchase,
		ReferenceID:   purchase.ID,
		ActorID:       purchase.CreatedBy,
		Notes:         purchase.Notes,
	})
}

// Update edita la compra. Un cambio de cantidad registra ADJUSTMENT (nueva − anterior);
// un cambio de producto revierte los movimientos del producto anterior y registra una
// compra nueva sobre el producto nuevo.
func (uc *PurchaseUseCase) Update(ctx context.Context, companyID, userID, id string, in dto.UpdatePurchaseRequest) (*dto.PurchaseResult, error) {
	if err := validateQuantity(in.Quantity); err != nil {
		return nil, err
	}
	if err := validatePrice(in.UnitPrice); err != nil {
		return nil, err
	}

	var result *dto.PurchaseResult
	err := uc.ledger.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		purchase, err := tx.Purchases.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkCompany(companyID, purchase.CompanyID); err != nil {
			return err
		}
		if err := lockProducts(ctx, tx, companyID, []string{purchase.ProductID, in.ProductID}); err != nil {
			return err
		}
		returned, err := tx.Purchases.ReturnedQuantity(ctx, id)
		if err != nil {
			return err
		}

		var movements []*entity.StockMovement
		switch {
		case in.ProductID != purchase.ProductID:
			if returned > 0 {
				return fmt.Errorf("%w: la compra tiene devoluciones, no se puede cambiar el producto", domain.ErrConflict)
			}
			reversals, err := uc.ledger.ReverseReferenceInTx(ctx, tx, entity.ReferenceTypePurchase, id, inventory.ReverseInput{
				CompanyID:     companyID,
				ReferenceType: entity.ReferenceTypePurchase,
				ReferenceID:   id,
				ActorID:       userID,
				Notes:         "Cambio de producto en la compra",
			})
			if err != nil {
				return err
			}
			movements = append(movements, reversals...)
			m, err := uc.ledger.RecordInTx(ctx, tx, inventory.MovementInput{
				CompanyID:     companyID,
				ProductID:     in.ProductID,
				Type:          entity.MovementTypePurchase,
				Quantity:      in.Quantity,
				ReferenceType: entity.ReferenceTypePurchase,
				ReferenceID:   id,
				ActorID:       userID,
				Notes:         in.Notes,
			})
			if err != nil {
				return err
			}
			movements = append(movements, m)

		case in.Quantity != purchase.Quantity:
			if in.Quantity < returned {
				return fmt.Errorf("%w: la cantidad no puede ser menor que lo ya devuelto (%d)", domain.ErrInvalidInput, returned)
			}
			m, err := uc.ledger.RecordInTx(ctx, tx, inventory.MovementInput{
				CompanyID:     companyID,
				ProductID:     purchase.ProductID,
				Type:          entity.MovementTypeAdjustment,
				Quantity:      in.Quantity - purchase.Quantity,
				ReferenceType: entity.ReferenceTypePurchase,
				ReferenceID:   id,
				ActorID:       userID,
				Notes:         fmt.Sprintf("Ajuste de compra: %d → %d", purchase.Quantity, in.Quantity),
			})
			if err != nil {
				return err
			}
			movements = append(movements, m)
		}

		purchase.SupplierID = in.SupplierID
		purchase.ProductID = in.ProductID
		purchase.ReferenceNumber = in.ReferenceNumber
		purchase.Quantity = in.Quantity
		purchase.UnitPrice = in.UnitPrice
		purchase.TotalAmount = in.UnitPrice.Mul(decimal.NewFromInt(in.Quantity))
		purchase.Notes = in.Notes
		purchase.UpdatedBy = userID
		if err := tx.Purchases.Update(ctx, purchase); err != nil {
			return err
		}
		result = &dto.PurchaseResult{
			Purchase:  toPurchaseResponse(purchase),
			Movements: inventory.ToMovementResponses(movements),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete borra la compra revirtiendo cada movimiento vivo con referencia PURCHASE_DELETION.
// Una compra con devoluciones no se puede borrar.
func (uc *PurchaseUseCase) Delete(ctx context.Context, companyID, userID, id string) ([]dto.MovementResponse, error) {
	var reversals []*entity.StockMovement
	err := uc.ledger.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		purchase, err := tx.Purchases.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkCompany(companyID, purchase.CompanyID); err != nil {
			return err
		}
		if err := lockProducts(ctx, tx, companyID, []string{purchase.ProductID}); err != nil {
			return err
		}
		returned, err := tx.Purchases.ReturnedQuantity(ctx, id)
		if err != nil {
			return err
		}
		if returned > 0 {
			return fmt.Errorf("%w: la compra tiene devoluciones", domain.ErrConflict)
		}
		reversals, err = uc.ledger.ReverseReferenceInTx(ctx, tx, entity.ReferenceTypePurchase, id, inventory.ReverseInput{
			CompanyID:     companyID,
			ReferenceType: entity.ReferenceTypePurchaseDeletion,
			ReferenceID:   id,
			ActorID:       userID,
			Notes:         "Compra eliminada",
		})
		if err != nil {
			return err
		}
		return tx.Purchases.Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("purchase_id", id).Int("reversals", len(reversals)).Msg("compra eliminada")
	return inventory.ToMovementResponses(reversals), nil
}

// CreateReturn devuelve parte de una compra al proveedor (movimiento RETURN negativo).
// La suma de devoluciones no puede superar la cantidad comprada.
func (uc *PurchaseUseCase) CreateReturn(ctx context.Context, companyID, userID, purchaseID string, in dto.CreatePurchaseReturnRequest) (*dto.PurchaseReturnResult, error) {
	if err := validateQuantity(in.Quantity); err != nil {
		return nil, err
	}
	status, err := entity.ParseReturnStatus(in.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	var result *dto.PurchaseReturnResult
	err = uc.ledger.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		purchase, err := tx.Purchases.GetByID(ctx, purchaseID)
		if err != nil {
			return err
		}
		if err := checkCompany(companyID, purchase.CompanyID); err != nil {
			return err
		}
		// El bloqueo del producto serializa devoluciones concurrentes de la misma compra.
		if err := lockProducts(ctx, tx, companyID, []string{purchase.ProductID}); err != nil {
			return err
		}
		returned, err := tx.Purchases.ReturnedQuantity(ctx, purchaseID)
		if err != nil {
			return err
		}
		if in.Quantity > purchase.Quantity-returned {
			return fmt.Errorf("%w: se pueden devolver como máximo %d", domain.ErrInvalidInput, purchase.Quantity-returned)
		}

		ret := &entity.PurchaseReturn{
			ID:         uuid.New().String(),
			PurchaseID: purchaseID,
			Quantity:   in.Quantity,
			Reason:     in.Reason,
			Status:     status,
			CreatedBy:  userID,
		}
		if err := tx.Purchases.CreateReturn(ctx, ret); err != nil {
			return err
		}
		m, err := uc.ledger.RecordInTx(ctx, tx, inventory.MovementInput{
			CompanyID:     companyID,
			ProductID:     purchase.ProductID,
			Type:          entity.MovementTypeReturn,
			Quantity:      -in.Quantity,
			ReferenceType: entity.ReferenceTypePurchaseReturn,
			ReferenceID:   ret.ID,
			ActorID:       userID,
			Notes:         in.Reason,
		})
		if err != nil {
			return err
		}
		result = &dto.PurchaseReturnResult{Return: toReturnResponse(ret), Movement: inventory.ToMovementResponse(m)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateReturnStatus avanza el estado de la devolución (WAITING → SENT → CONFIRMED). No mueve stock.
func (uc *PurchaseUseCase) UpdateReturnStatus(ctx context.Context, companyID, userID, returnID string, in dto.UpdateReturnStatusRequest) (*dto.PurchaseReturnResponse, error) {
	status, err := entity.ParseReturnStatus(in.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	var result dto.PurchaseReturnResponse
	err = uc.ledger.Transact(ctx, func(ctx context.Context, tx *inventory.Tx) error {
		ret, err := tx.Purchases.GetReturnByID(ctx, returnID)
		if err != nil {
			return err
		}
		purchase, err := tx.Purchases.GetByID(ctx, ret.PurchaseID)
		if err != nil {
			return err
		}
		if err := checkCompany(companyID, purchase.CompanyID); err != nil {
			return err
		}
		if !ret.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: no se puede pasar de %s a %s", domain.ErrInvalidInput, ret.Status, status)
		}
		if err := tx.Purchases.UpdateReturnStatus(ctx, returnID, status, userID); err != nil {
			return err
		}
		ret.Status = status
		ret.UpdatedBy = userID
		ret.UpdatedAt = time.Now().UTC()
		result = toReturnResponse(ret)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetByID obtiene una compra de la empresa.
func (uc *PurchaseUseCase) GetByID(ctx context.Context, companyID, id string) (*dto.PurchaseResponse, error) {
	purchase, err := uc.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkCompany(companyID, purchase.CompanyID); err != nil {
		return nil, err
	}
	out := toPurchaseResponse(purchase)
	return &out, nil
}

// List lista compras de la empresa con paginación.
func (uc *PurchaseUseCase) List(ctx context.Context, companyID string, page dto.PageRequest) (*dto.PurchaseListResponse, error) {
	page = page.Normalize()
	list, err := uc.purchases.ListByCompany(ctx, companyID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.PurchaseResponse, 0, len(list))
	for _, p := range list {
		items = append(items, toPurchaseResponse(p))
	}
	return &dto.PurchaseListResponse{Items: items, Page: dto.PageResponse{Limit: page.Limit, Offset: page.Offset}}, nil
}

func newPurchase(companyID, userID, supplierID, productID, ref string, qty int64, price decimal.Decimal, notes string) *entity.Purchase {
	return &entity.Purchase{
		ID:              uuid.New().String(),
		CompanyID:       companyID,
		SupplierID:      supplierID,
		ProductID:       productID,
		ReferenceNumber: ref,
		Quantity:        qty,
		UnitPrice:       price,
		TotalAmount:     price.Mul(decimal.NewFromInt(qty)),
		Notes:           notes,
		CreatedBy:       userID,
	}
}

func toPurchaseResponse(p *entity.Purchase) dto.PurchaseResponse {
	return dto.PurchaseResponse{
		ID:              p.ID,
		SupplierID:      p.SupplierID,
		ProductID:       p.ProductID,
		ReferenceNumber: p.ReferenceNumber,
		Quantity:        p.Quantity,
		UnitPrice:       p.UnitPrice,
		TotalAmount:     p.TotalAmount,
		Notes:           p.Notes,
		CreatedBy:       p.CreatedBy,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toReturnResponse(r *entity.PurchaseReturn) dto.PurchaseReturnResponse {
	return dto.PurchaseReturnResponse{
		ID:         r.ID,
		PurchaseID: r.PurchaseID,
		Quantity:   r.Quantity,
		Reason:     r.Reason,
		Status:     string(r.Status),
		CreatedBy:  r.CreatedBy,
		UpdatedBy:  r.UpdatedBy,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
