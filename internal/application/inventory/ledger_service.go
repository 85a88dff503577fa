package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

// LedgerConfig política del libro de movimientos.
type LedgerConfig struct {
	AllowNegativeStock bool
	Retry              RetryPolicy
	HistoryPageSize    int
}

// DefaultLedgerConfig valores por defecto: sin stock negativo, 3 reintentos.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Retry:           RetryPolicy{MaxRetries: 3},
		HistoryPageSize: 100,
	}
}

// MovementInput datos de un movimiento. Quantity es el delta con signo en unidad base.
// CompanyID, si viene, debe coincidir con la empresa del producto.
type MovementInput struct {
	CompanyID     string
	ProductID     string
	Type          entity.MovementType
	Quantity      int64
	ReferenceType entity.ReferenceType
	ReferenceID   string
	ActorID       string
	Notes         string
}

// ReverseInput datos para revertir un movimiento. ReferenceType vacío equivale a REVERSAL
// y ReferenceID vacío al id del movimiento original.
type ReverseInput struct {
	CompanyID     string
	MovementID    int64
	ReferenceType entity.ReferenceType
	ReferenceID   string
	ActorID       string
	Notes         string
}

// LedgerService es el único escritor de products.stock_quantity y del log de movimientos.
// Cada escritura bloquea la fila del producto, calcula new = previous + quantity,
// actualiza el stock con compare-and-set y agrega el movimiento en la misma transacción.
type LedgerService struct {
	txRunner  TxRunner
	products  repository.ProductRepository
	movements repository.StockMovementRepository
	cache     StockCache
	renderers map[string]StockCardRenderer
	cfg       LedgerConfig
	log       *logger.Logger
}

// NewLedgerService construye el servicio. cache puede ser nil.
func NewLedgerService(
	txRunner TxRunner,
	products repository.ProductRepository,
	movements repository.StockMovementRepository,
	cache StockCache,
	cfg LedgerConfig,
	log *logger.Logger,
	renderers ...StockCardRenderer,
) *LedgerService {
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = 100
	}
	if log == nil {
		log = logger.Nop()
	}
	byFormat := make(map[string]StockCardRenderer, len(renderers))
	for _, r := range renderers {
		byFormat[strings.ToLower(r.Format())] = r
	}
	return &LedgerService{
		txRunner:  txRunner,
		products:  products,
		movements: movements,
		cache:     cache,
		renderers: byFormat,
		cfg:       cfg,
		log:       log.Component("ledger"),
	}
}

// Tx vista transaccional que reciben los iniciadores dentro de Transact.
// Registra qué productos tocó para invalidar la caché tras el commit.
type Tx struct {
	Repos
	touched map[string]struct{}
}

func (tx *Tx) touch(productID string) {
	tx.touched[productID] = struct{}{}
}

// Transact ejecuta fn en una transacción con reintento ante ErrConflict. La fila de negocio
// que escriba fn y sus movimientos se confirman o revierten juntos.
func (s *LedgerService) Transact(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	var last *Tx
	err := RunWithRetry(ctx, s.txRunner, s.cfg.Retry, s.log, func(ctx context.Context, repos Repos) error {
		last = &Tx{Repos: repos, touched: make(map[string]struct{})}
		return fn(ctx, last)
	})
	if err != nil {
		return err
	}
	// El commit ya ocurrió: la invalidación no depende de que el llamador siga esperando.
	s.forget(context.WithoutCancel(ctx), last.touched)
	return nil
}

// RecordMovement registra un movimiento en su propia transacción.
func (s *LedgerService) RecordMovement(ctx context.Context, in MovementInput) (*entity.StockMovement, error) {
	if err := validateMovement(in); err != nil {
		return nil, err
	}
	var out *entity.StockMovement
	err := s.Transact(ctx, func(ctx context.Context, tx *Tx) error {
		m, err := s.RecordInTx(ctx, tx, in)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("movement_id", out.ID).Str("product_id", out.ProductID).
		Str("type", string(out.Type)).Int64("quantity", out.Quantity).
		Int64("new_quantity", out.NewQuantity).Msg("movimiento registrado")
	return out, nil
}

// RecordInTx registra un movimiento dentro de la transacción del llamador.
func (s *LedgerService) RecordInTx(ctx context.Context, tx *Tx, in MovementInput) (*entity.StockMovement, error) {
	if err := validateMovement(in); err != nil {
		return nil, err
	}
	return s.apply(ctx, tx, in, nil)
}

func (s *LedgerService) apply(ctx context.Context, tx *Tx, in MovementInput, reverses *int64) (*entity.StockMovement, error) {
	product, err := tx.Products.GetForUpdate(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if in.CompanyID != "" && product.CompanyID != in.CompanyID {
		return nil, domain.ErrForbidden
	}

	next, err := inventory.ApplyDelta(product.StockQuantity, in.Quantity, s.cfg.AllowNegativeStock)
	if err != nil {
		return nil, err
	}
	if err := tx.Products.UpdateStock(ctx, product.ID, product.StockQuantity, next); err != nil {
		return nil, err
	}

	m := &entity.StockMovement{
		ProductID:        product.ID,
		Type:             in.Type,
		Quantity:         in.Quantity,
		ReferenceType:    in.ReferenceType,
		ReferenceID:      in.ReferenceID,
		PreviousQuantity: product.StockQuantity,
		NewQuantity:      next,
		ReversesID:       reverses,
		Notes:            in.Notes,
		CreatedBy:        in.ActorID,
	}
	if err := tx.Movements.Append(ctx, m); err != nil {
		return nil, err
	}
	tx.touch(product.ID)
	return m, nil
}

// Reverse agrega la negación exacta de un movimiento como ADJUSTMENT con reverses_id.
// Revertir dos veces devuelve el registro compensatorio existente.
func (s *LedgerService) Reverse(ctx context.Context, in ReverseInput) (*entity.StockMovement, error) {
	var out *entity.StockMovement
	err := s.Transact(ctx, func(ctx context.Context, tx *Tx) error {
		m, err := s.ReverseInTx(ctx, tx, in)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReverseInTx igual que Reverse, dentro de la transacción del llamador.
func (s *LedgerService) ReverseInTx(ctx context.Context, tx *Tx, in ReverseInput) (*entity.StockMovement, error) {
	if in.MovementID <= 0 {
		return nil, fmt.Errorf("%w: movement_id es obligatorio", domain.ErrInvalidInput)
	}
	refType := in.ReferenceType
	if refType == "" {
		refType = entity.ReferenceTypeReversal
	}
	if !refType.Valid() {
		return nil, fmt.Errorf("%w: tipo de referencia desconocido %q", domain.ErrInvalidInput, refType)
	}

	original, err := tx.Movements.GetByID(ctx, in.MovementID)
	if err != nil {
		return nil, err
	}
	if original.IsReversal() {
		return nil, fmt.Errorf("%w: el movimiento %d ya es una reversión", domain.ErrInvalidInput, original.ID)
	}

	// El bloqueo de la fila serializa reversiones concurrentes del mismo movimiento.
	product, err := tx.Products.GetForUpdate(ctx, original.ProductID)
	if err != nil {
		return nil, err
	}
	if in.CompanyID != "" && product.CompanyID != in.CompanyID {
		return nil, domain.ErrForbidden
	}

	existing, err := tx.Movements.FindReversalOf(ctx, original.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	delta, err := inventory.Negate(original)
	if err != nil {
		return nil, err
	}
	refID := in.ReferenceID
	if refID == "" {
		refID = strconv.FormatInt(original.ID, 10)
	}
	notes := in.Notes
	if notes == "" {
		notes = fmt.Sprintf("Reversión del movimiento %d", original.ID)
	}
	id := original.ID
	return s.apply(ctx, tx, MovementInput{
		CompanyID:     in.CompanyID,
		ProductID:     original.ProductID,
		Type:          entity.MovementTypeAdjustment,
		Quantity:      delta,
		ReferenceType: refType,
		ReferenceID:   refID,
		ActorID:       in.ActorID,
		Notes:         notes,
	}, &id)
}

// ReverseReferenceInTx revierte todos los movimientos vivos de una transacción de negocio
// (por ejemplo al borrar una compra). Devuelve las reversiones creadas.
func (s *LedgerService) ReverseReferenceInTx(ctx context.Context, tx *Tx, refType entity.ReferenceType, refID string, in ReverseInput) ([]*entity.StockMovement, error) {
	movements, err := tx.Movements.ListByReference(ctx, refType, refID)
	if err != nil {
		return nil, err
	}
	var out []*entity.StockMovement
	for _, m := range movements {
		if m.IsReversal() {
			continue
		}
		done, err := tx.Movements.FindReversalOf(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if done != nil {
			continue
		}
		in.MovementID = m.ID
		r, err := s.ReverseInTx(ctx, tx, in)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Adjust registra un ajuste manual con referencia al propio producto.
func (s *LedgerService) Adjust(ctx context.Context, companyID, productID string, quantity int64, reason, actorID string) (*entity.StockMovement, error) {
	return s.RecordMovement(ctx, MovementInput{
		CompanyID:     companyID,
		ProductID:     productID,
		Type:          entity.MovementTypeAdjustment,
		Quantity:      quantity,
		ReferenceType: entity.ReferenceTypeAdjustment,
		ReferenceID:   productID,
		ActorID:       actorID,
		Notes:         reason,
	})
}

// CurrentStock lee el stock actual, primero desde la caché si está configurada.
func (s *LedgerService) CurrentStock(ctx context.Context, companyID, productID string) (int64, error) {
	if s.cache != nil {
		cached, err := s.cache.GetStock(ctx, productID)
		if err != nil {
			s.log.Warn().Err(err).Str("product_id", productID).Msg("caché de stock no disponible")
		} else if cached != nil {
			if companyID != "" && cached.CompanyID != companyID {
				return 0, domain.ErrForbidden
			}
			return cached.Quantity, nil
		}
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	if companyID != "" && product.CompanyID != companyID {
		return 0, domain.ErrForbidden
	}
	if s.cache != nil {
		value := CachedStock{CompanyID: product.CompanyID, Quantity: product.StockQuantity}
		if err := s.cache.SetStock(ctx, productID, value); err != nil {
			s.log.Warn().Err(err).Str("product_id", productID).Msg("no se pudo cachear el stock")
		}
	}
	return product.StockQuantity, nil
}

// CheckAvailability indica si se pueden retirar quantity unidades sin violar la política de stock.
func (s *LedgerService) CheckAvailability(ctx context.Context, companyID, productID string, quantity int64) (bool, int64, error) {
	if quantity <= 0 {
		return false, 0, fmt.Errorf("%w: la cantidad debe ser mayor que cero", domain.ErrInvalidInput)
	}
	stock, err := s.CurrentStock(ctx, companyID, productID)
	if err != nil {
		return false, 0, err
	}
	if s.cfg.AllowNegativeStock {
		return true, stock, nil
	}
	return stock >= quantity, stock, nil
}

func (s *LedgerService) forget(ctx context.Context, touched map[string]struct{}) {
	if s.cache == nil || len(touched) == 0 {
		return
	}
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.log.Warn().Err(err).Strs("product_ids", ids).Msg("no se pudo invalidar la caché de stock")
	}
}

func validateMovement(in MovementInput) error {
	if strings.TrimSpace(in.ProductID) == "" {
		return fmt.Errorf("%w: product_id es obligatorio", domain.ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: tipo de movimiento desconocido %q", domain.ErrInvalidInput, in.Type)
	}
	if !in.ReferenceType.Valid() {
		return fmt.Errorf("%w: tipo de referencia desconocido %q", domain.ErrInvalidInput, in.ReferenceType)
	}
	if in.Quantity == 0 {
		return fmt.Errorf("%w: la cantidad no puede ser cero", domain.ErrInvalidInput)
	}
	switch in.Type {
	case entity.MovementTypePurchase:
		if in.Quantity < 0 {
			return fmt.Errorf("%w: una compra debe sumar stock", domain.ErrInvalidInput)
		}
	case entity.MovementTypeSale, entity.MovementTypeReturn:
		if in.Quantity > 0 {
			return fmt.Errorf("%w: %s debe restar stock", domain.ErrInvalidInput, strings.ToLower(string(in.Type)))
		}
	}
	return nil
}
