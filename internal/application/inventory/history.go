package inventory

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/inventory"
)

// HistoryPage una página del historial. NextBefore es 0 cuando no hay más.
type HistoryPage struct {
	Items      []*entity.StockMovement
	NextBefore int64
}

// LedgerReport resultado de reproducir el log de un producto.
type LedgerReport struct {
	ProductID     string            `json:"product_id"`
	Movements     int               `json:"movements"`
	ReplayedStock int64             `json:"replayed_stock"`
	StoredStock   int64             `json:"stored_stock"`
	Consistent    bool              `json:"consistent"`
	Issues        []inventory.Issue `json:"issues,omitempty"`
}

// StockCard documento exportado del historial.
type StockCard struct {
	Content     []byte
	ContentType string
	FileName    string
}

// GetHistory devuelve el historial del producto, del más reciente al más antiguo, como una
// secuencia perezosa que pagina el log por id. Cada recorrido vuelve a consultar desde el inicio.
func (s *LedgerService) GetHistory(ctx context.Context, companyID, productID string, filter entity.MovementFilter) iter.Seq2[*entity.StockMovement, error] {
	return func(yield func(*entity.StockMovement, error) bool) {
		if err := validateFilter(filter); err != nil {
			yield(nil, err)
			return
		}
		if err := s.checkProduct(ctx, companyID, productID); err != nil {
			yield(nil, err)
			return
		}
		var before int64
		for {
			page, err := s.movements.Query(ctx, productID, filter, s.cfg.HistoryPageSize, before)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, m := range page {
				if !yield(m, nil) {
					return
				}
			}
			if len(page) < s.cfg.HistoryPageSize {
				return
			}
			before = page[len(page)-1].ID
		}
	}
}

// ListHistory devuelve una sola página del historial.
func (s *LedgerService) ListHistory(ctx context.Context, companyID, productID string, filter entity.MovementFilter, limit int, beforeID int64) (*HistoryPage, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.HistoryPageSize {
		limit = s.cfg.HistoryPageSize
	}
	if err := s.checkProduct(ctx, companyID, productID); err != nil {
		return nil, err
	}
	items, err := s.movements.Query(ctx, productID, filter, limit, beforeID)
	if err != nil {
		return nil, err
	}
	page := &HistoryPage{Items: items}
	if len(items) == limit {
		page.NextBefore = items[len(items)-1].ID
	}
	return page, nil
}

// VerifyLedger reproduce el log completo del producto y lo compara con el stock guardado.
// Bloquea la fila mientras lee para obtener una foto consistente.
func (s *LedgerService) VerifyLedger(ctx context.Context, companyID, productID string) (*LedgerReport, error) {
	var report *LedgerReport
	err := s.txRunner.Run(ctx, func(ctx context.Context, repos Repos) error {
		product, err := repos.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if companyID != "" && product.CompanyID != companyID {
			return domain.ErrForbidden
		}
		movements, err := repos.Movements.ListAllByProduct(ctx, productID)
		if err != nil {
			return err
		}
		issues := inventory.VerifyChain(movements)
		replayed := inventory.Replay(movements)
		report = &LedgerReport{
			ProductID:     productID,
			Movements:     len(movements),
			ReplayedStock: replayed,
			StoredStock:   product.StockQuantity,
			Issues:        issues,
		}
		if replayed != product.StockQuantity {
			report.Issues = append(report.Issues, inventory.Issue{
				Message: fmt.Sprintf("stock reproducido %d != stock guardado %d", replayed, product.StockQuantity),
			})
		}
		report.Consistent = len(report.Issues) == 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !report.Consistent {
		s.log.Error().Str("product_id", productID).Int("issues", len(report.Issues)).
			Msg("libro de movimientos inconsistente")
	}
	return report, nil
}

// ExportStockCard genera el kárdex del producto en el formato pedido (pdf o xlsx).
func (s *LedgerService) ExportStockCard(ctx context.Context, companyID, productID string, filter entity.MovementFilter, format string) (*StockCard, error) {
	renderer, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: formato de exportación no soportado %q", domain.ErrInvalidInput, format)
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if companyID != "" && product.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}

	var movements []*entity.StockMovement
	for m, err := range s.GetHistory(ctx, companyID, productID, filter) {
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}

	content, err := renderer.Render(ctx, product, movements)
	if err != nil {
		return nil, fmt.Errorf("render kardex %s: %w", renderer.Format(), err)
	}
	return &StockCard{
		Content:     content,
		ContentType: renderer.ContentType(),
		FileName:    fmt.Sprintf("kardex-%s.%s", product.SKU, strings.ToLower(renderer.Format())),
	}, nil
}

func (s *LedgerService) checkProduct(ctx context.Context, companyID, productID string) error {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if companyID != "" && product.CompanyID != companyID {
		return domain.ErrForbidden
	}
	return nil
}

func validateFilter(f entity.MovementFilter) error {
	if f.Type != "" && !f.Type.Valid() {
		return fmt.Errorf("%w: tipo de movimiento desconocido %q", domain.ErrInvalidInput, f.Type)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return fmt.Errorf("%w: el rango de fechas está invertido", domain.ErrInvalidInput)
	}
	return nil
}
