package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

const saleColumns = `id, company_id, customer_id, product_id, unit_type, quantity, actual_quantity,
	pieces_per_box, unit_price, total_amount, sale_date, notes, created_by, updated_by, created_at, updated_at`

// SaleRepo ventas sobre PostgreSQL.
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// Create persiste la venta.
func (r *SaleRepo) Create(ctx context.Context, s *entity.Sale) error {
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	if s.SaleDate.IsZero() {
		s.SaleDate = now
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		s.ID, s.CompanyID, s.CustomerID, s.ProductID, string(s.UnitType), s.Quantity, s.ActualQuantity,
		s.PiecesPerBox, s.UnitPrice, s.TotalAmount, s.SaleDate, s.Notes, s.CreatedBy, s.UpdatedBy,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "insert sale")
	}
	return nil
}

// GetByID obtiene una venta por ID.
func (r *SaleRepo) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	if err := checkID(id, "venta"); err != nil {
		return nil, err
	}
	s, err := scanSale(r.q.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "get sale")
	}
	return s, nil
}

// Update reescribe los campos editables de la venta.
func (r *SaleRepo) Update(ctx context.Context, s *entity.Sale) error {
	s.UpdatedAt = time.Now().UTC()
	cmd, err := r.q.Exec(ctx, `
		UPDATE sales SET customer_id = $2, product_id = $3, unit_type = $4, quantity = $5,
			actual_quantity = $6, pieces_per_box = $7, unit_price = $8, total_amount = $9,
			sale_date = $10, notes = $11, updated_by = $12, updated_at = $13
		WHERE id = $1`,
		s.ID, s.CustomerID, s.ProductID, string(s.UnitType), s.Quantity,
		s.ActualQuantity, s.PiecesPerBox, s.UnitPrice, s.TotalAmount,
		s.SaleDate, s.Notes, s.UpdatedBy, s.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "update sale")
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: venta %s", domain.ErrNotFound, s.ID)
	}
	return nil
}

// Delete borra la venta.
func (r *SaleRepo) Delete(ctx context.Context, id string) error {
	if err := checkID(id, "venta"); err != nil {
		return err
	}
	cmd, err := r.q.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete sale")
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: venta %s", domain.ErrNotFound, id)
	}
	return nil
}

// ListByCompany lista ventas de la empresa por fecha de venta descendente.
func (r *SaleRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Sale, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE company_id = $1 ORDER BY sale_date DESC, id LIMIT $2 OFFSET $3`,
		companyID, limit, offset,
	)
	if err != nil {
		return nil, mapError(err, "list sales")
	}
	defer rows.Close()
	var list []*entity.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, mapError(err, "scan sale")
		}
		list = append(list, s)
	}
	return list, mapError(rows.Err(), "list sales")
}

func scanSale(row pgx.Row) (*entity.Sale, error) {
	var (
		s        entity.Sale
		unitType string
	)
	err := row.Scan(&s.ID, &s.CompanyID, &s.CustomerID, &s.ProductID, &unitType, &s.Quantity,
		&s.ActualQuantity, &s.PiecesPerBox, &s.UnitPrice, &s.TotalAmount, &s.SaleDate, &s.Notes,
		&s.CreatedBy, &s.UpdatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.UnitType = entity.UnitType(unitType)
	return &s, nil
}
