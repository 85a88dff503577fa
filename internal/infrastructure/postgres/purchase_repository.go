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

var _ repository.PurchaseRepository = (*PurchaseRepo)(nil)

const (
	purchaseColumns = `id, company_id, supplier_id, product_id, reference_number, quantity, unit_price,
		total_amount, notes, created_by, updated_by, created_at, updated_at`
	returnColumns = `id, purchase_id, quantity, reason, status, created_by, updated_by, created_at, updated_at`
)

// PurchaseRepo compras y devoluciones a proveedor sobre PostgreSQL.
type PurchaseRepo struct {
	q Querier
}

// NewPurchaseRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPurchaseRepository(q Querier) *PurchaseRepo {
	return &PurchaseRepo{q: q}
}

// Create persiste la compra.
func (r *PurchaseRepo) Create(ctx context.Context, p *entity.Purchase) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	query := `
		INSERT INTO purchases (` + purchaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.CompanyID, p.SupplierID, p.ProductID, p.ReferenceNumber, p.Quantity, p.UnitPrice,
		p.TotalAmount, p.Notes, p.CreatedBy, p.UpdatedBy, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "insert purchase")
	}
	return nil
}

// GetByID obtiene una compra por ID.
func (r *PurchaseRepo) GetByID(ctx context.Context, id string) (*entity.Purchase, error) {
	if err := checkID(id, "compra"); err != nil {
		return nil, err
	}
	p, err := scanPurchase(r.q.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "get purchase")
	}
	return p, nil
}

// Update reescribe los campos editables de la compra.
func (r *PurchaseRepo) Update(ctx context.Context, p *entity.Purchase) error {
	p.UpdatedAt = time.Now().UTC()
	cmd, err := r.q.Exec(ctx, `
		UPDATE purchases SET supplier_id = $2, product_id = $3, reference_number = $4, quantity = $5,
			unit_price = $6, total_amount = $7, notes = $8, updated_by = $9, updated_at = $10
		WHERE id = $1`,
		p.ID, p.SupplierID, p.ProductID, p.ReferenceNumber, p.Quantity,
		p.UnitPrice, p.TotalAmount, p.Notes, p.UpdatedBy, p.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "update purchase")
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: compra %s", domain.ErrNotFound, p.ID)
	}
	return nil
}

// Delete borra la compra. Falla con ErrNotFound (llave foránea) si tiene devoluciones.
func (r *PurchaseRepo) Delete(ctx context.Context, id string) error {
	if err := checkID(id, "compra"); err != nil {
		return err
	}
	cmd, err := r.q.Exec(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete purchase")
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: compra %s", domain.ErrNotFound, id)
	}
	return nil
}

// ListByCompany lista compras de la empresa, más recientes primero.
func (r *PurchaseRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Purchase, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE company_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		companyID, limit, offset,
	)
	if err != nil {
		return nil, mapError(err, "list purchases")
	}
	defer rows.Close()
	var list []*entity.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, mapError(err, "scan purchase")
		}
		list = append(list, p)
	}
	return list, mapError(rows.Err(), "list purchases")
}

// CreateReturn persiste la devolución.
func (r *PurchaseRepo) CreateReturn(ctx context.Context, ret *entity.PurchaseReturn) error {
	now := time.Now().UTC()
	ret.CreatedAt, ret.UpdatedAt = now, now
	_, err := r.q.Exec(ctx, `
		INSERT INTO purchase_returns (`+returnColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ret.ID, ret.PurchaseID, ret.Quantity, ret.Reason, string(ret.Status),
		ret.CreatedBy, ret.UpdatedBy, ret.CreatedAt, ret.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "insert purchase return")
	}
	return nil
}

// GetReturnByID obtiene una devolución por ID.
func (r *PurchaseRepo) GetReturnByID(ctx context.Context, id string) (*entity.PurchaseReturn, error) {
	if err := checkID(id, "devolución"); err != nil {
		return nil, err
	}
	var (
		ret    entity.PurchaseReturn
		status string
	)
	err := r.q.QueryRow(ctx, `SELECT `+returnColumns+` FROM purchase_returns WHERE id = $1`, id).Scan(
		&ret.ID, &ret.PurchaseID, &ret.Quantity, &ret.Reason, &status,
		&ret.CreatedBy, &ret.UpdatedBy, &ret.CreatedAt, &ret.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, "get purchase return")
	}
	ret.Status = entity.ReturnStatus(status)
	return &ret, nil
}

// UpdateReturnStatus cambia el estado de la devolución.
func (r *PurchaseRepo) UpdateReturnStatus(ctx context.Context, id string, status entity.ReturnStatus, updatedBy string) error {
	if err := checkID(id, "devolución"); err != nil {
		return err
	}
	cmd, err := r.q.Exec(ctx,
		`UPDATE purchase_returns SET status = $2, updated_by = $3, updated_at = now() WHERE id = $1`,
		id, string(status), updatedBy,
	)
	if err != nil {
		return mapError(err, "update return status")
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: devolución %s", domain.ErrNotFound, id)
	}
	return nil
}

// ReturnedQuantity suma lo ya devuelto de la compra.
func (r *PurchaseRepo) ReturnedQuantity(ctx context.Context, purchaseID string) (int64, error) {
	var total int64
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0)::BIGINT FROM purchase_returns WHERE purchase_id = $1`, purchaseID,
	).Scan(&total)
	if err != nil {
		return 0, mapError(err, "sum returns")
	}
	return total, nil
}

func scanPurchase(row pgx.Row) (*entity.Purchase, error) {
	var p entity.Purchase
	err := row.Scan(&p.ID, &p.CompanyID, &p.SupplierID, &p.ProductID, &p.ReferenceNumber, &p.Quantity,
		&p.UnitPrice, &p.TotalAmount, &p.Notes, &p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
