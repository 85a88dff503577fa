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

var _ repository.ProductRepository = (*ProductRepo)(nil)

const productColumns = `id, company_id, sku, name, stock_quantity, min_stock, pieces_per_box, unit_price, created_at, updated_at`

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create persiste un nuevo producto. El stock inicia en 0; solo el libro lo modifica.
func (r *ProductRepo) Create(ctx context.Context, product *entity.Product) error {
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}
	if product.PiecesPerBox < 1 {
		product.PiecesPerBox = 1
	}
	query := `
		INSERT INTO products (id, company_id, sku, name, min_stock, pieces_per_box, unit_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		product.ID, product.CompanyID, product.SKU, product.Name, product.MinStock,
		product.PiecesPerBox, product.UnitPrice, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "insert product")
	}
	product.StockQuantity = 0
	return nil
}

// GetByID obtiene un producto por ID.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	if err := checkID(id, "producto"); err != nil {
		return nil, err
	}
	row := r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, mapError(err, "get product")
	}
	return p, nil
}

// GetForUpdate obtiene el producto y bloquea la fila (SELECT FOR UPDATE). Requiere tx.
func (r *ProductRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	if err := checkID(id, "producto"); err != nil {
		return nil, err
	}
	row := r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, mapError(err, "lock product")
	}
	return p, nil
}

// UpdateStock compare-and-set: solo escribe si el stock sigue siendo expected.
func (r *ProductRepo) UpdateStock(ctx context.Context, id string, expected, newQty int64) error {
	if err := checkID(id, "producto"); err != nil {
		return err
	}
	cmd, err := r.q.Exec(ctx,
		`UPDATE products SET stock_quantity = $3, updated_at = now() WHERE id = $1 AND stock_quantity = $2`,
		id, expected, newQty,
	)
	if err != nil {
		return mapError(err, "update stock")
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return mapError(err, "update stock")
	}
	if !exists {
		return fmt.Errorf("%w: producto %s", domain.ErrNotFound, id)
	}
	return fmt.Errorf("%w: el stock del producto %s cambió", domain.ErrConflict, id)
}

// ListByCompany lista productos por empresa con paginación.
func (r *ProductRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE company_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		companyID, limit, offset,
	)
	if err != nil {
		return nil, mapError(err, "list products")
	}
	return collectProducts(rows)
}

// ListLowStock productos con stock en o por debajo del mínimo.
func (r *ProductRepo) ListLowStock(ctx context.Context, companyID string) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE company_id = $1 AND stock_quantity <= min_stock
		 ORDER BY stock_quantity, name`,
		companyID,
	)
	if err != nil {
		return nil, mapError(err, "list low stock")
	}
	return collectProducts(rows)
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(&p.ID, &p.CompanyID, &p.SKU, &p.Name, &p.StockQuantity, &p.MinStock,
		&p.PiecesPerBox, &p.UnitPrice, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProducts(rows pgx.Rows) ([]*entity.Product, error) {
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapError(err, "scan product")
		}
		list = append(list, p)
	}
	return list, mapError(rows.Err(), "list products")
}
