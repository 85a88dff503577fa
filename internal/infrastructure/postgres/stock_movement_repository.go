package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

const movementColumns = `id, product_id, movement_type, quantity, reference_type, reference_id,
	previous_quantity, new_quantity, reverses_id, notes, created_by, created_at`

// StockMovementRepo log de movimientos sobre PostgreSQL: solo INSERT y SELECT.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

// Append inserta el movimiento; id y created_at los asigna la base.
func (r *StockMovementRepo) Append(ctx context.Context, m *entity.StockMovement) error {
	query := `
		INSERT INTO stock_movements (product_id, movement_type, quantity, reference_type, reference_id,
			previous_quantity, new_quantity, reverses_id, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`
	err := r.q.QueryRow(ctx, query,
		m.ProductID, string(m.Type), m.Quantity, string(m.ReferenceType), m.ReferenceID,
		m.PreviousQuantity, m.NewQuantity, m.ReversesID, m.Notes, m.CreatedBy,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		err = mapError(err, "append movement")
		// Índice único sobre reverses_id: ya existe una reversión.
		if m.ReversesID != nil && errors.Is(err, domain.ErrDuplicate) {
			return fmt.Errorf("%w: el movimiento %d ya fue revertido", domain.ErrConflict, *m.ReversesID)
		}
		return err
	}
	return nil
}

// GetByID obtiene un movimiento por id.
func (r *StockMovementRepo) GetByID(ctx context.Context, id int64) (*entity.StockMovement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("get movement %d", id))
	}
	return m, nil
}

// ListByReference movimientos de una transacción de negocio en orden de inserción.
func (r *StockMovementRepo) ListByReference(ctx context.Context, refType entity.ReferenceType, refID string) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+movementColumns+` FROM stock_movements WHERE reference_type = $1 AND reference_id = $2 ORDER BY id`,
		string(refType), refID,
	)
	if err != nil {
		return nil, mapError(err, "list by reference")
	}
	return collectMovements(rows)
}

// FindReversalOf devuelve nil, nil si el movimiento no fue revertido.
func (r *StockMovementRepo) FindReversalOf(ctx context.Context, id int64) (*entity.StockMovement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE reverses_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "find reversal")
	}
	return m, nil
}

// Query historial del producto (created_at desc, id desc) con filtros y cursor por id.
func (r *StockMovementRepo) Query(ctx context.Context, productID string, filter entity.MovementFilter, limit int, beforeID int64) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE product_id = $1`
	args := []any{productID}
	pos := 2
	if beforeID > 0 {
		query += fmt.Sprintf(" AND id < $%d", pos)
		args = append(args, beforeID)
		pos++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND movement_type = $%d", pos)
		args = append(args, string(filter.Type))
		pos++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", pos)
		args = append(args, *filter.From)
		pos++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", pos)
		args = append(args, *filter.To)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", pos)
	args = append(args, limit)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query history")
	}
	return collectMovements(rows)
}

// ListAllByProduct todos los movimientos del producto por id ascendente (para replay).
func (r *StockMovementRepo) ListAllByProduct(ctx context.Context, productID string) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+movementColumns+` FROM stock_movements WHERE product_id = $1 ORDER BY id`, productID)
	if err != nil {
		return nil, mapError(err, "list movements")
	}
	return collectMovements(rows)
}

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var (
		m                      entity.StockMovement
		movementType, refType string
	)
	err := row.Scan(&m.ID, &m.ProductID, &movementType, &m.Quantity, &refType, &m.ReferenceID,
		&m.PreviousQuantity, &m.NewQuantity, &m.ReversesID, &m.Notes, &m.CreatedBy, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Type = entity.MovementType(movementType)
	m.ReferenceType = entity.ReferenceType(refType)
	return &m, nil
}

func collectMovements(rows pgx.Rows) ([]*entity.StockMovement, error) {
	defer rows.Close()
	var list []*entity.StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, mapError(err, "scan movement")
		}
		list = append(list, m)
	}
	return list, mapError(rows.Err(), "list movements")
}
