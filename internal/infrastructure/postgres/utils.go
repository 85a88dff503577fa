package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/stockledger-api/internal/domain"
)

// Códigos SQLSTATE que el adaptador traduce.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeInvalidTextRepr      = "22P02"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeAdminShutdown        = "57P01"
	codeCannotConnectNow     = "57P03"
)

// mapError traduce un error del driver a un error de dominio. El mensaje del driver
// no se propaga en los tipos conocidos; solo la operación y el SQLSTATE.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, op)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%w: %s (%s)", domain.ErrConflict, op, pgErr.Code)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s (%s)", domain.ErrDuplicate, op, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s (%s)", domain.ErrNotFound, op, pgErr.ConstraintName)
		case codeCheckViolation, codeInvalidTextRepr:
			return fmt.Errorf("%w: %s (%s)", domain.ErrInvalidInput, op, pgErr.Code)
		case codeAdminShutdown, codeCannotConnectNow:
			return fmt.Errorf("%w: %s (%s)", domain.ErrStoreUnavailable, op, pgErr.Code)
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return fmt.Errorf("%w: %s (%s)", domain.ErrStoreUnavailable, op, pgErr.Code)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// checkID descarta ids que no son UUID antes de consultar: la columna no los admite y
// el driver respondería 22P02 en lugar de "no existe".
func checkID(id, what string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, what, id)
	}
	return nil
}
