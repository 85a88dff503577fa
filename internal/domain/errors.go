package domain

import "errors"

// Errores de dominio (sin dependencias externas).
// Los adaptadores de infraestructura traducen los errores del driver a uno de estos tipos.
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrStoreUnavailable  = errors.New("almacenamiento no disponible")
	ErrInsufficientStock = errors.New("stock insuficiente")
)
