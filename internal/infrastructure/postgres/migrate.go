package postgres

import (
	"context"
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// Migrate aplica el esquema embebido. Sin argumentos pgx usa el protocolo simple,
// así que el archivo completo va en una sola llamada.
func Migrate(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schemaSQL); err != nil {
		return mapError(err, "aplicar esquema")
	}
	return nil
}
