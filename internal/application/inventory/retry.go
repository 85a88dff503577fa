package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

// RetryPolicy reintentos ante domain.ErrConflict (CAS fallido, serialización o deadlock).
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// RunWithRetry ejecuta fn en una transacción nueva por intento. Solo reintenta ErrConflict;
// cualquier otro error se devuelve tal cual. La espera crece linealmente con el intento.
func RunWithRetry(ctx context.Context, runner TxRunner, policy RetryPolicy, log *logger.Logger, fn func(ctx context.Context, repos Repos) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = runner.Run(ctx, fn)
		if err == nil || !errors.Is(err, domain.ErrConflict) {
			return err
		}
		if attempt >= policy.MaxRetries {
			break
		}

		log.Warn().Err(err).Int("attempt", attempt+1).Int("max_retries", policy.MaxRetries).
			Msg("conflicto de concurrencia, reintentando transacción")

		wait := policy.Backoff * time.Duration(attempt+1)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w (reintentos agotados: %d)", err, policy.MaxRetries)
}
