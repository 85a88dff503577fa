package inventory_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/inventory"
)

func TestApplyDelta_SumaYResta(t *testing.T) {
	next, err := inventory.ApplyDelta(50, 20, false)
	require.NoError(t, err)
	assert.Equal(t, int64(70), next)

	next, err = inventory.ApplyDelta(70, -15, false)
	require.NoError(t, err)
	assert.Equal(t, int64(55), next)
}

func TestApplyDelta_CeroEsInvalido(t *testing.T) {
	_, err := inventory.ApplyDelta(10, 0, true)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApplyDelta_PoliticaStockNegativo(t *testing.T) {
	_, err := inventory.ApplyDelta(5, -6, false)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	next, err := inventory.ApplyDelta(5, -6, true)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), next)
}

func TestApplyDelta_Desborde(t *testing.T) {
	_, err := inventory.ApplyDelta(math.MaxInt64, 1, true)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = inventory.ApplyDelta(math.MinInt64, -1, true)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func mov(id, prev, qty, next int64) *entity.StockMovement {
	return &entity.StockMovement{ID: id, PreviousQuantity: prev, Quantity: qty, NewQuantity: next}
}

func TestVerifyChain_Consistente(t *testing.T) {
	chain := []*entity.StockMovement{
		mov(1, 0, 50, 50),
		mov(2, 50, 20, 70),
		mov(3, 70, -15, 55),
		mov(4, 55, 15, 70),
	}
	assert.Empty(t, inventory.VerifyChain(chain))
	assert.Equal(t, int64(70), inventory.Replay(chain))
}

func TestVerifyChain_DetectaRegistroYEnlaceRotos(t *testing.T) {
	chain := []*entity.StockMovement{
		mov(1, 0, 10, 10),
		mov(2, 10, 5, 16), // registro roto
		mov(3, 10, 1, 11), // enlace roto: debía partir de 16
	}
	issues := inventory.VerifyChain(chain)
	require.Len(t, issues, 2)
	assert.Equal(t, int64(2), issues[0].MovementID)
	assert.Equal(t, int64(3), issues[1].MovementID)
}

func TestVerifyChain_PrimerMovimientoDebePartirDeCero(t *testing.T) {
	issues := inventory.VerifyChain([]*entity.StockMovement{mov(7, 3, 2, 5)})
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "stock inicial")
}

func TestNegate(t *testing.T) {
	delta, err := inventory.Negate(&entity.StockMovement{Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(-10), delta)

	_, err = inventory.Negate(&entity.StockMovement{Quantity: math.MinInt64})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
