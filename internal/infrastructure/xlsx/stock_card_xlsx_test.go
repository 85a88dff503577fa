package xlsx

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

func TestRender_EscribeUnaFilaPorMovimiento(t *testing.T) {
	product := &entity.Product{ID: "p1", SKU: "TOR-001", Name: "Tornillo", StockQuantity: 55}
	reversed := int64(2)
	movements := []*entity.StockMovement{
		{ID: 3, Type: entity.MovementTypeAdjustment, Quantity: 15, PreviousQuantity: 40, NewQuantity: 55,
			ReferenceType: entity.ReferenceTypeSaleDeletion, ReferenceID: "v-1", ReversesID: &reversed, CreatedAt: time.Now()},
		{ID: 2, Type: entity.MovementTypeSale, Quantity: -15, PreviousQuantity: 55, NewQuantity: 40,
			ReferenceType: entity.ReferenceTypeSale, ReferenceID: "v-1", CreatedAt: time.Now()},
	}

	out, err := NewStockCardRenderer().Render(context.Background(), product, movements)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Tornillo", rows[0][1])
	assert.Equal(t, "Cantidad", rows[2][5])
	assert.Equal(t, "3", rows[3][0])
	assert.Equal(t, "2", rows[3][8])
	assert.Equal(t, "-15", rows[4][5])
}
