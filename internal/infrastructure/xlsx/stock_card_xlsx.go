// Package xlsx exporta el kárdex de un producto a Excel.
package xlsx

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

const sheetName = "Kardex"

var headings = []string{"ID", "Fecha", "Tipo", "Referencia", "Id referencia", "Cantidad", "Anterior", "Nuevo", "Revierte", "Usuario", "Notas"}

var _ inventory.StockCardRenderer = (*StockCardRenderer)(nil)

// StockCardRenderer genera el kárdex en formato .xlsx con excelize.
type StockCardRenderer struct{}

// NewStockCardRenderer construye el generador.
func NewStockCardRenderer() *StockCardRenderer { return &StockCardRenderer{} }

// Format identificador usado en ?format=.
func (StockCardRenderer) Format() string { return "xlsx" }

// ContentType tipo MIME del documento.
func (StockCardRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Render escribe una fila por movimiento debajo de un encabezado con el producto.
func (StockCardRenderer) Render(_ context.Context, product *entity.Product, movements []*entity.StockMovement) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("xlsx: renombrar hoja: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &[]any{"Producto", product.Name, "SKU", product.SKU, "Stock", product.StockQuantity}); err != nil {
		return nil, fmt.Errorf("xlsx: encabezado: %w", err)
	}
	header := make([]any, len(headings))
	for i, h := range headings {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A3", &header); err != nil {
		return nil, fmt.Errorf("xlsx: títulos: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headings), 3)
		_ = f.SetCellStyle(sheetName, "A3", last, bold)
	}

	for i, m := range movements {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return nil, err
		}
		var reverses any
		if m.ReversesID != nil {
			reverses = *m.ReversesID
		}
		values := []any{
			m.ID,
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			string(m.Type),
			string(m.ReferenceType),
			m.ReferenceID,
			m.Quantity,
			m.PreviousQuantity,
			m.NewQuantity,
			reverses,
			m.CreatedBy,
			m.Notes,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx: fila %d: %w", i+4, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: escribir: %w", err)
	}
	return buf.Bytes(), nil
}
