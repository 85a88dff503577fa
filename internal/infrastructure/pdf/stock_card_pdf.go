// Package pdf genera la tarjeta de kárdex (historial de movimientos de un producto) en PDF.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Producto + SKU      │  Stock actual + Fecha         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Fecha | Tipo | Referencia | Cant | Anterior | Nuevo  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: total de movimientos                                │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strconv"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorRed     = &props.Color{Red: 170, Green: 30, Blue: 30}
)

var _ inventory.StockCardRenderer = (*StockCardRenderer)(nil)

// StockCardRenderer implementa inventory.StockCardRenderer usando Maroto v2.
type StockCardRenderer struct {
	now func() time.Time
}

// NewStockCardRenderer construye el generador.
func NewStockCardRenderer() *StockCardRenderer {
	return &StockCardRenderer{now: time.Now}
}

// Format identificador usado en ?format=.
func (g *StockCardRenderer) Format() string { return "pdf" }

// ContentType tipo MIME del documento.
func (g *StockCardRenderer) ContentType() string { return "application/pdf" }

// Render genera el PDF; movements llega del más reciente al más antiguo.
func (g *StockCardRenderer) Render(_ context.Context, product *entity.Product, movements []*entity.StockMovement) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Kárdex "+product.SKU, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(product, g.now()))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableRows(movements)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(row.New(8).Add(col.New(12).Add(
		text.New(fmt.Sprintf("Movimientos: %d", len(movements)), props.Text{
			Size: 8, Align: align.Right, Color: colorGray, Top: 2,
		}),
	)))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar kárdex: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(product *entity.Product, now time.Time) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(product.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("SKU: "+product.SKU, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("KÁRDEX DE INVENTARIO", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New("Stock: "+formatQty(product.StockQuantity), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Generado: "+now.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Fecha", 3, align.Left),
		h("Tipo", 2, align.Left),
		h("Referencia", 3, align.Left),
		h("Cant.", 1, align.Right),
		h("Anterior", 1, align.Right),
		h("Nuevo", 2, align.Right),
	)
}

func tableRows(movements []*entity.StockMovement) []core.Row {
	result := make([]core.Row, 0, len(movements))
	for _, mv := range movements {
		qtyProps := props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1}
		if mv.Quantity < 0 {
			qtyProps.Color = colorRed
		}
		result = append(result, row.New(6).Add(
			col.New(3).Add(text.New(mv.CreatedAt.Format("02/01/2006 15:04"), props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New(string(mv.Type), props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(3).Add(text.New(string(mv.ReferenceType)+" "+mv.ReferenceID, props.Text{Size: 7, Top: 1, Left: 1, Color: colorGray})),
			col.New(1).Add(text.New(signed(mv.Quantity), qtyProps)),
			col.New(1).Add(text.New(formatQty(mv.PreviousQuantity), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(formatQty(mv.NewQuantity), props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

// ── helpers ───────────────────────────────────────────────────────────────────

func signed(n int64) string {
	if n > 0 {
		return "+" + formatQty(n)
	}
	return formatQty(n)
}

// formatQty inserta puntos de miles. Ej: 1000000 → "1.000.000", -2500 → "-2.500".
func formatQty(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	l := len(s)
	if l <= 3 {
		return sign + s
	}
	buf := make([]byte, 0, l+l/3)
	for i, c := range []byte(s) {
		if i > 0 && (l-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return sign + string(buf)
}
