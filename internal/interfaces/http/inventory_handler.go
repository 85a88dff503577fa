package http

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/transactions"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// InventoryHandler maneja ajustes, reversiones y consultas del libro de movimientos (protegido).
type InventoryHandler struct {
	ledger *inventory.LedgerService
	sales  *transactions.SaleUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(ledger *inventory.LedgerService, sales *transactions.SaleUseCase) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, sales: sales}
}

// Adjust godoc
// @Summary      Ajuste manual de stock
// @Description  Registra un movimiento ADJUSTMENT (positivo o negativo) con referencia al producto.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AdjustStockRequest  true  "product_id, quantity (con signo), reason"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	companyID, userID := identity(c)
	var in dto.AdjustStockRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	m, err := h.ledger.Adjust(c.UserContext(), companyID, in.ProductID, in.Quantity, in.Reason, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inventory.ToMovementResponse(m))
}

// Reverse godoc
// @Summary      Revertir movimiento
// @Description  Agrega la negación exacta del movimiento. Revertir dos veces devuelve la misma reversión.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int  true  "ID del movimiento"
// @Param        body  body  dto.ReverseMovementRequest  false  "Notas opcionales"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements/{id}/reverse [post]
func (h *InventoryHandler) Reverse(c *fiber.Ctx) error {
	companyID, userID := identity(c)
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return respondError(c, fmt.Errorf("%w: id de movimiento inválido", domain.ErrInvalidInput))
	}
	var in dto.ReverseMovementRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
	}
	m, err := h.ledger.Reverse(c.UserContext(), inventory.ReverseInput{
		CompanyID:  companyID,
		MovementID: id,
		ActorID:    userID,
		Notes:      in.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inventory.ToMovementResponse(m))
}

// Stock godoc
// @Summary      Stock actual
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.StockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/stock [get]
func (h *InventoryHandler) Stock(c *fiber.Ctx) error {
	id := c.Params("id")
	qty, err := h.ledger.CurrentStock(c.UserContext(), GetCompanyID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.StockResponse{ProductID: id, StockQuantity: qty})
}

// Availability godoc
// @Summary      Disponibilidad para venta
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id         path   string  true   "ID del producto"
// @Param        quantity   query  int     true   "Cantidad solicitada"
// @Param        unit_type  query  string  false  "PIECE (defecto) o BOX"
// @Success      200  {object}  dto.AvailabilityResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/availability [get]
func (h *InventoryHandler) Availability(c *fiber.Ctx) error {
	qty, err := strconv.ParseInt(c.Query("quantity"), 10, 64)
	if err != nil {
		return respondError(c, fmt.Errorf("%w: quantity debe ser un entero", domain.ErrInvalidInput))
	}
	out, err := h.sales.CheckAvailability(c.UserContext(), GetCompanyID(c), c.Params("id"), c.Query("unit_type"), qty)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// History godoc
// @Summary      Historial de movimientos (kárdex)
// @Description  Del más reciente al más antiguo. next_before se pasa como ?before= para la siguiente página.
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "ID del producto"
// @Param        from    query  string  false  "Desde (RFC3339 o YYYY-MM-DD)"
// @Param        to      query  string  false  "Hasta (RFC3339 o YYYY-MM-DD)"
// @Param        type    query  string  false  "PURCHASE, SALE, RETURN o ADJUSTMENT"
// @Param        limit   query  int     false  "Tamaño de página"
// @Param        before  query  int     false  "Cursor: id del último movimiento recibido"
// @Success      200  {object}  dto.HistoryResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/movements [get]
func (h *InventoryHandler) History(c *fiber.Ctx) error {
	var q dto.HistoryQuery
	if err := c.QueryParser(&q); err != nil {
		return respondError(c, fmt.Errorf("%w: parámetros inválidos", domain.ErrInvalidInput))
	}
	if err := validateStruct(&q); err != nil {
		return respondError(c, err)
	}
	filter, err := historyFilter(q)
	if err != nil {
		return respondError(c, err)
	}
	page, err := h.ledger.ListHistory(c.UserContext(), GetCompanyID(c), c.Params("id"), filter, q.Limit, q.Before)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.HistoryResponse{
		Items:      inventory.ToMovementResponses(page.Items),
		NextBefore: page.NextBefore,
	})
}

// ExportStockCard godoc
// @Summary      Exportar kárdex
// @Tags         products
// @Security     Bearer
// @Produce      application/pdf
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        id      path   string  true   "ID del producto"
// @Param        format  query  string  false  "pdf (defecto) o xlsx"
// @Param        from    query  string  false  "Desde"
// @Param        to      query  string  false  "Hasta"
// @Param        type    query  string  false  "Tipo de movimiento"
// @Success      200  {file}    binary
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/movements/export [get]
func (h *InventoryHandler) ExportStockCard(c *fiber.Ctx) error {
	var q dto.HistoryQuery
	if err := c.QueryParser(&q); err != nil {
		return respondError(c, fmt.Errorf("%w: parámetros inválidos", domain.ErrInvalidInput))
	}
	filter, err := historyFilter(q)
	if err != nil {
		return respondError(c, err)
	}
	card, err := h.ledger.ExportStockCard(c.UserContext(), GetCompanyID(c), c.Params("id"), filter, c.Query("format", "pdf"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, card.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, card.FileName))
	return c.Send(card.Content)
}

// VerifyLedger godoc
// @Summary      Verificar libro de movimientos
// @Description  Reproduce el log completo del producto y lo compara con el stock guardado.
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  inventory.LedgerReport
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/ledger/verify [get]
func (h *InventoryHandler) VerifyLedger(c *fiber.Ctx) error {
	report, err := h.ledger.VerifyLedger(c.UserContext(), GetCompanyID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

func historyFilter(q dto.HistoryQuery) (entity.MovementFilter, error) {
	var f entity.MovementFilter
	if q.Type != "" {
		t, err := entity.ParseMovementType(q.Type)
		if err != nil {
			return f, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		f.Type = t
	}
	var err error
	if f.From, err = parseDate(q.From, false); err != nil {
		return f, err
	}
	if f.To, err = parseDate(q.To, true); err != nil {
		return f, err
	}
	return f, nil
}

// parseDate acepta RFC3339 o YYYY-MM-DD; una fecha sin hora como límite superior cubre el día completo.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%w: fecha inválida %q", domain.ErrInvalidInput, s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
