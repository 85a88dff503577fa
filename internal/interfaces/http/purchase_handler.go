package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/transactions"
)

// PurchaseHandler compras a proveedor y devoluciones (protegido).
type PurchaseHandler struct {
	uc *transactions.PurchaseUseCase
}

// NewPurchaseHandler construye el handler.
func NewPurchaseHandler(uc *transactions.PurchaseUseCase) *PurchaseHandler {
	return &PurchaseHandler{uc: uc}
}

// Create godoc
// @Summary      Registrar compra
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreatePurchaseRequest  true  "Compra"
// @Success      201   {object}  dto.PurchaseResult
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/purchases [post]
func (h *PurchaseHandler) Create(c *fiber.Ctx) error {
	companyID, userID := identity(c)
	var in dto.CreatePurchaseRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	out, err := h.uc.Create(c.UserContext(), companyID, userID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// CreateBulk godoc
// @Summary      Registrar compra masiva
// @Description  Todas las líneas o ninguna.
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.BulkPurchaseRequest  true  "Líneas de compra"
// @Success      201   {object}  dto.BulkPurchaseResult
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/purchases/bulk [post]
func (h *PurchaseHandler) CreateBulk(c *fiber.Ctx) error {
	companyID, userID := identity(c)
	var in dto.BulkPurchaseRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	out, err := h.uc.CreateBulk(c.UserContext(), companyID, userID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar compras
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "Límite"  default(20)
// @Param        offset  query  int  false  "Offset"  default(0)
// @Success      200  {object}  dto.PurchaseListResponse
// @Router       /api/purchases [get]
func (h *PurchaseHandler) List(c *fiber.Ctx) error {
	page, err := pageParams(c)
	if err != nil {
		return respondError(c, err)
	}
	out, err := h.uc.List(c.UserContext(), GetCompanyID(c), page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener compra
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la compra"
// @Success      200  {object}  dto.PurchaseResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/purchases/{id} [get]
func (h *PurchaseHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.UserContext(), GetCompanyID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Editar compra
// @Description  Un cambio de cantidad registra un ADJUSTMENT por la diferencia; un cambio de producto revierte y vuelve a registrar.
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID de la compra"
// @Param        body  body  dto.UpdatePurchaseRequest  true  "Compra"
// @Success      200   {object}  dto.PurchaseResult
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/purchases/{id} [put]
func (h *PurchaseHandler) Update(c *fiber.Ctx) error {
	companyID, userID := identity(c)
	var in dto.UpdatePurchaseRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	out, err := h.uc.Update(c.UserContext(), companyID, userID, c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Delete godoc
// @Summary      Eliminar compra
// @Description  Revierte los movimientos de la compra con referencia PURCHASE_DELETION.
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la compra"
// @Success      200  {array}   dto.MovementResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/purchases/{id} [delete]
func (h *PurchaseHandler) Delete(c *fiber.Ctx) error {
	companyID, userID := identity(c)
	out, err := h.uc.Delete(c.UserContext(), companyID, userID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// CreateReturn godoc
// @Summary      Devolución a proveedor
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID de la compra"
// @Param        body  body  dto.CreatePurchaseReturnRequest  true  "Devolución"
// @Success      201   {object}  dto.PurchaseReturnResult
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/purchases/{id}/returns [post]
func (h *PurchaseHandler) CreateReturn(c *fiber.Ctx) error {
	companyID, userID := identity(c)
	var in dto.CreatePurchaseReturnRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	out, err := h.uc.CreateReturn(c.UserContext(), companyID, userID, c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// UpdateReturnStatus godoc
// @Summary      Cambiar estado de devolución
// @Description  WAITING → SENT → CONFIRMED. No mueve stock.
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID de la devolución"
// @Param        body  body  dto.UpdateReturnStatusRequest  true  "Estado"
// @Success      200   {object}  dto.PurchaseReturnResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/purchase-returns/{id}/status [patch]
func (h *PurchaseHandler) UpdateReturnStatus(c *fiber.Ctx) error {
	companyID, userID := identity(c)
	var in dto.UpdateReturnStatusRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	out, err := h.uc.UpdateReturnStatus(c.UserContext(), companyID, userID, c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}
