package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/transactions"
	"github.com/jhoicas/stockledger-api/internal/application/usecase"
	"github.com/jhoicas/stockledger-api/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	ProductUC  *usecase.ProductUseCase
	Ledger     *inventory.LedgerService
	PurchaseUC *transactions.PurchaseUseCase
	SaleUC     *transactions.SaleUseCase
	Verifier   *jwt.Verifier
	AppName    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.AppName})
	})

	// Rutas protegidas (requieren Bearer Token); cualquier rol puede leer.
	protected := api.Group("/", AuthMiddleware(deps.Verifier))
	anyRole := RequireRole(RoleAdmin, RoleBodeguero, RoleVendedor)
	warehouse := RequireRole(RoleAdmin, RoleBodeguero)
	seller := RequireRole(RoleAdmin, RoleVendedor)

	// Products
	productHandler := NewProductHandler(deps.ProductUC)
	inventoryHandler := NewInventoryHandler(deps.Ledger, deps.SaleUC)
	products := protected.Group("/products")
	products.Post("/", warehouse, productHandler.Create)
	products.Get("/", anyRole, productHandler.List)
	products.Get("/low-stock", anyRole, productHandler.ListLowStock)
	products.Get("/:id", anyRole, productHandler.GetByID)
	products.Get("/:id/stock", anyRole, inventoryHandler.Stock)
	products.Get("/:id/availability", anyRole, inventoryHandler.Availability)
	products.Get("/:id/movements", anyRole, inventoryHandler.History)
	products.Get("/:id/movements/export", anyRole, inventoryHandler.ExportStockCard)
	products.Get("/:id/ledger/verify", warehouse, inventoryHandler.VerifyLedger)

	// Inventory movements (ajustes y reversiones)
	invGroup := protected.Group("/inventory", warehouse)
	invGroup.Post("/movements", inventoryHandler.Adjust)
	invGroup.Post("/movements/:id/reverse", inventoryHandler.Reverse)

	// Purchases y devoluciones a proveedor
	purchaseHandler := NewPurchaseHandler(deps.PurchaseUC)
	purchases := protected.Group("/purchases")
	purchases.Post("/", warehouse, purchaseHandler.Create)
	purchases.Post("/bulk", warehouse, purchaseHandler.CreateBulk)
	purchases.Get("/", anyRole, purchaseHandler.List)
	purchases.Get("/:id", anyRole, purchaseHandler.GetByID)
	purchases.Put("/:id", warehouse, purchaseHandler.Update)
	purchases.Delete("/:id", warehouse, purchaseHandler.Delete)
	purchases.Post("/:id/returns", warehouse, purchaseHandler.CreateReturn)
	protected.Patch("/purchase-returns/:id/status", warehouse, purchaseHandler.UpdateReturnStatus)

	// Sales
	saleHandler := NewSaleHandler(deps.SaleUC)
	sales := protected.Group("/sales")
	sales.Post("/", seller, saleHandler.Create)
	sales.Post("/bulk", seller, saleHandler.CreateBulk)
	sales.Get("/", anyRole, saleHandler.List)
	sales.Get("/:id", anyRole, saleHandler.GetByID)
	sales.Put("/:id", seller, saleHandler.Update)
	sales.Delete("/:id", seller, saleHandler.Delete)
}
