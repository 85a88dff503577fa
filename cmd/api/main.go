package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/transactions"
	"github.com/jhoicas/stockledger-api/internal/application/usecase"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/cache"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/stockledger-api/internal/infrastructure/pdf"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/postgres"
	infraxlsx "github.com/jhoicas/stockledger-api/internal/infrastructure/xlsx"
	httpRouter "github.com/jhoicas/stockledger-api/internal/interfaces/http"
	"github.com/jhoicas/stockledger-api/pkg/config"
	"github.com/jhoicas/stockledger-api/pkg/jwt"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

// store repositorios y ejecutor de transacciones del driver elegido.
type store struct {
	txRunner  inventory.TxRunner
	products  repository.ProductRepository
	movements repository.StockMovementRepository
	purchases repository.PurchaseRepository
	sales     repository.SaleRepository
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.DB.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("abrir almacenamiento")
	}
	defer st.close()

	// Caché de stock opcional; sin REDIS_ADDR se lee siempre de la base.
	var stockCache inventory.StockCache
	if cfg.Redis.Enabled() {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis no disponible, caché de stock deshabilitada")
		} else {
			defer client.Close()
			stockCache = cache.NewStockCache(client, cfg.Redis.StockTTL)
		}
	}

	ledger := inventory.NewLedgerService(
		st.txRunner, st.products, st.movements, stockCache,
		inventory.LedgerConfig{
			AllowNegativeStock: cfg.Ledger.AllowNegativeStock,
			Retry: inventory.RetryPolicy{
				MaxRetries: cfg.Ledger.MaxRetries,
				Backoff:    cfg.Ledger.RetryBackoff,
			},
			HistoryPageSize: cfg.Ledger.HistoryPageSize,
		},
		log,
		infrapdf.NewStockCardRenderer(),
		infraxlsx.NewStockCardRenderer(),
	)
	productUC := usecase.NewProductUseCase(ledger, st.products, log)
	purchaseUC := transactions.NewPurchaseUseCase(ledger, st.purchases, log)
	saleUC := transactions.NewSaleUseCase(ledger, st.sales, st.products, log)

	verifier, err := jwt.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("configurar verificación de tokens")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
		ErrorHandler: httpRouter.ErrorHandler(log),
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(cfg.HTTP.SwaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: cfg.HTTP.SwaggerFile,
			Path:     "docs",
			Title:    "Stock Ledger API",
		}))
	} else {
		log.Warn().Str("file", cfg.HTTP.SwaggerFile).Msg("swagger deshabilitado: archivo no encontrado")
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		ProductUC:  productUC,
		Ledger:     ledger,
		PurchaseUC: purchaseUC,
		SaleUC:     saleUC,
		Verifier:   verifier,
		AppName:    cfg.App.Name,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*store, error) {
	if cfg.DB.Driver == config.StoreDriverMemory {
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		mem := memory.NewStore()
		return &store{
			txRunner:  mem,
			products:  mem.Products(),
			movements: mem.Movements(),
			purchases: mem.Purchases(),
			sales:     mem.Sales(),
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if cfg.DB.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("esquema aplicado")
	}
	return &store{
		txRunner:  postgres.NewTxRunner(pool),
		products:  postgres.NewProductRepository(pool),
		movements: postgres.NewStockMovementRepository(pool),
		purchases: postgres.NewPurchaseRepository(pool),
		sales:     postgres.NewSaleRepository(pool),
		close:     pool.Close,
	}, nil
}
