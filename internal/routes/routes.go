package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/veltapay/veltapay/internal/config"
	"github.com/veltapay/veltapay/internal/funding"
	"github.com/veltapay/veltapay/internal/gateway"
	"github.com/veltapay/veltapay/internal/ledger"
	"github.com/veltapay/veltapay/internal/middleware"
	"github.com/veltapay/veltapay/internal/notification"
	"github.com/veltapay/veltapay/internal/payments"
	"github.com/veltapay/veltapay/internal/reconcile"
	"github.com/veltapay/veltapay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Services exposes long-running collaborators built during wiring, so the
// process can run them alongside the HTTP server.
type Services struct {
	Reconciler *reconcile.Reconciler
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	// Storage backends: Postgres when configured, in-memory in dev mode.
	var ledgerBackend ledger.Ledger
	var walletStore wallet.Store
	var methodStore wallet.MethodStore
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		walletStore = wallet.NewPostgresStore(d.DB)
		methodStore = wallet.NewPostgresMethodStore(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		mem := wallet.NewMemoryStore()
		walletStore = mem
		methodStore = mem
	}

	var gw gateway.Client
	if d.Cfg.GatewayBaseURL != "" {
		tokens := gateway.NewCachedTokenProvider(
			d.Cfg.GatewayBaseURL+"/v1/auth/token",
			d.Cfg.GatewayClientID,
			d.Cfg.GatewayClientSecret,
			d.Cfg.GatewayTimeout,
		)
		gw = gateway.NewHTTPClient(d.Cfg.GatewayBaseURL, tokens, d.Cfg.GatewayTimeout)
	} else {
		gw = gateway.NewStatic()
	}

	var notifier notification.Notifier
	if d.Cfg.NotifyURL != "" {
		notifier = notification.NewAsync(
			notification.NewHTTPNotifier(d.Cfg.NotifyURL, d.Cfg.NotifyTimeout),
			d.Logger,
			d.Cfg.NotifyTimeout,
		)
	} else {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	walletSvc := wallet.NewService(walletStore, methodStore, gw, notifier, d.Cfg.Currency)
	fundingSvc := funding.NewService(ledgerBackend, walletStore, methodStore, gw, notifier, d.Logger)
	paymentSvc := payments.NewService(ledgerBackend, walletStore, notifier, d.Logger)

	walletHandler := wallet.NewHandler(walletSvc)
	fundingHandler := funding.NewHandler(fundingSvc)
	paymentHandler := payments.NewHandler(paymentSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, walletHandler, fundingHandler, paymentHandler)
	RegisterPaymentRoutes(api, fundingHandler, paymentHandler)

	svcs := &Services{
		Reconciler: reconcile.New(ledgerBackend, walletStore, gw, d.Cfg.PendingTTL, d.Logger),
	}
	return svcs, nil
}
