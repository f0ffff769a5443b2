// Package routes wires services, handlers and middleware onto the Fiber app.
package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cowriepay/cowrie/internal/budget"
	"github.com/cowriepay/cowrie/internal/config"
	"github.com/cowriepay/cowrie/internal/ledger"
	"github.com/cowriepay/cowrie/internal/middleware"
	"github.com/cowriepay/cowrie/internal/notification"
	"github.com/cowriepay/cowrie/internal/outbox"
	"github.com/cowriepay/cowrie/internal/provider/multicurrency"
	"github.com/cowriepay/cowrie/internal/provider/ngn"
	"github.com/cowriepay/cowrie/internal/swap"
	"github.com/cowriepay/cowrie/internal/user"
	"github.com/cowriepay/cowrie/internal/wallet"
	"github.com/cowriepay/cowrie/internal/webhook"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Queue  *outbox.Queue
	Logger *slog.Logger
}

// Setup configures middleware, builds the service graph and registers every
// route. It also binds the outbox handlers onto the shared queue.
func Setup(app *fiber.App, d Deps) error {
	if d.DB == nil {
		return fmt.Errorf("database pool is required")
	}
	if d.Cache == nil {
		return fmt.Errorf("redis client is required")
	}
	if d.Queue == nil {
		return fmt.Errorf("outbox queue is required")
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	httpClient := &http.Client{Timeout: d.Cfg.ProviderTimeout}
	ngnRail := ngn.NewClient(httpClient, d.Cfg.NGNRail.BaseURL, d.Cfg.NGNRail.APIKey, d.Logger)
	mcRail := multicurrency.NewClient(httpClient, d.Cfg.MulticurrencyRail.BaseURL, d.Cfg.MulticurrencyRail.APIKey, d.Logger)

	store := ledger.NewPostgresStore(d.DB)
	users := user.NewService(user.NewPostgresRepository(d.DB))
	locks := wallet.NewKeyedMutex()

	walletSvc := wallet.NewService(store, users, ngnRail, mcRail, d.Queue, locks, wallet.Config{
		Limits:           d.Cfg.TransferLimits,
		TransferFeeMinor: d.Cfg.TransferFeeMinor,
		FeeAccountNumber: d.Cfg.FeeAccountNumber,
		FeeBankCode:      d.Cfg.FeeBankCode,
	}, d.Logger)
	budgetSvc := budget.NewService(budget.NewPostgresRepository(d.DB), users, walletSvc, mcRail, d.Queue, locks, d.Logger)
	swapSvc := swap.NewService(swap.NewPostgresRepository(d.DB), store, mcRail, d.Queue, locks, d.Cfg.SwapQuoteTTL, d.Logger)

	verifier, err := webhook.NewVerifier(d.Cfg.MulticurrencyWebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook verifier: %w", err)
	}

	registerOutboxHandlers(d.Queue, walletSvc, budgetSvc, d.Logger)

	validate := validator.New()
	walletHandler := wallet.NewHandler(walletSvc, validate)
	budgetHandler := budget.NewHandler(budgetSvc, validate)
	swapHandler := swap.NewHandler(swapSvc, validate)
	userHandler := user.NewHandler(users, validate)
	webhookHandler := webhook.NewHandler(verifier, webhook.NewDedupe(d.Cache), d.Queue, d.Logger)

	api := app.Group("/api/v1")

	// Providers authenticate their own deliveries; no session required.
	RegisterWebhookRoutes(api, webhookHandler)

	api.Post("/users", userHandler.Register)

	protected := api.Group("", middleware.JWTAuth(d.Cfg.JWTSecret, users))
	protected.Get("/me", userHandler.Me)

	idempotent := protected.Group("", middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	RegisterWalletRoutes(protected, idempotent, walletHandler)
	RegisterBudgetRoutes(protected, idempotent, budgetHandler)
	RegisterSwapRoutes(protected, idempotent, swapHandler)

	return nil
}

// registerOutboxHandlers binds every task kind to its processor.
func registerOutboxHandlers(q *outbox.Queue, walletSvc *wallet.Service, budgetSvc *budget.Service, logger *slog.Logger) {
	processor := webhook.NewProcessor(walletSvc, logger)

	q.Register(outbox.KindChargeFee, walletSvc.HandleChargeFee)
	q.Register(outbox.KindBudgetRefund, budgetSvc.HandleRefund)
	q.Register(outbox.KindReconcileEvent, processor.HandleReconcileEvent)
	q.Register(outbox.KindNotify, notification.OutboxHandler(notification.NewLoggerNotifier(logger)))
}

// healthTimeout bounds dependency pings in the health endpoint.
const healthTimeout = 2 * time.Second
