package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/skaet/ussd_bank/internal/account"
	"github.com/skaet/ussd_bank/internal/auth"
	"github.com/skaet/ussd_bank/internal/config"
	"github.com/skaet/ussd_bank/internal/currency"
	"github.com/skaet/ussd_bank/internal/funding"
	"github.com/skaet/ussd_bank/internal/gateway"
	"github.com/skaet/ussd_bank/internal/ledger"
	"github.com/skaet/ussd_bank/internal/middleware"
	"github.com/skaet/ussd_bank/internal/notification"
	"github.com/skaet/ussd_bank/internal/session"
	"github.com/skaet/ussd_bank/internal/ussd"
)

// Deps aggregates shared dependencies required to wire routes. Tokens may be
// nil, which leaves the admin API unmounted. Rates may be nil, which makes
// every conversion use the default rate.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Gateways *gateway.Registry
	Notifier notification.Notifier
	Rates    currency.Provider
	Tokens   *auth.Service
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Cache == nil {
		return fmt.Errorf("redis is required for the session store")
	}
	if d.DB == nil && !d.Cfg.IsDev() {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Gateways == nil {
		return fmt.Errorf("gateway registry is required")
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var (
		ledgerBackend ledger.Ledger
		accountRepo   account.Repository
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		accountRepo = account.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("no database configured, using in-memory ledger")
		ledgerBackend = ledger.NewInMemory()
		accountRepo = account.NewMemoryRepository(ledgerBackend)
	}

	accountSvc := account.NewService(accountRepo, ledgerBackend, d.Notifier, d.Logger)
	fundingSvc, err := funding.NewService(ledgerBackend, accountSvc, d.Gateways, d.Notifier, d.Logger,
		funding.WithWithdrawalBank(d.Cfg.WithdrawalBankCode))
	if err != nil {
		return err
	}
	converter := currency.NewConverter(d.Rates, d.Logger)
	engine := ussd.NewEngine(session.NewRedisStore(d.Cache), accountSvc, fundingSvc, converter, d.Logger,
		ussd.WithSessionTTL(d.Cfg.SessionTTL),
		ussd.WithStoreTimeout(d.Cfg.StoreTimeout),
	)

	fundingHandler := funding.NewHandler(fundingSvc, d.Logger)

	RegisterUSSDRoutes(app, ussd.NewHandler(engine), middleware.PhoneRateLimit(d.Cache, d.Cfg.RateLimitPerMinute, d.Logger))
	RegisterWebhookRoutes(app, fundingHandler,
		middleware.WebhookHash(d.Cfg.FlutterwaveHash, d.Logger),
		middleware.WebhookReplay(d.Cache, d.Cfg.WebhookReplayTTL, d.Logger),
	)

	api := app.Group("/api/v1")
	RegisterPingRoute(api)
	if d.Tokens != nil {
		admin := api.Group("/admin", middleware.AdminAuth(d.Tokens))
		RegisterAdminRoutes(admin, account.NewHandler(accountSvc, d.Logger), fundingHandler)
	} else {
		d.Logger.Warn("ADMIN_JWT_SECRET not set, admin API disabled")
	}

	return nil
}
