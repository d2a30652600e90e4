package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/skaet/ussd_bank/internal/auth"
	"github.com/skaet/ussd_bank/internal/config"
	"github.com/skaet/ussd_bank/internal/currency"
	"github.com/skaet/ussd_bank/internal/gateway"
	"github.com/skaet/ussd_bank/internal/notification"
	"github.com/skaet/ussd_bank/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app        *fiber.App
	cfg        config.Config
	dispatcher *notification.Dispatcher
	logger     *slog.Logger
}

// New instantiates the HTTP server, builds the outbound collaborators and
// delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	gateways, err := Gateways(cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}

	notifier, err := Notifier(cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}
	dispatcher := notification.NewDispatcher(notifier, cfg.NotifyQueue, cfg.HTTPTimeout, logger)
	dispatcher.Start(cfg.NotifyWorkers)

	var rates currency.Provider
	if cfg.CurrencyAPIKey != "" {
		rates = currency.NewHTTPProvider(cfg.CurrencyBaseURL, cfg.CurrencyAPIKey, currency.WithHTTPClient(httpClient))
	} else {
		logger.Warn("CURRENCY_API_KEY not set, conversions use the default rate")
	}

	var tokens *auth.Service
	if cfg.AdminJWTSecret != "" {
		tokens, err = AdminTokens(cfg)
		if err != nil {
			dispatcher.Shutdown()
			return nil, err
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	deps := routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Gateways: gateways,
		Notifier: dispatcher,
		Rates:    rates,
		Tokens:   tokens,
	}
	if err := routes.Setup(app, deps); err != nil {
		dispatcher.Shutdown()
		return nil, err
	}

	return &Server{app: app, cfg: cfg, dispatcher: dispatcher, logger: logger}, nil
}

// Gateways registers the configured processor. Without a secret key a
// simulated processor takes its name, which is only allowed in development.
func Gateways(cfg config.Config, httpClient *http.Client, logger *slog.Logger) (*gateway.Registry, error) {
	registry := gateway.NewRegistry()
	switch {
	case cfg.FlutterwaveSecretKey != "":
		fw, err := gateway.NewFlutterwave(cfg.FlutterwaveSecretKey,
			gateway.WithBaseURL(cfg.FlutterwaveBaseURL),
			gateway.WithHTTPClient(httpClient),
			gateway.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		registry.Register(fw)
	case cfg.IsDev():
		logger.Warn("FLUTTERWAVE_SECRET_KEY not set, using simulated gateway", slog.String("gateway", cfg.PaymentGateway))
		registry.Register(gateway.Static{GatewayName: cfg.PaymentGateway})
	default:
		return nil, fmt.Errorf("FLUTTERWAVE_SECRET_KEY must be set when APP_ENV=%s", cfg.AppEnv)
	}

	if _, err := registry.Get(cfg.PaymentGateway); err != nil {
		return nil, fmt.Errorf("payment gateway %q: %w", cfg.PaymentGateway, err)
	}
	return registry, nil
}

// Notifier returns the Termii client when an API key is configured and a
// logging notifier otherwise.
func Notifier(cfg config.Config, httpClient *http.Client, logger *slog.Logger) (notification.Notifier, error) {
	if cfg.TermiiAPIKey == "" {
		logger.Warn("TERMII_API_KEY not set, SMS messages are logged only")
		return notification.NewLoggerNotifier(logger), nil
	}
	opts := []notification.TermiiOption{
		notification.WithTermiiBaseURL(cfg.TermiiBaseURL),
		notification.WithTermiiHTTPClient(httpClient),
		notification.WithChannel(cfg.SMSChannel),
	}
	if cfg.SMSSender != "" {
		opts = append(opts, notification.WithSender(cfg.SMSSender))
	}
	return notification.NewTermiiNotifier(cfg.TermiiAPIKey, opts...)
}

// AdminTokens builds the operator token service from cfg.
func AdminTokens(cfg config.Config) (*auth.Service, error) {
	return auth.NewService(cfg.AdminJWTSecret, auth.DefaultIssuer, time.Hour)
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server, then drains queued SMS.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.dispatcher.Shutdown()
	return err
}
