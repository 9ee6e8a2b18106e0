package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/creditstore/creditstore/internal/account"
	"github.com/creditstore/creditstore/internal/auth"
	"github.com/creditstore/creditstore/internal/catalog"
	"github.com/creditstore/creditstore/internal/config"
	"github.com/creditstore/creditstore/internal/credits"
	"github.com/creditstore/creditstore/internal/email"
	"github.com/creditstore/creditstore/internal/ledger"
	"github.com/creditstore/creditstore/internal/middleware"
	"github.com/creditstore/creditstore/internal/notification"
	"github.com/creditstore/creditstore/internal/payment"
	"github.com/creditstore/creditstore/internal/resources"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Storage backends fall back to in-memory in development mode.
	var store ledger.Store
	var accountRepo account.Repository
	var packageRepo catalog.PackageRepository
	var resourceRepo catalog.ResourceRepository
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		accountRepo = account.NewPostgresRepository(d.DB)
		packageRepo = catalog.NewPostgresPackageRepository(d.DB)
		resourceRepo = catalog.NewPostgresResourceRepository(d.DB)
	} else {
		store = ledger.NewInMemory()
		accountRepo = account.NewMemoryRepository()
		packageRepo = catalog.NewMemoryPackageRepository()
		resourceRepo = catalog.NewMemoryResourceRepository()
	}

	var tokens account.TokenStore
	if d.Cache != nil {
		tokens = account.NewRedisTokenStore(d.Cache, d.Cfg.VerificationTTL)
	} else {
		tokens = account.NewMemoryTokenStore(d.Cfg.VerificationTTL)
	}

	var mailer email.Sender
	if d.Cfg.EmailAPIKey != "" {
		mailer = email.NewClient("", d.Cfg.EmailAPIKey, d.Cfg.EmailFrom)
	} else {
		mailer = email.NewLoggerSender(d.Logger)
	}

	var provider payment.Provider
	if d.Cfg.CheckoutAPIKey != "" {
		provider = payment.NewClient(d.Cfg.CheckoutBaseURL, d.Cfg.CheckoutAPIKey)
	} else {
		provider = payment.StaticProvider{}
	}

	notifier := notification.NewLoggerNotifier(d.Logger)

	accountSvc := account.NewService(accountRepo, tokens, mailer, d.Cfg.PublicHost, d.Cfg.VerificationTTL, d.Logger)
	authSvc := auth.NewService(d.Cfg, accountRepo)
	creditSvc := credits.NewService(store, packageRepo, accountRepo, provider, notifier, d.Logger,
		d.Cfg.CheckoutSuccessURL, d.Cfg.CheckoutCancelURL)
	resourceSvc := resources.NewService(store, resourceRepo, notifier, d.Logger)

	accountHandler := account.NewHandler(accountSvc)
	authHandler := auth.NewHandler(accountSvc, authSvc)
	catalogHandler := catalog.NewHandler(packageRepo, resourceRepo)
	creditHandler := credits.NewHandler(creditSvc)
	resourceHandler := resources.NewHandler(resourceSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterAccountRoutes(api, accountHandler)
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)
	RegisterCatalogRoutes(api, catalogHandler)

	// The payment provider calls the webhook directly, so it stays public.
	api.Post("/webhooks/checkout", creditHandler.Webhook)

	// Resource browsing stays public; anonymous callers get metadata only.
	// Registered before the protected group so its JWT guard cannot shadow
	// these routes.
	jwtmw := middleware.JWTAuth(d.Cfg, accountRepo)
	optionalAuth := middleware.OptionalJWTAuth(d.Cfg, accountRepo)
	RegisterResourceRoutes(api, resourceHandler, optionalAuth, jwtmw)

	// Protected routes
	protected := api.Group("", jwtmw)
	protected.Get("/account", accountHandler.Profile)
	protected.Put("/account/password", accountHandler.ChangePassword)
	protected.Get("/account/credits", creditHandler.Balance)
	RegisterCreditRoutes(protected, creditHandler)

	return nil
}
