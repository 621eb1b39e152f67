package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/froydpay/internal/config"
	"github.com/example/froydpay/internal/handlers"
	"github.com/example/froydpay/internal/middleware"
	"github.com/example/froydpay/internal/providers"
	"github.com/example/froydpay/internal/services"
)

// Options overrides collaborators that Register would otherwise build from cfg.
type Options struct {
	Providers      *providers.Registry
	Journal        services.EventJournal
	CallbackClient *http.Client
}

// Register wires up all HTTP routes and returns the settlement service so the
// caller can wait for in-flight callbacks on shutdown.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, opts Options) *services.SettlementService {
	registry := opts.Providers
	if registry == nil {
		registry = providers.NewDefaultRegistry(providers.RegistryConfig{
			Stripe: providers.StripeConfig{
				SecretKey:     cfg.StripeSecretKey,
				WebhookSecret: cfg.StripeWebhookSecret,
				APIURL:        cfg.StripeAPIURL,
			},
			StubWebhookSecret: cfg.StubWebhookSecret,
			MockPayments:      cfg.MockPayments,
		})
	}

	journal := opts.Journal
	if journal == nil {
		journal = services.NewGormEventJournal(db)
	}

	callbackClient := opts.CallbackClient
	if callbackClient == nil {
		callbackClient = &http.Client{Timeout: cfg.CallbackTimeout}
	}

	settlementOpts := services.SettlementOptions{
		Journal:         journal,
		Notifier:        services.NewCallbackNotifier(callbackClient, cfg.CallbackSigningSecret),
		NotifyOnFailure: cfg.NotifyOnFailure,
		CallbackTimeout: cfg.CallbackTimeout,
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChat != "" {
		settlementOpts.Alerts = services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	}

	ledger := services.NewLedger(db)
	merchants := services.NewMerchantRegistry(db, registry)
	intents := services.NewIntentService(merchants, registry, ledger, cfg.ProviderTimeout)
	settlement := services.NewSettlementService(registry, ledger, settlementOpts)

	checkoutHandler := handlers.NewCheckoutHandler(intents, ledger, settlement, cfg.MockPayments)
	webhookHandler := handlers.NewWebhookHandler(settlement)
	merchantHandler := handlers.NewMerchantHandler(merchants, cfg)
	transactionHandler := handlers.NewTransactionHandler(ledger)
	adminHandler := handlers.NewAdminHandler(merchants, ledger)

	api := app.Group("/api")

	api.Get("/healthz", handlers.Health(db))

	// Hosted checkout
	api.Post("/create-payment-intent", checkoutHandler.CreatePaymentIntent)
	api.Post("/update-transaction-info", checkoutHandler.UpdateTransactionInfo)
	api.Post("/mock-complete-payment", checkoutHandler.MockCompletePayment)

	// Provider events
	webhooks := api.Group("/webhooks")
	webhooks.Post("/stripe", webhookHandler.Stripe)
	webhooks.Post("/:provider", webhookHandler.Provider)

	// Merchant session. Middleware goes on each route: group prefixes match
	// literally and /merchant is a prefix of /merchants.
	api.Post("/merchants/auth", merchantHandler.Auth)

	merchantAuth := middleware.MerchantAuthMiddleware(cfg.JWTSecret)
	api.Get("/merchant/transactions", merchantAuth, transactionHandler.ListForMerchant)
	api.Get("/merchant/transactions/:id", merchantAuth, transactionHandler.GetForMerchant)

	// Operator routes
	admin := middleware.AdminKeyMiddleware(cfg.AdminAPIKey)

	api.Post("/merchants", admin, merchantHandler.Create)
	api.Get("/merchants", admin, merchantHandler.List)
	api.Get("/merchants/:id", admin, merchantHandler.Get)
	api.Patch("/merchants/:id", admin, merchantHandler.Update)
	api.Delete("/merchants/:id", admin, merchantHandler.Delete)
	api.Post("/merchants/:id/rotate-key", admin, merchantHandler.RotateKey)

	api.Get("/admin/transactions", admin, transactionHandler.ListAll)
	api.Get("/admin/stats", admin, adminHandler.DashboardStats)

	return settlement
}
