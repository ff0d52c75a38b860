// internal/router/router.go
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hugoapp/hugo-backend/internal/cache"
	"github.com/hugoapp/hugo-backend/internal/config"
	"github.com/hugoapp/hugo-backend/internal/events"
	"github.com/hugoapp/hugo-backend/internal/handlers"
	"github.com/hugoapp/hugo-backend/internal/metrics"
	"github.com/hugoapp/hugo-backend/internal/middleware"
	"github.com/hugoapp/hugo-backend/internal/services"
	"github.com/hugoapp/hugo-backend/internal/utils"
)

func SetupRouter(db *gorm.DB, cfg *config.Config, publisher *events.Publisher) *gin.Engine {
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Redis is optional: without it webhook dedup degrades to the ledger's
	// own idempotency anchors.
	var redisClient *redis.Client
	if client, err := cache.NewRedisClient(cfg.Redis); err != nil {
		logrus.WithError(err).Warn("Redis unavailable; webhook dedup disabled")
	} else {
		redisClient = client
	}
	deduper := cache.NewEventDeduper(redisClient, time.Duration(cfg.Payment.WebhookDedupeTTL)*time.Second)

	storage, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Warn("S3 unavailable; dispute evidence falls back to local storage")
	}

	stripeProvider := services.NewStripeProvider(cfg.Payment.StripeSecretKey)

	ledgerService := services.NewLedgerService(db, cfg, stripeProvider, publisher)
	escrowService := services.NewEscrowService(db, storage, publisher)
	commissionService := services.NewCommissionService(db, publisher)
	payoutService := services.NewPayoutService(db, cfg, stripeProvider, publisher)
	subscriptionService := services.NewSubscriptionService(db)
	webhookService := services.NewWebhookService(cfg.Payment.StripeWebhookSecret, deduper, ledgerService, subscriptionService)

	paymentHandler := handlers.NewPaymentHandler(ledgerService, payoutService)
	escrowHandler := handlers.NewEscrowHandler(escrowService, storage)
	affiliateHandler := handlers.NewAffiliateHandler(commissionService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	adminHandler := handlers.NewAdminHandler(payoutService)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.GeneralRateLimit())
	router.Use(middleware.AuditLogMiddleware(db))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
	})

	if cfg.Metrics.Enabled {
		router.GET("/metrics", metrics.Handler())
	}

	v1 := router.Group("/api/v1")
	{
		// Provider callbacks: signature-verified, never JWT-authenticated
		webhooks := v1.Group("/webhooks")
		webhooks.Use(middleware.WebhookRateLimit())
		{
			webhooks.POST("/stripe", webhookHandler.HandleStripeWebhook)
		}

		// Public affiliate click tracking
		affiliate := v1.Group("/affiliate")
		{
			affiliate.POST("/clicks", middleware.ClickRateLimit(), affiliateHandler.TrackClick)
			affiliate.POST("/commissions", middleware.AuthRequired(), affiliateHandler.CalculateCommission)
		}

		payments := v1.Group("/payments")
		payments.Use(middleware.AuthRequired())
		{
			payments.POST("/checkout", paymentHandler.Checkout)
			payments.GET("/history", paymentHandler.GetPaymentHistory)
			payments.GET("/balance", paymentHandler.GetBalance)
			payments.POST("/payouts", paymentHandler.RequestPayout)
			payments.GET("/transactions/:reference", paymentHandler.GetTransaction)
		}

		escrows := v1.Group("/escrows")
		escrows.Use(middleware.AuthRequired())
		{
			escrows.POST("/:id/release", escrowHandler.Release)
			escrows.POST("/:id/dispute", escrowHandler.OpenDispute)
			escrows.GET("/:id/evidence", escrowHandler.Evidence)
			escrows.GET("/by-transaction/:transaction_id", escrowHandler.GetByTransaction)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/reconciliation-alerts", adminHandler.ListReconciliationAlerts)
			admin.POST("/reconciliation-alerts/:id/resolve", adminHandler.ResolveReconciliationAlert)
		}
	}

	return router
}
