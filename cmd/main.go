package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bizledger/internal/caching"
	"bizledger/internal/common"
	"bizledger/internal/config"
	"bizledger/internal/handlers"
	"bizledger/internal/jobs/background"
	"bizledger/internal/middleware"
	"bizledger/internal/repositories"
	"bizledger/internal/services"
	"bizledger/pkg/database"
	"bizledger/pkg/logger"
)

const version = "1.0.0"

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	renewalMode, err := services.ParseRenewalMode(cfg.Billing.RenewalMode)
	if err != nil {
		return err
	}
	gatePolicy, err := middleware.ParseFailurePolicy(cfg.Billing.GateFailurePolicy)
	if err != nil {
		return err
	}
	price, err := decimal.NewFromString(cfg.Billing.SubscriptionPrice)
	if err != nil || !price.IsPositive() {
		return fmt.Errorf("SUBSCRIPTION_PRICE must be a positive number, got %q", cfg.Billing.SubscriptionPrice)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if _, err := database.Migrate(ctx, pool, log); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	var accessCache caching.AccessCache = caching.NoopAccessCache{}
	if cfg.Redis.Addr != "" {
		redisClient := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		defer func() { _ = redisClient.Close() }()
		accessCache = caching.NewRedisAccessCache(redisClient, cfg.Billing.AccessCacheTTL)
	} else {
		log.Info("redis not configured, access decisions are not cached")
	}

	var archive services.EventArchive
	if cfg.Minio.Endpoint != "" {
		archive, err = services.NewMinioEventArchive(services.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			Bucket:    cfg.Minio.Bucket,
			Region:    cfg.Minio.Region,
		})
		if err != nil {
			return fmt.Errorf("init event archive: %w", err)
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := archive.EnsureBucketExists(bucketCtx); err != nil {
			log.Warn("event archive bucket unavailable", zap.String("bucket", cfg.Minio.Bucket), zap.Error(err))
		}
		cancel()
	} else {
		log.Info("minio not configured, webhook payloads are not archived")
	}

	// Repositories
	businessRepo := repositories.NewBusinessRepo(pool)
	paymentRepo := repositories.NewSubscriptionPaymentRepo(pool)
	eventRepo := repositories.NewStripeEventRepo(pool)
	customerRepo := repositories.NewCustomerRepo(pool)
	debtRepo := repositories.NewDebtRepo(pool)
	uow := repositories.NewUnitOfWork(pool)

	// Services
	subscriptionSvc := services.NewSubscriptionService(businessRepo, paymentRepo, uow, accessCache, services.SubscriptionConfig{
		TrialDays:   cfg.Billing.TrialDays,
		PeriodDays:  cfg.Billing.PeriodDays,
		RenewalMode: renewalMode,
	}, log.Named("subscriptions"))
	paymentVerifier := services.NewPaymentVerifier(paymentRepo, subscriptionSvc, uow, price, log.Named("payments"))
	webhookProcessor := services.NewWebhookProcessor(cfg.Billing.StripeWebhookSecret, eventRepo, businessRepo, subscriptionSvc, uow, archive, log.Named("webhooks"))
	debtSvc := services.NewDebtService(debtRepo, customerRepo, uow, log.Named("debts"))

	scheduler, err := background.NewJobScheduler(subscriptionSvc, cfg.Jobs.ExpirySweepInterval, log.Named("jobs"))
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Warn("scheduler shutdown failed", zap.Error(err))
		}
	}()

	// Handlers
	optional := map[string]handlers.Pinger{"redis": accessCache}
	if archive != nil {
		optional["storage"] = handlers.PingFunc(archive.EnsureBucketExists)
	}
	healthHandlers := handlers.NewHealthHandlers(pool, optional, version, log.Named("health"))
	subscriptionHandlers := handlers.NewSubscriptionHandlers(subscriptionSvc, paymentVerifier, log.Named("http"))
	webhookHandlers := handlers.NewWebhookHandlers(webhookProcessor, log.Named("http"))
	debtHandlers := handlers.NewDebtHandlers(debtSvc, log.Named("http"))

	accessGate := middleware.NewAccessGate(subscriptionSvc, accessCache, gatePolicy, log.Named("gate"))
	auth := middleware.JWTMiddleware(cfg.JWT.Secret)

	e := newServer(cfg, log)

	// Health and metrics (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Card-rail webhook authenticates by signature
	e.POST("/subscription/webhook", webhookHandlers.StripeWebhook)

	subscription := e.Group("/subscription", auth)
	subscription.POST("/orange-payment", subscriptionHandlers.SubmitOrangePayment)
	subscription.POST("/verify-orange-payment", subscriptionHandlers.VerifyOrangePayment,
		middleware.RequireRole(common.RoleOwner, common.RoleAdmin))
	subscription.GET("/status", subscriptionHandlers.GetStatus)
	subscription.GET("/payments", subscriptionHandlers.ListPayments)

	debt := e.Group("/debt", auth, accessGate.Require())
	debt.POST("", debtHandlers.CreateDebt)
	debt.GET("", debtHandlers.ListDebts)
	debt.PUT("/:id", debtHandlers.UpdateDebt)
	debt.POST("/payment", debtHandlers.RecordPayment)
	debt.GET("/summary", debtHandlers.GetSummary)
	debt.GET("/payments/:debtId", debtHandlers.ListPayments)
	debt.GET("/customer/:customerId", debtHandlers.GetCustomerDebt)

	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		log.Info("starting server", zap.String("addr", addr), zap.String("version", version))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newServer(cfg *config.Config, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.BodyLimit("1M"))
	e.Use(echoMiddleware.ContextTimeout(cfg.Server.RequestTimeout))

	return e
}
