package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/threadcraft/configs"
	"github.com/maheshrc27/threadcraft/internal/api/handlers"
	"github.com/maheshrc27/threadcraft/internal/api/middleware"
	"github.com/maheshrc27/threadcraft/internal/cache"
	"github.com/maheshrc27/threadcraft/internal/database"
	"github.com/maheshrc27/threadcraft/internal/generation"
	job "github.com/maheshrc27/threadcraft/internal/jobs"
	applog "github.com/maheshrc27/threadcraft/internal/logger"
	"github.com/maheshrc27/threadcraft/internal/provider"
	"github.com/maheshrc27/threadcraft/internal/quality"
	"github.com/maheshrc27/threadcraft/internal/queue"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
	"go.uber.org/zap"
)

const brokerProbeInterval = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	zlog, err := applog.New(cfg.AppEnv, cfg.AppName)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}
	defer closeDB(db)

	if err := db.PingContext(ctx); err != nil {
		zap.L().Fatal("Database is unreachable", zap.Error(err))
	}
	if err := database.Migrate(ctx, db); err != nil {
		zap.L().Fatal("Failed to migrate schema", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()
	redisUp := rdb.Ping(ctx).Err() == nil
	if !redisUp {
		zap.L().Warn("Redis is unreachable, starting degraded", zap.String("addr", cfg.RedisURI))
	}

	// repositories
	creditRepo := repository.NewCreditRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	userRepo := repository.NewUserRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	providerKeyRepo := repository.NewProviderKeyRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	scheduledPostRepo := repository.NewScheduledPostRepository(db)
	historyRepo := repository.NewPostingHistoryRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)

	var tierCache cache.TierCache
	if cfg.TierCache == "redis" {
		tierCache = cache.NewRedisTierCache(rdb, cfg.TierCacheTTL)
	} else {
		tierCache = cache.NewMemoryTierCache(cfg.TierCacheTTL)
	}

	// delayed job queue
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisURI, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	var (
		jobQueue    queue.DelayedJobQueue
		fallback    *queue.FallbackQueue
		memoryQueue *queue.MemoryQueue
		queueHealth = func() bool { return false }
	)
	switch cfg.QueueDriver {
	case "memory":
		memoryQueue = queue.NewMemoryQueue(queue.JobPolicy(cfg.JobMaxRetry))
		jobQueue = memoryQueue
		queueHealth = func() bool { return true }
	case "noop":
		jobQueue = queue.NewNoopQueue()
	default:
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		inspector := asynq.NewInspector(redisOpt)
		defer inspector.Close()

		fallback = queue.NewFallbackQueue(queue.NewAsynqQueue(client, inspector, cfg.JobMaxRetry), redisUp)
		jobQueue = fallback
		queueHealth = fallback.Healthy
	}
	scheduler := queue.NewScheduler(jobQueue)

	// services
	creditService := service.NewCreditService(creditRepo, teamRepo)
	planService := service.NewPlanService(subscriptionRepo, tierCache)
	settingsService := service.NewSettingsService(settingsRepo)
	providerKeyService := service.NewProviderKeyService(cfg.SecretKey, providerKeyRepo)
	scheduleService := service.NewScheduleService(scheduledPostRepo, socialAccountRepo, historyRepo, creditService, scheduler)

	router := provider.NewRouter(map[string]string{
		provider.OpenAI:     cfg.Providers.OpenAIKey,
		provider.Perplexity: cfg.Providers.PerplexityKey,
		provider.Google:     cfg.Providers.GoogleKey,
	}, provider.DefaultFactory(provider.Models{
		OpenAI:     cfg.Providers.OpenAIModel,
		Perplexity: cfg.Providers.PerplexityModel,
		Google:     cfg.Providers.GoogleModel,
		Timeout:    cfg.Providers.Timeout,
	}))
	engine := generation.NewEngine()
	generationService := service.NewGenerationService(router, engine, quality.NewGate(engine),
		creditService, planService, settingsService, providerKeyService, scheduleService)

	xClient := service.NewXClient(cfg.X.APIBase, &http.Client{Timeout: 60 * time.Second})
	xTokenService := service.NewXTokenService(*cfg, socialAccountRepo)
	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	platformService := service.NewPlatformService(*cfg, socialAccountRepo, xClient)
	subscriptionService := service.NewSubscriptionService(userRepo, subscriptionRepo, creditService, tierCache)

	r2Client, err := service.NewR2Client(ctx, cfg.R2)
	if err != nil {
		zap.L().Fatal("Failed to build R2 client", zap.Error(err))
	}
	mediaService := service.NewMediaService(cfg.R2, r2Client, mediaAssetRepo)

	publisher := queue.NewPublisher(scheduledPostRepo, socialAccountRepo, historyRepo, creditService, xTokenService, xClient, cfg.ThreadItemDelay)

	// http
	app := fiber.New(fiber.Config{
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			zap.L().Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + handlers.TeamHeader,
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	health := handlers.NewHealthHandler(db.PingContext, queueHealth)
	app.Get("/health", health.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	platform := handlers.NewPlatformHandler(platformService, *cfg)
	app.Get("/auth/x", platform.AddSocialAccount)
	app.Get("/auth/x/callback", platform.CallbackHandler)

	payment := handlers.NewPaymentHandler(subscriptionService, cfg.WebhookSecret)
	app.Post("/webhooks/payment", payment.PaymentWebhook)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)
	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	generate := handlers.NewGenerationHandler(generationService)
	api.Post("/generate", generate.Generate)
	api.Post("/generate/strategy", generate.Strategy)

	credits := handlers.NewCreditHandler(creditService)
	api.Get("/credits", credits.Balance)
	api.Get("/credits/history", credits.History)
	api.Post("/credits/refund", credits.Refund)

	scheduled := handlers.NewScheduleHandler(scheduleService, creditService)
	api.Post("/scheduled", scheduled.Create)
	api.Get("/scheduled", scheduled.List)
	api.Post("/scheduled/cancel", scheduled.Cancel)
	api.Get("/scheduled/:id", scheduled.Get)
	api.Get("/history", scheduled.History)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media", media.Upload)

	settings := handlers.NewSettingsHandler(settingsService)
	api.Get("/settings", settings.GetSettingsInfo)
	api.Post("/settings", settings.UpdateSettings)

	keys := handlers.NewProviderKeyHandler(providerKeyService)
	api.Post("/provider_keys", keys.SaveKey)
	api.Get("/provider_keys", keys.ListKeys)
	api.Post("/provider_keys/remove", keys.RemoveKey)

	api.Get("/accounts", platform.ListSocialAccounts)
	api.Post("/accounts/remove", platform.DeleteSocialAccount)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, xTokenService)
	expiryJob := job.NewExpiryJob(scheduledPostRepo, creditService, cfg.ExpiryGrace)

	c := cron.New()
	if err := c.AddFunc("@every 00h10m00s", func() { refreshTokenJob.RefreshTokens(ctx) }); err != nil {
		zap.L().Fatal("Failed to schedule token refresh", zap.Error(err))
	}
	if err := c.AddFunc("@every 00h05m00s", func() { expiryJob.Sweep(ctx) }); err != nil {
		zap.L().Fatal("Failed to schedule expiry sweep", zap.Error(err))
	}
	c.Start()
	defer c.Stop()

	// workers
	var server *asynq.Server
	switch {
	case memoryQueue != nil:
		go memoryQueue.Run(ctx, time.Second, publisher.HandlePayload)
	case fallback != nil:
		go fallback.Monitor(ctx, func(ctx context.Context) error { return rdb.Ping(ctx).Err() }, brokerProbeInterval, func(ctx context.Context) {
			if _, err := queue.Reconcile(ctx, scheduledPostRepo, scheduler, time.Now()); err != nil {
				zap.L().Error("reconcile after broker recovery", zap.Error(err))
			}
		})

		server = queue.NewServer(redisOpt, cfg.WorkerConcurrency, cfg.JobMaxRetry)
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeSchedulePost, publisher.HandleSchedulePostTask)

		go func() {
			zap.L().Info("Starting the Asynq server...")
			if err := server.Run(mux); err != nil {
				zap.L().Error("Asynq server stopped", zap.Error(err))
			}
		}()
	}

	if _, err := queue.Reconcile(ctx, scheduledPostRepo, scheduler, time.Now()); err != nil {
		zap.L().Error("startup reconciliation failed", zap.Error(err))
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			zap.L().Fatal("Failed to start server", zap.Error(err))
		}
	}()
	zap.L().Info("Server is running", zap.String("addr", cfg.HTTPAddr), zap.String("queue", jobQueue.Backend()))

	gracefulShutdown(app, server, stop)
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		zap.L().Error("Failed to close database", zap.Error(err))
		return
	}
	zap.L().Info("Database connection closed")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, stop context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	zap.L().Info("Shutting down server...")

	stop()
	if server != nil {
		server.Shutdown()
	}
	if err := app.Shutdown(); err != nil {
		zap.L().Error("Failed to shut down server", zap.Error(err))
	}
	zap.L().Info("Server shutdown complete.")
}
