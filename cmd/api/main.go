package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/The-Ops-King/closerMetrix-sub003/cmd/mainconfig"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/api/router"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/app/bootstrap"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/audit"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/calls"
	appconfig "github.com/The-Ops-King/closerMetrix-sub003/internal/config"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/coordinator"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/costs"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/http/handlers"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/jobs"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/observability/metrics"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/prospects"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/queue"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/sweeper"
	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting closerMetrix API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = sqlDB.Close() }()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Stores.
	callStore := calls.NewStore(pool)
	ledger := prospects.NewRepository(pool)
	auditor := audit.NewRecorder(sqlDB)
	dedupe := coordinator.NewProcessedStore(pool)
	costStore := costs.NewStore(pool)

	// Shared infrastructure.
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	settings := bootstrap.BuildTenantSettings(redisClient, cfg, logger)
	alertSvc := bootstrap.BuildAlertService(cfg, awsCfg, logger)
	pipelineMetrics := metrics.NewPipelineMetrics(nil)

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	jobStore := jobs.NewStore(dynamoClient, cfg.NotificationJobsTable, logger)

	proc := buildCoordinator(ctx, cfg, awsCfg, callStore, ledger, auditor, dedupe, costStore, settings, alertSvc, pipelineMetrics, logger)

	// Queue: SQS in production, in-process channel for local development.
	var (
		publisher   *queue.Publisher
		localWorker *queue.Worker
	)
	if cfg.UseMemoryQueue {
		memQueue := queue.NewMemoryQueue(256)
		publisher = queue.NewPublisher(memQueue, logger)

		localWorker = queue.NewWorker(memQueue, proc, jobStore, logger,
			queue.WithWorkerCount(cfg.WorkerCount))
		localWorker.Start(ctx)
		logger.Info("inline queue workers started", "count", cfg.WorkerCount)

		sw := sweeper.New(callStore, auditor, settings, cfg.SweepInterval, cfg.OutcomeGracePeriod, logger,
			sweeper.WithMetrics(pipelineMetrics))
		go sw.Run(ctx)
	} else {
		if cfg.NotificationQueueURL == "" {
			logger.Error("NOTIFICATION_QUEUE_URL is required unless USE_MEMORY_QUEUE=true")
			os.Exit(1)
		}
		sqsClient := sqs.NewFromConfig(awsCfg)
		publisher = queue.NewPublisher(queue.NewSQSQueue(sqsClient, cfg.NotificationQueueURL), logger)
	}

	routerCfg := &router.Config{
		Logger:            logger,
		CalendarWebhook:   handlers.NewCalendarWebhookHandler(cfg.CalendarWebhookToken, publisher, jobStore, pipelineMetrics, alertSvc, logger),
		TranscriptWebhook: handlers.NewTranscriptWebhookHandler(cfg.TranscriptWebhookToken, publisher, jobStore, pipelineMetrics, logger),
		AdminCalls:        handlers.NewAdminCallsHandler(callStore, proc, auditor, logger),
		AdminAuthSecret:   cfg.AdminJWTSecret,
		MetricsHandler:    promhttp.Handler(),
		WebhookRateLimit:  20,
		WebhookBurst:      60,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cancel()
	if localWorker != nil {
		localWorker.Wait()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildCoordinator assembles the processing pipeline. The event source and
// transcript provider are optional at this layer: without calendar
// credentials the coordinator still serves transcript and admin paths.
func buildCoordinator(
	ctx context.Context,
	cfg *appconfig.Config,
	awsCfg aws.Config,
	callStore *calls.Store,
	ledger *prospects.Repository,
	auditor *audit.Recorder,
	dedupe *coordinator.ProcessedStore,
	costStore *costs.Store,
	settings bootstrap.TenantSettings,
	alertSvc coordinator.Alerter,
	pipelineMetrics *metrics.PipelineMetrics,
	logger *logging.Logger,
) *coordinator.Coordinator {
	events, err := bootstrap.BuildEventSource(ctx, cfg, settings, logger)
	if err != nil {
		logger.Warn("calendar event source unavailable", "error", err)
	}

	provider := bootstrap.BuildTranscriptProvider(cfg, awsCfg, logger)
	analyzer, _, err := bootstrap.BuildTranscriptAnalyzer(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Warn("transcript analyzer unavailable", "error", err)
	}

	return coordinator.New(callStore, ledger, auditor, dedupe, events, provider, analyzer, costStore, settings, alertSvc, coordinator.Config{
		LookbackWindow:       cfg.CalendarLookbackWindow,
		RetryAttempts:        cfg.CalendarRetryAttempts,
		RetryBaseDelay:       cfg.CalendarRetryBaseDelay,
		ModelInputCostPer1K:  cfg.ModelInputCostPer1K,
		ModelOutputCostPer1K: cfg.ModelOutputCostPer1K,
		Metrics:              pipelineMetrics,
	}, logger)
}
