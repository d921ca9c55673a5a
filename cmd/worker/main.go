package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/The-Ops-King/closerMetrix-sub003/cmd/mainconfig"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/app/bootstrap"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/audit"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/calls"
	appconfig "github.com/The-Ops-King/closerMetrix-sub003/internal/config"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/coordinator"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/costs"
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
	logger.Info("starting closerMetrix worker", "env", cfg.Env)

	if cfg.UseMemoryQueue {
		logger.Error("worker cannot run when USE_MEMORY_QUEUE=true; run inline workers via the API process instead")
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" || cfg.NotificationQueueURL == "" {
		logger.Error("DATABASE_URL and NOTIFICATION_QUEUE_URL are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	callStore := calls.NewStore(pool)
	ledger := prospects.NewRepository(pool)
	auditor := audit.NewRecorder(sqlDB)
	dedupe := coordinator.NewProcessedStore(pool)
	costStore := costs.NewStore(pool)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	settings := bootstrap.BuildTenantSettings(redisClient, cfg, logger)
	alertSvc := bootstrap.BuildAlertService(cfg, awsCfg, logger)
	pipelineMetrics := metrics.NewPipelineMetrics(nil)

	events, err := bootstrap.BuildEventSource(ctx, cfg, settings, logger)
	if err != nil {
		// The worker's whole purpose is resolving notifications against
		// event detail; without it, fail fast.
		logger.Error("calendar event source required", "error", err)
		os.Exit(1)
	}
	provider := bootstrap.BuildTranscriptProvider(cfg, awsCfg, logger)
	analyzer, _, err := bootstrap.BuildTranscriptAnalyzer(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Warn("transcript analyzer unavailable; falling back to raw transcript signals", "error", err)
	}

	proc := coordinator.New(callStore, ledger, auditor, dedupe, events, provider, analyzer, costStore, settings, alertSvc, coordinator.Config{
		LookbackWindow:       cfg.CalendarLookbackWindow,
		RetryAttempts:        cfg.CalendarRetryAttempts,
		RetryBaseDelay:       cfg.CalendarRetryBaseDelay,
		ModelInputCostPer1K:  cfg.ModelInputCostPer1K,
		ModelOutputCostPer1K: cfg.ModelOutputCostPer1K,
		Metrics:              pipelineMetrics,
	}, logger)

	sqsClient := sqs.NewFromConfig(awsCfg)
	notificationQueue := queue.NewSQSQueue(sqsClient, cfg.NotificationQueueURL)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	jobStore := jobs.NewStore(dynamoClient, cfg.NotificationJobsTable, logger)

	worker := queue.NewWorker(notificationQueue, proc, jobStore, logger,
		queue.WithWorkerCount(cfg.WorkerCount))
	worker.Start(ctx)

	sw := sweeper.New(callStore, auditor, settings, cfg.SweepInterval, cfg.OutcomeGracePeriod, logger,
		sweeper.WithMetrics(pipelineMetrics))
	go sw.Run(ctx)

	// Scrape endpoint; the worker has no other HTTP surface.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics listener failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down worker")
	cancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
		logger.Info("worker stopped")
	case <-time.After(30 * time.Second):
		logger.Warn("worker shutdown timed out")
	}
}
