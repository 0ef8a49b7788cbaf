package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/puppytalk-backend/api/routes"
	"github.com/angelmondragon/puppytalk-backend/internal/activity"
	"github.com/angelmondragon/puppytalk-backend/internal/content"
	"github.com/angelmondragon/puppytalk-backend/internal/cron"
	"github.com/angelmondragon/puppytalk-backend/internal/dispatch"
	"github.com/angelmondragon/puppytalk-backend/internal/inactivity"
	"github.com/angelmondragon/puppytalk-backend/internal/notifications"
	"github.com/angelmondragon/puppytalk-backend/internal/pipeline"
	"github.com/angelmondragon/puppytalk-backend/internal/stats"
	"github.com/angelmondragon/puppytalk-backend/internal/tokens"
	"github.com/angelmondragon/puppytalk-backend/pkg/config"
	"github.com/angelmondragon/puppytalk-backend/pkg/db"
	"github.com/angelmondragon/puppytalk-backend/pkg/fcm"
	"github.com/angelmondragon/puppytalk-backend/pkg/idempotency"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
	"github.com/angelmondragon/puppytalk-backend/pkg/metrics"
	"github.com/angelmondragon/puppytalk-backend/pkg/migrate"
	"github.com/angelmondragon/puppytalk-backend/pkg/openai"
	"github.com/angelmondragon/puppytalk-backend/pkg/pubsub"
	"github.com/angelmondragon/puppytalk-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "notification-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	cfg.Service.Kind = "notification-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notification-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    cfg.Service.InstanceID,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	conn := dbClient.DB()
	store := notifications.NewStore(conn, nil)
	tracker := activity.NewTracker(conn, nil)

	var generator content.Generator
	if cfg.AI.Enabled() {
		aiClient, err := openai.NewClient(
			cfg.AI.APIKey,
			openai.WithBaseURL(cfg.AI.BaseURL),
			openai.WithHTTPClient(&http.Client{Timeout: cfg.AI.Timeout}),
			openai.WithRateLimit(cfg.AI.RPS, 1),
		)
		requireResource(ctx, logg, "openai client", err)
		gen, err := content.NewOpenAIGenerator(aiClient, cfg.AI.Model, cfg.AI.MaxTokens, cfg.AI.Temperature)
		requireResource(ctx, logg, "content generator", err)
		generator = gen
	} else {
		logg.Warn(ctx, "openai api key not configured, inactivity messages use the fallback pool")
	}

	builder, err := content.NewBuilder(content.BuilderParams{
		Loader:    content.NewLoader(conn, cfg.AI.HistorySize),
		Generator: generator,
		MaxLength: cfg.AI.MaxContentLength,
		Timeout:   cfg.AI.Timeout,
		Metrics:   pipelineMetrics,
		Logger:    logg,
	})
	requireResource(ctx, logg, "content builder", err)

	detector, err := inactivity.NewDetector(inactivity.DetectorParams{
		Activity:  tracker,
		Content:   builder,
		Store:     store,
		Messages:  content.NewMessageWriter(conn, nil),
		Threshold: cfg.Inactivity.Threshold,
		BatchSize: cfg.Inactivity.BatchSize,
		RunBudget: cfg.Inactivity.RunBudget,
		Metrics:   pipelineMetrics,
		Logger:    logg,
	})
	requireResource(ctx, logg, "inactivity detector", err)

	var transport dispatch.Transport = fcm.Disabled{}
	if cfg.FCM.Enabled() {
		pushClient, err := fcm.New(ctx, cfg.FCM, logg)
		requireResource(ctx, logg, "fcm client", err)
		transport = pushClient
	} else {
		logg.Warn(ctx, "fcm credentials not configured, push delivery will fail")
	}

	dispatcher, err := dispatch.NewDispatcher(dispatch.DispatcherParams{
		Store:           store,
		Tokens:          tokens.NewDirectory(conn),
		Transport:       transport,
		BatchSize:       cfg.Dispatch.BatchSize,
		MaxAttempts:     cfg.Dispatch.MaxAttempts,
		Debounce:        cfg.Dispatch.Debounce,
		RunBudget:       cfg.Dispatch.RunBudget,
		BackoffBase:     cfg.Dispatch.BackoffBase,
		BackoffMax:      cfg.Dispatch.BackoffMax,
		ClaimLease:      cfg.Dispatch.ClaimLease,
		SendTimeout:     cfg.FCM.SendTimeout,
		SendConcurrency: cfg.Dispatch.SendConcurrency,
		Metrics:         pipelineMetrics,
		Logger:          logg,
	})
	requireResource(ctx, logg, "dispatcher", err)

	reporter, err := stats.NewReporter(store, pipelineMetrics, logg)
	requireResource(ctx, logg, "statistics reporter", err)

	notificationPipeline, err := pipeline.New(detector, dispatcher, reporter)
	requireResource(ctx, logg, "pipeline", err)

	scanJob, err := cron.NewInactivityScanJob(notificationPipeline)
	requireResource(ctx, logg, "inactivity scan job", err)
	dispatchJob, err := cron.NewDispatchJob(notificationPipeline)
	requireResource(ctx, logg, "dispatch job", err)
	statsJob, err := cron.NewStatisticsJob(reporter)
	requireResource(ctx, logg, "statistics job", err)
	retentionJob, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger: logg,
		Store:  store,
		Window: cfg.Retention.Window(),
	})
	requireResource(ctx, logg, "retention job", err)

	schedules := []struct {
		name     string
		job      cron.Job
		interval time.Duration
		lockTTL  time.Duration
	}{
		{name: "inactivity-scan", job: scanJob, interval: cfg.Inactivity.ScanInterval, lockTTL: cfg.Inactivity.LockTTL},
		{name: "dispatch", job: dispatchJob, interval: cfg.Dispatch.Interval, lockTTL: cfg.Dispatch.LockTTL},
		{name: "statistics", job: statsJob, interval: cfg.Stats.Interval, lockTTL: cfg.Stats.Interval},
		{name: "retention", job: retentionJob, interval: cfg.Retention.Interval, lockTTL: time.Hour},
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for _, schedule := range schedules {
		lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cfg.App.Env, schedule.name), schedule.lockTTL)
		requireResource(ctx, logg, schedule.name+" lock", err)
		registry, err := cron.NewRegistry(schedule.job)
		requireResource(ctx, logg, schedule.name+" registry", err)
		service, err := cron.NewService(cron.ServiceParams{
			Name:     schedule.name,
			Logger:   logg,
			Registry: registry,
			Lock:     lock,
			Metrics:  cronMetrics,
			Interval: schedule.interval,
		})
		requireResource(ctx, logg, schedule.name+" service", err)
		group.Go(func() error {
			return service.Run(groupCtx)
		})
	}

	if cfg.FeatureFlags.Consumers {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()

		manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
		requireResource(ctx, logg, "idempotency manager", err)

		activityConsumer, err := activity.NewConsumer(tracker, pubsubClient.ActivitySubscription(), manager, logg)
		requireResource(ctx, logg, "activity consumer", err)
		notificationConsumer, err := notifications.NewConsumer(store, pubsubClient.NotificationSubscription(), manager, logg)
		requireResource(ctx, logg, "notification consumer", err)

		group.Go(func() error { return activityConsumer.Run(groupCtx) })
		group.Go(func() error { return notificationConsumer.Run(groupCtx) })
	} else {
		logg.Warn(ctx, "event consumers disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			RateLimiter: redisClient,
			Pipeline:    notificationPipeline,
			Gatherer:    prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting notification worker")

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notification worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "notification worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
