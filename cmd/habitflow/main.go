package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/handler"
	"habitflow/internal/httpserver"
	"habitflow/internal/jobs"
	"habitflow/internal/mqhandler"
	"habitflow/internal/repository"
	"habitflow/internal/service/auth"
	"habitflow/internal/service/event"
	"habitflow/internal/service/habit"
	"habitflow/internal/service/planner"
	"habitflow/internal/service/reminder"
	"habitflow/internal/service/schedule"
	"habitflow/pkg/circuitbreaker"
	"habitflow/pkg/config"
	"habitflow/pkg/db"
	"habitflow/pkg/logger"
	"habitflow/pkg/mq"
	"habitflow/pkg/otel"
	"habitflow/pkg/outbox"
	"habitflow/pkg/redis"
	"habitflow/pkg/util"
)

const (
	serviceName   = "habitflow"
	eventsQueue   = "habitflow.events.q"
	reminderQueue = "habitflow.reminders.q"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "config", "directory holding base.yaml and <env>.yaml")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load(config.GetConfigEnv(), *configDir)
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	settings, err := availability.SettingsFromConfig(cfg.Schedule)
	if err != nil {
		log.Fatal("Invalid schedule config", zap.Error(err))
	}

	log.Info("Starting habitflow...",
		zap.String("version", version),
		zap.String("env", config.GetConfigEnv()),
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("timezone", cfg.Schedule.Timezone),
	)

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, log); err != nil {
		log.Fatal("Failed to migrate DB", zap.Error(err))
	}

	// Redis，不可用时缓存与去重降级
	rdb := redis.NewRedisClient(cfg.Redis, log)
	defer rdb.Close()

	outboxRepo := outbox.NewRepository(pool)
	store := repository.NewStore(pool, outboxRepo, log)

	// Services
	loginFailures := util.NewAttemptCounter(rdb, "login:failures:", 15*time.Minute)
	authService := auth.NewAuthService(store, loginFailures, cfg.JWT.Secret, log)
	eventService := event.NewService(store, store, settings, log)
	habitService := habit.NewService(store, store, settings, log)
	scheduleService := schedule.NewService(store, store, settings, log)
	insightsCache := planner.NewInsightsCache(rdb, cfg.Schedule.InsightsCacheTTL, log)
	plannerService := planner.NewService(store, insightsCache, settings, cfg.Schedule.LowSuccessThreshold, log)
	reminderService := reminder.NewService(store, store, util.NewDeduper(rdb, 48*time.Hour, log), settings, cfg.Schedule.ReminderLeadMinutes, log)

	// MQ publisher + outbox dispatcher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 1,
		OnStateChange: func(from, to circuitbreaker.State) {
			log.Warn("Publisher circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithBreaker(breaker).
		WithInterval(cfg.Outbox.PollInterval).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	go dispatcher.Start(ctx)

	// MQ consumers：缓存失效与提醒投递
	invalidation := mqhandler.NewInsightsInvalidationHandler(plannerService, log)
	eventsRouter := mqhandler.NewRouter(log)
	for _, key := range []string{
		mq.RoutingScheduleCreated,
		mq.RoutingScheduleDeleted,
		mq.RoutingHabitCreated,
		mq.RoutingCompletionLogged,
	} {
		eventsRouter.Register(key, invalidation.Handle)
	}
	eventsConsumer := startConsumer(ctx, cfg.MQ.URL, eventsQueue, eventsRouter, log)
	defer eventsConsumer.Close()

	reminderRouter := mqhandler.NewRouter(log)
	reminderRouter.Register(mq.RoutingReminderDue, mqhandler.NewReminderDueHandler(util.NewDeduper(rdb, 48*time.Hour, log), log).Handle)
	reminderConsumer := startConsumer(ctx, cfg.MQ.URL, reminderQueue, reminderRouter, log)
	defer reminderConsumer.Close()

	// 定时任务：提醒扫描与 outbox 清理
	scheduler := jobs.NewScheduler(settings.Location, log)
	if err := scheduler.Add("reminders", cfg.Schedule.ReminderSchedule, 30*time.Second, func(ctx context.Context) error {
		_, err := reminderService.Tick(ctx)
		return err
	}); err != nil {
		log.Fatal("Failed to schedule reminders", zap.Error(err))
	}
	if err := scheduler.Add("outbox_purge", cfg.Outbox.PurgeSchedule, 5*time.Minute, func(ctx context.Context) error {
		n, err := outboxRepo.PurgeSent(ctx, cfg.Outbox.Retention)
		if err == nil && n > 0 {
			log.Info("Purged sent outbox events", zap.Int64("count", n))
		}
		return err
	}); err != nil {
		log.Fatal("Failed to schedule outbox purge", zap.Error(err))
	}
	scheduler.Start()

	// HTTP Server
	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:     handler.NewAuthHandler(authService, log),
		Events:   handler.NewEventHandler(eventService, log),
		Habits:   handler.NewHabitHandler(habitService, log),
		Schedule: handler.NewScheduleHandler(scheduleService, log),
		Planner:  handler.NewPlannerHandler(plannerService, log),
	}, httpserver.Options{
		Auth:      authService,
		DB:        store,
		Publisher: publisher,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("habitflow is fully initialized and running",
		zap.String("http_port", cfg.Server.Port),
		zap.Strings("queues", []string{eventsQueue, reminderQueue}),
	)

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down habitflow gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// 停止 MQ 消费者与定时任务，再停止 outbox 投递
	eventsConsumer.Stop()
	reminderConsumer.Stop()
	scheduler.Stop(shutdownCtx)
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("habitflow shutdown complete")
}

func startConsumer(ctx context.Context, url, queue string, router *mqhandler.Router, log *zap.Logger) *mq.Consumer {
	consumer, err := mq.NewConsumer(url, queue, router.RoutingKeys(), log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.String("queue", queue), zap.Error(err))
	}
	consumer.SetHandler(router.Handle)

	go func() {
		log.Info("Starting consumer...", zap.String("queue", queue))
		if err := consumer.StartConsuming(ctx); err != nil {
			log.Error("Consumer stopped with error", zap.String("queue", queue), zap.Error(err))
		}
	}()
	return consumer
}
