package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-notify/internal/config"
	"github.com/noah-isme/gema-notify/internal/database"
	"github.com/noah-isme/gema-notify/internal/handler"
	"github.com/noah-isme/gema-notify/internal/middleware"
	"github.com/noah-isme/gema-notify/internal/repository"
	"github.com/noah-isme/gema-notify/internal/router"
	"github.com/noah-isme/gema-notify/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, database.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLife,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	probes := map[string]handler.HealthProbe{"database": database.Ping(db)}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		probes["redis"] = database.PingRedis(redisClient)
	} else {
		logger.Warn().Msg("redis not configured, trigger deduplication disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	coursework := repository.NewCourseworkRepository(db)
	deliveries := repository.NewDeliveryRepository(db)

	checkpoints := repository.NewGormCheckpointStore(db)
	if cfg.CheckpointStore == config.CheckpointStoreRedis {
		checkpoints = repository.NewRedisCheckpointStore(redisClient)
	}

	var mailer service.Mailer = service.NewLogMailer(logger)
	if cfg.MailProvider == config.MailProviderSendGrid {
		mailer = service.NewSendGridMailer(cfg.SendGridAPIKey, service.DefaultSendGridHost, cfg.MailFromName, cfg.MailFromAddress, cfg.MailSubjectPrefix)
	}

	rules := service.NewNotificationRules(coursework, cfg.DefaultReviewQuota)
	dispatcher := service.NewEmailDispatcher(service.NewEmailRenderer(), mailer, cfg.SendTimeout, cfg.DispatchConcurrency, logger)
	notifications := service.NewNotificationService(rules, dispatcher, deliveries, redisClient, validate, service.NotificationServiceOptions{
		LookupTimeout: cfg.LookupTimeout,
		DedupeTTL:     cfg.DedupeTTL,
	}, logger)

	tracker := service.NewDeadlineTracker(coursework, checkpoints, notifications, service.TrackerOptions{
		Interval:      cfg.TrackerInterval,
		UnitTimeout:   cfg.TrackerUnitTimeout,
		CatchUpWindow: cfg.TrackerCatchUpWindow,
		Concurrency:   cfg.TrackerConcurrency,
	}, logger)
	tracker.Init()
	probes["deadline_tracker"] = func(context.Context) error {
		if !tracker.Running() {
			return errors.New("tracker stopped")
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats status %s", natsConn.Status())
			}
			return nil
		}
		consumer := service.NewTriggerConsumer(natsConn, cfg.NATSSubject, cfg.NATSQueue, notifications, cfg.LookupTimeout+cfg.SendTimeout, logger)
		if err := consumer.Start(ctx); err != nil {
			log.Fatalf("failed to start trigger consumer: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		NotificationHandler: handler.NewNotificationHandler(notifications, tracker, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:        probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	waitForShutdown(app, tracker, natsConn, logger)
}

func waitForShutdown(app *fiber.App, tracker *service.DeadlineTracker, natsConn *nats.Conn, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	tracker.Stop()

	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			logger.Warn().Err(err).Msg("nats drain failed")
		}
	}

	logger.Info().Msg("server stopped")
}
