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

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/homevisit-api/internal/config"
	"github.com/jwalitptl/homevisit-api/internal/email"
	"github.com/jwalitptl/homevisit-api/internal/handler"
	appointmentHandler "github.com/jwalitptl/homevisit-api/internal/handler/appointment"
	auditHandler "github.com/jwalitptl/homevisit-api/internal/handler/audit"
	professionalHandler "github.com/jwalitptl/homevisit-api/internal/handler/professional"
	"github.com/jwalitptl/homevisit-api/internal/lock"
	"github.com/jwalitptl/homevisit-api/internal/middleware"
	"github.com/jwalitptl/homevisit-api/internal/repository/cache"
	"github.com/jwalitptl/homevisit-api/internal/repository/postgres"
	"github.com/jwalitptl/homevisit-api/internal/router"
	appointmentService "github.com/jwalitptl/homevisit-api/internal/service/appointment"
	auditService "github.com/jwalitptl/homevisit-api/internal/service/audit"
	"github.com/jwalitptl/homevisit-api/internal/service/notification"
	"github.com/jwalitptl/homevisit-api/internal/service/outbox"
	"github.com/jwalitptl/homevisit-api/internal/service/search"
	"github.com/jwalitptl/homevisit-api/pkg/auth"
	"github.com/jwalitptl/homevisit-api/pkg/event"
	"github.com/jwalitptl/homevisit-api/pkg/logger"
	"github.com/jwalitptl/homevisit-api/pkg/messaging"
	"github.com/jwalitptl/homevisit-api/pkg/messaging/redis"
	"github.com/jwalitptl/homevisit-api/pkg/metrics"
)

// redisPinger adapts the redis client to the readiness probe.
type redisPinger struct{ client *goredis.Client }

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})
	log.Logger = appLog.ZL
	zerolog.DefaultContextLogger = &log.Logger

	ctx := context.Background()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis
	redisClient, err := redis.NewClient(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()
	broker := redis.NewRedisBroker(redisClient, log.Logger)

	reg := prometheus.DefaultRegisterer
	m := metrics.NewMetrics("homevisit", "api", reg)

	// Initialize repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	directory := cache.NewProfessionalDirectory(postgres.NewProfessionalDirectory(db), cfg.Search.CacheTTL)
	auditRepo := postgres.NewAuditRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Observers run in subscription order: the outbox row first so a
	// failing mail server cannot lose the integration event.
	bus := event.NewBus(appLog, m)
	defer bus.Close()
	bus.SubscribeAll("outbox", outbox.NewRecorder(outboxRepo))
	bus.SubscribeAll("audit", auditService.NewAuditLogger(auditRepo))
	bus.SubscribeAll("notifications", notification.NewNotifier(
		notification.MultiDispatcher{
			notification.NewEmailDispatcher(mailer(cfg.SMTP), postgres.NewContactResolver(db)),
			notification.NewBrokerDispatcher(broker, messaging.NotificationChannel),
		},
		appLog,
	))

	// Initialize services
	appointmentSvc := appointmentService.NewService(appointmentService.Dependencies{
		Store:     appointmentRepo,
		Directory: directory,
		Ownership: postgres.NewOwnershipPolicy(db),
		Events:    bus,
		Locker:    lock.NewRedisSlotLocker(redisClient, cfg.Redis.LockTTL),
		Metrics:   m,
		Logger:    appLog,
	}, cfg.Booking)
	searchSvc := search.NewService(directory, cfg.Search.OnlyBookable, appLog)
	auditSvc := auditService.NewService(auditRepo)

	// Initialize handlers
	h := handler.NewHandler(map[string]handler.Pinger{
		"postgres": db,
		"redis":    redisPinger{client: redisClient},
	}, prometheus.DefaultGatherer)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins

	r := router.NewRouter(
		middleware.NewAuthMiddleware(auth.NewValidator(cfg.JWT.Secret, cfg.JWT.Issuer)),
		appointmentHandler.NewHandler(appointmentSvc),
		professionalHandler.NewHandler(searchSvc),
		auditHandler.NewHandler(auditSvc),
		h,
		router.RouterConfig{
			Mode:       cfg.Server.Mode,
			CORSConfig: corsConfig,
			Registerer: reg,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func mailer(cfg config.SMTPConfig) email.Service {
	if !cfg.Enabled {
		log.Warn().Msg("smtp disabled, email notifications are dropped")
		return email.NewNoopService()
	}
	return email.NewSMTPService(cfg)
}
