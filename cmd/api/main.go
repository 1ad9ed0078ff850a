package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-intake/internal/api/http"
	"github.com/spec-kit/helpdesk-intake/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-intake/internal/auth"
	"github.com/spec-kit/helpdesk-intake/internal/channel"
	"github.com/spec-kit/helpdesk-intake/internal/channel/email"
	"github.com/spec-kit/helpdesk-intake/internal/channel/whatsapp"
	"github.com/spec-kit/helpdesk-intake/internal/config"
	"github.com/spec-kit/helpdesk-intake/internal/domain"
	"github.com/spec-kit/helpdesk-intake/internal/events"
	"github.com/spec-kit/helpdesk-intake/internal/observability"
	"github.com/spec-kit/helpdesk-intake/internal/persistence"
	"github.com/spec-kit/helpdesk-intake/internal/repository"
	"github.com/spec-kit/helpdesk-intake/internal/repository/memory"
	"github.com/spec-kit/helpdesk-intake/internal/service"
	"github.com/spec-kit/helpdesk-intake/internal/worker"
)

const shutdownTimeout = 15 * time.Second

type repositories struct {
	orgs          repository.OrganizationRepository
	users         repository.UserRepository
	tickets       repository.TicketRepository
	conversations repository.ConversationRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Telemetry, cfg.App.Version, logger)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Configured() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	repos := newRepositories(pg.PoolHandle())

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var guard service.DeliveryGuard
	if redis.Configured() && cfg.Intake.DedupeTTL() > 0 {
		guard = persistence.NewRedisDeliveryGuard(redis.Client, cfg.Intake.DedupeTTL())
	}

	dispatcher := events.NewAsyncDispatcher(events.NewInMemoryDispatcher(logger),
		cfg.Intake.EventWorkers, cfg.Intake.EventQueueSize, cfg.Intake.EventTimeout(), logger, metrics)
	var sink *events.KafkaSink
	if len(cfg.Kafka.Brokers) > 0 {
		writer, err := events.NewKafkaWriter(cfg.Kafka)
		if err != nil {
			logger.Fatal("failed to init kafka writer", zap.Error(err))
		}
		sink = events.NewKafkaSink(writer, logger, metrics)
		sink.Register(dispatcher)
		logger.Info("publishing intake events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.IntakeTopic))
	}
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger))

	senders, err := newSenderRegistry(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init channel senders", zap.Error(err))
	}

	var ackDispatcher *worker.AckDispatcher
	var scheduler service.AckScheduler
	if cfg.Intake.AckAsync {
		ackDispatcher = worker.NewAckDispatcher(cfg.Intake.AckWorkers, cfg.Intake.AckTimeout(), logger)
		scheduler = ackDispatcher
	}

	validate := validator.New()
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		Tenants: service.NewTenantResolver(repos.orgs),
		Identities: service.NewIdentityResolver(service.IdentityDependencies{
			UserRepo:      repos.users,
			AvatarBaseURL: cfg.Intake.AvatarBaseURL,
			Logger:        logger,
			Metrics:       metrics,
		}),
		Threads:            service.NewThreadSelector(repos.tickets),
		TicketRepo:         repos.tickets,
		ConversationRepo:   repos.conversations,
		Sender:             senders,
		Guard:              guard,
		Scheduler:          scheduler,
		Dispatcher:         dispatcher,
		Validator:          validate,
		Logger:             logger,
		Metrics:            metrics,
		AckTimeout:         cfg.Intake.AckTimeout(),
		DefaultAckTemplate: cfg.Intake.DefaultAckTemplate,
	})
	orgService := service.NewOrganizationService(repos.orgs, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics:        handlers.NewMetricsHandler(metrics),
		WhatsApp:       handlers.NewWhatsAppHandler(intakeService, validate),
		Email:          handlers.NewEmailHandler(intakeService, validate),
		Admin:          handlers.NewAdminHandler(orgService, validate),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if ackDispatcher != nil {
		if err := ackDispatcher.Wait(shutdownCtx); err != nil {
			logger.Warn("pending acknowledgments abandoned", zap.Error(err))
		}
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("pending events abandoned", zap.Error(err))
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			logger.Warn("kafka writer close", zap.Error(err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
}

// newRepositories picks Postgres when a pool is available and the in-memory store otherwise.
func newRepositories(pool *pgxpool.Pool) repositories {
	if pool == nil {
		store := memory.NewStore()
		return repositories{
			orgs:          store.Organizations(),
			users:         store.Users(),
			tickets:       store.Tickets(),
			conversations: store.Conversations(),
		}
	}
	return repositories{
		orgs:          repository.NewOrganizationRepository(pool),
		users:         repository.NewUserRepository(pool),
		tickets:       repository.NewTicketRepository(pool),
		conversations: repository.NewConversationRepository(pool),
	}
}

func newSenderRegistry(cfg *config.Config, logger *zap.Logger) (*channel.Registry, error) {
	registry := channel.NewRegistry()
	registry.Register(domain.ChannelWhatsApp, whatsapp.NewClient(cfg.WhatsApp.APIBaseURL, cfg.WhatsApp.SendTimeout()))

	if cfg.Email.AWSRegion == "" {
		logger.Warn("AWS_REGION not provided; email acknowledgments are logged only")
		registry.Register(domain.ChannelEmail, channel.LogSender{Logger: logger})
		return registry, nil
	}
	ses, err := email.NewSESSender(cfg.Email)
	if err != nil {
		return nil, err
	}
	registry.Register(domain.ChannelEmail, ses)
	return registry, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
