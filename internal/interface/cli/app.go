package cli

import (
	"context"
	"errors"
	"fmt"

	appservice "user-api/internal/application/service"
	"user-api/internal/application/worker"
	"user-api/internal/domain/event"
	"user-api/internal/domain/repository"
	"user-api/internal/infrastructure/config"
	"user-api/internal/infrastructure/kafka"
	"user-api/internal/infrastructure/postgres"
	"user-api/internal/infrastructure/redis"
	"user-api/internal/infrastructure/repository/memory"
	pgrepo "user-api/internal/infrastructure/repository/postgres"
	redisrepo "user-api/internal/infrastructure/repository/redis"
	"user-api/internal/infrastructure/telemetry"
)

// application holds the wired components of a running service
type application struct {
	users   *appservice.UserService
	app     *appservice.AppService
	audit   *worker.AuditWorker
	closers []func() error
}

// close releases every client in reverse order of creation
func (a *application) close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, a.closers[i]())
	}
	return err
}

// setupTelemetry installs the OTel SDK when enabled, otherwise SDK providers
// without exporters and plain slog output
func setupTelemetry(ctx context.Context, cfg config.Config) (*telemetry.Telemetry, func(context.Context) error, error) {
	if cfg.Otel.Enabled {
		return telemetry.Setup(ctx, cfg)
	}
	telemetry.SetupLogging(cfg.Otel)
	tel := telemetry.NewNoop()
	return tel, tel.Shutdown, nil
}

// newApplication connects the configured store and broker and builds the
// services on top of them. On error every client opened so far is closed.
func newApplication(ctx context.Context, cfg config.Config, tel *telemetry.Telemetry) (_ *application, err error) {
	a := &application{}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	checks := map[string]appservice.HealthChecker{}

	repo, err := a.openStore(ctx, cfg, tel, checks)
	if err != nil {
		return nil, err
	}

	var publisher event.Publisher = event.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, tel)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		a.closers = append(a.closers, func() error { producer.Close(); return nil })
		checks["kafka"] = producer
		publisher = kafka.NewEventPublisher(producer)

		if cfg.Kafka.AuditConsumer {
			consumer, err := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.ConsumerGroup, tel)
			if err != nil {
				return nil, fmt.Errorf("kafka consumer: %w", err)
			}
			a.closers = append(a.closers, func() error { consumer.Close(); return nil })
			a.audit = worker.NewAuditWorker(consumer, tel)
		}
	}

	a.users = appservice.NewUserService(repo, tel, cfg.User, appservice.WithPublisher(publisher))
	a.app = appservice.NewAppService(tel, cfg, checks)
	return a, nil
}

func (a *application) openStore(ctx context.Context, cfg config.Config, tel *telemetry.Telemetry, checks map[string]appservice.HealthChecker) (repository.UserRepository, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		client, err := postgres.NewClient(ctx, cfg.Postgres, tel)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		checks["postgres"] = client

		if cfg.Postgres.AutoMigrate {
			if err := client.AutoMigrate(ctx, &pgrepo.UserModel{}); err != nil {
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		return pgrepo.NewUserRepository(client.DB, tel.Tracer), nil

	case config.StoreRedis:
		client, err := redis.NewClient(ctx, cfg.Redis, tel)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		checks["redis"] = client
		return redisrepo.NewUserRepository(client.Client, cfg.Redis.KeyPrefix, tel.Tracer), nil

	default:
		repo := memory.NewUserRepository().WithTracer(tel.Tracer)
		checks["memory"] = repo
		return repo, nil
	}
}
