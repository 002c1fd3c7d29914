package service

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domain "user-api/internal/domain/service"
	"user-api/internal/infrastructure/config"
	"user-api/internal/infrastructure/telemetry"
)

// HealthChecker probes a single dependency
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a plain function to HealthChecker
type HealthCheckFunc func(ctx context.Context) error

// HealthCheck implements HealthChecker
func (f HealthCheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

const healthCheckTimeout = 2 * time.Second

// AppService handles application-level operations
type AppService struct {
	telemetry *telemetry.Telemetry
	tracer    trace.Tracer
	name      string
	version   string
	store     string
	checks    map[string]HealthChecker
}

var _ domain.AppService = (*AppService)(nil)

// NewAppService creates a new AppService. checks maps a dependency name to
// its probe; a nil map reports the application as healthy.
func NewAppService(tel *telemetry.Telemetry, cfg config.Config, checks map[string]HealthChecker) *AppService {
	if checks == nil {
		checks = map[string]HealthChecker{}
	}
	return &AppService{
		telemetry: tel,
		tracer:    tel.Tracer,
		name:      cfg.Otel.ServiceName,
		version:   cfg.Otel.ServiceVersion,
		store:     cfg.Store.Driver,
		checks:    checks,
	}
}

// HealthCheck runs every registered probe and reports unhealthy if any fails
func (s *AppService) HealthCheck(ctx context.Context) domain.HealthReport {
	ctx, span := s.tracer.Start(ctx, "AppService.HealthCheck")
	defer span.End()

	span.SetAttributes(
		attribute.String("operation", "health_check"),
	)

	report := domain.HealthReport{
		Healthy: true,
		Checks:  make(map[string]string, len(s.checks)),
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := s.checks[name].HealthCheck(checkCtx)
		cancel()

		if err != nil {
			report.Healthy = false
			report.Checks[name] = "unavailable"
			telemetry.Log(ctx, telemetry.LevelWarn, "Health check failed", err,
				attribute.String("operation", "health_check"),
				attribute.String("dependency", name),
			)
			continue
		}
		report.Checks[name] = "ok"
	}

	status := "healthy"
	if !report.Healthy {
		status = "unhealthy"
	}
	span.SetAttributes(attribute.String("health.status", status))
	telemetry.Log(ctx, telemetry.LevelInfo, "Health check completed", nil,
		attribute.String("operation", "health_check"),
		attribute.String("status", status),
	)

	return report
}

// GetWelcomeMessage returns a welcome message
func (s *AppService) GetWelcomeMessage(ctx context.Context) (map[string]interface{}, error) {
	ctx, span := s.tracer.Start(ctx, "AppService.GetWelcomeMessage")
	defer span.End()

	span.SetAttributes(
		attribute.String("operation", "get_welcome_message"),
	)

	telemetry.Log(ctx, telemetry.LevelInfo, "Getting welcome message", nil,
		attribute.String("operation", "get_welcome_message"),
	)

	message := map[string]interface{}{
		"message":     "Welcome to " + s.name + "!",
		"application": s.name,
		"version":     s.version,
		"store":       s.store,
		"status":      "running",
	}

	return message, nil
}
