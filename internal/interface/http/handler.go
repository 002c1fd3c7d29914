package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"user-api/internal/domain/service"
	"user-api/internal/infrastructure/config"
	"user-api/internal/infrastructure/telemetry"
	"user-api/internal/interface/http/handler"
	"user-api/internal/interface/http/middleware"
	"user-api/internal/interface/http/routes"
)

// Handler holds the HTTP handler dependencies
type Handler struct {
	userService handler.UserService
	appService  service.AppService
	mu          sync.Mutex
	server      *http.Server
	telemetry   *telemetry.Telemetry
	config      config.Config
}

// NewHandler creates a new HTTP handler
func NewHandler(userService handler.UserService, appService service.AppService, tel *telemetry.Telemetry, cfg config.Config) *Handler {
	return &Handler{
		userService: userService,
		appService:  appService,
		telemetry:   tel,
		config:      cfg,
	}
}

// SetupRoutes sets up the HTTP routes with middleware
func (h *Handler) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	router := routes.NewRouter(h.userService, h.appService)
	router.RegisterRoutes(mux)

	middlewareChain := middleware.ChainMiddleware(
		middleware.OtelHttpMiddleware("http.server"),
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddlewareWithConfig(h.config.Otel.LogBodies),
		middleware.RecoveryMiddleware,
		middleware.CORSMiddleware,
	)

	return middlewareChain(mux)
}

// Start serves on the configured port until Stop is called
func (h *Handler) Start(ctx context.Context) error {
	return h.StartWithAddr(ctx, h.config.App.Port)
}

// StartWithAddr serves on the given port. It returns nil after a graceful Stop.
func (h *Handler) StartWithAddr(ctx context.Context, port string) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		// In-flight requests outlive the caller's cancellation until Stop drains them
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	h.mu.Lock()
	h.server = server
	h.mu.Unlock()

	telemetry.Log(ctx, telemetry.LevelInfo, "HTTP server listening", nil)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop stops the HTTP server
func (h *Handler) Stop(ctx context.Context) error {
	h.mu.Lock()
	server := h.server
	h.mu.Unlock()
	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}
