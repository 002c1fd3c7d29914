package handler

import (
	"net/http"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"user-api/internal/domain/service"
	"user-api/internal/infrastructure/telemetry"
)

// HealthHandler handles requests to the health endpoint
type HealthHandler struct {
	appService service.AppService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(appService service.AppService) *HealthHandler {
	return &HealthHandler{appService: appService}
}

// Handle reports 200 when every dependency is reachable and 503 otherwise
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("http.route", "/health"),
		attribute.String("handler", "health"),
	)
	span.AddEvent("Processing health check")

	telemetry.Log(ctx, telemetry.LevelInfo, "Processing health check", nil)

	report := h.appService.HealthCheck(ctx)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, statusCode := "healthy", http.StatusOK
	if !report.Healthy {
		status, statusCode = "unhealthy", http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status": status,
		"checks": report.Checks,
		"memory": map[string]interface{}{
			"alloc":      m.Alloc,
			"totalAlloc": m.TotalAlloc,
			"sys":        m.Sys,
			"numGC":      m.NumGC,
		},
	}

	span.AddEvent("Health check completed", trace.WithAttributes(attribute.String("status", status)))
	writeJSONResponse(ctx, w, response, statusCode)
}
