package service

import "context"

// HealthReport summarises the state of the application's dependencies
type HealthReport struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks"`
}

// AppService defines the interface for general application operations
type AppService interface {
	// GetWelcomeMessage returns a welcome message
	GetWelcomeMessage(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck probes every registered dependency
	HealthCheck(ctx context.Context) HealthReport
}
