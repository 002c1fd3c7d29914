package event

//go:generate mockgen -source=user.go -destination=mocks/publisher_mock.go -package=mocks Publisher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"user-api/internal/domain/entity"
)

// Type names a user lifecycle transition
type Type string

const (
	TypeUserCreated Type = "user.created"
	TypeUserUpdated Type = "user.updated"
	TypeUserDeleted Type = "user.deleted"
)

// UserEvent is emitted after a user change has been persisted.
// It carries identifiers only, never personal data.
type UserEvent struct {
	ID         uuid.UUID     `json:"id"`
	Type       Type          `json:"type"`
	UserID     entity.UserID `json:"user_id"`
	Version    int64         `json:"version"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewUserEvent builds an event for user with a fresh ID
func NewUserEvent(t Type, user *entity.User, at time.Time) UserEvent {
	return UserEvent{
		ID:         uuid.New(),
		Type:       t,
		UserID:     user.ID(),
		Version:    user.Version(),
		OccurredAt: at.UTC(),
	}
}

// Publisher delivers user events to interested parties
type Publisher interface {
	Publish(ctx context.Context, evt UserEvent) error
}

// NopPublisher discards every event
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, UserEvent) error {
	return nil
}
