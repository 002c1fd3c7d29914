package repository

//go:generate mockgen -source=user.go -destination=mocks/user_mock.go -package=mocks UserRepository

import (
	"context"

	"user-api/internal/domain/entity"
	"user-api/internal/domain/errors"
)

// UserRepository defines the interface for user data operations.
// Implementations own email uniqueness and optimistic locking.
type UserRepository interface {
	// Create stores a new user, assigning its ID and setting version 1
	Create(ctx context.Context, user *entity.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id entity.UserID) (*entity.User, error)

	// List retrieves all users ordered by ID ascending
	List(ctx context.Context) ([]*entity.User, error)

	// ListByBirthDateBetween retrieves users born within [start, end],
	// ordered by birth date then ID. Users without a birth date never match.
	ListByBirthDateBetween(ctx context.Context, start, end entity.Date) ([]*entity.User, error)

	// Update replaces a stored user if its stored version still equals
	// user.Version(). On success the version on user is incremented.
	Update(ctx context.Context, user *entity.User) error

	// Delete removes a user by ID
	Delete(ctx context.Context, id entity.UserID) error
}

// Repository errors - these wrap the domain errors for repository-specific context
var (
	ErrUserNotFound      = errors.ErrUserNotFound
	ErrUserAlreadyExists = errors.ErrUserAlreadyExists
	ErrVersionConflict   = errors.ErrVersionConflict
	ErrRepositoryError   = errors.ErrRepositoryError
)
