package memory

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"user-api/internal/domain/entity"
	"user-api/internal/domain/errors"
	"user-api/internal/infrastructure/telemetry"
)

// UserRepository implements repository.UserRepository using in-memory storage.
// Stored users are cloned on the way in and out so callers never share
// state with the map.
type UserRepository struct {
	mu     sync.RWMutex
	users  map[entity.UserID]*entity.User
	nextID entity.UserID
	tracer trace.Tracer
}

// NewUserRepository creates a new in-memory user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:  make(map[entity.UserID]*entity.User),
		nextID: 1,
		tracer: noop.NewTracerProvider().Tracer("memory-repository"),
	}
}

// WithTracer sets the tracer for the repository
func (r *UserRepository) WithTracer(tracer trace.Tracer) *UserRepository {
	r.tracer = tracer
	return r
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Create")
	span.SetAttributes(
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.collection", "users"),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTakenLocked(user.Email(), 0) {
		err := errors.ErrUserAlreadyExists.WithContext("email", user.Email().String())
		telemetry.Log(ctx, telemetry.LevelWarn, "User already exists", err,
			attribute.String("db.operation", "INSERT"),
			attribute.String("db.collection", "users"),
		)
		return err
	}

	// Assign ID and store user
	user.SetID(r.nextID)
	user.SetVersion(1)
	r.users[r.nextID] = user.Clone()
	r.nextID++

	telemetry.Log(ctx, telemetry.LevelInfo, "User created in memory", nil,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", user.ID().String()),
	)
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id entity.UserID) (*entity.User, error) {
	_, span := r.tracer.Start(ctx, "UserRepository.GetByID")
	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", id.String()),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		span.SetAttributes(attribute.Bool("db.found", false))
		return nil, errors.ErrUserNotFound.WithContext("id", id.String())
	}

	return user.Clone(), nil
}

// List retrieves all users ordered by ID
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	_, span := r.tracer.Start(ctx, "UserRepository.List")
	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.collection", "users"),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*entity.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user.Clone())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID() < users[j].ID() })

	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

// ListByBirthDateBetween retrieves users born within [start, end]
func (r *UserRepository) ListByBirthDateBetween(ctx context.Context, start, end entity.Date) ([]*entity.User, error) {
	_, span := r.tracer.Start(ctx, "UserRepository.ListByBirthDateBetween")
	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.collection", "users"),
		attribute.String("range.start", start.String()),
		attribute.String("range.end", end.String()),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*entity.User, 0)
	for _, user := range r.users {
		if user.BirthDate().Between(start, end) {
			users = append(users, user.Clone())
		}
	}
	sort.Slice(users, func(i, j int) bool {
		bi, bj := users[i].BirthDate(), users[j].BirthDate()
		if !bi.Equal(bj) {
			return bi.Before(bj)
		}
		return users[i].ID() < users[j].ID()
	})

	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

// Update replaces a stored user when its version still matches
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Update")
	span.SetAttributes(
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", user.ID().String()),
		attribute.Int64("user.version", user.Version()),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.users[user.ID()]
	if !exists {
		return errors.ErrUserNotFound.WithContext("id", user.ID().String())
	}

	if stored.Version() != user.Version() {
		err := errors.ErrVersionConflict.
			WithContext("id", user.ID().String()).
			WithContext("expected_version", user.Version()).
			WithContext("actual_version", stored.Version())
		telemetry.Log(ctx, telemetry.LevelWarn, "Stale user update rejected", err,
			attribute.String("db.operation", "UPDATE"),
			attribute.String("user.id", user.ID().String()),
		)
		return err
	}

	if r.emailTakenLocked(user.Email(), user.ID()) {
		return errors.ErrUserAlreadyExists.WithContext("email", user.Email().String())
	}

	user.SetVersion(stored.Version() + 1)
	r.users[user.ID()] = user.Clone()

	telemetry.Log(ctx, telemetry.LevelInfo, "User updated in memory", nil,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", user.ID().String()),
	)

	return nil
}

// Delete removes a user by ID
func (r *UserRepository) Delete(ctx context.Context, id entity.UserID) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Delete")
	span.SetAttributes(
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", id.String()),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[id]; !exists {
		return errors.ErrUserNotFound.WithContext("id", id.String())
	}

	delete(r.users, id)

	telemetry.Log(ctx, telemetry.LevelInfo, "User deleted from memory", nil,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", id.String()),
	)

	return nil
}

// HealthCheck always succeeds for the in-memory store
func (r *UserRepository) HealthCheck(context.Context) error {
	return nil
}

// emailTakenLocked reports whether email belongs to a user other than except.
// Callers must hold r.mu.
func (r *UserRepository) emailTakenLocked(email entity.Email, except entity.UserID) bool {
	for id, u := range r.users {
		if id != except && u.Email() == email {
			return true
		}
	}
	return false
}
