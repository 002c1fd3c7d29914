package service

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"user-api/internal/application/dto"
	"user-api/internal/domain/entity"
	"user-api/internal/domain/errors"
	"user-api/internal/domain/event"
	"user-api/internal/domain/repository"
	"user-api/internal/domain/validator"
	"user-api/internal/infrastructure/config"
	"user-api/internal/infrastructure/telemetry"
)

// Metric status values
const (
	statusSuccess         = "success"
	statusValidationError = "validation_error"
	statusNotFound        = "not_found"
	statusConflict        = "conflict"
	statusError           = "error"
)

// UserService handles user-related business operations
type UserService struct {
	repo      repository.UserRepository
	publisher event.Publisher
	telemetry *telemetry.Telemetry
	tracer    trace.Tracer
	minAge    int
	now       func() time.Time
}

// Option configures a UserService
type Option func(*UserService)

// WithPublisher sets the publisher that receives user lifecycle events
func WithPublisher(p event.Publisher) Option {
	return func(s *UserService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides the clock used for age checks and event timestamps
func WithClock(now func() time.Time) Option {
	return func(s *UserService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewUserService creates a new UserService
func NewUserService(repo repository.UserRepository, tel *telemetry.Telemetry, cfg config.UserConfig, opts ...Option) *UserService {
	s := &UserService{
		repo:      repo,
		publisher: event.NopPublisher{},
		telemetry: tel,
		tracer:    tel.Tracer,
		minAge:    cfg.MinAge,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUser validates and stores a new user. The age rule is checked
// before the store is touched.
func (s *UserService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.CreateUser")
	defer span.End()
	start := time.Now()

	span.SetAttributes(attribute.String("operation", "create_user"))

	telemetry.Log(ctx, telemetry.LevelInfo, "Creating user", nil,
		semconv.HTTPRoute("/users"),
		attribute.String("handler", "create_user"),
		attribute.String("operation", "create"),
	)

	profile, err := req.ToProfile()
	if err != nil {
		return nil, s.fail(ctx, span, "create", start, err)
	}

	user, err := entity.NewUser(profile)
	if err != nil {
		return nil, s.fail(ctx, span, "create", start, err)
	}

	if err := s.checkAge(user.BirthDate()); err != nil {
		return nil, s.fail(ctx, span, "create", start, err)
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, s.fail(ctx, span, "create", start, s.storeError(err, "failed to save user"))
	}

	span.SetAttributes(attribute.String("user.id", user.ID().String()))
	telemetry.Log(ctx, telemetry.LevelInfo, "User created successfully", nil,
		semconv.HTTPRoute("/users"),
		attribute.String("handler", "create_user"),
		attribute.String("operation", "create"),
		attribute.String("user.id", user.ID().String()),
	)

	s.publish(ctx, event.TypeUserCreated, user)
	s.recordMetric(ctx, "create", statusSuccess, start)
	return dto.NewUserResponse(user), nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, idStr string) (*dto.UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.GetUserByID")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("operation", "get_user_by_id"),
		attribute.String("user.id", idStr),
	)

	telemetry.Log(ctx, telemetry.LevelInfo, "Fetching user by ID", nil,
		semconv.HTTPRoute("/users/{id}"),
		attribute.String("handler", "get_user"),
		attribute.String("operation", "read"),
		attribute.String("user.id", idStr),
	)

	id, err := parseID(idStr)
	if err != nil {
		return nil, s.fail(ctx, span, "get_by_id", start, err)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, span, "get_by_id", start, s.storeError(err, "failed to get user"))
	}

	s.recordMetric(ctx, "get_by_id", statusSuccess, start)
	return dto.NewUserResponse(user), nil
}

// ReplaceUser overwrites first name, last name, email and birth date of an
// existing user. A non-nil expectedVersion must match the stored version.
func (s *UserService) ReplaceUser(ctx context.Context, idStr string, req dto.ReplaceUserRequest, expectedVersion *int64) (*dto.UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.ReplaceUser")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("operation", "replace_user"),
		attribute.String("user.id", idStr),
	)

	telemetry.Log(ctx, telemetry.LevelInfo, "Replacing user", nil,
		semconv.HTTPRoute("/users/{id}"),
		attribute.String("handler", "replace_user"),
		attribute.String("operation", "update"),
		attribute.String("user.id", idStr),
	)

	id, err := parseID(idStr)
	if err != nil {
		return nil, s.fail(ctx, span, "replace", start, err)
	}

	replacement, err := req.ToReplacement()
	if err != nil {
		return nil, s.fail(ctx, span, "replace", start, err)
	}

	existing, err := s.load(ctx, id, expectedVersion)
	if err != nil {
		return nil, s.fail(ctx, span, "replace", start, err)
	}

	updated := existing.Replace(replacement)
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, s.fail(ctx, span, "replace", start, s.storeError(err, "failed to update user"))
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "User replaced successfully", nil,
		semconv.HTTPRoute("/users/{id}"),
		attribute.String("handler", "replace_user"),
		attribute.String("operation", "update"),
		attribute.String("user.id", updated.ID().String()),
		attribute.Int64("user.version", updated.Version()),
	)

	s.publish(ctx, event.TypeUserUpdated, updated)
	s.recordMetric(ctx, "replace", statusSuccess, start)
	return dto.NewUserResponse(updated), nil
}

// PatchUser overwrites only the fields present in req. A non-nil
// expectedVersion must match the stored version.
func (s *UserService) PatchUser(ctx context.Context, idStr string, req dto.PatchUserRequest, expectedVersion *int64) (*dto.UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.PatchUser")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("operation", "patch_user"),
		attribute.String("user.id", idStr),
	)

	telemetry.Log(ctx, telemetry.LevelInfo, "Patching user", nil,
		semconv.HTTPRoute("/users/{id}"),
		attribute.String("handler", "patch_user"),
		attribute.String("operation", "update"),
		attribute.String("user.id", idStr),
	)

	id, err := parseID(idStr)
	if err != nil {
		return nil, s.fail(ctx, span, "patch", start, err)
	}

	patch, err := req.ToPatch()
	if err != nil {
		return nil, s.fail(ctx, span, "patch", start, err)
	}

	existing, err := s.load(ctx, id, expectedVersion)
	if err != nil {
		return nil, s.fail(ctx, span, "patch", start, err)
	}

	updated := existing.Merge(patch)
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, s.fail(ctx, span, "patch", start, s.storeError(err, "failed to update user"))
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "User patched successfully", nil,
		semconv.HTTPRoute("/users/{id}"),
		attribute.String("handler", "patch_user"),
		attribute.String("operation", "update"),
		attribute.String("user.id", updated.ID().String()),
		attribute.Int64("user.version", updated.Version()),
		attribute.Bool("patch.empty", patch.IsEmpty()),
	)

	s.publish(ctx, event.TypeUserUpdated, updated)
	s.recordMetric(ctx, "patch", statusSuccess, start)
	return dto.NewUserResponse(updated), nil
}

// DeleteUser removes a user by ID
func (s *UserService) DeleteUser(ctx context.Context, idStr string) error {
	ctx, span := s.tracer.Start(ctx, "UserService.DeleteUser")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("operation", "delete_user"),
		attribute.String("user.id", idStr),
	)

	telemetry.Log(ctx, telemetry.LevelInfo, "Deleting user", nil,
		semconv.HTTPRoute("/users/{id}"),
		attribute.String("handler", "delete_user"),
		attribute.String("operation", "delete"),
		attribute.String("user.id", idStr),
	)

	id, err := parseID(idStr)
	if err != nil {
		return s.fail(ctx, span, "delete", start, err)
	}

	existing, err := s.load(ctx, id, nil)
	if err != nil {
		return s.fail(ctx, span, "delete", start, err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.fail(ctx, span, "delete", start, s.storeError(err, "failed to delete user"))
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "User deleted successfully", nil,
		semconv.HTTPRoute("/users/{id}"),
		attribute.String("handler", "delete_user"),
		attribute.String("operation", "delete"),
		attribute.String("user.id", idStr),
	)

	s.publish(ctx, event.TypeUserDeleted, existing)
	s.recordMetric(ctx, "delete", statusSuccess, start)
	return nil
}

// ListUsers returns every user ordered by ID
func (s *UserService) ListUsers(ctx context.Context) ([]*dto.UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.ListUsers")
	defer span.End()
	start := time.Now()

	span.SetAttributes(attribute.String("operation", "list_users"))

	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, "list", start, s.storeError(err, "failed to list users"))
	}

	span.SetAttributes(attribute.Int("users.count", len(users)))
	telemetry.Log(ctx, telemetry.LevelInfo, "Users fetched successfully", nil,
		semconv.HTTPRoute("/users/all"),
		attribute.String("handler", "list_users"),
		attribute.String("operation", "read"),
		attribute.Int("users.count", len(users)),
	)

	s.recordMetric(ctx, "list", statusSuccess, start)
	return dto.NewUserResponses(users), nil
}

// SearchByBirthDate returns users born within the inclusive range given by
// req, ordered by birth date then ID. An inverted range is rejected.
func (s *UserService) SearchByBirthDate(ctx context.Context, req dto.BirthDateRangeRequest) ([]*dto.UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.SearchByBirthDate")
	defer span.End()
	start := time.Now()

	span.SetAttributes(
		attribute.String("operation", "search_by_birth_date"),
		attribute.String("range.start", req.StartDate),
		attribute.String("range.end", req.EndDate),
	)

	from, to, err := req.Dates()
	if err != nil {
		return nil, s.fail(ctx, span, "search", start, err)
	}

	if !validator.IsRangeValid(from.Time(), to.Time()) {
		err := errors.ErrInvalidDateRange.
			WithContext("startDate", from.String()).
			WithContext("endDate", to.String())
		return nil, s.fail(ctx, span, "search", start, err)
	}

	users, err := s.repo.ListByBirthDateBetween(ctx, from, to)
	if err != nil {
		return nil, s.fail(ctx, span, "search", start, s.storeError(err, "failed to search users"))
	}

	span.SetAttributes(attribute.Int("users.count", len(users)))
	telemetry.Log(ctx, telemetry.LevelInfo, "Users searched by birth date", nil,
		semconv.HTTPRoute("/users/searchByDate"),
		attribute.String("handler", "search_users"),
		attribute.String("operation", "read"),
		attribute.Int("users.count", len(users)),
	)

	s.recordMetric(ctx, "search", statusSuccess, start)
	return dto.NewUserResponses(users), nil
}

// checkAge applies the minimum age rule. A user without a birth date is
// never eligible.
func (s *UserService) checkAge(birthDate entity.Date) error {
	if birthDate.IsZero() {
		return errors.ErrAgeIneligible.
			WithContext("field", "birthDate").
			WithContext("minimum_age", s.minAge)
	}
	today := entity.DateOf(s.now())
	if !validator.IsAgeEligible(birthDate.Time(), s.minAge, today.Time()) {
		return errors.ErrAgeIneligible.
			WithContext("field", "birthDate").
			WithContext("minimum_age", s.minAge)
	}
	return nil
}

// load fetches the current user and checks the caller's expected version
func (s *UserService) load(ctx context.Context, id entity.UserID, expectedVersion *int64) (*entity.User, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to get user")
	}
	if expectedVersion != nil && *expectedVersion != existing.Version() {
		return nil, errors.ErrVersionConflict.
			WithContext("id", id.String()).
			WithContext("expected_version", *expectedVersion).
			WithContext("actual_version", existing.Version())
	}
	return existing, nil
}

// storeError passes domain errors from the store through unchanged and
// wraps anything else as a repository error
func (s *UserService) storeError(err error, msg string) error {
	if _, ok := errors.AsDomainError(err); ok {
		return err
	}
	return errors.NewDomainErrorWithCause(errors.ErrCodeRepositoryError, msg, err)
}

// fail records the failure on the span and in metrics, then returns err
func (s *UserService) fail(ctx context.Context, span trace.Span, operation string, start time.Time, err error) error {
	status := statusOf(err)
	span.SetAttributes(attribute.String("error", status))

	if status == statusError {
		telemetry.Log(ctx, telemetry.LevelError, "User operation failed", err,
			attribute.String("operation", operation),
		)
	} else {
		telemetry.Log(ctx, telemetry.LevelWarn, "User operation rejected", err,
			attribute.String("operation", operation),
			attribute.String("status", status),
		)
	}

	s.recordMetric(ctx, operation, status, start)
	return err
}

// publish emits evt and logs, but never returns, a delivery failure
func (s *UserService) publish(ctx context.Context, t event.Type, user *entity.User) {
	evt := event.NewUserEvent(t, user, s.now())
	status := statusSuccess
	if err := s.publisher.Publish(ctx, evt); err != nil {
		status = statusError
		telemetry.Log(ctx, telemetry.LevelWarn, "Failed to publish user event", err,
			attribute.String("event.type", string(t)),
			attribute.String("event.id", evt.ID.String()),
			attribute.String("user.id", user.ID().String()),
		)
	}
	if s.telemetry != nil && s.telemetry.EventCounter != nil {
		s.telemetry.EventCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("direction", "published"),
			attribute.String("type", string(t)),
			attribute.String("status", status),
		))
	}
}

// recordMetric records a metric for user operations
func (s *UserService) recordMetric(ctx context.Context, operation, status string, start time.Time) {
	if s.telemetry == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	if s.telemetry.UserCounter != nil {
		s.telemetry.UserCounter.Add(ctx, 1, attrs)
	}
	if s.telemetry.UserDuration != nil {
		s.telemetry.UserDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func parseID(idStr string) (entity.UserID, error) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || !entity.UserID(id).IsValid() {
		return 0, errors.ErrInvalidID.WithContext("id", idStr)
	}
	return entity.UserID(id), nil
}

func statusOf(err error) string {
	switch {
	case errors.IsValidationError(err):
		return statusValidationError
	case errors.IsUserNotFound(err):
		return statusNotFound
	case errors.IsConflict(err):
		return statusConflict
	default:
		return statusError
	}
}
