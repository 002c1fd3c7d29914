package postgres

import (
	"context"
	stderrors "errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"user-api/internal/domain/entity"
	"user-api/internal/domain/errors"
	"user-api/internal/domain/repository"
)

// UserRepository implements repository.UserRepository on top of GORM.
// The schema is owned by UserModel and created with AutoMigrate.
type UserRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new GORM backed user repository
func NewUserRepository(db *gorm.DB, tracer trace.Tracer) *UserRepository {
	return &UserRepository{db: db, tracer: tracer}
}

func (r *UserRepository) start(ctx context.Context, name, op string) (context.Context, trace.Span) {
	ctx, span := r.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
		attribute.String("db.collection", "users"),
	)
	return ctx, span
}

// Create inserts a new user row and copies the generated ID back
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	ctx, span := r.start(ctx, "UserRepository.Create", "INSERT")
	defer span.End()

	model := NewUserModelFromEntity(user)
	model.ID = 0
	model.Version = 1

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.ErrUserAlreadyExists.WithContext("email", model.Email)
		}
		span.RecordError(err)
		return errors.NewDomainErrorWithCause(errors.ErrCodeDatabaseError, "failed to create user", err)
	}

	user.SetID(entity.UserID(model.ID))
	user.SetVersion(model.Version)
	span.SetAttributes(attribute.String("user.id", user.ID().String()))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id entity.UserID) (*entity.User, error) {
	ctx, span := r.start(ctx, "UserRepository.GetByID", "SELECT")
	span.SetAttributes(attribute.String("user.id", id.String()))
	defer span.End()

	var model UserModel
	if err := r.db.WithContext(ctx).First(&model, int64(id)).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound.WithContext("id", id.String())
		}
		span.RecordError(err)
		return nil, errors.NewDomainErrorWithCause(errors.ErrCodeDatabaseError, "failed to get user by id", err)
	}

	return r.toEntity(&model)
}

// List retrieves all users ordered by ID
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	ctx, span := r.start(ctx, "UserRepository.List", "SELECT")
	defer span.End()

	var models []UserModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		span.RecordError(err)
		return nil, errors.NewDomainErrorWithCause(errors.ErrCodeDatabaseError, "failed to list users", err)
	}

	span.SetAttributes(attribute.Int("users.count", len(models)))
	return r.toEntities(models)
}

// ListByBirthDateBetween retrieves users born within [start, end]. Rows with
// a NULL birth date never satisfy BETWEEN.
func (r *UserRepository) ListByBirthDateBetween(ctx context.Context, start, end entity.Date) ([]*entity.User, error) {
	ctx, span := r.start(ctx, "UserRepository.ListByBirthDateBetween", "SELECT")
	span.SetAttributes(
		attribute.String("range.start", start.String()),
		attribute.String("range.end", end.String()),
	)
	defer span.End()

	var models []UserModel
	err := r.db.WithContext(ctx).
		Where("birth_date BETWEEN ? AND ?", start.Time(), end.Time()).
		Order("birth_date ASC, id ASC").
		Find(&models).Error
	if err != nil {
		span.RecordError(err)
		return nil, errors.NewDomainErrorWithCause(errors.ErrCodeDatabaseError, "failed to search users by birth date", err)
	}

	span.SetAttributes(attribute.Int("users.count", len(models)))
	return r.toEntities(models)
}

// Update writes every mutable column when the stored version still equals
// user.Version(), bumping the version in the same statement
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	ctx, span := r.start(ctx, "UserRepository.Update", "UPDATE")
	span.SetAttributes(
		attribute.String("user.id", user.ID().String()),
		attribute.Int64("user.version", user.Version()),
	)
	defer span.End()

	model := NewUserModelFromEntity(user)
	db := r.db.WithContext(ctx)

	// A map keeps empty strings and NULL birth dates in the SET clause
	res := db.Model(&UserModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]interface{}{
			"first_name":   model.FirstName,
			"last_name":    model.LastName,
			"email":        model.Email,
			"birth_date":   model.BirthDate,
			"address":      model.Address,
			"phone_number": model.PhoneNumber,
			"version":      gorm.Expr("version + 1"),
		})
	if err := res.Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.ErrUserAlreadyExists.WithContext("email", model.Email)
		}
		span.RecordError(err)
		return errors.NewDomainErrorWithCause(errors.ErrCodeDatabaseError, "failed to update user", err)
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := db.Model(&UserModel{}).Where("id = ?", model.ID).Count(&count).Error; err != nil {
			span.RecordError(err)
			return errors.NewDomainErrorWithCause(errors.ErrCodeDatabaseError, "failed to update user", err)
		}
		if count == 0 {
			return errors.ErrUserNotFound.WithContext("id", user.ID().String())
		}
		return errors.ErrVersionConflict.
			WithContext("id", user.ID().String()).
			WithContext("expected_version", user.Version())
	}

	user.SetVersion(model.Version + 1)
	return nil
}

// Delete removes a user by ID
func (r *UserRepository) Delete(ctx context.Context, id entity.UserID) error {
	ctx, span := r.start(ctx, "UserRepository.Delete", "DELETE")
	span.SetAttributes(attribute.String("user.id", id.String()))
	defer span.End()

	res := r.db.WithContext(ctx).Delete(&UserModel{}, int64(id))
	if err := res.Error; err != nil {
		span.RecordError(err)
		return errors.NewDomainErrorWithCause(errors.ErrCodeDatabaseError, "failed to delete user", err)
	}
	if res.RowsAffected == 0 {
		return errors.ErrUserNotFound.WithContext("id", id.String())
	}
	return nil
}

func (r *UserRepository) toEntity(model *UserModel) (*entity.User, error) {
	user, err := model.ToEntity()
	if err != nil {
		return nil, errors.NewDomainErrorWithCause(errors.ErrCodeRepositoryError, "failed to create user entity from db data", err).
			WithContext("id", model.ID)
	}
	return user, nil
}

func (r *UserRepository) toEntities(models []UserModel) ([]*entity.User, error) {
	users := make([]*entity.User, 0, len(models))
	for i := range models {
		user, err := r.toEntity(&models[i])
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}
