package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-api/internal/domain/entity"
	"user-api/internal/domain/errors"
)

func TestUserModel_FromEntity(t *testing.T) {
	user, err := entity.NewUser(entity.Profile{
		FirstName:   "Ann",
		LastName:    "Lee",
		Email:       "Ann@Example.com",
		BirthDate:   entity.NewDate(1990, time.April, 1),
		Address:     "Main St 1",
		PhoneNumber: "+100",
	})
	require.NoError(t, err)
	user.SetID(12)
	user.SetVersion(3)

	model := NewUserModelFromEntity(user)

	assert.Equal(t, int64(12), model.ID)
	assert.Equal(t, "ann@example.com", model.Email)
	require.NotNil(t, model.BirthDate)
	assert.Equal(t, "1990-04-01", model.BirthDate.Format(entity.DateLayout))
	assert.Equal(t, int64(3), model.Version)
	assert.Equal(t, "users", model.TableName())
}

func TestUserModel_FromEntityWithoutBirthDate(t *testing.T) {
	user, err := entity.NewUser(entity.Profile{FirstName: "Ann", LastName: "Lee", Email: "a@example.com"})
	require.NoError(t, err)

	model := NewUserModelFromEntity(user)
	assert.Nil(t, model.BirthDate)
	assert.Zero(t, model.ID)
}

func TestUserModel_ToEntity(t *testing.T) {
	// pgx returns DATE columns as midnight UTC
	bd := time.Date(1985, time.December, 24, 0, 0, 0, 0, time.UTC)
	model := &UserModel{
		ID:          5,
		FirstName:   "Bea",
		LastName:    "Kim",
		Email:       "bea@example.com",
		BirthDate:   &bd,
		Address:     "Elm St 2",
		PhoneNumber: "+200",
		Version:     7,
	}

	user, err := model.ToEntity()
	require.NoError(t, err)

	assert.Equal(t, entity.UserID(5), user.ID())
	assert.Equal(t, entity.NewDate(1985, time.December, 24), user.BirthDate())
	assert.Equal(t, "Elm St 2", user.Address())
	assert.Equal(t, "+200", user.PhoneNumber())
	assert.Equal(t, int64(7), user.Version())
}

func TestUserModel_ToEntityRejectsCorruptRow(t *testing.T) {
	repo := &UserRepository{}
	_, err := repo.toEntity(&UserModel{ID: 1, FirstName: "", LastName: "Kim", Email: "bea@example.com"})

	domainErr, ok := errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeRepositoryError, domainErr.Code)
	assert.False(t, errors.IsValidationError(err))
}
