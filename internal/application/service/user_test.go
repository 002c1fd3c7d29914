package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"user-api/internal/application/dto"
	"user-api/internal/domain/entity"
	"user-api/internal/domain/errors"
	"user-api/internal/domain/event"
	eventmocks "user-api/internal/domain/event/mocks"
	"user-api/internal/domain/repository"
	repomocks "user-api/internal/domain/repository/mocks"
	"user-api/internal/infrastructure/config"
	"user-api/internal/infrastructure/repository/memory"
	"user-api/internal/infrastructure/telemetry"
)

var fixedNow = time.Date(2026, time.June, 15, 10, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func newTestService(t *testing.T, repo repository.UserRepository, opts ...Option) *UserService {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewUserService(repo, telemetry.NewNoop(), config.UserConfig{MinAge: 18}, opts...)
}

func validCreate(email string) dto.CreateUserRequest {
	return dto.CreateUserRequest{
		Email:       email,
		FirstName:   "Ann",
		LastName:    "Lee",
		BirthDate:   strPtr("1990-04-01"),
		Address:     "Main St 1",
		PhoneNumber: "+100",
	}
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	domainErr, ok := errors.AsDomainError(err)
	require.True(t, ok, "expected a domain error, got %v", err)
	assert.Equal(t, code, domainErr.Code)
}

func TestCreateUser_IneligibleNeverReachesStore(t *testing.T) {
	tests := []struct {
		name      string
		birthDate *string
	}{
		{"one day short of eighteen", strPtr("2008-06-16")},
		{"ten years old", strPtr("2016-01-01")},
		{"missing birth date", nil},
		{"blank birth date", strPtr("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := repomocks.NewMockUserRepository(ctrl)
			publisher := eventmocks.NewMockPublisher(ctrl)
			svc := newTestService(t, repo, WithPublisher(publisher))

			req := validCreate("young@example.com")
			req.BirthDate = tt.birthDate

			_, err := svc.CreateUser(context.Background(), req)
			requireCode(t, err, errors.ErrCodeAgeIneligible)
			assert.True(t, errors.IsValidationError(err))
		})
	}
}

func TestCreateUser_ExactlyMinimumAge(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := repomocks.NewMockUserRepository(ctrl)
	publisher := eventmocks.NewMockPublisher(ctrl)
	svc := newTestService(t, repo, WithPublisher(publisher))

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *entity.User) error {
			assert.Equal(t, "2008-06-15", u.BirthDate().String())
			u.SetID(1)
			u.SetVersion(1)
			return nil
		})
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evt event.UserEvent) error {
			assert.Equal(t, event.TypeUserCreated, evt.Type)
			assert.Equal(t, entity.UserID(1), evt.UserID)
			assert.Equal(t, int64(1), evt.Version)
			assert.Equal(t, fixedNow, evt.OccurredAt)
			return nil
		})

	req := validCreate("adult@example.com")
	req.BirthDate = strPtr("2008-06-15")

	resp, err := svc.CreateUser(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, int64(1), resp.Version)
	assert.Equal(t, "Main St 1", resp.Address)
}

func TestCreateUser_InvalidFieldsNeverReachStore(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.CreateUserRequest)
	}{
		{"blank first name", func(r *dto.CreateUserRequest) { r.FirstName = " " }},
		{"blank last name", func(r *dto.CreateUserRequest) { r.LastName = "" }},
		{"bad email", func(r *dto.CreateUserRequest) { r.Email = "not-an-email" }},
		{"bad date", func(r *dto.CreateUserRequest) { r.BirthDate = strPtr("1990-02-30") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := newTestService(t, repomocks.NewMockUserRepository(ctrl))

			req := validCreate("a@example.com")
			tt.mutate(&req)

			_, err := svc.CreateUser(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
		})
	}
}

func TestCreateUser_PublishFailureDoesNotFailRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := eventmocks.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(fmt.Errorf("broker down"))

	svc := newTestService(t, memory.NewUserRepository(), WithPublisher(publisher))

	resp, err := svc.CreateUser(context.Background(), validCreate("a@example.com"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.ID)
}

func TestCreateUser_StoreFailureIsRepositoryError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := repomocks.NewMockUserRepository(ctrl)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(fmt.Errorf("connection reset"))

	svc := newTestService(t, repo)

	_, err := svc.CreateUser(context.Background(), validCreate("a@example.com"))
	requireCode(t, err, errors.ErrCodeRepositoryError)
	assert.ErrorContains(t, err, "connection reset")
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	svc := newTestService(t, memory.NewUserRepository())

	_, err := svc.CreateUser(context.Background(), validCreate("dup@example.com"))
	require.NoError(t, err)

	_, err = svc.CreateUser(context.Background(), validCreate("DUP@example.com"))
	requireCode(t, err, errors.ErrCodeUserAlreadyExists)
}

func TestGetUserByID_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := newTestService(t, repomocks.NewMockUserRepository(ctrl))

	for _, id := range []string{"abc", "0", "-3", "", "1.5"} {
		_, err := svc.GetUserByID(context.Background(), id)
		requireCode(t, err, errors.ErrCodeInvalidID)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	svc := newTestService(t, memory.NewUserRepository())

	_, err := svc.GetUserByID(context.Background(), "42")
	requireCode(t, err, errors.ErrCodeUserNotFound)
}

func TestReplaceUser_OverwritesFourFieldsOnly(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewUserRepository())

	created, err := svc.CreateUser(ctx, validCreate("a@example.com"))
	require.NoError(t, err)

	resp, err := svc.ReplaceUser(ctx, "1", dto.ReplaceUserRequest{
		Email:     "b@example.com",
		FirstName: "Bea",
		LastName:  "Kim",
		BirthDate: strPtr("1985-12-24"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "b@example.com", resp.Email)
	assert.Equal(t, "Bea", resp.FirstName)
	assert.Equal(t, "Kim", resp.LastName)
	assert.Equal(t, "1985-12-24", resp.BirthDate)
	assert.Equal(t, created.Address, resp.Address)
	assert.Equal(t, created.PhoneNumber, resp.PhoneNumber)
	assert.Equal(t, created.Version+1, resp.Version)
}

func TestReplaceUser_ValidatesBeforeLookup(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := newTestService(t, repomocks.NewMockUserRepository(ctrl))

	_, err := svc.ReplaceUser(context.Background(), "1", dto.ReplaceUserRequest{
		Email:     "b@example.com",
		FirstName: "Bea",
		LastName:  "Kim",
	}, nil)
	requireCode(t, err, errors.ErrCodeMissingBirthDate)

	_, err = svc.ReplaceUser(context.Background(), "x", dto.ReplaceUserRequest{}, nil)
	requireCode(t, err, errors.ErrCodeInvalidID)
}

func TestReplaceUser_NotFound(t *testing.T) {
	svc := newTestService(t, memory.NewUserRepository())

	_, err := svc.ReplaceUser(context.Background(), "9", dto.ReplaceUserRequest{
		Email:     "b@example.com",
		FirstName: "Bea",
		LastName:  "Kim",
		BirthDate: strPtr("1985-12-24"),
	}, nil)
	requireCode(t, err, errors.ErrCodeUserNotFound)
}

func TestPatchUser_OnlyFirstName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewUserRepository())

	created, err := svc.CreateUser(ctx, validCreate("a@example.com"))
	require.NoError(t, err)

	resp, err := svc.PatchUser(ctx, "1", dto.PatchUserRequest{FirstName: strPtr("Zoe")}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Zoe", resp.FirstName)
	assert.Equal(t, created.LastName, resp.LastName)
	assert.Equal(t, created.Email, resp.Email)
	assert.Equal(t, created.BirthDate, resp.BirthDate)
	assert.Equal(t, created.Address, resp.Address)
	assert.Equal(t, created.PhoneNumber, resp.PhoneNumber)
}

func TestPatchUser_EmailLandsInEmailField(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewUserRepository())

	_, err := svc.CreateUser(ctx, validCreate("a@example.com"))
	require.NoError(t, err)

	resp, err := svc.PatchUser(ctx, "1", dto.PatchUserRequest{Email: strPtr("new@example.com")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", resp.Email)
	assert.Equal(t, "Lee", resp.LastName)
}

func TestPatchUser_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewUserRepository())

	_, err := svc.CreateUser(ctx, validCreate("a@example.com"))
	require.NoError(t, err)

	patch := dto.PatchUserRequest{LastName: strPtr("Park"), Address: strPtr("Elm St 2")}
	first, err := svc.PatchUser(ctx, "1", patch, nil)
	require.NoError(t, err)
	second, err := svc.PatchUser(ctx, "1", patch, nil)
	require.NoError(t, err)

	first.Version, second.Version = 0, 0
	assert.Equal(t, first, second)
}

func TestPatchUser_StaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewUserRepository())

	_, err := svc.CreateUser(ctx, validCreate("a@example.com"))
	require.NoError(t, err)

	_, err = svc.PatchUser(ctx, "1", dto.PatchUserRequest{FirstName: strPtr("Zoe")}, int64Ptr(1))
	require.NoError(t, err)

	_, err = svc.PatchUser(ctx, "1", dto.PatchUserRequest{FirstName: strPtr("Max")}, int64Ptr(1))
	requireCode(t, err, errors.ErrCodeVersionConflict)

	current, err := svc.GetUserByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Zoe", current.FirstName)
	assert.Equal(t, int64(2), current.Version)
}

func TestPatchUser_StoreConflictSurfaces(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := repomocks.NewMockUserRepository(ctrl)
	svc := newTestService(t, repo)

	stored, err := entity.NewUser(entity.Profile{FirstName: "Ann", LastName: "Lee", Email: "a@example.com"})
	require.NoError(t, err)
	stored.SetID(1)
	stored.SetVersion(4)

	gomock.InOrder(
		repo.EXPECT().GetByID(gomock.Any(), entity.UserID(1)).Return(stored, nil),
		repo.EXPECT().Update(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u *entity.User) error {
				assert.Equal(t, int64(4), u.Version())
				assert.Equal(t, entity.Name("Zoe"), u.FirstName())
				return errors.ErrVersionConflict
			}),
	)

	_, err = svc.PatchUser(context.Background(), "1", dto.PatchUserRequest{FirstName: strPtr("Zoe")}, nil)
	requireCode(t, err, errors.ErrCodeVersionConflict)
	assert.Equal(t, entity.Name("Ann"), stored.FirstName())
}

func TestDeleteUser_Twice(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	publisher := eventmocks.NewMockPublisher(ctrl)
	svc := newTestService(t, memory.NewUserRepository(), WithPublisher(publisher))

	var published []event.Type
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evt event.UserEvent) error {
			published = append(published, evt.Type)
			return nil
		}).Times(2)

	_, err := svc.CreateUser(ctx, validCreate("a@example.com"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, "1"))
	requireCode(t, svc.DeleteUser(ctx, "1"), errors.ErrCodeUserNotFound)

	_, err = svc.GetUserByID(ctx, "1")
	requireCode(t, err, errors.ErrCodeUserNotFound)
	assert.Equal(t, []event.Type{event.TypeUserCreated, event.TypeUserDeleted}, published)
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewUserRepository())

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	for _, email := range []string{"c@example.com", "a@example.com", "b@example.com"} {
		_, err := svc.CreateUser(ctx, validCreate(email))
		require.NoError(t, err)
	}

	users, err = svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	for i, u := range users {
		assert.Equal(t, int64(i+1), u.ID)
	}
}

func TestSearchByBirthDate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewUserRepository())

	seed := []struct{ email, birthDate string }{
		{"a@example.com", "1995-06-01"},
		{"b@example.com", "1990-01-01"},
		{"c@example.com", "1999-12-31"},
		{"d@example.com", "1980-03-03"},
		{"e@example.com", "1995-06-01"},
	}
	for _, s := range seed {
		req := validCreate(s.email)
		req.BirthDate = strPtr(s.birthDate)
		_, err := svc.CreateUser(ctx, req)
		require.NoError(t, err)
	}

	users, err := svc.SearchByBirthDate(ctx, dto.BirthDateRangeRequest{StartDate: "1990-01-01", EndDate: "1999-12-31"})
	require.NoError(t, err)

	var emails []string
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	assert.Equal(t, []string{"b@example.com", "a@example.com", "e@example.com", "c@example.com"}, emails)

	users, err = svc.SearchByBirthDate(ctx, dto.BirthDateRangeRequest{StartDate: "2000-01-01", EndDate: "2000-01-01"})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestSearchByBirthDate_RejectsBadInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := newTestService(t, repomocks.NewMockUserRepository(ctrl))
	ctx := context.Background()

	_, err := svc.SearchByBirthDate(ctx, dto.BirthDateRangeRequest{StartDate: "2000-01-02", EndDate: "2000-01-01"})
	requireCode(t, err, errors.ErrCodeInvalidDateRange)

	_, err = svc.SearchByBirthDate(ctx, dto.BirthDateRangeRequest{EndDate: "2000-01-01"})
	requireCode(t, err, errors.ErrCodeInvalidDate)

	_, err = svc.SearchByBirthDate(ctx, dto.BirthDateRangeRequest{StartDate: "2000-01-01", EndDate: "01/02/2000"})
	requireCode(t, err, errors.ErrCodeInvalidDate)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, statusValidationError, statusOf(errors.ErrInvalidID))
	assert.Equal(t, statusNotFound, statusOf(errors.ErrUserNotFound))
	assert.Equal(t, statusConflict, statusOf(errors.ErrUserAlreadyExists))
	assert.Equal(t, statusConflict, statusOf(errors.ErrVersionConflict))
	assert.Equal(t, statusError, statusOf(fmt.Errorf("boom")))
}
