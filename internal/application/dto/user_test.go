package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-api/internal/domain/entity"
	"user-api/internal/domain/errors"
)

func strPtr(s string) *string { return &s }

func TestCreateUserRequest_ToProfile(t *testing.T) {
	req := CreateUserRequest{
		Email:     "a@b.io",
		FirstName: "Ann",
		LastName:  "Lee",
		BirthDate: strPtr("2000-01-31"),
		Address:   "Main St 1",
	}

	p, err := req.ToProfile()
	require.NoError(t, err)
	assert.Equal(t, entity.NewDate(2000, time.January, 31), p.BirthDate)
	assert.Equal(t, "Main St 1", p.Address)

	req.BirthDate = nil
	p, err = req.ToProfile()
	require.NoError(t, err)
	assert.True(t, p.BirthDate.IsZero())

	req.BirthDate = strPtr("31/01/2000")
	_, err = req.ToProfile()
	assert.ErrorIs(t, err, errors.ErrInvalidDate)
}

func TestReplaceUserRequest_RequiresBirthDate(t *testing.T) {
	req := ReplaceUserRequest{Email: "a@b.io", FirstName: "Ann", LastName: "Lee"}

	_, err := req.ToReplacement()
	assert.ErrorIs(t, err, errors.ErrMissingBirthDate)

	req.BirthDate = strPtr("1990-05-05")
	r, err := req.ToReplacement()
	require.NoError(t, err)
	assert.Equal(t, entity.Email("a@b.io"), r.Email)
}

func TestPatchUserRequest_NullFieldsAreAbsent(t *testing.T) {
	var req PatchUserRequest
	require.NoError(t, json.Unmarshal([]byte(`{"firstName":"Bo","lastName":null,"email":"NEW@x.io"}`), &req))

	p, err := req.ToPatch()
	require.NoError(t, err)
	require.NotNil(t, p.FirstName)
	assert.Equal(t, entity.Name("Bo"), *p.FirstName)
	assert.Nil(t, p.LastName)
	require.NotNil(t, p.Email)
	assert.Equal(t, entity.Email("new@x.io"), *p.Email)
	assert.Nil(t, p.BirthDate)
	assert.Nil(t, p.Address)
}

func TestPatchUserRequest_ValidatesPresentFields(t *testing.T) {
	tests := []struct {
		name  string
		req   PatchUserRequest
		field string
	}{
		{"blank first name", PatchUserRequest{FirstName: strPtr("  ")}, "firstName"},
		{"blank last name", PatchUserRequest{LastName: strPtr("")}, "lastName"},
		{"bad email", PatchUserRequest{Email: strPtr("nope")}, "email"},
		{"bad birth date", PatchUserRequest{BirthDate: strPtr("2000-13-01")}, "birthDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.req.ToPatch()
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
			domainErr, ok := errors.AsDomainError(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, domainErr.Context["field"])
		})
	}
}

func TestBirthDateRangeRequest_Dates(t *testing.T) {
	start, end, err := BirthDateRangeRequest{StartDate: "1990-01-01", EndDate: "1999-12-31"}.Dates()
	require.NoError(t, err)
	assert.Equal(t, entity.NewDate(1990, time.January, 1), start)
	assert.Equal(t, entity.NewDate(1999, time.December, 31), end)

	_, _, err = BirthDateRangeRequest{EndDate: "1999-12-31"}.Dates()
	domainErr, ok := errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInvalidDate, domainErr.Code)
	assert.Equal(t, "startDate", domainErr.Context["field"])

	_, _, err = BirthDateRangeRequest{StartDate: "1990-01-01", EndDate: "soon"}.Dates()
	domainErr, ok = errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, "endDate", domainErr.Context["field"])
}

func TestNewUserResponse_JSONShape(t *testing.T) {
	user, err := entity.NewUser(entity.Profile{
		FirstName: "Ann",
		LastName:  "Lee",
		Email:     "a@b.io",
		BirthDate: entity.NewDate(2000, time.January, 1),
	})
	require.NoError(t, err)
	user.SetID(7)
	user.SetVersion(3)

	b, err := json.Marshal(NewUserResponse(user))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":7,"email":"a@b.io","firstName":"Ann","lastName":"Lee","birthDate":"2000-01-01","version":3}`,
		string(b))
}

func TestNewUserResponses_PreservesOrder(t *testing.T) {
	var users []*entity.User
	for _, id := range []entity.UserID{3, 1, 2} {
		u, err := entity.NewUser(entity.Profile{FirstName: "A", LastName: "B", Email: "a@b.io"})
		require.NoError(t, err)
		u.SetID(id)
		users = append(users, u)
	}

	out := NewUserResponses(users)
	require.Len(t, out, 3)
	assert.Equal(t, []int64{3, 1, 2}, []int64{out[0].ID, out[1].ID, out[2].ID})
	assert.Empty(t, out[0].BirthDate)
}
