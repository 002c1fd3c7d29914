package dto

import (
	"strings"

	"user-api/internal/domain/entity"
	"user-api/internal/domain/errors"
)

// CreateUserRequest represents the request to create a user
type CreateUserRequest struct {
	Email       string  `json:"email"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	BirthDate   *string `json:"birthDate"`
	Address     string  `json:"address"`
	PhoneNumber string  `json:"phoneNumber"`
}

// ToProfile converts the request into an entity profile. Only the birth
// date is checked here; names and email are validated by entity.NewUser.
func (r CreateUserRequest) ToProfile() (entity.Profile, error) {
	birthDate, err := parseOptionalDate(r.BirthDate, "birthDate")
	if err != nil {
		return entity.Profile{}, err
	}
	return entity.Profile{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		BirthDate:   birthDate,
		Address:     r.Address,
		PhoneNumber: r.PhoneNumber,
	}, nil
}

// ReplaceUserRequest represents the request to fully update a user.
// All four fields are required.
type ReplaceUserRequest struct {
	Email     string  `json:"email"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	BirthDate *string `json:"birthDate"`
}

// ToReplacement validates the request and converts it to an entity.Replacement
func (r ReplaceUserRequest) ToReplacement() (entity.Replacement, error) {
	birthDate, err := parseOptionalDate(r.BirthDate, "birthDate")
	if err != nil {
		return entity.Replacement{}, err
	}
	return entity.NewReplacement(r.FirstName, r.LastName, r.Email, birthDate)
}

// PatchUserRequest represents the request to partially update a user.
// A nil field, whether absent or JSON null, leaves the stored value as is.
type PatchUserRequest struct {
	Email       *string `json:"email"`
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	BirthDate   *string `json:"birthDate"`
	Address     *string `json:"address"`
	PhoneNumber *string `json:"phoneNumber"`
}

// ToPatch validates the present fields and converts them to an entity.Patch
func (r PatchUserRequest) ToPatch() (entity.Patch, error) {
	var p entity.Patch

	if r.FirstName != nil {
		n, err := entity.NewName(*r.FirstName)
		if err != nil {
			return entity.Patch{}, errors.NewDomainErrorWithCause(errors.ErrCodeInvalidUserData, "invalid first name", err).
				WithContext("field", "firstName")
		}
		p.FirstName = &n
	}
	if r.LastName != nil {
		n, err := entity.NewName(*r.LastName)
		if err != nil {
			return entity.Patch{}, errors.NewDomainErrorWithCause(errors.ErrCodeInvalidUserData, "invalid last name", err).
				WithContext("field", "lastName")
		}
		p.LastName = &n
	}
	if r.Email != nil {
		e, err := entity.NewEmail(*r.Email)
		if err != nil {
			return entity.Patch{}, errors.NewDomainErrorWithCause(errors.ErrCodeInvalidUserData, "invalid email", err).
				WithContext("field", "email")
		}
		p.Email = &e
	}
	if r.BirthDate != nil {
		d, err := parseDate(*r.BirthDate, "birthDate")
		if err != nil {
			return entity.Patch{}, err
		}
		p.BirthDate = &d
	}
	p.Address = r.Address
	p.PhoneNumber = r.PhoneNumber

	return p, nil
}

// BirthDateRangeRequest carries the raw query parameters of a range search
type BirthDateRangeRequest struct {
	StartDate string
	EndDate   string
}

// Dates parses both bounds. Either one missing or malformed is an
// INVALID_DATE error naming the offending parameter.
func (r BirthDateRangeRequest) Dates() (entity.Date, entity.Date, error) {
	start, err := parseDate(r.StartDate, "startDate")
	if err != nil {
		return entity.Date{}, entity.Date{}, err
	}
	end, err := parseDate(r.EndDate, "endDate")
	if err != nil {
		return entity.Date{}, entity.Date{}, err
	}
	return start, end, nil
}

func parseOptionalDate(s *string, field string) (entity.Date, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return entity.Date{}, nil
	}
	return parseDate(*s, field)
}

func parseDate(s, field string) (entity.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return entity.Date{}, errors.NewDomainError(errors.ErrCodeInvalidDate, field+" is required").
			WithContext("field", field)
	}
	d, err := entity.ParseDate(s)
	if err != nil {
		if domainErr, ok := errors.AsDomainError(err); ok {
			return entity.Date{}, domainErr.WithContext("field", field)
		}
		return entity.Date{}, err
	}
	return d, nil
}

// UserResponse represents the response when returning user data
type UserResponse struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	BirthDate   string `json:"birthDate,omitempty"`
	Address     string `json:"address,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Version     int64  `json:"version"`
}

// NewUserResponse creates a UserResponse from a domain entity
func NewUserResponse(user *entity.User) *UserResponse {
	resp := &UserResponse{
		ID:          int64(user.ID()),
		Email:       user.Email().String(),
		FirstName:   user.FirstName().String(),
		LastName:    user.LastName().String(),
		Address:     user.Address(),
		PhoneNumber: user.PhoneNumber(),
		Version:     user.Version(),
	}
	if bd := user.BirthDate(); !bd.IsZero() {
		resp.BirthDate = bd.String()
	}
	return resp
}

// NewUserResponses maps a slice of entities, preserving order
func NewUserResponses(users []*entity.User) []*UserResponse {
	out := make([]*UserResponse, len(users))
	for i, user := range users {
		out[i] = NewUserResponse(user)
	}
	return out
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}
