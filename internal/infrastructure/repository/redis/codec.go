package redis

import (
	"strconv"

	"user-api/internal/domain/entity"
	"user-api/internal/domain/errors"
)

// Hash field names of a stored user
const (
	fieldFirstName   = "first_name"
	fieldLastName    = "last_name"
	fieldEmail       = "email"
	fieldBirthDate   = "birth_date"
	fieldAddress     = "address"
	fieldPhoneNumber = "phone_number"
	fieldVersion     = "version"
)

const secondsPerDay = 24 * 60 * 60

type keySpace struct {
	prefix string
}

func (k keySpace) base() string {
	if k.prefix == "" {
		return "users"
	}
	return k.prefix + ":users"
}

func (k keySpace) seq() string                  { return k.base() + ":seq" }
func (k keySpace) ids() string                  { return k.base() + ":ids" }
func (k keySpace) byBirthDate() string          { return k.base() + ":by_birth_date" }
func (k keySpace) user(id entity.UserID) string { return k.base() + ":" + id.String() }
func (k keySpace) email(e entity.Email) string  { return k.base() + ":email:" + e.String() }

// dayNumber maps a date to its day offset from 1970-01-01
func dayNumber(d entity.Date) int64 {
	return d.Time().Unix() / secondsPerDay
}

// encodeUser flattens every field, writing an empty birth date when unknown
func encodeUser(u *entity.User) map[string]interface{} {
	return map[string]interface{}{
		fieldFirstName:   u.FirstName().String(),
		fieldLastName:    u.LastName().String(),
		fieldEmail:       u.Email().String(),
		fieldBirthDate:   u.BirthDate().String(),
		fieldAddress:     u.Address(),
		fieldPhoneNumber: u.PhoneNumber(),
		fieldVersion:     strconv.FormatInt(u.Version(), 10),
	}
}

func decodeUser(id entity.UserID, fields map[string]string) (*entity.User, error) {
	corrupt := func(msg string, err error) error {
		return errors.NewDomainErrorWithCause(errors.ErrCodeRepositoryError, msg, err).
			WithContext("id", id.String())
	}

	var birthDate entity.Date
	if raw := fields[fieldBirthDate]; raw != "" {
		d, err := entity.ParseDate(raw)
		if err != nil {
			return nil, corrupt("corrupt stored birth date", err)
		}
		birthDate = d
	}

	version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
	if err != nil {
		return nil, corrupt("corrupt stored version", err)
	}

	user, err := entity.NewUser(entity.Profile{
		FirstName:   fields[fieldFirstName],
		LastName:    fields[fieldLastName],
		Email:       fields[fieldEmail],
		BirthDate:   birthDate,
		Address:     fields[fieldAddress],
		PhoneNumber: fields[fieldPhoneNumber],
	})
	if err != nil {
		return nil, corrupt("failed to create user entity from stored data", err)
	}
	user.SetID(id)
	user.SetVersion(version)
	return user, nil
}
