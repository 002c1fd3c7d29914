package entity

import "user-api/internal/domain/errors"

// Replacement is the validated payload of a full update. It always carries
// all four required fields.
type Replacement struct {
	FirstName Name
	LastName  Name
	Email     Email
	BirthDate Date
}

// NewReplacement validates the four fields of a full update
func NewReplacement(firstName, lastName, email string, birthDate Date) (Replacement, error) {
	fn, err := NewName(firstName)
	if err != nil {
		return Replacement{}, errors.NewDomainErrorWithCause(errors.ErrCodeInvalidUserData, "invalid first name", err).
			WithContext("field", "firstName")
	}
	ln, err := NewName(lastName)
	if err != nil {
		return Replacement{}, errors.NewDomainErrorWithCause(errors.ErrCodeInvalidUserData, "invalid last name", err).
			WithContext("field", "lastName")
	}
	e, err := NewEmail(email)
	if err != nil {
		return Replacement{}, errors.NewDomainErrorWithCause(errors.ErrCodeInvalidUserData, "invalid email", err).
			WithContext("field", "email")
	}
	if birthDate.IsZero() {
		return Replacement{}, errors.ErrMissingBirthDate.WithContext("field", "birthDate")
	}
	return Replacement{FirstName: fn, LastName: ln, Email: e, BirthDate: birthDate}, nil
}

// Patch is the validated payload of a partial update. A nil field is left
// unchanged by Merge.
type Patch struct {
	FirstName   *Name
	LastName    *Name
	Email       *Email
	BirthDate   *Date
	Address     *string
	PhoneNumber *string
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.BirthDate == nil && p.Address == nil && p.PhoneNumber == nil
}

// Replace returns a copy of u with first name, last name, email and birth
// date overwritten. Address and phone number are kept.
func (u *User) Replace(r Replacement) *User {
	next := u.Clone()
	next.firstName = r.FirstName
	next.lastName = r.LastName
	next.email = r.Email
	next.birthDate = r.BirthDate
	return next
}

// Merge returns a copy of u with every field present in p overwritten
func (u *User) Merge(p Patch) *User {
	next := u.Clone()
	if p.FirstName != nil {
		next.firstName = *p.FirstName
	}
	if p.LastName != nil {
		next.lastName = *p.LastName
	}
	if p.Email != nil {
		next.email = *p.Email
	}
	if p.BirthDate != nil {
		next.birthDate = *p.BirthDate
	}
	if p.Address != nil {
		next.address = *p.Address
	}
	if p.PhoneNumber != nil {
		next.phoneNumber = *p.PhoneNumber
	}
	return next
}
