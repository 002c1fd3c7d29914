package entity

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"user-api/internal/domain/errors"
)

// UserID represents a unique identifier for a user
type UserID int64

// IsValid checks if the UserID is valid
func (id UserID) IsValid() bool {
	return id > 0
}

// String returns string representation of UserID
func (id UserID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// Email represents a validated email address
type Email string

var emailRegex = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)

// NewEmail creates a new Email after validation
func NewEmail(email string) (Email, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", errors.NewDomainError(errors.ErrCodeInvalidEmail, "email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return "", errors.ErrInvalidEmail.WithContext("email", email)
	}
	return Email(email), nil
}

// String returns the string representation of the email
func (e Email) String() string {
	return string(e)
}

// IsValid checks if the email is valid
func (e Email) IsValid() bool {
	return emailRegex.MatchString(string(e))
}

// Name represents a first or last name
type Name string

const maxNameLength = 100

// NewName creates a new Name after validation
func NewName(name string) (Name, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.NewDomainError(errors.ErrCodeInvalidName, "name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", errors.NewDomainError(errors.ErrCodeInvalidName, "name cannot exceed 100 characters")
	}
	return Name(name), nil
}

// String returns the string representation of the name
func (n Name) String() string {
	return string(n)
}

// Profile carries the raw attributes of a user before validation
type Profile struct {
	FirstName   string
	LastName    string
	Email       string
	BirthDate   Date
	Address     string
	PhoneNumber string
}

// User represents a user entity in the domain
type User struct {
	id          UserID
	email       Email
	firstName   Name
	lastName    Name
	birthDate   Date
	address     string
	phoneNumber string
	version     int64
}

// NewUser creates a new User with validation
func NewUser(p Profile) (*User, error) {
	firstName, err := NewName(p.FirstName)
	if err != nil {
		return nil, errors.NewDomainErrorWithCause(errors.ErrCodeInvalidUserData, "invalid first name", err).
			WithContext("field", "firstName")
	}

	lastName, err := NewName(p.LastName)
	if err != nil {
		return nil, errors.NewDomainErrorWithCause(errors.ErrCodeInvalidUserData, "invalid last name", err).
			WithContext("field", "lastName")
	}

	email, err := NewEmail(p.Email)
	if err != nil {
		return nil, errors.NewDomainErrorWithCause(errors.ErrCodeInvalidUserData, "invalid email", err).
			WithContext("field", "email")
	}

	return &User{
		email:       email,
		firstName:   firstName,
		lastName:    lastName,
		birthDate:   p.BirthDate,
		address:     p.Address,
		phoneNumber: p.PhoneNumber,
	}, nil
}

// ID returns the user's ID
func (u *User) ID() UserID {
	return u.id
}

// Email returns the user's email
func (u *User) Email() Email {
	return u.email
}

// FirstName returns the user's first name
func (u *User) FirstName() Name {
	return u.firstName
}

// LastName returns the user's last name
func (u *User) LastName() Name {
	return u.lastName
}

// BirthDate returns the user's birth date, zero when unknown
func (u *User) BirthDate() Date {
	return u.birthDate
}

// Address returns the user's address
func (u *User) Address() string {
	return u.address
}

// PhoneNumber returns the user's phone number
func (u *User) PhoneNumber() string {
	return u.phoneNumber
}

// Version returns the optimistic locking counter
func (u *User) Version() int64 {
	return u.version
}

// SetID sets the user's ID (used by repository layer)
func (u *User) SetID(id UserID) {
	u.id = id
}

// SetVersion sets the user's version (used by repository layer)
func (u *User) SetVersion(version int64) {
	u.version = version
}

// Clone returns an independent copy of the user
func (u *User) Clone() *User {
	c := *u
	return &c
}

// Equals checks if two users are equal based on their ID
func (u *User) Equals(other *User) bool {
	if other == nil {
		return false
	}
	return u.id == other.id && u.id.IsValid()
}
