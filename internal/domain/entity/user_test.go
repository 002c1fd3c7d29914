package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-api/internal/domain/errors"
)

func newTestUser(t *testing.T) *User {
	t.Helper()
	u, err := NewUser(Profile{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.com",
		BirthDate:   NewDate(1990, time.December, 10),
		Address:     "12 St James's Square",
		PhoneNumber: "+44 20 7946 0000",
	})
	require.NoError(t, err)
	u.SetID(7)
	u.SetVersion(3)
	return u
}

func TestNewEmail(t *testing.T) {
	valid := []string{"a@b.io", "first.last@example.com", "x-y_z@sub.domain.org", "  MiXeD@Example.COM "}
	for _, v := range valid {
		_, err := NewEmail(v)
		assert.NoError(t, err, v)
	}

	invalid := []string{"", "plain", "a@b", "a@b.c", "a@b.toolong", "a b@c.com", "@example.com"}
	for _, v := range invalid {
		_, err := NewEmail(v)
		assert.Error(t, err, v)
	}
}

func TestNewEmail_Normalises(t *testing.T) {
	e, err := NewEmail("  Ada@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, Email("ada@example.com"), e)
}

func TestNewName(t *testing.T) {
	n, err := NewName("  Grace ")
	require.NoError(t, err)
	assert.Equal(t, Name("Grace"), n)

	_, err = NewName("   ")
	assert.True(t, errors.IsValidationError(err))

	_, err = NewName(strings.Repeat("x", 101))
	assert.Error(t, err)

	_, err = NewName("J")
	assert.NoError(t, err)
}

func TestNewUser_RejectsInvalidFields(t *testing.T) {
	_, err := NewUser(Profile{FirstName: "", LastName: "B", Email: "a@b.io"})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = NewUser(Profile{FirstName: "A", LastName: "B", Email: "nope"})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestReplace_OverwritesFourFieldsOnly(t *testing.T) {
	u := newTestUser(t)
	r, err := NewReplacement("Grace", "Hopper", "grace@example.com", NewDate(1906, time.December, 9))
	require.NoError(t, err)

	next := u.Replace(r)

	assert.Equal(t, Name("Grace"), next.FirstName())
	assert.Equal(t, Name("Hopper"), next.LastName())
	assert.Equal(t, Email("grace@example.com"), next.Email())
	assert.Equal(t, "1906-12-09", next.BirthDate().String())
	assert.Equal(t, u.Address(), next.Address())
	assert.Equal(t, u.PhoneNumber(), next.PhoneNumber())
	assert.Equal(t, u.ID(), next.ID())
	assert.Equal(t, u.Version(), next.Version())

	// receiver untouched
	assert.Equal(t, Name("Ada"), u.FirstName())
}

func TestNewReplacement_RequiresBirthDate(t *testing.T) {
	_, err := NewReplacement("Grace", "Hopper", "grace@example.com", Date{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingBirthDate)
}

func TestMerge_OnlyFirstName(t *testing.T) {
	u := newTestUser(t)
	name := Name("Augusta")

	next := u.Merge(Patch{FirstName: &name})

	assert.Equal(t, Name("Augusta"), next.FirstName())
	assert.Equal(t, u.LastName(), next.LastName())
	assert.Equal(t, u.Email(), next.Email())
	assert.Equal(t, u.BirthDate(), next.BirthDate())
	assert.Equal(t, u.Address(), next.Address())
	assert.Equal(t, u.PhoneNumber(), next.PhoneNumber())
}

func TestMerge_EmailGoesToEmailSlot(t *testing.T) {
	u := newTestUser(t)
	email := Email("countess@example.com")

	next := u.Merge(Patch{Email: &email})

	assert.Equal(t, email, next.Email())
	assert.Equal(t, Name("Lovelace"), next.LastName())
}

func TestMerge_AllFields(t *testing.T) {
	u := newTestUser(t)
	fn, ln, em := Name("A"), Name("B"), Email("a@b.io")
	bd := NewDate(2001, time.February, 3)
	addr, phone := "", "555"

	next := u.Merge(Patch{FirstName: &fn, LastName: &ln, Email: &em, BirthDate: &bd, Address: &addr, PhoneNumber: &phone})

	assert.Equal(t, fn, next.FirstName())
	assert.Equal(t, ln, next.LastName())
	assert.Equal(t, em, next.Email())
	assert.True(t, bd.Equal(next.BirthDate()))
	assert.Equal(t, "", next.Address())
	assert.Equal(t, "555", next.PhoneNumber())
}

func TestMerge_Idempotent(t *testing.T) {
	u := newTestUser(t)
	name := Name("Augusta")
	phone := "0"
	p := Patch{FirstName: &name, PhoneNumber: &phone}

	once := u.Merge(p)
	twice := once.Merge(p)

	assert.Equal(t, once, twice)
}

func TestPatch_IsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	addr := "x"
	assert.False(t, Patch{Address: &addr}.IsEmpty())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2014-11-01")
	require.NoError(t, err)
	assert.Equal(t, "2014-11-01", d.String())

	_, err = ParseDate("01/11/2014")
	assert.ErrorIs(t, err, errors.ErrInvalidDate)

	_, err = ParseDate("")
	assert.ErrorIs(t, err, errors.ErrInvalidDate)
}

func TestDate_Between(t *testing.T) {
	start := NewDate(1999, time.January, 1)
	end := NewDate(2014, time.November, 1)

	assert.True(t, start.Between(start, end))
	assert.True(t, end.Between(start, end))
	assert.True(t, NewDate(2005, time.June, 6).Between(start, end))
	assert.False(t, NewDate(2014, time.November, 2).Between(start, end))
	assert.False(t, Date{}.Between(start, end))
}

func TestDateOf_DropsClock(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	d := DateOf(time.Date(2020, time.March, 4, 23, 30, 0, 0, loc))
	assert.Equal(t, "2020-03-04", d.String())
	assert.True(t, DateOf(time.Time{}).IsZero())
}
