package postgres

import (
	"time"

	"user-api/internal/domain/entity"
)

// UserModel represents the GORM model for users table
type UserModel struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	FirstName   string     `gorm:"size:100;not null"`
	LastName    string     `gorm:"size:100;not null"`
	Email       string     `gorm:"size:255;not null;uniqueIndex"`
	BirthDate   *time.Time `gorm:"type:date;index"`
	Address     string     `gorm:"size:255;not null;default:''"`
	PhoneNumber string     `gorm:"size:50;not null;default:''"`
	Version     int64      `gorm:"not null;default:1"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToEntity converts GORM model to domain entity
func (u *UserModel) ToEntity() (*entity.User, error) {
	var birthDate entity.Date
	if u.BirthDate != nil {
		birthDate = entity.DateOf(*u.BirthDate)
	}

	user, err := entity.NewUser(entity.Profile{
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		BirthDate:   birthDate,
		Address:     u.Address,
		PhoneNumber: u.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}
	user.SetID(entity.UserID(u.ID))
	user.SetVersion(u.Version)
	return user, nil
}

// FromEntity converts domain entity to GORM model
func (u *UserModel) FromEntity(user *entity.User) {
	if user.ID().IsValid() {
		u.ID = int64(user.ID())
	}
	u.FirstName = user.FirstName().String()
	u.LastName = user.LastName().String()
	u.Email = user.Email().String()
	u.BirthDate = birthDateColumn(user.BirthDate())
	u.Address = user.Address()
	u.PhoneNumber = user.PhoneNumber()
	u.Version = user.Version()
}

// NewUserModelFromEntity creates a new UserModel from domain entity
func NewUserModelFromEntity(user *entity.User) *UserModel {
	model := &UserModel{}
	model.FromEntity(user)
	return model
}

func birthDateColumn(d entity.Date) *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time()
	return &t
}
