package models

import (
	"gorm.io/gorm"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an authentication principal. New accounts start unapproved and
// cannot log in until an admin approves them; admin-created accounts are
// approved immediately.
type User struct {
	gorm.Model

	Username       string `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email          string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	HashedPassword string `gorm:"size:255;not null" json:"-"`
	Role           string `gorm:"size:50;not null;default:'user'" json:"role"`

	IsApproved             bool `gorm:"not null;default:false" json:"is_approved"`
	PasswordResetRequested bool `gorm:"not null;default:false" json:"password_reset_requested"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
