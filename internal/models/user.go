// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User is an account holder. Users own posts, likes, comments and activity logs.
type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"size:255;not null" json:"name"`
	Username        *string    `gorm:"size:30;uniqueIndex" json:"username"`
	Email           string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password        string     `gorm:"not null" json:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	Bio             string     `gorm:"size:500" json:"bio"`
	ProfileImage    string     `gorm:"type:text" json:"profile_image"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Posts           []Post     `gorm:"foreignKey:UserID" json:"posts,omitempty"`
}

// HasVerifiedEmail reports whether the user confirmed their email address.
func (u *User) HasVerifiedEmail() bool {
	return u.EmailVerifiedAt != nil
}

// DisplayUsername returns the username or "" when none was chosen.
func (u *User) DisplayUsername() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}

// Summary is the compact user shape returned by the auth endpoints.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		EmailVerifiedAt: u.EmailVerifiedAt,
	}
}

// UserSummary is the public subset of a User used in auth responses.
type UserSummary struct {
	ID              uint       `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
}
