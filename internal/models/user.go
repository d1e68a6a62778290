// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents an account. The relationship id lists are hydrated by the
// repository from the relations and thread_participants tables.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"_id"`
	Name      string    `gorm:"not null;index" json:"name"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Friends  []uint `gorm:"-" json:"friends"`
	Pending  []uint `gorm:"-" json:"pending"`
	Invites  []uint `gorm:"-" json:"invites"`
	Messages []uint `gorm:"-" json:"messages"`
}

// UserSummary is the public projection of a user returned for anyone but the caller.
type UserSummary struct {
	ID    uint   `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Summary returns the public projection of u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Summaries projects a slice of users.
func Summaries(users []User) []UserSummary {
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out
}
