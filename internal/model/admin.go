package model

import "time"

// Admin is a moderator credential. Admins live in their own table and are
// provisioned by the seed command, never through registration.
type Admin struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity returns the token identity for the admin.
func (a *Admin) Identity() Identity {
	return Identity{
		ID:    a.ID,
		Name:  AdminDisplayName,
		Email: a.Email,
		Role:  RoleAdmin,
	}
}
