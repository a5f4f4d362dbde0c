package models

import (
	"time"
)

// Contact is a deduplicated correspondent. The case-normalized email
// address is the identity key; the display name is filled on first
// sighting and never overwritten once set.
type Contact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string    `gorm:"size:255" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
