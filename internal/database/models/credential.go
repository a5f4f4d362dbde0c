package models

import (
	"time"
)

// Credential stores one Gmail authorization per (user, mailbox).
// The token payload is encrypted at rest; only the services layer
// ever sees the plaintext.
type Credential struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"uniqueIndex:idx_credentials_user_mailbox;not null" json:"user_id"`
	Mailbox        string    `gorm:"uniqueIndex:idx_credentials_user_mailbox;size:255;not null" json:"mailbox"`
	TokenEncrypted string    `gorm:"type:text;not null" json:"-"`
	TokenExpiry    time.Time `json:"token_expiry"`
	Active         bool      `gorm:"default:true" json:"active"`
	Color          string    `gorm:"size:20" json:"color"` // display tag for the UI
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relations
	Messages []Message `gorm:"foreignKey:CredentialID" json:"messages,omitempty"`
}
