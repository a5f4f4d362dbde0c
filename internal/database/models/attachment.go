package models

import (
	"time"
)

// Attachment belongs to exactly one message. (MessageID,
// GmailAttachmentID) is unique so re-ingesting a message never
// duplicates or re-downloads attachments it already has.
type Attachment struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	MessageID         uint      `gorm:"uniqueIndex:idx_attachments_message_gmail;not null" json:"message_id"`
	GmailAttachmentID string    `gorm:"uniqueIndex:idx_attachments_message_gmail;size:500;not null" json:"gmail_attachment_id"`
	Filename          string    `gorm:"size:500" json:"filename"`
	MimeType          string    `gorm:"size:255" json:"mime_type"`
	Size              int64     `json:"size"`
	FilePath          string    `gorm:"size:500" json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}
