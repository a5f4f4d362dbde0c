package models

import (
	"time"
)

// Message is one mirrored Gmail message. GmailID is the provider's
// immutable message id and the idempotency key for the sync path.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	GmailID        string    `gorm:"uniqueIndex;size:255;not null" json:"gmail_id"`
	ThreadID       string    `gorm:"index;size:255;not null" json:"thread_id"`
	Mailbox        string    `gorm:"index;size:255;not null" json:"mailbox"`
	CredentialID   *uint     `gorm:"index" json:"credential_id,omitempty"`
	Subject        string    `gorm:"size:500" json:"subject"`
	Snippet        string    `gorm:"size:1000" json:"snippet"`
	Date           time.Time `gorm:"index" json:"date"`
	Body           string    `gorm:"type:text" json:"body"`
	HTMLBody       string    `gorm:"type:text" json:"html_body"`
	Labels         string    `gorm:"type:text" json:"labels"` // JSON array stored as string
	IsRead         bool      `gorm:"default:false" json:"is_read"`
	HasAttachments bool      `gorm:"default:false" json:"has_attachments"`
	SenderID       *uint     `gorm:"index" json:"sender_id,omitempty"`
	RFC822ID       string    `gorm:"column:rfc822_id;size:500" json:"-"` // Message-ID header, used for reply threading

	// Raw recipient headers. The relation below collapses to/cc/bcc into
	// one unordered set; direction is only recoverable from these.
	ToHeader  string `gorm:"type:text" json:"to_header"`
	CcHeader  string `gorm:"type:text" json:"cc_header"`
	BccHeader string `gorm:"type:text" json:"bcc_header"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Sender      *Contact     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Recipients  []Contact    `gorm:"many2many:message_recipients" json:"recipients,omitempty"`
	Attachments []Attachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}
