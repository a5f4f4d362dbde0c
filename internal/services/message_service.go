package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/mailmirror/core/internal/database/models"
	"github.com/mailmirror/core/internal/gmail"
	"github.com/mailmirror/core/internal/storage"
	"gorm.io/gorm"
)

var (
	// ErrMessageNotFound indicates the message was not found
	ErrMessageNotFound = errors.New("message not found")
	// ErrAttachmentRowNotFound indicates the attachment row was not found
	ErrAttachmentRowNotFound = errors.New("attachment not found")
)

// AttachmentFetcher downloads one attachment's bytes from the provider
type AttachmentFetcher func(ctx context.Context, messageID, attachmentID string) ([]byte, error)

// MessageService persists normalized messages idempotently
type MessageService struct {
	db       *gorm.DB
	contacts *ContactService
	store    *storage.Store
}

// NewMessageService creates a new MessageService instance
func NewMessageService(db *gorm.DB, contacts *ContactService, store *storage.Store) *MessageService {
	return &MessageService{
		db:       db,
		contacts: contacts,
		store:    store,
	}
}

// UpsertMessage writes a normalized message keyed by its Gmail id:
// insert on first sighting, update every mutable field on repeat. The
// recipient relation is replaced with exactly the current deduplicated
// to+cc+bcc union, so stale links from a partial earlier ingestion are
// removed. Returns whether a new row was created.
func (s *MessageService) UpsertMessage(c gmail.Canonical, mailbox string, credentialID *uint) (*models.Message, bool, error) {
	sender, err := s.contacts.Resolve(c.Sender.Email, c.Sender.Name)
	if err != nil {
		return nil, false, err
	}
	var senderID *uint
	if sender != nil {
		senderID = &sender.ID
	}

	recipients, err := s.resolveRecipients(c)
	if err != nil {
		return nil, false, err
	}

	labels, err := json.Marshal(c.Labels)
	if err != nil {
		labels = []byte("[]")
	}

	var msg models.Message
	created := false
	err = s.db.Where("gmail_id = ?", c.GmailID).First(&msg).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		msg = models.Message{
			GmailID:        c.GmailID,
			ThreadID:       c.ThreadID,
			Mailbox:        mailbox,
			CredentialID:   credentialID,
			Subject:        c.Subject,
			Snippet:        c.Snippet,
			Date:           c.Date,
			Body:           c.Body,
			HTMLBody:       c.HTMLBody,
			Labels:         string(labels),
			IsRead:         c.IsRead,
			HasAttachments: len(c.Attachments) > 0,
			SenderID:       senderID,
			RFC822ID:       c.RFC822ID,
			ToHeader:       c.ToHeader,
			CcHeader:       c.CcHeader,
			BccHeader:      c.BccHeader,
		}
		if err := s.db.Create(&msg).Error; err != nil {
			return nil, false, err
		}
		created = true
	case err != nil:
		return nil, false, err
	default:
		updates := map[string]interface{}{
			"thread_id":       c.ThreadID,
			"mailbox":         mailbox,
			"credential_id":   credentialID,
			"subject":         c.Subject,
			"snippet":         c.Snippet,
			"date":            c.Date,
			"body":            c.Body,
			"html_body":       c.HTMLBody,
			"labels":          string(labels),
			"is_read":         c.IsRead,
			"has_attachments": len(c.Attachments) > 0,
			"sender_id":       senderID,
			"rfc822_id":       c.RFC822ID,
			"to_header":       c.ToHeader,
			"cc_header":       c.CcHeader,
			"bcc_header":      c.BccHeader,
		}
		if err := s.db.Model(&msg).Updates(updates).Error; err != nil {
			return nil, false, err
		}
	}

	// Replace the recipient set with exactly the current union
	if err := s.db.Model(&msg).Association("Recipients").Replace(recipients); err != nil {
		return &msg, created, err
	}

	return &msg, created, nil
}

// resolveRecipients resolves the deduplicated union of to+cc+bcc
func (s *MessageService) resolveRecipients(c gmail.Canonical) ([]*models.Contact, error) {
	all := make([]gmail.Address, 0, len(c.To)+len(c.Cc)+len(c.Bcc))
	all = append(all, c.To...)
	all = append(all, c.Cc...)
	all = append(all, c.Bcc...)

	seen := make(map[uint]bool)
	var out []*models.Contact
	for _, addr := range all {
		contact, err := s.contacts.Resolve(addr.Email, addr.Name)
		if err != nil {
			return nil, err
		}
		if contact == nil || seen[contact.ID] {
			continue
		}
		seen[contact.ID] = true
		out = append(out, contact)
	}
	return out, nil
}

// IngestAttachments downloads the attachments a message does not
// already have. An existing (message, attachment id) row skips the
// download entirely. Content and metadata are persisted together: a
// failed row insert removes the file written for it, and a failed
// download writes nothing. Per-item failures are logged, not fatal.
func (s *MessageService) IngestAttachments(ctx context.Context, msg *models.Message, metas []gmail.AttachmentMeta, fetch AttachmentFetcher) (int, error) {
	ingested := 0
	for _, meta := range metas {
		var count int64
		err := s.db.Model(&models.Attachment{}).
			Where("message_id = ? AND gmail_attachment_id = ?", msg.ID, meta.GmailAttachmentID).
			Count(&count).Error
		if err != nil {
			return ingested, err
		}
		if count > 0 {
			continue
		}

		content, err := fetch(ctx, msg.GmailID, meta.GmailAttachmentID)
		if err != nil {
			log.Printf("[MessageService] Attachment %q of message %s failed to download: %v", meta.Filename, msg.GmailID, err)
			continue
		}

		path, err := s.store.SaveAttachment(msg.ID, meta.Filename, content)
		if err != nil {
			log.Printf("[MessageService] Attachment %q of message %s failed to store: %v", meta.Filename, msg.GmailID, err)
			continue
		}

		att := &models.Attachment{
			MessageID:         msg.ID,
			GmailAttachmentID: meta.GmailAttachmentID,
			Filename:          meta.Filename,
			MimeType:          meta.MimeType,
			Size:              meta.Size,
		}
		if att.Size == 0 {
			att.Size = int64(len(content))
		}
		att.FilePath = path

		if err := s.db.Create(att).Error; err != nil {
			// No metadata row, no stored file
			s.store.Remove(path)
			log.Printf("[MessageService] Attachment row for %q of message %s failed: %v", meta.Filename, msg.GmailID, err)
			continue
		}
		ingested++
	}
	return ingested, nil
}

// GetMessage retrieves a message with its relations
func (s *MessageService) GetMessage(id uint) (*models.Message, error) {
	var msg models.Message
	err := s.db.Preload("Sender").Preload("Recipients").Preload("Attachments").First(&msg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// GetAttachment retrieves one attachment row of a message
func (s *MessageService) GetAttachment(messageID, attachmentID uint) (*models.Attachment, error) {
	var att models.Attachment
	err := s.db.Where("id = ? AND message_id = ?", attachmentID, messageID).First(&att).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttachmentRowNotFound
		}
		return nil, err
	}
	return &att, nil
}

// ReadAttachmentContent loads an attachment's stored binary
func (s *MessageService) ReadAttachmentContent(att *models.Attachment) ([]byte, error) {
	return s.store.Read(att.FilePath)
}
