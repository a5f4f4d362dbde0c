package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mailmirror/core/internal/database/models"
	"github.com/mailmirror/core/internal/gmail"
	"github.com/mailmirror/core/internal/storage"
)

func newMessageService(t *testing.T) (*MessageService, func()) {
	db, cleanup := setupTestDB(t)
	store := storage.NewStore(t.TempDir())
	return NewMessageService(db, NewContactService(db), store), cleanup
}

func sampleCanonical() gmail.Canonical {
	return gmail.Canonical{
		GmailID:  "gm-1",
		ThreadID: "th-1",
		RFC822ID: "<one@mail.example.com>",
		Subject:  "Hello",
		Snippet:  "hello there",
		Date:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Body:     "hello there, full text",
		Labels:   []string{"INBOX"},
		IsRead:   false,
		Sender:   gmail.Address{Email: "jane@example.com", Name: "Jane"},
		To:       []gmail.Address{{Email: "me@example.com"}},
		Cc:       []gmail.Address{{Email: "bob@example.com"}, {Email: "me@example.com"}},
		ToHeader: "me@example.com",
		CcHeader: "bob@example.com, me@example.com",
	}
}

func TestUpsertMessageIdempotent(t *testing.T) {
	svc, cleanup := newMessageService(t)
	defer cleanup()

	c := sampleCanonical()
	msg1, created, err := svc.UpsertMessage(c, "me@example.com", nil)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if !created {
		t.Error("first upsert should create")
	}

	msg2, created, err := svc.UpsertMessage(c, "me@example.com", nil)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if created {
		t.Error("second upsert should update, not create")
	}
	if msg1.ID != msg2.ID {
		t.Errorf("upsert produced a new row: %d vs %d", msg1.ID, msg2.ID)
	}

	var count int64
	svc.db.Model(&models.Message{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 message row, got %d", count)
	}

	// The to+cc union is deduplicated; me@ appears in both lists
	full, err := svc.GetMessage(msg1.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if len(full.Recipients) != 2 {
		t.Errorf("expected 2 deduplicated recipients, got %d", len(full.Recipients))
	}
	if full.Sender == nil || full.Sender.Email != "jane@example.com" {
		t.Errorf("sender not resolved: %+v", full.Sender)
	}
}

func TestUpsertMessageUpdatesFields(t *testing.T) {
	svc, cleanup := newMessageService(t)
	defer cleanup()

	c := sampleCanonical()
	msg, _, err := svc.UpsertMessage(c, "me@example.com", nil)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// The message was read and its label set changed upstream
	c.IsRead = true
	c.Labels = []string{"INBOX", "IMPORTANT"}
	if _, _, err := svc.UpsertMessage(c, "me@example.com", nil); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	updated, err := svc.GetMessage(msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if !updated.IsRead {
		t.Error("is_read not updated")
	}
	if updated.Labels != `["INBOX","IMPORTANT"]` {
		t.Errorf("labels not updated: %q", updated.Labels)
	}
}

func TestUpsertMessageReplacesRecipients(t *testing.T) {
	svc, cleanup := newMessageService(t)
	defer cleanup()

	c := sampleCanonical()
	msg, _, err := svc.UpsertMessage(c, "me@example.com", nil)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// Recipient set shrinks on re-ingestion; stale links must go
	c.Cc = nil
	c.CcHeader = ""
	if _, _, err := svc.UpsertMessage(c, "me@example.com", nil); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	updated, err := svc.GetMessage(msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if len(updated.Recipients) != 1 || updated.Recipients[0].Email != "me@example.com" {
		t.Errorf("recipients not replaced: %+v", updated.Recipients)
	}
}

func TestIngestAttachmentsIdempotent(t *testing.T) {
	svc, cleanup := newMessageService(t)
	defer cleanup()

	msg, _, err := svc.UpsertMessage(sampleCanonical(), "me@example.com", nil)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	metas := []gmail.AttachmentMeta{
		{GmailAttachmentID: "att-1", Filename: "a.pdf", MimeType: "application/pdf"},
		{GmailAttachmentID: "att-2", Filename: "b.png", MimeType: "image/png"},
	}

	fetches := 0
	fetch := func(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
		fetches++
		return []byte("content-" + attachmentID), nil
	}

	n, err := svc.IngestAttachments(context.Background(), msg, metas, fetch)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if n != 2 || fetches != 2 {
		t.Errorf("first ingest: got n=%d fetches=%d", n, fetches)
	}

	// A second pass over the same metadata downloads nothing
	n, err = svc.IngestAttachments(context.Background(), msg, metas, fetch)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if n != 0 || fetches != 2 {
		t.Errorf("second ingest: got n=%d fetches=%d, want 0 and 2", n, fetches)
	}

	var count int64
	svc.db.Model(&models.Attachment{}).Where("message_id = ?", msg.ID).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 attachment rows, got %d", count)
	}
}

func TestIngestAttachmentsSkipsFailedDownloads(t *testing.T) {
	svc, cleanup := newMessageService(t)
	defer cleanup()

	msg, _, err := svc.UpsertMessage(sampleCanonical(), "me@example.com", nil)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	metas := []gmail.AttachmentMeta{
		{GmailAttachmentID: "att-bad", Filename: "bad.bin"},
		{GmailAttachmentID: "att-good", Filename: "good.bin"},
	}
	fetch := func(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
		if attachmentID == "att-bad" {
			return nil, errors.New("download failed")
		}
		return []byte("ok"), nil
	}

	n, err := svc.IngestAttachments(context.Background(), msg, metas, fetch)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 ingested attachment, got %d", n)
	}

	att, err := svc.GetAttachment(msg.ID, 0)
	if err == nil {
		t.Errorf("unexpected attachment row: %+v", att)
	}

	var rows []models.Attachment
	svc.db.Where("message_id = ?", msg.ID).Find(&rows)
	if len(rows) != 1 || rows[0].GmailAttachmentID != "att-good" {
		t.Errorf("unexpected rows: %+v", rows)
	}

	content, err := svc.ReadAttachmentContent(&rows[0])
	if err != nil || string(content) != "ok" {
		t.Errorf("stored content mismatch: %q, %v", content, err)
	}
}
