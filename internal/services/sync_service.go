package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mailmirror/core/internal/database/models"
	"github.com/mailmirror/core/internal/gmail"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// MailClient is the surface of the Gmail wrapper the sync path uses
type MailClient interface {
	ListMessageIDs(ctx context.Context, folder string, limit int64) ([]string, error)
	FetchDetails(ctx context.Context, ids []string) []gmail.FetchResult
	FetchAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
	Profile(ctx context.Context) (string, uint64, error)
	Send(ctx context.Context, in gmail.SendInput) (string, error)
	Reply(ctx context.Context, threadID, inReplyTo string, in gmail.SendInput) (string, error)
}

// MailClientFactory builds a client for one credential's token
type MailClientFactory func(ctx context.Context, token *oauth2.Token) (MailClient, error)

// AccountSummary reports one mailbox's outcome in a sync pass
type AccountSummary struct {
	Mailbox    string `json:"mailbox"`
	InboxCount int    `json:"inbox_count"`
	SentCount  int    `json:"sent_count"`
	Synced     int    `json:"synced"`
	Error      string `json:"error,omitempty"`
}

// syncFolders are the folder labels mirrored for every account
var syncFolders = []string{gmail.FolderInbox, gmail.FolderSent}

// SyncService drives fetch, normalize and persist for every active
// credential. Accounts and folders are processed sequentially within a
// pass; callers are responsible for not running two passes against the
// same account at once.
type SyncService struct {
	db          *gorm.DB
	credentials *CredentialService
	messages    *MessageService
	factory     MailClientFactory
	logService  *LogService
	listLimit   int64
}

// NewSyncService creates a new SyncService instance. listLimit bounds
// how many messages are listed per folder per pass.
func NewSyncService(db *gorm.DB, credentials *CredentialService, messages *MessageService, factory MailClientFactory, logService *LogService, listLimit int64) *SyncService {
	return &SyncService{
		db:          db,
		credentials: credentials,
		messages:    messages,
		factory:     factory,
		logService:  logService,
		listLimit:   listLimit,
	}
}

// SyncAll runs one pass over every active credential. One account's
// failure is recorded on its SyncRun and does not stop the others.
func (s *SyncService) SyncAll(ctx context.Context) ([]AccountSummary, error) {
	creds, err := s.credentials.ListActive()
	if err != nil {
		return nil, err
	}

	summaries := make([]AccountSummary, 0, len(creds))
	for i := range creds {
		summaries = append(summaries, s.SyncAccount(ctx, &creds[i]))
	}
	return summaries, nil
}

// SyncAccounts runs one pass over the given credentials only
func (s *SyncService) SyncAccounts(ctx context.Context, creds []models.Credential) []AccountSummary {
	summaries := make([]AccountSummary, 0, len(creds))
	for i := range creds {
		summaries = append(summaries, s.SyncAccount(ctx, &creds[i]))
	}
	return summaries
}

// SyncAccount mirrors one mailbox and writes its SyncRun audit row
func (s *SyncService) SyncAccount(ctx context.Context, cred *models.Credential) AccountSummary {
	summary := AccountSummary{Mailbox: cred.Mailbox}

	run := &models.SyncRun{
		Mailbox:   cred.Mailbox,
		Status:    models.SyncStatusInProgress,
		StartedAt: time.Now(),
	}
	if err := s.db.Create(run).Error; err != nil {
		summary.Error = err.Error()
		return summary
	}

	payload, err := s.credentials.RefreshIfExpired(ctx, cred)
	if err != nil {
		return s.finishRun(run, summary, err)
	}

	client, err := s.factory(ctx, payload.OAuthToken())
	if err != nil {
		return s.finishRun(run, summary, err)
	}

	for _, folder := range syncFolders {
		count, err := s.syncFolder(ctx, client, cred, folder)
		if err != nil {
			return s.finishRun(run, summary, err)
		}
		switch folder {
		case gmail.FolderInbox:
			summary.InboxCount = count
		case gmail.FolderSent:
			summary.SentCount = count
		}
	}
	summary.Synced = summary.InboxCount + summary.SentCount

	// Recorded for operator visibility; runs always rescan the window
	if _, historyID, err := client.Profile(ctx); err == nil {
		run.HistoryID = historyID
	} else {
		log.Printf("[SyncService] Profile of %s failed, history id not recorded: %v", cred.Mailbox, err)
	}

	return s.finishRun(run, summary, nil)
}

// syncFolder lists one folder and ingests every fetched message. A
// single item's fetch or persist failure is logged and skipped; it
// degrades the count without aborting the folder.
func (s *SyncService) syncFolder(ctx context.Context, client MailClient, cred *models.Credential, folder string) (int, error) {
	ids, err := client.ListMessageIDs(ctx, folder, s.listLimit)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", folder, err)
	}

	count := 0
	for _, result := range client.FetchDetails(ctx, ids) {
		if result.Err != nil {
			log.Printf("[SyncService] Fetch of %s failed: %v", result.ID, result.Err)
			continue
		}

		canonical := gmail.Normalize(result.Message)
		credID := cred.ID
		msg, _, err := s.messages.UpsertMessage(canonical, cred.Mailbox, &credID)
		if err != nil {
			log.Printf("[SyncService] Persist of %s failed: %v", result.ID, err)
			continue
		}

		if _, err := s.messages.IngestAttachments(ctx, msg, canonical.Attachments, client.FetchAttachment); err != nil {
			log.Printf("[SyncService] Attachments of %s failed: %v", result.ID, err)
		}
		count++
	}
	return count, nil
}

// finishRun finalizes the run's audit row in place
func (s *SyncService) finishRun(run *models.SyncRun, summary AccountSummary, cause error) AccountSummary {
	status := models.SyncStatusSuccess
	if cause != nil {
		status = models.SyncStatusError
		summary.Error = cause.Error()
		log.Printf("[SyncService] Sync of %s failed: %v", summary.Mailbox, cause)
		s.logService.LogError(0, models.LogModuleSync, "sync_account", "Mailbox sync failed", SyncRunDetails{
			Mailbox:  summary.Mailbox,
			ErrorMsg: cause.Error(),
		})
	} else {
		s.logService.LogInfo(0, models.LogModuleSync, "sync_account", "Mailbox sync completed", SyncRunDetails{
			Mailbox:    summary.Mailbox,
			InboxCount: summary.InboxCount,
			SentCount:  summary.SentCount,
			Synced:     summary.Synced,
		})
	}

	updates := map[string]interface{}{
		"status":      status,
		"inbox_count": summary.InboxCount,
		"sent_count":  summary.SentCount,
		"total_count": summary.Synced,
		"history_id":  run.HistoryID,
		"error":       summary.Error,
		"finished_at": time.Now(),
	}
	if err := s.db.Model(run).Updates(updates).Error; err != nil {
		log.Printf("[SyncService] Failed to finalize sync run %d: %v", run.ID, err)
	}
	return summary
}

// ListRuns returns the most recent sync runs, optionally filtered to a
// set of mailboxes.
func (s *SyncService) ListRuns(mailboxes []string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}

	db := s.db.Model(&models.SyncRun{})
	if mailboxes != nil {
		db = db.Where("mailbox IN ?", mailboxes)
	}

	var runs []models.SyncRun
	if err := db.Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// clientFor builds an authorized client for a mailbox
func (s *SyncService) clientFor(ctx context.Context, mailbox string) (MailClient, error) {
	cred, err := s.credentials.GetByMailbox(mailbox)
	if err != nil {
		return nil, err
	}
	payload, err := s.credentials.RefreshIfExpired(ctx, cred)
	if err != nil {
		return nil, err
	}
	return s.factory(ctx, payload.OAuthToken())
}

// Send sends a new message from the given mailbox
func (s *SyncService) Send(ctx context.Context, mailbox string, to []string, subject, body string) (string, error) {
	client, err := s.clientFor(ctx, mailbox)
	if err != nil {
		return "", err
	}

	id, err := client.Send(ctx, gmail.SendInput{
		From:    mailbox,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		s.logService.LogError(0, models.LogModuleMessage, "send", "Send failed", SyncRunDetails{Mailbox: mailbox, ErrorMsg: err.Error()})
		return "", err
	}

	s.logService.LogInfo(0, models.LogModuleMessage, "send", "Message sent", SyncRunDetails{Mailbox: mailbox})
	return id, nil
}

// Reply answers a stored message into its existing conversation,
// addressing the original sender from the message's own mailbox.
func (s *SyncService) Reply(ctx context.Context, messageID uint, body string) (string, error) {
	msg, err := s.messages.GetMessage(messageID)
	if err != nil {
		return "", err
	}
	if msg.Sender == nil || msg.Sender.Email == "" {
		return "", errors.New("message has no sender to reply to")
	}

	client, err := s.clientFor(ctx, msg.Mailbox)
	if err != nil {
		return "", err
	}

	subject := msg.Subject
	if len(subject) < 3 || (subject[:3] != "Re:" && subject[:3] != "RE:") {
		subject = "Re: " + subject
	}

	id, err := client.Reply(ctx, msg.ThreadID, msg.RFC822ID, gmail.SendInput{
		From:    msg.Mailbox,
		To:      []string{msg.Sender.Email},
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		s.logService.LogError(0, models.LogModuleMessage, "reply", "Reply failed", SyncRunDetails{Mailbox: msg.Mailbox, ErrorMsg: err.Error()})
		return "", err
	}

	s.logService.LogInfo(0, models.LogModuleMessage, "reply", "Reply sent", SyncRunDetails{Mailbox: msg.Mailbox})
	return id, nil
}
