package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mailmirror/core/internal/crypto"
	"github.com/mailmirror/core/internal/database/models"
	"github.com/mailmirror/core/internal/gmail"
	"github.com/mailmirror/core/internal/storage"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"gorm.io/gorm"
)

// fakeMailClient serves canned messages per folder without a network
type fakeMailClient struct {
	mailbox    string
	messages   map[string][]*gmailapi.Message // folder -> messages
	failIDs    map[string]bool                // ids whose detail fetch fails
	listErr    error
	profileErr error
}

func (f *fakeMailClient) ListMessageIDs(ctx context.Context, folder string, limit int64) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []string
	for _, m := range f.messages[folder] {
		if int64(len(ids)) >= limit {
			break
		}
		ids = append(ids, m.Id)
	}
	return ids, nil
}

func (f *fakeMailClient) FetchDetails(ctx context.Context, ids []string) []gmail.FetchResult {
	byID := make(map[string]*gmailapi.Message)
	for _, msgs := range f.messages {
		for _, m := range msgs {
			byID[m.Id] = m
		}
	}

	results := make([]gmail.FetchResult, 0, len(ids))
	for _, id := range ids {
		if f.failIDs[id] {
			results = append(results, gmail.FetchResult{ID: id, Err: errors.New("fetch failed")})
			continue
		}
		results = append(results, gmail.FetchResult{ID: id, Message: byID[id]})
	}
	return results
}

func (f *fakeMailClient) FetchAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	return []byte("attachment"), nil
}

func (f *fakeMailClient) Profile(ctx context.Context) (string, uint64, error) {
	if f.profileErr != nil {
		return "", 0, f.profileErr
	}
	return f.mailbox, 42, nil
}

func (f *fakeMailClient) Send(ctx context.Context, in gmail.SendInput) (string, error) {
	return "sent-1", nil
}

func (f *fakeMailClient) Reply(ctx context.Context, threadID, inReplyTo string, in gmail.SendInput) (string, error) {
	return "reply-" + threadID + inReplyTo, nil
}

func fakeMessage(id, thread, from string) *gmailapi.Message {
	return &gmailapi.Message{
		Id:       id,
		ThreadId: thread,
		Payload: &gmailapi.MessagePart{
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "Subject", Value: "Subject " + id},
				{Name: "From", Value: from},
				{Name: "Date", Value: "Mon, 02 Jan 2006 15:04:05 +0000"},
			},
		},
	}
}

func newSyncService(t *testing.T, clients map[string]*fakeMailClient, factoryErrFor map[string]error) (*SyncService, *CredentialService, *gorm.DB, func()) {
	db, cleanup := setupTestDB(t)

	cipher, err := crypto.NewCipher([]byte("sync-test-key"))
	if err != nil {
		cleanup()
		t.Fatalf("NewCipher failed: %v", err)
	}
	credentials := NewCredentialService(db, cipher, &oauth2.Config{})
	messages := NewMessageService(db, NewContactService(db), storage.NewStore(t.TempDir()))
	logService := NewLogService(db)

	// The fake factory routes by access token, which carries the mailbox
	factory := func(ctx context.Context, token *oauth2.Token) (MailClient, error) {
		if err := factoryErrFor[token.AccessToken]; err != nil {
			return nil, err
		}
		client, ok := clients[token.AccessToken]
		if !ok {
			return nil, fmt.Errorf("no fake client for %q", token.AccessToken)
		}
		return client, nil
	}

	return NewSyncService(db, credentials, messages, factory, logService, 50), credentials, db, cleanup
}

func seedCredential(t *testing.T, credentials *CredentialService, userID uint, mailbox string) *models.Credential {
	cred, err := credentials.Upsert(userID, mailbox, TokenPayload{
		AccessToken:  mailbox,
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("seed credential failed: %v", err)
	}
	return cred
}

func TestSyncAccountPersistsBothFolders(t *testing.T) {
	client := &fakeMailClient{
		mailbox: "me@example.com",
		messages: map[string][]*gmailapi.Message{
			gmail.FolderInbox: {
				fakeMessage("in-1", "t1", "alice@example.com"),
				fakeMessage("in-2", "t1", "alice@example.com"),
			},
			gmail.FolderSent: {
				fakeMessage("out-1", "t2", "me@example.com"),
			},
		},
	}

	svc, credentials, db, cleanup := newSyncService(t, map[string]*fakeMailClient{"me@example.com": client}, nil)
	defer cleanup()
	cred := seedCredential(t, credentials, 1, "me@example.com")

	summary := svc.SyncAccount(context.Background(), cred)
	if summary.Error != "" {
		t.Fatalf("sync failed: %s", summary.Error)
	}
	if summary.InboxCount != 2 || summary.SentCount != 1 || summary.Synced != 3 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	var count int64
	db.Model(&models.Message{}).Count(&count)
	if count != 3 {
		t.Errorf("expected 3 messages, got %d", count)
	}

	var run models.SyncRun
	if err := db.Order("id DESC").First(&run).Error; err != nil {
		t.Fatalf("no sync run recorded: %v", err)
	}
	if run.Status != models.SyncStatusSuccess || run.Mailbox != "me@example.com" {
		t.Errorf("unexpected run: %+v", run)
	}
	if run.HistoryID != 42 {
		t.Errorf("history id not recorded: %d", run.HistoryID)
	}
	if run.FinishedAt.IsZero() {
		t.Error("finished_at not set")
	}
}

func TestSyncAccountSkipsFailedItems(t *testing.T) {
	client := &fakeMailClient{
		mailbox: "me@example.com",
		messages: map[string][]*gmailapi.Message{
			gmail.FolderInbox: {
				fakeMessage("ok-1", "t1", "a@example.com"),
				fakeMessage("bad-1", "t1", "a@example.com"),
				fakeMessage("ok-2", "t2", "b@example.com"),
			},
		},
		failIDs: map[string]bool{"bad-1": true},
	}

	svc, credentials, db, cleanup := newSyncService(t, map[string]*fakeMailClient{"me@example.com": client}, nil)
	defer cleanup()
	cred := seedCredential(t, credentials, 1, "me@example.com")

	summary := svc.SyncAccount(context.Background(), cred)
	if summary.Error != "" {
		t.Fatalf("one bad item must not fail the account: %s", summary.Error)
	}
	if summary.InboxCount != 2 {
		t.Errorf("expected 2 synced inbox messages, got %d", summary.InboxCount)
	}

	var count int64
	db.Model(&models.Message{}).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 persisted messages, got %d", count)
	}
}

func TestSyncAllIsolatesAccountFailures(t *testing.T) {
	good := &fakeMailClient{
		mailbox: "good@example.com",
		messages: map[string][]*gmailapi.Message{
			gmail.FolderInbox: {fakeMessage("g-1", "t1", "x@example.com")},
		},
	}

	svc, credentials, db, cleanup := newSyncService(t,
		map[string]*fakeMailClient{"good@example.com": good},
		map[string]error{"bad@example.com": errors.New("provider unreachable")})
	defer cleanup()

	seedCredential(t, credentials, 1, "bad@example.com")
	seedCredential(t, credentials, 1, "good@example.com")

	summaries, err := svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	byMailbox := make(map[string]AccountSummary)
	for _, s := range summaries {
		byMailbox[s.Mailbox] = s
	}
	if byMailbox["bad@example.com"].Error == "" {
		t.Error("failing account should carry its error")
	}
	if byMailbox["good@example.com"].Error != "" || byMailbox["good@example.com"].Synced != 1 {
		t.Errorf("healthy account affected: %+v", byMailbox["good@example.com"])
	}

	// Both outcomes are on the audit trail
	var errorRuns, successRuns int64
	db.Model(&models.SyncRun{}).Where("status = ?", models.SyncStatusError).Count(&errorRuns)
	db.Model(&models.SyncRun{}).Where("status = ?", models.SyncStatusSuccess).Count(&successRuns)
	if errorRuns != 1 || successRuns != 1 {
		t.Errorf("runs: %d error, %d success", errorRuns, successRuns)
	}
}

func TestSyncAccountToleratesProfileFailure(t *testing.T) {
	client := &fakeMailClient{
		mailbox: "me@example.com",
		messages: map[string][]*gmailapi.Message{
			gmail.FolderInbox: {fakeMessage("in-1", "t1", "a@example.com")},
		},
		profileErr: errors.New("profile unavailable"),
	}

	svc, credentials, db, cleanup := newSyncService(t, map[string]*fakeMailClient{"me@example.com": client}, nil)
	defer cleanup()
	cred := seedCredential(t, credentials, 1, "me@example.com")

	summary := svc.SyncAccount(context.Background(), cred)
	if summary.Error != "" {
		t.Fatalf("profile failure must not fail the run: %s", summary.Error)
	}
	if summary.Synced != 1 {
		t.Errorf("expected 1 synced message, got %d", summary.Synced)
	}

	var run models.SyncRun
	if err := db.Order("id DESC").First(&run).Error; err != nil {
		t.Fatalf("no sync run recorded: %v", err)
	}
	if run.Status != models.SyncStatusSuccess {
		t.Errorf("unexpected run status: %s", run.Status)
	}
	if run.HistoryID != 0 {
		t.Errorf("history id should stay unset: %d", run.HistoryID)
	}
}

func TestSyncAccountRerunIsIdempotent(t *testing.T) {
	client := &fakeMailClient{
		mailbox: "me@example.com",
		messages: map[string][]*gmailapi.Message{
			gmail.FolderInbox: {fakeMessage("in-1", "t1", "a@example.com")},
		},
	}

	svc, credentials, db, cleanup := newSyncService(t, map[string]*fakeMailClient{"me@example.com": client}, nil)
	defer cleanup()
	cred := seedCredential(t, credentials, 1, "me@example.com")

	svc.SyncAccount(context.Background(), cred)
	svc.SyncAccount(context.Background(), cred)

	var count int64
	db.Model(&models.Message{}).Count(&count)
	if count != 1 {
		t.Errorf("rerun duplicated messages: %d rows", count)
	}
}

func TestReplyThreadsOntoOriginal(t *testing.T) {
	client := &fakeMailClient{mailbox: "me@example.com"}
	svc, credentials, db, cleanup := newSyncService(t, map[string]*fakeMailClient{"me@example.com": client}, nil)
	defer cleanup()
	seedCredential(t, credentials, 1, "me@example.com")

	contact := models.Contact{Email: "alice@example.com"}
	if err := db.Create(&contact).Error; err != nil {
		t.Fatalf("seed contact failed: %v", err)
	}
	msg := models.Message{
		GmailID:  "orig-1",
		ThreadID: "t9",
		Mailbox:  "me@example.com",
		Subject:  "Question",
		RFC822ID: "<orig@mail.example.com>",
		SenderID: &contact.ID,
		Date:     time.Now(),
	}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("seed message failed: %v", err)
	}

	id, err := svc.Reply(context.Background(), msg.ID, "answer")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	// The fake echoes thread id and in-reply-to so both can be asserted
	if id != "reply-t9<orig@mail.example.com>" {
		t.Errorf("reply not threaded onto the original: %q", id)
	}
}
