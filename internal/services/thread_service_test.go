package services

import (
	"testing"
	"time"

	"github.com/mailmirror/core/internal/database/models"
	"gorm.io/gorm"
)

func seedMessage(t *testing.T, db *gorm.DB, gmailID, threadID, mailbox, subject string, date time.Time, sender *models.Contact) *models.Message {
	msg := &models.Message{
		GmailID:  gmailID,
		ThreadID: threadID,
		Mailbox:  mailbox,
		Subject:  subject,
		Date:     date,
	}
	if sender != nil {
		msg.SenderID = &sender.ID
	}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("seed message %s failed: %v", gmailID, err)
	}
	return msg
}

func TestGetThreadsOrdersByLatestActivity(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewThreadService(db)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	// Thread A: three messages, latest at +30min
	seedMessage(t, db, "a1", "thread-a", "me@example.com", "A", base, nil)
	seedMessage(t, db, "a2", "thread-a", "me@example.com", "A", base.Add(10*time.Minute), nil)
	seedMessage(t, db, "a3", "thread-a", "me@example.com", "A latest", base.Add(30*time.Minute), nil)
	// Thread B: one message at +20min
	seedMessage(t, db, "b1", "thread-b", "me@example.com", "B", base.Add(20*time.Minute), nil)

	page, err := svc.GetThreads(ThreadQuery{Mailboxes: []string{"me@example.com"}, Page: 1})
	if err != nil {
		t.Fatalf("GetThreads failed: %v", err)
	}

	if page.TotalCount != 2 || len(page.Threads) != 2 {
		t.Fatalf("expected 2 threads, got total=%d len=%d", page.TotalCount, len(page.Threads))
	}
	if page.Threads[0].ThreadID != "thread-a" || page.Threads[1].ThreadID != "thread-b" {
		t.Errorf("wrong order: %s, %s", page.Threads[0].ThreadID, page.Threads[1].ThreadID)
	}
	if page.Threads[0].MessageCount != 3 || page.Threads[1].MessageCount != 1 {
		t.Errorf("wrong counts: %d, %d", page.Threads[0].MessageCount, page.Threads[1].MessageCount)
	}
	if page.Threads[0].Latest == nil || page.Threads[0].Latest.Subject != "A latest" {
		t.Errorf("wrong representative: %+v", page.Threads[0].Latest)
	}
	if !page.Threads[0].LatestDate.Equal(base.Add(30 * time.Minute)) {
		t.Errorf("wrong latest date: %v", page.Threads[0].LatestDate)
	}
}

func TestGetThreadsRepresentativeTieBreak(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewThreadService(db)

	// Same timestamp: the higher id wins
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedMessage(t, db, "t1", "thread-t", "me@example.com", "older row", when, nil)
	latest := seedMessage(t, db, "t2", "thread-t", "me@example.com", "newer row", when, nil)

	page, err := svc.GetThreads(ThreadQuery{Mailboxes: []string{"me@example.com"}})
	if err != nil {
		t.Fatalf("GetThreads failed: %v", err)
	}
	if len(page.Threads) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(page.Threads))
	}
	if page.Threads[0].Latest.ID != latest.ID {
		t.Errorf("tie should break to the higher id: got %d, want %d", page.Threads[0].Latest.ID, latest.ID)
	}
}

func TestGetThreadsPagination(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewThreadService(db)
	svc.pageSize = 1

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedMessage(t, db, "p1", "thread-1", "me@example.com", "one", base.Add(time.Hour), nil)
	seedMessage(t, db, "p2", "thread-2", "me@example.com", "two", base, nil)

	first, err := svc.GetThreads(ThreadQuery{Mailboxes: []string{"me@example.com"}, Page: 1})
	if err != nil {
		t.Fatalf("page 1 failed: %v", err)
	}
	if len(first.Threads) != 1 || first.Threads[0].ThreadID != "thread-1" {
		t.Errorf("page 1: %+v", first.Threads)
	}
	if !first.HasNext {
		t.Error("page 1 should have a next page")
	}

	second, err := svc.GetThreads(ThreadQuery{Mailboxes: []string{"me@example.com"}, Page: 2})
	if err != nil {
		t.Fatalf("page 2 failed: %v", err)
	}
	if len(second.Threads) != 1 || second.Threads[0].ThreadID != "thread-2" {
		t.Errorf("page 2: %+v", second.Threads)
	}
	if second.HasNext {
		t.Error("page 2 should be the last page")
	}
}

func TestGetThreadsMailboxScoping(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewThreadService(db)

	when := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedMessage(t, db, "m1", "thread-m", "mine@example.com", "mine", when, nil)
	seedMessage(t, db, "o1", "thread-o", "other@example.com", "other", when, nil)

	page, err := svc.GetThreads(ThreadQuery{Mailboxes: []string{"mine@example.com"}})
	if err != nil {
		t.Fatalf("GetThreads failed: %v", err)
	}
	if len(page.Threads) != 1 || page.Threads[0].ThreadID != "thread-m" {
		t.Errorf("mailbox scoping leaked: %+v", page.Threads)
	}

	// No accessible mailboxes means an empty page, not an error
	empty, err := svc.GetThreads(ThreadQuery{})
	if err != nil {
		t.Fatalf("empty query failed: %v", err)
	}
	if len(empty.Threads) != 0 || empty.TotalCount != 0 {
		t.Errorf("expected empty page: %+v", empty)
	}
}

func TestGetThreadsSearchByCorrespondent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewThreadService(db)

	alice := models.Contact{Email: "alice@example.com", Name: "Alice Jones"}
	bob := models.Contact{Email: "bob@example.com", Name: "Bob"}
	if err := db.Create(&alice).Error; err != nil {
		t.Fatalf("seed contact failed: %v", err)
	}
	if err := db.Create(&bob).Error; err != nil {
		t.Fatalf("seed contact failed: %v", err)
	}

	when := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedMessage(t, db, "s1", "thread-alice", "me@example.com", "from alice", when, &alice)
	seedMessage(t, db, "s2", "thread-bob", "me@example.com", "from bob", when, &bob)

	page, err := svc.GetThreads(ThreadQuery{
		Mailboxes: []string{"me@example.com"},
		Search:    "ALICE",
	})
	if err != nil {
		t.Fatalf("GetThreads failed: %v", err)
	}
	if len(page.Threads) != 1 || page.Threads[0].ThreadID != "thread-alice" {
		t.Errorf("search result: %+v", page.Threads)
	}
}

func TestGetThreadsSearchRepresentativeMatchesFilter(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewThreadService(db)

	alice := models.Contact{Email: "alice@example.com", Name: "Alice Jones"}
	bob := models.Contact{Email: "bob@example.com", Name: "Bob"}
	if err := db.Create(&alice).Error; err != nil {
		t.Fatalf("seed contact failed: %v", err)
	}
	if err := db.Create(&bob).Error; err != nil {
		t.Fatalf("seed contact failed: %v", err)
	}

	// The thread's newest message is from Bob and does not match the
	// search; the representative must still come from the filtered set.
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedMessage(t, db, "r1", "thread-r", "me@example.com", "from alice", base, &alice)
	seedMessage(t, db, "r2", "thread-r", "me@example.com", "from bob", base.Add(time.Hour), &bob)

	page, err := svc.GetThreads(ThreadQuery{
		Mailboxes: []string{"me@example.com"},
		Search:    "alice",
	})
	if err != nil {
		t.Fatalf("GetThreads failed: %v", err)
	}
	if len(page.Threads) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(page.Threads))
	}
	if page.Threads[0].MessageCount != 1 {
		t.Errorf("expected 1 matching message, got %d", page.Threads[0].MessageCount)
	}
	if page.Threads[0].Latest == nil || page.Threads[0].Latest.Subject != "from alice" {
		t.Errorf("representative escaped the filter: %+v", page.Threads[0].Latest)
	}
	if !page.Threads[0].LatestDate.Equal(base) {
		t.Errorf("latest date escaped the filter: %v", page.Threads[0].LatestDate)
	}
}

func TestGetThreadMessagesChronological(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewThreadService(db)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedMessage(t, db, "c2", "thread-c", "me@example.com", "second", base.Add(time.Hour), nil)
	seedMessage(t, db, "c1", "thread-c", "me@example.com", "first", base, nil)

	msgs, err := svc.GetThreadMessages("thread-c", []string{"me@example.com"})
	if err != nil {
		t.Fatalf("GetThreadMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Subject != "first" || msgs[1].Subject != "second" {
		t.Errorf("wrong order: %q, %q", msgs[0].Subject, msgs[1].Subject)
	}

	// Inaccessible mailbox set yields nothing
	none, err := svc.GetThreadMessages("thread-c", nil)
	if err != nil {
		t.Fatalf("GetThreadMessages failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no messages, got %d", len(none))
	}
}
