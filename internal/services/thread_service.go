package services

import (
	"strings"
	"time"

	"github.com/mailmirror/core/internal/database/models"
	"gorm.io/gorm"
)

// ThreadPageSize is the fixed number of conversations per page
const ThreadPageSize = 20

// ThreadSummary is one conversation row in the thread list
type ThreadSummary struct {
	ThreadID     string          `json:"thread_id"`
	MessageCount int             `json:"message_count"`
	LatestDate   time.Time       `json:"latest_date"`
	Latest       *models.Message `json:"latest"`
}

// ThreadQuery filters the thread list. Mailboxes is the caller's
// pre-resolved accessible set; permission checks never happen here.
type ThreadQuery struct {
	Mailboxes []string
	Account   string // optional single-mailbox narrowing
	Search    string // case-insensitive substring over correspondent name/address
	Page      int
}

// ThreadPage is one page of thread summaries
type ThreadPage struct {
	Threads    []ThreadSummary `json:"threads"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int64           `json:"total_threads"`
	HasNext    bool            `json:"has_next"`
}

// ThreadService aggregates mirrored messages into conversations
type ThreadService struct {
	db       *gorm.DB
	pageSize int
}

// NewThreadService creates a new ThreadService instance
func NewThreadService(db *gorm.DB) *ThreadService {
	return &ThreadService{db: db, pageSize: ThreadPageSize}
}

// GetThreads aggregates messages into conversations in two phases: one
// grouped query over the filtered set ordered by latest activity, then
// one batch query hydrating representatives for exactly the threads on
// the requested page. It never issues a per-thread query.
func (s *ThreadService) GetThreads(q ThreadQuery) (*ThreadPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}

	result := &ThreadPage{
		Threads:  []ThreadSummary{},
		Page:     page,
		PageSize: s.pageSize,
	}
	if len(q.Mailboxes) == 0 {
		return result, nil
	}

	base := func() *gorm.DB {
		db := s.db.Model(&models.Message{}).Where("messages.mailbox IN ?", q.Mailboxes)
		if q.Account != "" {
			db = db.Where("messages.mailbox = ?", q.Account)
		}
		if q.Search != "" {
			pattern := "%" + strings.ToLower(q.Search) + "%"
			db = db.
				Joins("LEFT JOIN contacts AS senders ON senders.id = messages.sender_id").
				Joins("LEFT JOIN message_recipients ON message_recipients.message_id = messages.id").
				Joins("LEFT JOIN contacts AS recipients ON recipients.id = message_recipients.contact_id").
				Where("LOWER(senders.email) LIKE ? OR LOWER(senders.name) LIKE ? OR LOWER(recipients.email) LIKE ? OR LOWER(recipients.name) LIKE ?",
					pattern, pattern, pattern, pattern)
		}
		return db
	}

	if err := base().Distinct("messages.thread_id").Count(&result.TotalCount).Error; err != nil {
		return nil, err
	}

	// Phase 1: group and paginate the thread list
	type threadGroup struct {
		ThreadID     string
		MessageCount int
	}
	var groups []threadGroup
	err := base().
		Select("messages.thread_id AS thread_id, COUNT(DISTINCT messages.id) AS message_count").
		Group("messages.thread_id").
		Order("MAX(messages.date) DESC, MAX(messages.id) DESC").
		Limit(s.pageSize).
		Offset((page - 1) * s.pageSize).
		Scan(&groups).Error
	if err != nil {
		return nil, err
	}

	// Phase 2: one batch query hydrates this page's representatives.
	// It runs over the same filtered set as phase 1 so an active search
	// or account narrowing never surfaces a non-matching latest message.
	representatives := make(map[string]*models.Message, len(groups))
	if len(groups) > 0 {
		threadIDs := make([]string, len(groups))
		for i, g := range groups {
			threadIDs[i] = g.ThreadID
		}

		var msgs []models.Message
		err := base().Preload("Sender").
			Select("messages.*").
			Where("messages.thread_id IN ?", threadIDs).
			Order("messages.date DESC, messages.id DESC").
			Find(&msgs).Error
		if err != nil {
			return nil, err
		}

		// First row per thread is the representative: latest date,
		// highest id on ties.
		for i := range msgs {
			m := &msgs[i]
			if _, ok := representatives[m.ThreadID]; !ok {
				representatives[m.ThreadID] = m
			}
		}
	}

	for _, g := range groups {
		summary := ThreadSummary{
			ThreadID:     g.ThreadID,
			MessageCount: g.MessageCount,
			Latest:       representatives[g.ThreadID],
		}
		if summary.Latest != nil {
			summary.LatestDate = summary.Latest.Date
		}
		result.Threads = append(result.Threads, summary)
	}

	result.HasNext = int64(page*s.pageSize) < result.TotalCount
	return result, nil
}

// GetThreadMessages returns a conversation's messages in chronological
// order, restricted to the caller's accessible mailboxes.
func (s *ThreadService) GetThreadMessages(threadID string, mailboxes []string) ([]models.Message, error) {
	if len(mailboxes) == 0 {
		return nil, nil
	}

	var msgs []models.Message
	err := s.db.Preload("Sender").Preload("Recipients").Preload("Attachments").
		Where("thread_id = ? AND mailbox IN ?", threadID, mailboxes).
		Order("date ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
