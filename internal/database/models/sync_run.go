package models

import (
	"time"
)

// SyncRun status values
const (
	SyncStatusInProgress = "in_progress"
	SyncStatusSuccess    = "success"
	SyncStatusError      = "error"
)

// SyncRun is one audit record of a single orchestrator pass over one
// mailbox. Rows are append-only; the history cursor is recorded for
// operator visibility, every run still rescans the configured window.
type SyncRun struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Mailbox    string    `gorm:"index;size:255;not null" json:"mailbox"`
	Status     string    `gorm:"size:20;not null" json:"status"`
	HistoryID  uint64    `json:"history_id"`
	InboxCount int       `json:"inbox_count"`
	SentCount  int       `json:"sent_count"`
	TotalCount int       `json:"total_count"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	CreatedAt  time.Time `json:"created_at"`
}
