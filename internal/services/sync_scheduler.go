package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mailmirror/core/internal/database/models"
)

// SyncScheduler runs periodic sync passes. A pass-level lock keeps
// cycles from overlapping and per-account locks keep a scheduled sync
// from colliding with a manual one.
type SyncScheduler struct {
	syncService  *SyncService
	logService   *LogService
	interval     time.Duration
	stopChan     chan struct{}
	running      bool
	mu           sync.Mutex
	syncing      sync.Mutex
	accountLocks sync.Map
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(syncService *SyncService, logService *LogService, interval time.Duration) *SyncScheduler {
	return &SyncScheduler{
		syncService: syncService,
		logService:  logService,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the automatic sync process
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("[SyncScheduler] Starting with interval: %v", s.interval)

	go func() {
		// Give the server a moment to come up before the first pass
		select {
		case <-time.After(10 * time.Second):
			s.runPass()
		case <-s.stopChan:
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runPass()
			case <-s.stopChan:
				log.Println("[SyncScheduler] Stopping")
				return
			}
		}
	}()
}

// Stop stops the automatic sync process
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	s.running = false
}

// TryLockAccount attempts to lock an account for syncing. Manual sync
// paths use this to avoid racing the scheduler on the same mailbox.
func (s *SyncScheduler) TryLockAccount(credentialID uint) bool {
	_, loaded := s.accountLocks.LoadOrStore(credentialID, true)
	return !loaded
}

// UnlockAccount releases an account lock
func (s *SyncScheduler) UnlockAccount(credentialID uint) {
	s.accountLocks.Delete(credentialID)
}

// runPass syncs all active credentials sequentially
func (s *SyncScheduler) runPass() {
	// Skip this cycle if the previous one is still running
	if !s.syncing.TryLock() {
		log.Println("[SyncScheduler] Previous pass still running, skipping this cycle")
		return
	}
	defer s.syncing.Unlock()

	creds, err := s.syncService.credentials.ListActive()
	if err != nil {
		log.Printf("[SyncScheduler] Failed to list credentials: %v", err)
		return
	}
	if len(creds) == 0 {
		return
	}

	log.Printf("[SyncScheduler] Syncing %d accounts", len(creds))

	ctx := context.Background()
	synced := 0
	for i := range creds {
		cred := &creds[i]
		if !s.TryLockAccount(cred.ID) {
			log.Printf("[SyncScheduler] Account %s is already syncing, skipping", cred.Mailbox)
			continue
		}

		summary := s.syncService.SyncAccount(ctx, cred)
		s.UnlockAccount(cred.ID)

		if summary.Error == "" {
			synced += summary.Synced
		}
	}

	log.Printf("[SyncScheduler] Pass completed, %d messages synced", synced)
	if synced > 0 {
		s.logService.LogInfo(0, models.LogModuleSync, "auto_sync", "Scheduled sync completed", map[string]interface{}{
			"accounts":     len(creds),
			"synced_count": synced,
		})
	}
}
