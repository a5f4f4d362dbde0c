package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mailmirror/core/internal/database/models"
)

// TokenScheduler refreshes OAuth tokens before they expire so sync
// passes rarely pay the refresh round-trip themselves.
type TokenScheduler struct {
	credentials *CredentialService
	interval    time.Duration
	stopChan    chan struct{}
	running     bool
	mu          sync.Mutex
}

// NewTokenScheduler creates a new token scheduler
func NewTokenScheduler(credentials *CredentialService, interval time.Duration) *TokenScheduler {
	return &TokenScheduler{
		credentials: credentials,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the token refresh scheduler
func (s *TokenScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.run()
	log.Printf("[TokenScheduler] Started with interval %v", s.interval)
}

// Stop stops the token refresh scheduler
func (s *TokenScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopChan)
	s.running = false
	log.Println("[TokenScheduler] Stopped")
}

func (s *TokenScheduler) run() {
	// Run immediately on start
	s.refreshExpiringTokens()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refreshExpiringTokens()
		case <-s.stopChan:
			return
		}
	}
}

// refreshExpiringTokens refreshes tokens that are about to expire. The
// query threshold matches the refresh slack so every row found here is
// actually refreshed.
func (s *TokenScheduler) refreshExpiringTokens() {
	threshold := time.Now().Add(expirySlack)

	var creds []models.Credential
	err := s.credentials.db.
		Where("active = ? AND token_expiry < ?", true, threshold).
		Find(&creds).Error
	if err != nil {
		log.Printf("[TokenScheduler] Error finding credentials: %v", err)
		return
	}

	if len(creds) == 0 {
		return
	}

	log.Printf("[TokenScheduler] Found %d credentials with expiring tokens", len(creds))

	ctx := context.Background()
	for i := range creds {
		cred := &creds[i]
		if _, err := s.credentials.RefreshIfExpired(ctx, cred); err != nil {
			// The stored payload is untouched; manual re-auth may be needed
			log.Printf("[TokenScheduler] Failed to refresh token for %s: %v", cred.Mailbox, err)
		} else {
			log.Printf("[TokenScheduler] Refreshed token for %s", cred.Mailbox)
		}
	}
}
