package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mailmirror/core/internal/api/middleware"
	"github.com/mailmirror/core/internal/database/models"
	"github.com/mailmirror/core/internal/services"
)

// SyncHandler handles manual sync triggers and run history
type SyncHandler struct {
	syncService *services.SyncService
	credentials *services.CredentialService
	scheduler   *services.SyncScheduler
}

// NewSyncHandler creates a new SyncHandler instance
func NewSyncHandler(syncService *services.SyncService, credentials *services.CredentialService, scheduler *services.SyncScheduler) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		credentials: credentials,
		scheduler:   scheduler,
	}
}

// TriggerSync runs one sync pass for the caller's accounts. Admins
// sync every active account; account-level locks keep a concurrent
// scheduler pass from touching the same mailbox twice.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "Not authenticated",
			},
		})
		return
	}

	creds, err := h.syncTargets(c, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to load accounts",
			},
		})
		return
	}

	summaries := make([]services.AccountSummary, 0, len(creds))
	skipped := 0
	for i := range creds {
		cred := &creds[i]
		if !h.scheduler.TryLockAccount(cred.ID) {
			skipped++
			summaries = append(summaries, services.AccountSummary{
				Mailbox: cred.Mailbox,
				Error:   "sync already in progress",
			})
			continue
		}
		summary := h.syncService.SyncAccount(c.Request.Context(), cred)
		h.scheduler.UnlockAccount(cred.ID)
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"accounts": summaries,
			"skipped":  skipped,
		},
	})
}

// syncTargets picks the accounts a trigger covers: every active
// account for admins, the caller's own active accounts otherwise
func (h *SyncHandler) syncTargets(c *gin.Context, userID uint) ([]models.Credential, error) {
	if middleware.GetIsAdminFromContext(c) {
		return h.credentials.ListActive()
	}
	return h.credentials.ListActiveByUserID(userID)
}

// ListRuns returns recent sync run records for the accessible mailboxes
func (h *SyncHandler) ListRuns(c *gin.Context) {
	mailboxes, ok := accessibleMailboxes(c, h.credentials)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "Not authenticated",
			},
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.syncService.ListRuns(mailboxes, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to list sync runs",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    runs,
	})
}
