package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mailmirror/core/internal/services"
)

// ThreadHandler handles thread listing and detail endpoints
type ThreadHandler struct {
	threads     *services.ThreadService
	credentials *services.CredentialService
}

// NewThreadHandler creates a new ThreadHandler instance
func NewThreadHandler(threads *services.ThreadService, credentials *services.CredentialService) *ThreadHandler {
	return &ThreadHandler{
		threads:     threads,
		credentials: credentials,
	}
}

// GetThreads returns one page of conversation summaries across the
// caller's accessible mailboxes, newest activity first.
func (h *ThreadHandler) GetThreads(c *gin.Context) {
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

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	account := c.Query("account")
	if account != "" && !containsMailbox(mailboxes, account) {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Mailbox not accessible",
			},
		})
		return
	}

	result, err := h.threads.GetThreads(services.ThreadQuery{
		Mailboxes: mailboxes,
		Account:   account,
		Search:    c.Query("q"),
		Page:      page,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to list threads",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetThread returns the full message list of one conversation in
// chronological order
func (h *ThreadHandler) GetThread(c *gin.Context) {
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

	threadID := c.Param("id")
	messages, err := h.threads.GetThreadMessages(threadID, mailboxes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to load thread",
			},
		})
		return
	}

	// An empty result is indistinguishable from a thread the caller
	// may not see; both read as not found
	if len(messages) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Thread not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"thread_id": threadID,
			"messages":  messages,
		},
	})
}
