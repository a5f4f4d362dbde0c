package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mailmirror/core/internal/api/middleware"
	"github.com/mailmirror/core/internal/database/models"
	"github.com/mailmirror/core/internal/services"
)

// accessibleMailboxes resolves the mailbox set the authenticated
// principal may read. Admins see every active mailbox, others only
// their own. The read queries below only ever filter within this set.
func accessibleMailboxes(c *gin.Context, credentials *services.CredentialService) ([]string, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return nil, false
	}

	principal := &models.User{ID: userID, IsAdmin: middleware.GetIsAdminFromContext(c)}
	mailboxes, err := credentials.AccessibleMailboxes(principal)
	if err != nil {
		return nil, false
	}
	return mailboxes, true
}

// containsMailbox reports whether mailbox is in the accessible set
func containsMailbox(mailboxes []string, mailbox string) bool {
	for _, m := range mailboxes {
		if m == mailbox {
			return true
		}
	}
	return false
}
