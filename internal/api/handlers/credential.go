package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mailmirror/core/internal/api/middleware"
	"github.com/mailmirror/core/internal/database/models"
	"github.com/mailmirror/core/internal/services"
)

// CredentialHandler handles credential endpoints
type CredentialHandler struct {
	credentials *services.CredentialService
	logService  *services.LogService
}

// NewCredentialHandler creates a new CredentialHandler instance
func NewCredentialHandler(credentials *services.CredentialService, logService *services.LogService) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
		logService:  logService,
	}
}

// credentialResponse projects a credential without its token blob
func credentialResponse(cred *models.Credential) gin.H {
	return gin.H{
		"id":           cred.ID,
		"user_id":      cred.UserID,
		"mailbox":      cred.Mailbox,
		"active":       cred.Active,
		"color":        cred.Color,
		"token_expiry": cred.TokenExpiry,
		"created_at":   cred.CreatedAt,
		"updated_at":   cred.UpdatedAt,
	}
}

// ListCredentials returns the caller's credentials, or all of them for admins
func (h *CredentialHandler) ListCredentials(c *gin.Context) {
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

	var creds []models.Credential
	var err error
	if middleware.GetIsAdminFromContext(c) {
		creds, err = h.credentials.ListAll()
	} else {
		creds, err = h.credentials.ListByUserID(userID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to list credentials",
			},
		})
		return
	}

	out := make([]gin.H, 0, len(creds))
	for i := range creds {
		out = append(out, credentialResponse(&creds[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    out,
	})
}

// setActive flips a credential's active flag after an ownership check
func (h *CredentialHandler) setActive(c *gin.Context, active bool) {
	userID, _ := middleware.GetUserIDFromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid credential id",
			},
		})
		return
	}

	cred, err := h.credentials.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Credential not found",
			},
		})
		return
	}

	if cred.UserID != userID && !middleware.GetIsAdminFromContext(c) {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Not your credential",
			},
		})
		return
	}

	cred, err = h.credentials.SetActive(uint(id), active)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to update credential",
			},
		})
		return
	}

	status := "disabled"
	if active {
		status = "enabled"
	}
	h.logService.LogInfo(userID, models.LogModuleCredential, "status_change", "Credential "+status, services.CredentialChangeDetails{
		CredentialID: cred.ID,
		Mailbox:      cred.Mailbox,
		Field:        "active",
		NewValue:     status,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    credentialResponse(cred),
	})
}

// EnableCredential re-activates a credential
func (h *CredentialHandler) EnableCredential(c *gin.Context) {
	h.setActive(c, true)
}

// DisableCredential soft-disables a credential. The row survives so
// messages keep their link and re-authorization re-activates it.
func (h *CredentialHandler) DisableCredential(c *gin.Context) {
	h.setActive(c, false)
}
