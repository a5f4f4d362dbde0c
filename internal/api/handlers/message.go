package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mailmirror/core/internal/database/models"
	"github.com/mailmirror/core/internal/services"
)

// MessageHandler handles single-message, attachment and send endpoints
type MessageHandler struct {
	messages    *services.MessageService
	syncService *services.SyncService
	credentials *services.CredentialService
}

// NewMessageHandler creates a new MessageHandler instance
func NewMessageHandler(messages *services.MessageService, syncService *services.SyncService, credentials *services.CredentialService) *MessageHandler {
	return &MessageHandler{
		messages:    messages,
		syncService: syncService,
		credentials: credentials,
	}
}

// loadAccessible fetches a message and enforces mailbox access in one
// place for the read endpoints below. A nil return means a response
// has already been written.
func (h *MessageHandler) loadAccessible(c *gin.Context) *models.Message {
	mailboxes, ok := accessibleMailboxes(c, h.credentials)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "Not authenticated",
			},
		})
		return nil
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid message id",
			},
		})
		return nil
	}

	msg, err := h.messages.GetMessage(uint(id))
	if err != nil || !containsMailbox(mailboxes, msg.Mailbox) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Message not found",
			},
		})
		return nil
	}

	return msg
}

// GetMessage returns one mirrored message with sender, recipients and
// attachment rows preloaded
func (h *MessageHandler) GetMessage(c *gin.Context) {
	msg := h.loadAccessible(c)
	if msg == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    msg,
	})
}

// ListAttachments returns the attachment rows of a message
func (h *MessageHandler) ListAttachments(c *gin.Context) {
	msg := h.loadAccessible(c)
	if msg == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    msg.Attachments,
	})
}

// DownloadAttachment streams a stored attachment body
func (h *MessageHandler) DownloadAttachment(c *gin.Context) {
	msg := h.loadAccessible(c)
	if msg == nil {
		return
	}

	attachmentID, err := strconv.ParseUint(c.Param("attachmentID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid attachment id",
			},
		})
		return
	}

	att, err := h.messages.GetAttachment(msg.ID, uint(attachmentID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Attachment not found",
			},
		})
		return
	}

	content, err := h.messages.ReadAttachmentContent(att)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to read attachment",
			},
		})
		return
	}

	mimeType := att.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+att.Filename+`"`)
	c.Data(http.StatusOK, mimeType, content)
}

// SendRequest represents the outbound message request body
type SendRequest struct {
	From    string   `json:"from" binding:"required"`
	To      []string `json:"to" binding:"required,min=1"`
	Subject string   `json:"subject"`
	Body    string   `json:"body" binding:"required"`
}

// Send dispatches a new message from one of the caller's mailboxes
func (h *MessageHandler) Send(c *gin.Context) {
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

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "from, to and body are required",
			},
		})
		return
	}

	if !containsMailbox(mailboxes, req.From) {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Mailbox not accessible",
			},
		})
		return
	}

	id, err := h.syncService.Send(c.Request.Context(), req.From, req.To, req.Subject, req.Body)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SEND_FAILED",
				"message": "Failed to send message",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"message_id": id,
		},
	})
}

// ReplyRequest represents the reply request body
type ReplyRequest struct {
	Body string `json:"body" binding:"required"`
}

// Reply sends a threaded reply to a mirrored message from the mailbox
// that received it
func (h *MessageHandler) Reply(c *gin.Context) {
	msg := h.loadAccessible(c)
	if msg == nil {
		return
	}

	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "body is required",
			},
		})
		return
	}

	id, err := h.syncService.Reply(c.Request.Context(), msg.ID, req.Body)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SEND_FAILED",
				"message": "Failed to send reply",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"message_id": id,
		},
	})
}
