package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mailmirror/core/internal/api/middleware"
	"github.com/mailmirror/core/internal/database/models"
	"github.com/mailmirror/core/internal/gmail"
	"github.com/mailmirror/core/internal/services"
	"golang.org/x/oauth2"
)

// OAuthHandler handles the Google authorization flow. The browser
// redirect dance itself is the provider's; this handler only hands out
// the auth URL and accepts the callback's grant code.
type OAuthHandler struct {
	credentials *services.CredentialService
	oauthCfg    *oauth2.Config
	logService  *services.LogService
}

// NewOAuthHandler creates a new OAuthHandler instance
func NewOAuthHandler(credentials *services.CredentialService, oauthCfg *oauth2.Config, logService *services.LogService) *OAuthHandler {
	return &OAuthHandler{
		credentials: credentials,
		oauthCfg:    oauthCfg,
		logService:  logService,
	}
}

// GetOAuthConfig reports whether Google OAuth is configured
func (h *OAuthHandler) GetOAuthConfig(c *gin.Context) {
	configured := h.oauthCfg.ClientID != "" && h.oauthCfg.ClientSecret != ""
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"configured": configured,
		},
	})
}

// GetGoogleAuthURL returns the URL the user visits to authorize a mailbox
func (h *OAuthHandler) GetGoogleAuthURL(c *gin.Context) {
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

	// State carries the owner so the callback can attribute the grant
	state := strconv.FormatUint(uint64(userID), 10)
	url := h.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"auth_url": url,
		},
	})
}

// GoogleCallback exchanges the grant code for a token payload, resolves
// the mailbox address from the profile, and upserts the credential.
func (h *OAuthHandler) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Missing authorization code",
			},
		})
		return
	}

	userID, err := strconv.ParseUint(c.Query("state"), 10, 32)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid state parameter",
			},
		})
		return
	}

	token, err := h.oauthCfg.Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "OAUTH_EXCHANGE_FAILED",
				"message": "Failed to exchange authorization code",
			},
		})
		return
	}

	client, err := gmail.NewClient(c.Request.Context(), h.oauthCfg, token)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PROVIDER_ERROR",
				"message": "Failed to reach the mail provider",
			},
		})
		return
	}

	mailbox, _, err := client.Profile(c.Request.Context())
	if err != nil || mailbox == "" {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PROVIDER_ERROR",
				"message": "Failed to resolve the mailbox address",
			},
		})
		return
	}

	payload := services.TokenPayload{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Scopes:       h.oauthCfg.Scopes,
	}

	cred, err := h.credentials.Upsert(uint(userID), mailbox, payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to store credential",
			},
		})
		return
	}

	h.logService.LogInfo(uint(userID), models.LogModuleCredential, "authorize", "Mailbox authorized", services.CredentialChangeDetails{
		CredentialID: cred.ID,
		Mailbox:      mailbox,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"credential_id": cred.ID,
			"mailbox":       cred.Mailbox,
			"color":         cred.Color,
		},
	})
}
