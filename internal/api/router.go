package api

import (
	"context"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mailmirror/core/internal/api/handlers"
	"github.com/mailmirror/core/internal/api/middleware"
	"github.com/mailmirror/core/internal/config"
	"github.com/mailmirror/core/internal/crypto"
	"github.com/mailmirror/core/internal/gmail"
	"github.com/mailmirror/core/internal/services"
	"github.com/mailmirror/core/internal/storage"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(db *gorm.DB, cfg *config.Config, cipher *crypto.Cipher) (*gin.Engine, error) {
	router := gin.Default()

	origins := splitOrigins(cfg.CORSOrigins)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	jwtManager := middleware.NewJWTManager(cfg.JWTSecret, middleware.DefaultTokenExpiry)

	// Initialize services
	oauthCfg := gmail.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	userService := services.NewUserService(db)
	credentialService := services.NewCredentialService(db, cipher, oauthCfg)
	contactService := services.NewContactService(db)
	store := storage.NewStore(cfg.GetAttachmentsBaseDir())
	messageService := services.NewMessageService(db, contactService, store)
	threadService := services.NewThreadService(db)

	factory := func(ctx context.Context, token *oauth2.Token) (services.MailClient, error) {
		return gmail.NewClient(ctx, oauthCfg, token)
	}
	syncService := services.NewSyncService(db, credentialService, messageService, factory, logService, int64(cfg.SyncWindow))

	// Background mirroring and token upkeep
	syncScheduler := services.NewSyncScheduler(syncService, logService, time.Duration(cfg.SyncIntervalMin)*time.Minute)
	syncScheduler.Start()
	tokenScheduler := services.NewTokenScheduler(credentialService, time.Duration(cfg.TokenCheckMin)*time.Minute)
	tokenScheduler.Start()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, jwtManager, logService)
	oauthHandler := handlers.NewOAuthHandler(credentialService, oauthCfg, logService)
	credentialHandler := handlers.NewCredentialHandler(credentialService, logService)
	threadHandler := handlers.NewThreadHandler(threadService, credentialService)
	messageHandler := handlers.NewMessageHandler(messageService, syncService, credentialService)
	syncHandler := handlers.NewSyncHandler(syncService, credentialService, syncScheduler)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		// Auth routes (no JWT required)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}

		// OAuth routes (callback arrives from Google without a JWT)
		oauth := api.Group("/oauth")
		{
			oauth.GET("/config", oauthHandler.GetOAuthConfig)
			oauth.GET("/google/callback", oauthHandler.GoogleCallback)
		}

		// Protected routes (JWT required)
		protected := api.Group("")
		protected.Use(middleware.JWTMiddleware(jwtManager))
		{
			protected.GET("/auth/me", authHandler.GetCurrentUser)
			protected.GET("/oauth/google/auth", oauthHandler.GetGoogleAuthURL)

			// Credential routes
			credentials := protected.Group("/credentials")
			{
				credentials.GET("", credentialHandler.ListCredentials)
				credentials.PUT("/:id/enable", credentialHandler.EnableCredential)
				credentials.PUT("/:id/disable", credentialHandler.DisableCredential)
			}

			// Thread routes
			threads := protected.Group("/threads")
			{
				threads.GET("", threadHandler.GetThreads)
				threads.GET("/:id", threadHandler.GetThread)
			}

			// Message routes
			messages := protected.Group("/messages")
			{
				messages.POST("/send", messageHandler.Send)
				messages.GET("/:id", messageHandler.GetMessage)
				messages.POST("/:id/reply", messageHandler.Reply)
				messages.GET("/:id/attachments", messageHandler.ListAttachments)
				messages.GET("/:id/attachments/:attachmentID", messageHandler.DownloadAttachment)
			}

			// Sync routes
			sync := protected.Group("/sync")
			{
				sync.POST("", syncHandler.TriggerSync)
				sync.GET("/runs", syncHandler.ListRuns)
			}
		}
	}

	return router, nil
}

// splitOrigins parses the comma-separated CORS origin list
func splitOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}
