package main

import (
	"log"
	"os"

	"github.com/mailmirror/core/internal/api"
	"github.com/mailmirror/core/internal/cli"
	"github.com/mailmirror/core/internal/config"
	"github.com/mailmirror/core/internal/crypto"
	"github.com/mailmirror/core/internal/database"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The token cipher is mandatory; refusing to start beats storing
	// credentials in the clear
	key, err := cfg.GetEncryptionKey()
	if err != nil {
		log.Fatalf("Failed to load encryption key (set MAILMIRROR_ENCRYPTION_KEY): %v", err)
	}
	cipher, err := crypto.NewCipher(key)
	if err != nil {
		log.Fatalf("Failed to initialize token cipher: %v", err)
	}

	// Ensure data directories exist
	if err := ensureDataDirs(cfg); err != nil {
		log.Fatalf("Failed to create data directories: %v", err)
	}

	// Initialize database
	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Check if running CLI command
	if len(os.Args) > 1 {
		cli.Execute(db, cfg, cipher)
		return
	}

	// Start API server
	router, err := api.SetupRouter(db, cfg, cipher)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}

	log.Printf("Starting MailMirror server on port %s", cfg.APIPort)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Attachments directory: %s", cfg.GetAttachmentsBaseDir())
	log.Printf("Database path: %s", cfg.DatabasePath)
	if err := router.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureDataDirs creates the data and attachment directories if they don't exist
func ensureDataDirs(cfg *config.Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.GetAttachmentsBaseDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
