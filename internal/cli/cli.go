package cli

import (
	"context"
	"os"

	"github.com/mailmirror/core/internal/config"
	"github.com/mailmirror/core/internal/crypto"
	"github.com/mailmirror/core/internal/gmail"
	"github.com/mailmirror/core/internal/services"
	"github.com/mailmirror/core/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var (
	db          *gorm.DB
	cfg         *config.Config
	userService *services.UserService
	syncService *services.SyncService
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mailmirror",
	Short: "Gmail mailbox mirroring service",
	Long: `MailMirror keeps a local, queryable mirror of Gmail mailboxes.

The command line tool provides:
  - User management: create users, list users, reset passwords
  - Sync control: run one mirroring pass from the terminal

Examples:
  mailmirror user create         # create a new user
  mailmirror user list           # list all users
  mailmirror user reset-pwd      # reset a user's password
  mailmirror sync                # mirror every active mailbox once`,
}

// Execute runs the CLI with the provided database, config and cipher
func Execute(database *gorm.DB, config *config.Config, cipher *crypto.Cipher) {
	db = database
	cfg = config

	oauthCfg := gmail.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	userService = services.NewUserService(db)
	credService := services.NewCredentialService(db, cipher, oauthCfg)
	contactService := services.NewContactService(db)
	store := storage.NewStore(cfg.GetAttachmentsBaseDir())
	messageService := services.NewMessageService(db, contactService, store)

	factory := func(ctx context.Context, token *oauth2.Token) (services.MailClient, error) {
		return gmail.NewClient(ctx, oauthCfg, token)
	}
	syncService = services.NewSyncService(db, credService, messageService, factory, logService, int64(cfg.SyncWindow))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(syncCmd)
}
