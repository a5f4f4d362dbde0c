package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// syncCmd runs one mirroring pass over every active mailbox
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror every active mailbox once",
	Long:  `Run one synchronization pass over all active mailbox credentials and print a per-account summary.`,
	Run: func(cmd *cobra.Command, args []string) {
		if syncService == nil {
			fmt.Fprintln(os.Stderr, "Error: sync service not initialized")
			os.Exit(1)
		}

		summaries, err := syncService.SyncAll(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: sync failed: %v\n", err)
			os.Exit(1)
		}

		if len(summaries) == 0 {
			fmt.Println("No active mailboxes to sync.")
			return
		}

		fmt.Println("Sync results:")
		fmt.Println("--------------------------------------------------------------")
		fmt.Printf("%-30s %-7s %-7s %-7s %s\n", "Mailbox", "Inbox", "Sent", "Synced", "Error")
		fmt.Println("--------------------------------------------------------------")
		failed := 0
		for _, s := range summaries {
			errMsg := "-"
			if s.Error != "" {
				errMsg = s.Error
				failed++
			}
			fmt.Printf("%-30s %-7d %-7d %-7d %s\n", s.Mailbox, s.InboxCount, s.SentCount, s.Synced, errMsg)
		}
		fmt.Println("--------------------------------------------------------------")
		fmt.Printf("%d account(s) synced, %d failed\n", len(summaries)-failed, failed)
	},
}
