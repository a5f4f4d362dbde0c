package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/mailmirror/core/internal/database/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// selectUser prints the user list and prompts for an ID. Returns nil
// after printing a message when there is nothing to select.
func selectUser(reader *bufio.Reader) *models.User {
	users, err := userService.ListUsers()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list users: %v\n", err)
		os.Exit(1)
	}

	if len(users) == 0 {
		fmt.Println("No users yet.")
		return nil
	}

	fmt.Println("Available users:")
	for _, u := range users {
		fmt.Printf("  [%d] %s\n", u.ID, u.Username)
	}
	fmt.Println()

	fmt.Print("Enter user ID: ")
	idStr, err := reader.ReadString('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read input: %v\n", err)
		os.Exit(1)
	}
	idStr = strings.TrimSpace(idStr)
	userID, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: invalid user ID")
		os.Exit(1)
	}

	targetUser, err := userService.GetUserByID(uint(userID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: user not found: %v\n", err)
		os.Exit(1)
	}
	return targetUser
}

var createAdmin bool

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management",
	Long:  `Manage system users: create users, list users, promote to admin, and reset passwords.`,
}

// userCreateCmd creates a new user
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long:  `Interactively create a new user. Prompts for username and password.`,
	Run: func(cmd *cobra.Command, args []string) {
		if userService == nil {
			fmt.Fprintln(os.Stderr, "Error: user service not initialized")
			os.Exit(1)
		}

		reader := bufio.NewReader(os.Stdin)

		// Get username
		fmt.Print("Username: ")
		username, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read input: %v\n", err)
			os.Exit(1)
		}
		username = strings.TrimSpace(username)
		if username == "" {
			fmt.Fprintln(os.Stderr, "Error: username must not be empty")
			os.Exit(1)
		}

		// Get password (hidden input)
		fmt.Print("Password (at least 6 characters): ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: failed to read password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		password := string(passwordBytes)
		if len(password) < 6 {
			fmt.Fprintln(os.Stderr, "Error: password must be at least 6 characters")
			os.Exit(1)
		}

		// Confirm password
		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: failed to read password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		if password != string(confirmBytes) {
			fmt.Fprintln(os.Stderr, "Error: passwords do not match")
			os.Exit(1)
		}

		// Create user
		newUser, err := userService.CreateUser(username, password, createAdmin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create user: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Println("User created successfully!")
		fmt.Printf("  ID: %d\n", newUser.ID)
		fmt.Printf("  Username: %s\n", newUser.Username)
		fmt.Printf("  Admin: %t\n", newUser.IsAdmin)
	},
}

// userListCmd lists all users
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Long:  `Show every user registered in the system.`,
	Run: func(cmd *cobra.Command, args []string) {
		if userService == nil {
			fmt.Fprintln(os.Stderr, "Error: user service not initialized")
			os.Exit(1)
		}

		users, err := userService.ListUsers()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list users: %v\n", err)
			os.Exit(1)
		}

		if len(users) == 0 {
			fmt.Println("No users yet.")
			return
		}

		fmt.Println("Users:")
		fmt.Println("----------------------------------------")
		fmt.Printf("%-6s %-20s %-7s %s\n", "ID", "Username", "Admin", "Created")
		fmt.Println("----------------------------------------")
		for _, u := range users {
			createdAt := u.CreatedAt.Format("2006-01-02 15:04:05")
			fmt.Printf("%-6d %-20s %-7t %s\n", u.ID, u.Username, u.IsAdmin, createdAt)
		}
		fmt.Println("----------------------------------------")
		fmt.Printf("%d user(s) total\n", len(users))
	},
}

// userPromoteCmd grants a user admin rights
var userPromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote a user to admin",
	Long:  `Interactively grant admin rights to an existing user. This operation requires confirmation.`,
	Run: func(cmd *cobra.Command, args []string) {
		if userService == nil {
			fmt.Fprintln(os.Stderr, "Error: user service not initialized")
			os.Exit(1)
		}

		reader := bufio.NewReader(os.Stdin)

		targetUser := selectUser(reader)
		if targetUser == nil {
			return
		}
		if targetUser.IsAdmin {
			fmt.Printf("User '%s' is already an admin.\n", targetUser.Username)
			return
		}

		fmt.Printf("\nWarning: about to grant admin rights to user '%s' (ID: %d).\n", targetUser.Username, targetUser.ID)
		fmt.Print("Continue? (yes/no): ")
		confirm, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read input: %v\n", err)
			os.Exit(1)
		}
		confirm = strings.TrimSpace(strings.ToLower(confirm))
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Operation cancelled.")
			return
		}

		if _, err := userService.PromoteUser(targetUser.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to promote user: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Printf("User '%s' is now an admin.\n", targetUser.Username)
	},
}

// userResetPwdCmd resets a user's password
var userResetPwdCmd = &cobra.Command{
	Use:   "reset-pwd",
	Short: "Reset a user's password",
	Long:  `Interactively reset the password of a given user. This operation requires confirmation.`,
	Run: func(cmd *cobra.Command, args []string) {
		if userService == nil {
			fmt.Fprintln(os.Stderr, "Error: user service not initialized")
			os.Exit(1)
		}

		reader := bufio.NewReader(os.Stdin)

		targetUser := selectUser(reader)
		if targetUser == nil {
			return
		}

		// Confirm operation
		fmt.Printf("\nWarning: about to reset the password of user '%s' (ID: %d).\n", targetUser.Username, targetUser.ID)
		fmt.Print("Continue? (yes/no): ")
		confirm, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read input: %v\n", err)
			os.Exit(1)
		}
		confirm = strings.TrimSpace(strings.ToLower(confirm))
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Operation cancelled.")
			return
		}

		// Get new password
		fmt.Print("New password (at least 6 characters): ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: failed to read password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		newPassword := string(passwordBytes)
		if len(newPassword) < 6 {
			fmt.Fprintln(os.Stderr, "Error: password must be at least 6 characters")
			os.Exit(1)
		}

		// Confirm password
		fmt.Print("Confirm new password: ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: failed to read password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		if newPassword != string(confirmBytes) {
			fmt.Fprintln(os.Stderr, "Error: passwords do not match")
			os.Exit(1)
		}

		// Reset password
		if err := userService.ResetPassword(targetUser.ID, newPassword); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to reset password: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Printf("Password for user '%s' has been reset.\n", targetUser.Username)
	},
}

func init() {
	userCreateCmd.Flags().BoolVar(&createAdmin, "admin", false, "create the user with admin rights")
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userPromoteCmd)
	userCmd.AddCommand(userResetPwdCmd)
}
