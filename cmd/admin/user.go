package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tarotjournal/internal/models"
	"tarotjournal/internal/pagination"
)

// NewUserCmd creates the user command group.
func NewUserCmd(open appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	cmd.AddCommand(newUserListCmd(open))
	cmd.AddCommand(newUserPromoteCmd(open))
	cmd.AddCommand(newUserVerifyCmd(open))
	cmd.AddCommand(newUserResetPasswordCmd(open))
	cmd.AddCommand(newUserDeleteCmd(open))
	return cmd
}

func newUserListCmd(open appFactory) *cobra.Command {
	var page pagination.PageRequest

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, closeApp, err := open()
			if err != nil {
				return err
			}
			defer closeApp()

			result, err := app.Admin.ListUsers(cmd.Context(), page)
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			if len(result.Data) == 0 {
				cmd.Println("No users found")
				return nil
			}

			cmd.Printf("Page %d/%d, %d users total\n\n", result.Page, result.TotalPages, result.TotalItems)
			cmd.Printf("%-36s  %-20s  %-30s  %-8s  %-5s  %s\n", "ID", "Username", "Email", "Verified", "Admin", "Created")
			for _, u := range result.Data {
				cmd.Printf("%-36s  %-20s  %-30s  %-8s  %-5s  %s\n",
					u.ID, u.Username, u.EmailAddress(), yesNo(u.EmailVerified), yesNo(u.IsAdmin),
					u.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&page.PageSize, "page-size", 50, "Users per page")
	cmd.Flags().StringVarP(&page.Search, "search", "q", "", "Filter by username or email")
	return cmd
}

func newUserPromoteCmd(open appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <username>",
		Short: "Grant admin rights to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeApp, err := open()
			if err != nil {
				return err
			}
			defer closeApp()

			user, promoted, err := app.Admin.PromoteUser(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to promote %s: %w", args[0], err)
			}
			if !promoted {
				cmd.Printf("%s is already an admin\n", user.Username)
				return nil
			}

			app.Audit.Log(cliActor, models.AuditActionAdminPromoted, "user", user.ID, cliActor, nil)
			cmd.Printf("%s is now an admin\n", user.Username)
			return nil
		},
	}
}

func newUserVerifyCmd(open appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <username>",
		Short: "Mark a user's email as verified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeApp, err := open()
			if err != nil {
				return err
			}
			defer closeApp()

			user, err := app.Admin.LookupUser(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to find %s: %w", args[0], err)
			}
			if _, err := app.Admin.VerifyUser(cmd.Context(), user.ID); err != nil {
				return fmt.Errorf("failed to verify %s: %w", args[0], err)
			}

			app.Audit.Log(cliActor, models.AuditActionUserVerified, "user", user.ID, cliActor, nil)
			cmd.Printf("%s verified\n", user.Username)
			return nil
		},
	}
}

func newUserResetPasswordCmd(open appFactory) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "reset-password <username>",
		Short: "Set a new password, clear any lockout and end all sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeApp, err := open()
			if err != nil {
				return err
			}
			defer closeApp()

			user, err := app.Admin.LookupUser(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to find %s: %w", args[0], err)
			}
			if err := app.Admin.ResetUserPassword(cmd.Context(), cliActor, user.ID, password); err != nil {
				return fmt.Errorf("failed to reset password for %s: %w", args[0], err)
			}

			app.Audit.Log(cliActor, models.AuditActionPasswordReset, "user", user.ID, cliActor, nil)
			cmd.Printf("Password reset for %s\n", user.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "New password (required)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserDeleteCmd(open appFactory) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user and all their sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to delete %s without --yes", args[0])
			}

			app, closeApp, err := open()
			if err != nil {
				return err
			}
			defer closeApp()

			user, err := app.Admin.LookupUser(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to find %s: %w", args[0], err)
			}
			if _, err := app.Admin.DeleteUser(cmd.Context(), cliActor, user.ID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", args[0], err)
			}

			app.Audit.Log(cliActor, models.AuditActionUserDeleted, "user", user.ID, cliActor,
				map[string]any{"username": user.Username})
			cmd.Printf("Deleted %s\n", user.Username)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm deletion")
	return cmd
}

// NewSessionsCmd creates the sessions command group.
func NewSessionsCmd(open appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage login sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, closeApp, err := open()
			if err != nil {
				return err
			}
			defer closeApp()

			n, err := app.Sessions.PurgeExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to purge sessions: %w", err)
			}
			cmd.Printf("Purged %d expired session(s)\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <username>",
		Short: "End every session of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeApp, err := open()
			if err != nil {
				return err
			}
			defer closeApp()

			user, err := app.Admin.LookupUser(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to find %s: %w", args[0], err)
			}
			n, err := app.Sessions.RevokeUser(cmd.Context(), user.ID)
			if err != nil {
				return fmt.Errorf("failed to revoke sessions: %w", err)
			}
			cmd.Printf("Revoked %d session(s) for %s\n", n, user.Username)
			return nil
		},
	})
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
