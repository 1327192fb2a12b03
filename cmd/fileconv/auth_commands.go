package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newAuthCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newLoginCommand(ctx),
		newLogoutCommand(ctx),
		newRegisterCommand(ctx),
		newWhoamiCommand(ctx),
		newPasswordCommand(ctx),
	}
}

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Log in and store the session credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := ctx.sessionManager()
			if err != nil {
				return err
			}
			secret, err := readSecret(password, cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
			if err != nil {
				return err
			}
			if err := manager.Login(cmd.Context(), args[0], secret); err != nil {
				return err
			}
			snap := manager.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", snap.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (default: FILECONV_PASSWORD or stdin)")
	return cmd
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := ctx.sessionManager()
			if err != nil {
				return err
			}
			manager.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "register EMAIL",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := ctx.sessionManager()
			if err != nil {
				return err
			}
			secret, err := readSecret(password, cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
			if err != nil {
				return err
			}
			user, err := manager.Register(cmd.Context(), args[0], secret)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Registered %s\n", user.Email)
			fmt.Fprintln(out, "Run `fileconv login` to start a session.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (default: FILECONV_PASSWORD or stdin)")
	return cmd
}

type whoamiView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	IsSuperuser bool       `json:"is_superuser"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func newWhoamiCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := ctx.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			user := manager.Snapshot().User
			view := whoamiView{
				ID:          user.ID,
				Email:       user.Email,
				IsActive:    user.IsActive,
				IsVerified:  user.IsVerified,
				IsSuperuser: user.IsSuperuser,
			}
			if info, ok := manager.CredentialInfo(); ok && !info.ExpiresAt.IsZero() {
				expires := info.ExpiresAt
				view.ExpiresAt = &expires
			}
			if jsonOut {
				return writeJSON(cmd, view)
			}

			rows := [][]string{
				{"Email", view.Email},
				{"User ID", view.ID},
				{"Active", yesNo(view.IsActive)},
				{"Verified", yesNo(view.IsVerified)},
				{"Superuser", yesNo(view.IsSuperuser)},
			}
			if view.ExpiresAt != nil {
				rows = append(rows, []string{"Session expires", formatTimestamp(*view.ExpiresAt)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newPasswordCommand(ctx *commandContext) *cobra.Command {
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Password recovery",
	}

	passwordCmd.AddCommand(&cobra.Command{
		Use:   "forgot EMAIL",
		Short: "Request a password reset token by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := ctx.sessionManager()
			if err != nil {
				return err
			}
			if err := manager.RequestPasswordReset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "If %s has an account, a reset token is on its way.\n", strings.TrimSpace(args[0]))
			return nil
		},
	})

	var password string
	resetCmd := &cobra.Command{
		Use:   "reset TOKEN",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := ctx.sessionManager()
			if err != nil {
				return err
			}
			secret, err := readSecret(password, cmd.InOrStdin(), cmd.ErrOrStderr(), "New password: ")
			if err != nil {
				return err
			}
			if err := manager.ResetPassword(cmd.Context(), args[0], secret); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated. Log in with the new password.")
			return nil
		},
	}
	resetCmd.Flags().StringVarP(&password, "password", "p", "", "New password (default: FILECONV_PASSWORD or stdin)")
	passwordCmd.AddCommand(resetCmd)

	return passwordCmd
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}
