package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fileconv/internal/session"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the conversion service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := ctx.sessionManager()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, renderStatusLine("Service", statusInfo, manager.BaseURL(), colorize))
			status, err := manager.Health(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Health", statusError, formatError(err), colorize))
				return err
			}
			kind := statusOK
			if !strings.EqualFold(strings.TrimSpace(status), "ok") {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Health", kind, status, colorize))
			info, ok := ctx.storedCredential()
			fmt.Fprintln(out, renderStatusLine("Session", credentialKind(info, ok), credentialSummary(info, ok), colorize))
			return nil
		},
	}
}

func credentialKind(info session.CredentialInfo, ok bool) statusKind {
	switch {
	case !ok:
		return statusInfo
	case info.Expired(time.Now()):
		return statusWarn
	default:
		return statusOK
	}
}

func credentialSummary(info session.CredentialInfo, ok bool) string {
	switch {
	case !ok:
		return "not logged in"
	case info.ExpiresAt.IsZero():
		return "credential stored"
	case info.Expired(time.Now()):
		return "credential expired " + formatTimestamp(info.ExpiresAt)
	default:
		return "credential valid until " + formatTimestamp(info.ExpiresAt)
	}
}
