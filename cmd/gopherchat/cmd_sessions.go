package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/gopherchat/internal/api"
	"github.com/user/gopherchat/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsCancelCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect server-held streaming sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := api.New(loadConfig().ServerURL)

		list, err := backend.ListSessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCONVERSATION\tSTATUS\tCOMPLETE\tBUFFERED")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\n",
				s.ID,
				s.ConversationID,
				s.Status,
				s.StreamComplete,
				s.BufferedEvents,
			)
		}
		return w.Flush()
	},
}

var sessionsCancelCmd = &cobra.Command{
	Use:   "cancel <conversation-id> <session-id>",
	Short: "Cancel a session on the server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := api.New(loadConfig().ServerURL)

		convID := types.ConversationID(args[0])
		sessionID := types.SessionID(args[1])
		if err := backend.CancelSession(cmd.Context(), convID, sessionID); err != nil {
			return fmt.Errorf("cancel session: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Session %s cancelled.\n", sessionID)
		return nil
	},
}
