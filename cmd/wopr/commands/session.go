package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage daemon sessions",
}

var sessionCreateContext string
var sessionCreateProvider string

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every session",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := requestRaw("GET", "/api/sessions", nil)
		if err != nil {
			return err
		}
		printResult(raw)
		return nil
	},
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"name": args[0]}
		if sessionCreateContext != "" {
			body["context"] = sessionCreateContext
		}
		if sessionCreateProvider != "" {
			body["provider"] = map[string]string{"name": sessionCreateProvider}
		}
		var out map[string]any
		if err := request("POST", "/api/sessions", body, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var sessionGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show a session's state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := requestRaw("GET", "/api/sessions/"+args[0], nil)
		if err != nil {
			return err
		}
		printResult(raw)
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := request("DELETE", "/api/sessions/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

var sessionHistoryLimit int

var sessionHistoryCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show a session's conversation log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fmt.Sprintf("/api/sessions/%s/history", args[0])
		if sessionHistoryLimit > 0 {
			path += fmt.Sprintf("?limit=%d", sessionHistoryLimit)
		}
		raw, err := requestRaw("GET", path, nil)
		if err != nil {
			return err
		}
		printResult(raw)
		return nil
	},
}

func init() {
	sessionCreateCmd.Flags().StringVar(&sessionCreateContext, "context", "", "Initial system context")
	sessionCreateCmd.Flags().StringVar(&sessionCreateProvider, "provider", "", "Provider id to pin this session to")
	sessionHistoryCmd.Flags().IntVar(&sessionHistoryLimit, "limit", 0, "Maximum entries to return (0 = all)")

	sessionCmd.AddCommand(sessionListCmd, sessionCreateCmd, sessionGetCmd, sessionDeleteCmd, sessionHistoryCmd)
}
