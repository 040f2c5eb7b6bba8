package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Manage scheduled injections",
}

var cronListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := requestRaw("GET", "/api/crons", nil)
		if err != nil {
			return err
		}
		printResult(raw)
		return nil
	},
}

var (
	cronSession string
	cronCron    string
	cronAt      int64
	cronOnce    bool
)

var cronAddCmd = &cobra.Command{
	Use:   "add <name> <message...>",
	Short: "Add a cron or one-shot schedule",
	Long: `Add a cron or one-shot schedule. Exactly one of --cron or --at must
be given: --cron takes a standard 5-field cron expression; --at takes an
absolute Unix epoch in milliseconds.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (cronCron == "") == (cronAt == 0) {
			return fmt.Errorf("exactly one of --cron or --at must be given")
		}
		message := args[1]
		for _, a := range args[2:] {
			message += " " + a
		}
		body := map[string]any{
			"name": args[0], "session": cronSession, "message": message,
		}
		if cronCron != "" {
			body["cron"] = cronCron
			body["once"] = cronOnce
		}
		if cronAt != 0 {
			body["at"] = cronAt
		}
		var out map[string]any
		if err := request("POST", "/api/crons", body, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var cronRemoveCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := request("DELETE", "/api/crons/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Println("removed")
		return nil
	},
}

func init() {
	cronAddCmd.Flags().StringVar(&cronSession, "session", "", "Session to inject into (required)")
	cronAddCmd.Flags().StringVar(&cronCron, "cron", "", "Standard 5-field cron expression")
	cronAddCmd.Flags().Int64Var(&cronAt, "at", 0, "Absolute epoch milliseconds for a one-shot")
	cronAddCmd.Flags().BoolVar(&cronOnce, "once", false, "Remove the schedule after its first cron fire")
	cronAddCmd.MarkFlagRequired("session")

	cronCmd.AddCommand(cronListCmd, cronAddCmd, cronRemoveCmd)
}
