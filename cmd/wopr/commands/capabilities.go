package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Manage per-session capability grants",
}

var capabilitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every session's capability overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := requestRaw("GET", "/api/capabilities", nil)
		if err != nil {
			return err
		}
		printResult(raw)
		return nil
	},
}

func capabilitiesAdjust(verb string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <session> <capability...>",
		Short: verb + " one or more capabilities for a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"session": args[0], "capabilities": args[1:]}
			if err := request("POST", "/api/capabilities/"+verb, body, nil); err != nil {
				return err
			}
			fmt.Println(verb + "d")
			return nil
		},
	}
}

func init() {
	capabilitiesCmd.AddCommand(capabilitiesListCmd, capabilitiesAdjust("activate"), capabilitiesAdjust("deactivate"))
}
