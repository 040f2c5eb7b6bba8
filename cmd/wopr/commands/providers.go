package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect and manage registered providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := requestRaw("GET", "/api/providers", nil)
		if err != nil {
			return err
		}
		printResult(raw)
		return nil
	},
}

var providersHealthCmd = &cobra.Command{
	Use:   "health-check",
	Short: "Re-probe every provider's health",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := requestRaw("POST", "/api/providers/health-check", nil)
		if err != nil {
			return err
		}
		printResult(raw)
		return nil
	},
}

var setKeyBaseURL string

var providersSetKeyCmd = &cobra.Command{
	Use:   "set-key <provider-id> <api-key>",
	Short: "Rotate a registered provider's credential",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"apiKey": args[1]}
		if setKeyBaseURL != "" {
			body["baseUrl"] = setKeyBaseURL
		}
		if err := request("POST", "/api/providers/"+args[0], body, nil); err != nil {
			return err
		}
		fmt.Println("credential updated")
		return nil
	},
}

func init() {
	providersSetKeyCmd.Flags().StringVar(&setKeyBaseURL, "base-url", "", "Override the provider's base URL")
	providersCmd.AddCommand(providersListCmd, providersHealthCmd, providersSetKeyCmd)
}
