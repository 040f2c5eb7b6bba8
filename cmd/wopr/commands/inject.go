package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var injectFrom string
var injectChannel string

var injectCmd = &cobra.Command{
	Use:   "inject <session> <message...>",
	Short: "Inject a message into a session and print the response",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session := args[0]
		message := strings.Join(args[1:], " ")

		body := map[string]any{"message": message}
		if injectFrom != "" {
			body["from"] = injectFrom
		}
		if injectChannel != "" {
			body["channel"] = injectChannel
		}

		var out map[string]string
		if err := request("POST", "/api/sessions/"+session+"/inject", body, &out); err != nil {
			return err
		}
		fmt.Println(out["response"])
		return nil
	},
}

func init() {
	injectCmd.Flags().StringVar(&injectFrom, "from", "", "Speaker label attached to the injected message")
	injectCmd.Flags().StringVar(&injectChannel, "channel", "", "Channel this message arrived on")
}
