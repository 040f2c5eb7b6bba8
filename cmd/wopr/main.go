// Package main is the thin HTTP CLI client for the WOPR daemon.
package main

import (
	"fmt"
	"os"

	"github.com/wopr-network/wopr/cmd/wopr/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
