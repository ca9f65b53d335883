// Command supergateway is the federation gateway CLI: serve, dev,
// introspect, check, publish, and mcp subcommands, exiting 0 on success, 1
// on a config/schema error, 2 on a runtime bootstrap error.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	exitOK            = 0
	exitConfigError   = 1
	exitBootstrapError = 2
)

func main() {
	root := &cobra.Command{Use: "supergateway"}
	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "gateway.toml", "path to the gateway config file")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(devCmd(&configPath))
	root.AddCommand(introspectCmd(&configPath))
	root.AddCommand(checkCmd(&configPath))
	root.AddCommand(publishCmd(&configPath))
	root.AddCommand(mcpCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBootstrapError)
	}
}
