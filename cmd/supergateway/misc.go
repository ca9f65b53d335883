package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kataway/supergateway/federation/graph"
	"github.com/kataway/supergateway/gateway"
)

// introspectCmd composes the supergraph and prints a one-line summary (the
// service name and the subgraph count), failing with exitConfigError on any
// build diagnostic.
func introspectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "introspect",
		Short: "print the composed supergraph",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, schema, err := loadSchema(*configPath)
			if err != nil {
				return err
			}
			fmt.Printf("supergraph %s: %d subgraphs\n", settings.ServiceName, len(schema.Subgraphs()))
			return nil
		},
	}
}

// checkCmd validates the config and composed supergraph without serving,
// exiting 1 on any failure (suitable for CI).
func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "validate the gateway config and composed supergraph",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := loadSchema(*configPath); err != nil {
				return err
			}
			fmt.Println("supergraph OK")
			return nil
		},
	}
}

// publishCmd is a placeholder for pushing the composed supergraph to a
// remote registry; out of scope for the planning/execution core, specified
// here only as a CLI surface.
func publishCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <url>",
		Short: "publish the composed supergraph to a remote endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := loadSchema(*configPath); err != nil {
				return err
			}
			fmt.Printf("publish to %s not implemented in this gateway build\n", args[0])
			return nil
		},
	}
}

// mcpCmd composes the same supergraph the HTTP transport serves and then
// reports on stderr that no MCP server is available in this build; it does
// not speak MCP.
func mcpCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "check the supergraph for MCP use (no MCP server in this build)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, err := loadSchema(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "mcp stdio server not implemented in this gateway build")
			return nil
		},
	}
}

func loadSchema(configPath string) (*gateway.Settings, *graph.Schema, error) {
	settings, err := gateway.LoadSettings(configPath)
	if err != nil {
		os.Exit(exitConfigError)
	}
	sdl, err := os.ReadFile(settings.SupergraphPath)
	if err != nil {
		os.Exit(exitConfigError)
	}
	schema, err := graph.Build(sdl, settings.SubgraphConfigs())
	if err != nil {
		os.Exit(exitConfigError)
	}
	return settings, schema, nil
}
