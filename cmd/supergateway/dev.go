package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/kataway/supergateway/federation/graph"
	"github.com/kataway/supergateway/gateway"
)

// devCmd rebuilds the supergraph whenever a file is written or created in
// the directory of the composed SDL file or of the config, logging whether
// the rebuild succeeded. It does not start an HTTP server, so no gateway
// handler serves the rebuilt schema.
func devCmd(configPath *string) *cobra.Command {
	var fixturesPath string
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "watch the supergraph SDL and config, hot-recomposing on change",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(*configPath, fixturesPath)
		},
	}
	cmd.Flags().StringVar(&fixturesPath, "fixtures", "", "YAML file describing mocked subgraphs for local development")
	return cmd
}

func runDev(configPath, fixturesPath string) error {
	settings, err := gateway.LoadSettings(configPath)
	if err != nil {
		log.Printf("failed to load gateway config: %v", err)
		os.Exit(exitConfigError)
	}

	if fixturesPath != "" {
		fixtures, err := gateway.LoadFixtures(fixturesPath)
		if err != nil {
			log.Printf("failed to load fixtures: %v", err)
			os.Exit(exitConfigError)
		}
		log.Printf("loaded %d mocked subgraph fixtures", len(fixtures.Subgraphs))
	}

	if err := recompose(settings); err != nil {
		log.Printf("initial composition failed: %v", err)
		os.Exit(exitConfigError)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("failed to start file watcher: %v", err)
		os.Exit(exitBootstrapError)
	}
	defer watcher.Close()

	for _, p := range []string{configPath, settings.SupergraphPath} {
		if err := watcher.Add(filepath.Dir(p)); err != nil {
			log.Printf("failed to watch %s: %v", p, err)
		}
	}

	log.Printf("watching %s and %s for changes", configPath, settings.SupergraphPath)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			settings, err = gateway.LoadSettings(configPath)
			if err != nil {
				log.Printf("reload failed, keeping previous supergraph: %v", err)
				continue
			}
			if err := recompose(settings); err != nil {
				log.Printf("recomposition failed, keeping previous supergraph: %v", err)
				continue
			}
			log.Println("supergraph recomposed")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

func recompose(settings *gateway.Settings) error {
	sdl, err := os.ReadFile(settings.SupergraphPath)
	if err != nil {
		return err
	}
	_, err = graph.Build(sdl, settings.SubgraphConfigs())
	return err
}
