package main

import (
	"fmt"
	"os"

	"github.com/cuemby/agentpool/pkg/config"
	"github.com/cuemby/agentpool/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agentpoolctl",
	Short: "agentpoolctl manages a local subagent orchestration core",
	Long: `agentpoolctl wires together the process registry, memory
accountant, admission queue, and backend driver that make up the
subagent orchestration core, and exposes the subagent catalog for
inspection and editing.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"agentpoolctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to agentpool.yaml (defaults built in if unset)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging, loadConfig)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(bindingCmd)
	rootCmd.AddCommand(planCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func loadConfig() {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if path == "" {
		cfg = config.Default()
		if err := cfg.ApplyDefaults(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: default config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	loaded, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded
}
