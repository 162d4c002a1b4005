package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "agent-orch",
		Short: "Agent Orchestrator - supervised coding agent runs",
		Long: `Agent Orchestrator runs coding agents against GitHub issues, each in an
isolated git worktree, and tracks their progress, review state and history.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
