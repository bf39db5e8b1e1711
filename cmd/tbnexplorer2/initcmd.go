package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tbnexplorer2/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .tbnexplorer2/config.json plus a commented YAML reference copy",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if err := cfg.Save(flagRepoRoot); err != nil {
		return err
	}
	if err := config.WriteStarterYAML(flagRepoRoot, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s/.tbnexplorer2/config.json and config.yaml\n", flagRepoRoot)
	return nil
}
