package main

import (
	"os"

	"tbnexplorer2/internal/logging"
)

func main() {
	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.InfoLevel,
	})

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(exitCodeFor(err))
	}
}
