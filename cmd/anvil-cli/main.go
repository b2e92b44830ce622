package main

import (
	"os"

	"anvil-cli/internal/logger"
)

var log = logger.Named("main")

func main() {
	logger.Configure()
	if logFile, _, err := logger.SetupFile(logger.DefaultLogPath); err != nil {
		log.Warnf("failed to initialize log file: %v", err)
	} else {
		defer logFile.Close()
	}

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
