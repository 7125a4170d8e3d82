package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"sqr/cmd"
	"sqr/internal/config"
	"sqr/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Commands report configuration errors themselves; here it only picks the log setup.
	logConfig := logger.DefaultConfig()
	if cfg, err := config.Load(); err == nil {
		logConfig = cfg.GetLoggerConfig()
	}
	if err := logger.Setup(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting sqr")

	cmd.Execute()
}
