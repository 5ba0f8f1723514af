package main

import (
	"context"
	"log"

	"bondfuzz/internal"
	"bondfuzz/internal/config"
	"bondfuzz/internal/container"
	"bondfuzz/ui"
)

// main serves the report viewer over the configured run store
func main() {
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewDefaultLogger()
	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := appContainer.InitWithDatabase(context.Background()); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	viewer, err := ui.NewApp(ui.Config{Port: appConfig.Server.ViewerPort}, appContainer.Campaigns, logger)
	if err != nil {
		log.Fatalf("Failed to create report viewer: %v", err)
	}
	if err := viewer.Start(appConfig.Server.ViewerPort); err != nil {
		logger.Error("report viewer stopped: %v", err)
	}
}
