package main

import (
	"fmt"
	"os"

	"github.com/antonrybalko/wfm-mbaas-go/internal/app"
)

func main() {
	service, err := app.NewService()
	if err != nil {
		fmt.Printf("Failed to initialize service: %v\n", err)
		os.Exit(1)
	}
	defer service.Cleanup()

	// Bootstrap the application and start listening
	if err := service.Start(); err != nil {
		fmt.Printf("Failed to start service: %v\n", err)
		service.Cleanup()
		os.Exit(1)
	}

	// Wait for shutdown signal
	service.WaitForShutdown()
}
