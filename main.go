package main

import (
	"os"

	"webhook-gateway/internal/app"
)

// @title Webhook Gateway API
// @version 1.0
// @description Admits inbound webhooks for registered endpoints and starts their workflows.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
