package main

// @title Webhook Service API
// @version 1.0
// @description Shopify webhook ingestion and inventory synchronization service with full observability (logging, tracing, metrics)
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://github.com/tair/shopify-sync
// @contact.email support@example.com

// @license.name MIT
// @license.url https://github.com/tair/shopify-sync/blob/main/LICENSE

// @host localhost:8083
// @BasePath /

// @tag.name Webhooks
// @tag.description Webhook intake, monitoring and retry endpoints

// @tag.name Health
// @tag.description Health check endpoints

// @tag.name Swagger
// @tag.description Swagger documentation endpoints
