package main

import (
	"log"
	"time"

	"document-billing-backend/internal/config"
	"document-billing-backend/internal/models"
	"document-billing-backend/internal/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	db := config.InitDB()

	db.AutoMigrate(
		&models.ContractTemplate{},
		&models.InvoiceTemplate{},
		&models.TemplateSection{},
		&models.MergeField{},
		&models.Contract{},
		&models.Invoice{},
		&models.InvoiceLineItem{},
		&models.Payment{},
		&models.WebhookReceipt{},
		&models.ContractEvent{},
		&models.InvoiceEvent{},
	)

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.AllowedOrigin()},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Company-ID", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	svcs := routes.RegisterRoutes(r, db)
	svcs.Sweeper.Start()

	r.Run(":" + config.Port())
}
