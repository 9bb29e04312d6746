package config

import (
	"log"
	"os"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB opens the postgres connection from DB_URL.
func InitDB() *gorm.DB {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=document_billing port=5432 sslmode=disable"
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	return db
}

// ContractTTLDays is the send-time token lifetime, CONTRACT_TTL_DAYS or 30.
func ContractTTLDays() int {
	if v := os.Getenv("CONTRACT_TTL_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 30
}

// AllowedOrigin is the CORS origin for the public document pages.
func AllowedOrigin() string {
	if v := os.Getenv("ALLOWED_ORIGIN"); v != "" {
		return v
	}
	return "http://localhost:3000"
}

// Port returns the HTTP listen port.
func Port() string {
	if v := os.Getenv("PORT"); v != "" {
		return v
	}
	return "8080"
}
