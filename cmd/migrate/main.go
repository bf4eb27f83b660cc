package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"marketchat/config"
	"marketchat/internal/domain/chat"
	"marketchat/pkg/database"
)

const usage = `
Marketchat - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Run all migrations (GORM + SQL)
  status      Show database connection status
  reset       Drop chat tables and re-run migrations (DANGEROUS)

Flags:
  -migrations string   Path to migrations directory (default "migrations")
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "path to migrations directory")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		fmt.Print(usage)
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	database.Connect(cfg)

	switch cmd {
	case "up":
		runMigrations(*migrationsDir)
		log.Println("Migrations applied")

	case "status":
		if err := database.HealthCheck(); err != nil {
			log.Fatalf("Database unreachable: %v", err)
		}
		log.Println("Database connection OK")

	case "reset":
		if err := database.DB.Migrator().DropTable(&chat.Message{}, &chat.Conversation{}); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		runMigrations(*migrationsDir)
		log.Println("Database reset complete")

	default:
		fmt.Print(usage)
		os.Exit(1)
	}
}

func runMigrations(migrationsDir string) {
	if err := database.DB.AutoMigrate(&chat.Conversation{}, &chat.Message{}); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}
	if err := database.ApplyRawMigrations(migrationsDir); err != nil {
		log.Fatalf("Failed to apply raw migrations: %v", err)
	}
}
