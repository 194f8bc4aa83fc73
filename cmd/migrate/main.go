// Package main provides the schema migration CLI.
// Usage: migrate up
//        migrate down
//        migrate steps -1
//        migrate version
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"ispledger/internal/infrastructure/config"
	"ispledger/internal/infrastructure/storage/postgres"
	"ispledger/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.App.IsDevelopment()})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	migrator, err := postgres.NewMigrator(cfg.Database.URL, log.SugaredLogger)
	if err != nil {
		log.Fatalw("failed to open migrator", "error", err)
	}
	defer func() { _ = migrator.Close() }()

	switch os.Args[1] {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "steps":
		if len(os.Args) < 3 {
			fmt.Println("Error: steps requires a count")
			os.Exit(1)
		}
		n, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			fmt.Printf("Error: invalid step count %q\n", os.Args[2])
			os.Exit(1)
		}
		err = migrator.Steps(n)
	case "version":
		version, dirty, verr := migrator.Version()
		if verr != nil {
			err = verr
			break
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalw("migration command failed", "command", os.Args[1], "error", err)
	}
}

func printUsage() {
	fmt.Println(`ispledger schema migrations

Usage:
  migrate <command>

Commands:
  up         Apply all pending migrations
  down       Roll back all migrations
  steps <n>  Apply n migrations (negative rolls back)
  version    Print the current schema version
  help       Show this help

Environment Variables:
  ISP_DATABASE_URL    Connection string (or database.url in config.toml)`)
}
