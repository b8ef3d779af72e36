package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/renewly/renewly/internal/config"
	"github.com/renewly/renewly/internal/logger"
)

func main() {
	// Parse command line flags
	dryRun := flag.Bool("dry-run", false, "Print migration SQL without executing it")
	schemaPath := flag.String("schema", "migrations/schema.sql", "Path to the schema file")
	flag.Parse()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		logger.Fatalw("Failed to read schema file", "path", *schemaPath, "error", err)
	}

	if *dryRun {
		logger.Info("Dry run mode - printing migration SQL without executing")
		fmt.Println(string(schema))
		return
	}

	dsn := cfg.Postgres.GetDSN()
	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Running database migrations...")
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		logger.Fatalw("Failed to apply schema", "error", err)
	}
	logger.Info("Migration completed successfully")

	fmt.Println("Migration process completed")
}
