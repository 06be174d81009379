package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"kbase/internal/config"
	"kbase/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	if cfg.Environment == "prod" && os.Getenv("CONFIRM_DROP") != "yes" {
		log.Fatal("refusing to drop production tables without CONFIRM_DROP=yes")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }() // Error ignored: script exiting

	tables := postgres.NewTableNames(cfg.TablePrefix)
	dropSQL := fmt.Sprintf(`
		DROP TABLE IF EXISTS %s CASCADE;
		DROP TABLE IF EXISTS %s CASCADE;
	`, tables.Nodes, postgres.VersionTable(cfg.TablePrefix))

	if _, err := db.Exec(dropSQL); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	fmt.Printf("All tables dropped successfully (prefix: %s)\n", cfg.TablePrefix)
}
