package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"branch-supply/internal/config"
	"branch-supply/internal/db"
	"branch-supply/internal/logger"
	"branch-supply/migrations"
)

func main() {
	list := pflag.Bool("list", false, "print the embedded migrations with their checksums and exit")
	pflag.Parse()

	if *list {
		names, err := migrations.Names()
		if err != nil {
			fmt.Printf("Failed to read migrations: %v\n", err)
			os.Exit(1)
		}
		for _, n := range names {
			body, err := migrations.FS.ReadFile(n)
			if err != nil {
				fmt.Printf("Failed to read %s: %v\n", n, err)
				os.Exit(1)
			}
			fmt.Printf("%s  %s\n", migrations.Checksum(body)[:12], n)
		}
		return
	}

	_ = godotenv.Load()
	log := logger.New(logger.Config{Level: "info", Environment: os.Getenv("ENVIRONMENT"), ServiceName: "branch-supply-migrate"})

	ctx := context.Background()
	pool, err := db.NewPool(ctx, config.DatabaseConfig{URL: os.Getenv("DATABASE_URL"), MaxConns: 2})
	if err != nil {
		fmt.Printf("Failed to connect to DB: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	n, err := migrations.Apply(ctx, pool, log)
	if err != nil {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Migrations up to date (%d applied).\n", n)
}
