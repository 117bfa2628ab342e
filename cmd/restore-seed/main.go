// restore-seed is a one-shot tool that restores the demo branches, products
// and users of a branch-supply database. Existing rows are updated in place;
// purchase orders are never touched.
//
// Usage: go run ./cmd/restore-seed --admin-password secret --staff-password secret
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"branch-supply/internal/config"
	"branch-supply/internal/db"
	"branch-supply/internal/logger"
	"branch-supply/migrations"
)

type seedBranch struct {
	name    string
	central bool
}

type seedProduct struct {
	sku, name, unit, cost string
}

var (
	branches = []seedBranch{
		{name: "Central Warehouse", central: true},
		{name: "North Branch"},
		{name: "South Branch"},
	}
	products = []seedProduct{
		{"RICE-5", "Rice 5kg", "bag", "12.50"},
		{"OIL-1", "Sunflower oil 1L", "bottle", "3.20"},
		{"FLOUR-1", "Wheat flour 1kg", "bag", "1.85"},
		{"SUGAR-1", "Sugar 1kg", "bag", "1.40"},
		{"SOAP-6", "Hand soap 6-pack", "pack", "4.75"},
	}
)

func main() {
	adminPass := pflag.String("admin-password", "", "password for the 'admin' user (required)")
	staffPass := pflag.String("staff-password", "", "password for the branch staff users (required)")
	migrate := pflag.Bool("migrate", true, "apply pending migrations first")
	pflag.Parse()

	_ = godotenv.Load()
	log := logger.New(logger.Config{Level: "info", Environment: os.Getenv("ENVIRONMENT"), ServiceName: "branch-supply-seed"})

	if *adminPass == "" || *staffPass == "" {
		fmt.Fprintln(os.Stderr, "--admin-password and --staff-password are required")
		pflag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, config.DatabaseConfig{URL: os.Getenv("DATABASE_URL"), MaxConns: 2})
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer pool.Close()

	if *migrate {
		if _, err := migrations.Apply(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("begin transaction")
	}
	defer tx.Rollback(ctx)

	branchIDs, err := seedBranches(ctx, tx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed branches")
	}
	if err := seedProducts(ctx, tx); err != nil {
		log.Fatal().Err(err).Msg("seed products")
	}
	log.Info().Int("products", len(products)).Msg("products restored")

	if err := seedUser(ctx, tx, "admin", *adminPass, "ADMIN", nil, nil); err != nil {
		log.Fatal().Err(err).Msg("seed admin")
	}
	for i, b := range branches[1:] {
		id := branchIDs[b.name]
		username := fmt.Sprintf("staff%d", i+1)
		if err := seedUser(ctx, tx, username, *staffPass, "STAFF", &id, []int{id}); err != nil {
			log.Fatal().Err(err).Str("user", username).Msg("seed staff")
		}
	}
	log.Info().Int("users", len(branches)).Msg("users restored")

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("commit")
	}
	fmt.Println("Seed data restored.")
}

// seedBranches inserts missing branches by name. Only one branch may be central,
// so an existing central branch under another name is demoted first.
func seedBranches(ctx context.Context, tx pgx.Tx, log zerolog.Logger) (map[string]int, error) {
	ids := make(map[string]int, len(branches))
	for _, b := range branches {
		if b.central {
			if _, err := tx.Exec(ctx,
				"UPDATE branches SET is_central = false WHERE is_central AND name <> $1", b.name,
			); err != nil {
				return nil, fmt.Errorf("demote central: %w", err)
			}
		}
		var id int
		err := tx.QueryRow(ctx, "SELECT id FROM branches WHERE name = $1 ORDER BY id LIMIT 1", b.name).Scan(&id)
		switch {
		case err == nil:
			if _, err := tx.Exec(ctx,
				"UPDATE branches SET is_active = true, is_central = $2 WHERE id = $1", id, b.central,
			); err != nil {
				return nil, fmt.Errorf("update branch %s: %w", b.name, err)
			}
		case errors.Is(err, pgx.ErrNoRows):
			if err := tx.QueryRow(ctx,
				"INSERT INTO branches (name, is_central) VALUES ($1, $2) RETURNING id", b.name, b.central,
			).Scan(&id); err != nil {
				return nil, fmt.Errorf("insert branch %s: %w", b.name, err)
			}
		default:
			return nil, fmt.Errorf("look up branch %s: %w", b.name, err)
		}
		ids[b.name] = id
		log.Info().Str("branch", b.name).Int("id", id).Bool("central", b.central).Msg("branch restored")
	}
	return ids, nil
}

func seedProducts(ctx context.Context, tx pgx.Tx) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(`
			INSERT INTO products (sku, name, unit, unit_cost)
			VALUES ($1, $2, $3, $4::numeric)
			ON CONFLICT (sku) DO UPDATE
			SET name = EXCLUDED.name, unit = EXCLUDED.unit,
			    unit_cost = EXCLUDED.unit_cost, is_active = true`,
			p.sku, p.name, p.unit, p.cost)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func seedUser(ctx context.Context, tx pgx.Tx, username, password, role string, primary *int, memberOf []int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	var id int
	if err := tx.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, role, primary_branch_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role,
		    primary_branch_id = EXCLUDED.primary_branch_id, is_active = true
		RETURNING id`,
		username, string(hash), role, primary,
	).Scan(&id); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	for _, b := range memberOf {
		if _, err := tx.Exec(ctx,
			"INSERT INTO user_branches (user_id, branch_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", id, b,
		); err != nil {
			return fmt.Errorf("grant branch %d: %w", b, err)
		}
	}
	return nil
}
