package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/kevin07696/automated-charge/internal/adapters/postgres"
	"github.com/kevin07696/automated-charge/internal/config"
	"github.com/kevin07696/automated-charge/internal/db/migrations"
)

var (
	flags      = flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath = flags.String("config", "", "YAML config file (env vars override it)")
)

func main() {
	flags.Usage = usage
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		return
	}
	command := args[0]

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.ConnectionString()), zap.NewNop())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := migrations.Run(ctx, command, db, args[1:]...); err != nil {
		log.Fatalf("%v", err)
	}
}

func usage() {
	fmt.Print(`Usage: migrate [-config FILE] COMMAND

Commands:
    up                   Migrate the DB to the most recent version available
    up-by-one            Migrate the DB up by 1
    up-to VERSION        Migrate the DB to a specific VERSION
    down                 Roll back the version by 1
    down-to VERSION      Roll back to a specific VERSION
    redo                 Re-run the latest migration
    reset                Roll back all migrations
    status               Dump the migration status for the current DB
    version              Print the current version of the database

Connection settings come from DATABASE_URL or DB_HOST, DB_PORT, DB_USER,
DB_PASSWORD, DB_NAME and DB_SSL_MODE.

Examples:
    migrate up
    migrate down
    migrate status
`)
}
