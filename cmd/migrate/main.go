package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/logger"
)

// requiredConstraints must exist once the schema is fully migrated.
var requiredConstraints = []string{
	"users_username_key",
	"exam_results_session_id_key",
	"exam_results_total_check",
}

func main() {
	var migrationDir string
	flag.StringVar(&migrationDir, "path", "migrations", "Path to migration files")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	m, err := migrate.New("file://"+migrationDir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed to initialize")
	}
	defer m.Close()

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Up failed")
		}
		logVersion(log, m)
		if err := verifySchema(cfg.DatabaseURL, log); err != nil {
			log.Fatal().Err(err).Msg("Schema check failed after up")
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Down failed")
		}
		log.Info().Msg("Migrated down")
	case "version":
		logVersion(log, m)
	case "status":
		logVersion(log, m)
		if err := verifySchema(cfg.DatabaseURL, log); err != nil {
			log.Fatal().Err(err).Msg("Schema is incomplete")
		}
	case "force":
		if len(args) < 2 {
			log.Fatal().Msg("force requires a version argument")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid version")
		}
		if err := m.Force(v); err != nil {
			log.Fatal().Err(err).Msg("Force failed")
		}
		log.Info().Int("version", v).Msg("Forced version")
	default:
		printUsage()
	}
}

func logVersion(log zerolog.Logger, m *migrate.Migrate) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info().Msg("No migrations applied")
	case err != nil:
		log.Fatal().Err(err).Msg("Version failed")
	case dirty:
		log.Warn().Uint("version", version).Msg("Schema is dirty; fix the failed migration and run force")
	default:
		log.Info().Uint("version", version).Msg("Schema version")
	}
}

// verifySchema confirms the constraints that keep result rows unique and
// internally consistent, then reports table sizes.
func verifySchema(dbURL string, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, `SELECT conname FROM pg_constraint WHERE conname = ANY($1)`, requiredConstraints)
	if err != nil {
		return fmt.Errorf("list constraints: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("scan constraints: %w", err)
	}
	if missing := missingConstraints(found); len(missing) > 0 {
		return fmt.Errorf("missing constraints: %v", missing)
	}

	var users, results int64
	err = conn.QueryRow(ctx, `SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM exam_results)`).Scan(&users, &results)
	if err != nil {
		return fmt.Errorf("count rows: %w", err)
	}
	log.Info().Int64("users", users).Int64("exam_results", results).Msg("Schema verified")
	return nil
}

// missingConstraints returns the required constraints absent from found, in
// declaration order.
func missingConstraints(found []string) []string {
	present := make(map[string]bool, len(found))
	for _, name := range found {
		present[name] = true
	}
	var missing []string
	for _, name := range requiredConstraints {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func printUsage() {
	fmt.Println("Usage: migrate [flags] <command>")
	fmt.Println("Commands: up, down, version, status, force <version>")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
