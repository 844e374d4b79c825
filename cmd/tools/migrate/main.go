// Command migrate applies the embedded database schema migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"photovault/internal/storage"
)

func main() {
	var postgresDSN string
	flag.StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string")
	flag.Parse()

	if strings.TrimSpace(postgresDSN) == "" {
		postgresDSN = strings.TrimSpace(os.Getenv("PHOTOVAULT_POSTGRES_DSN"))
	}
	if postgresDSN == "" {
		fatalf("--postgres-dsn or PHOTOVAULT_POSTGRES_DSN must be provided")
	}

	command := "up"
	if args := flag.Args(); len(args) > 0 {
		command = strings.ToLower(strings.TrimSpace(args[0]))
	}

	migrator, err := newMigrator(postgresDSN)
	if err != nil {
		fatalf("initialise migrator: %v", err)
	}
	defer migrator.Close()

	switch command {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Steps(-1)
	case "version":
		version, dirty, verr := migrator.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			fatalf("read version: %v", verr)
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
		return
	default:
		fatalf("unknown command %q (expected up, down, or version)", command)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fatalf("run migrations: %v", err)
	}
	fmt.Println("migrations applied")
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	source, err := iofs.New(storage.Migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", source, pgxURL(dsn))
}

// pgxURL rewrites a postgres:// DSN to the scheme expected by the pgx/v5
// migrate driver.
func pgxURL(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "postgres://"); ok {
		return "pgx5://" + rest
	}
	if rest, ok := strings.CutPrefix(dsn, "postgresql://"); ok {
		return "pgx5://" + rest
	}
	return dsn
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
