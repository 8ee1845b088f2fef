// Command migrate manages the jobs schema under db/migrations.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"policonv/internal/config"
)

const migrationsPath = "file://db/migrations"

func usage() {
	fmt.Println("Usage: migrate <up|down|steps N|force V|version>")
	fmt.Println("  up        apply all pending migrations")
	fmt.Println("  down      revert all migrations")
	fmt.Println("  steps N   apply N migrations (negative reverts)")
	fmt.Println("  force V   mark version V as applied after fixing a dirty state")
	fmt.Println("  version   print the current schema version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("migrate: loading config: %v", err)
	}

	m, err := migrate.New(migrationsPath, cfg.DB.DSN())
	if err != nil {
		log.Fatalf("migrate: opening %s: %v", migrationsPath, err)
	}
	defer m.Close()

	if err := run(m, os.Args[1:]); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func run(m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("up: %w", err)
		}
		log.Println("migrate: jobs schema is up to date")
		return nil

	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("down: %w", err)
		}
		log.Println("migrate: jobs schema reverted")
		return nil

	case "steps":
		if len(args) < 2 {
			return fmt.Errorf("steps requires a number argument")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid steps argument %q: %w", args[1], err)
		}
		if err := m.Steps(n); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("steps %d: %w", n, err)
		}
		log.Printf("migrate: applied %d steps", n)
		return nil

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force requires a version argument")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid force argument %q: %w", args[1], err)
		}
		if err := m.Force(v); err != nil {
			return fmt.Errorf("force %d: %w", v, err)
		}
		log.Printf("migrate: forced version %d", v)
		return nil

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", version, dirty)
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}
