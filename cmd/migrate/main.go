// migrate applies the embedded schema migrations to the configured database.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/traylorre/sentiment-auth/internal/config"
	"github.com/traylorre/sentiment-auth/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	if err := run(*direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(direction string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	err = migrate.Run(cfg.DatabaseURL, direction)
	if errors.Is(err, migrate.ErrNoChange) {
		// already at the target version
		return nil
	}
	return err
}
