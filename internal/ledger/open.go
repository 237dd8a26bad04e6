package ledger

import (
	"context"
	"fmt"
)

// Config selects and configures a ledger backend.
type Config struct {
	// Driver is one of memory, sqlite or postgres.
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
	Account string `mapstructure:"account"`
}

// Open creates the configured ledger.
func Open(ctx context.Context, cfg Config) (Ledger, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres":
		return NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("ledger: unknown driver %q", cfg.Driver)
	}
}
