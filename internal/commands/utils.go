package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/beesaferoot/propertyhub/internal/app"
	"github.com/beesaferoot/propertyhub/internal/config"
	"github.com/beesaferoot/propertyhub/internal/localstore"
	"github.com/beesaferoot/propertyhub/internal/logging"
	"github.com/beesaferoot/propertyhub/internal/migration"
	"github.com/beesaferoot/propertyhub/internal/remote"
)

func getLogger(cfg config.Config) *slog.Logger {
	return logging.New(cfg.LogLevel, os.Stderr)
}

func getApp(cmd *cobra.Command) (*app.App, error) {
	cfg := config.Load()
	return app.New(cmdContext(cmd), cfg, getLogger(cfg))
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// getMigrator returns the migrator of the local cache when local is set and
// of the remote store otherwise, with a function closing the connection.
func getMigrator(local bool) (*migration.Migrator, func() error, error) {
	cfg := config.Load()
	if local {
		store, err := localstore.Open(cfg.LocalDBPath, nil)
		if err != nil {
			return nil, nil, err
		}
		return migration.NewMigrator(store.DB(), localstore.Migrations...), store.Close, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	store, err := remote.Open(cfg.DatabaseURL, nil)
	if err != nil {
		return nil, nil, err
	}
	return store.Migrator(), store.Close, nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
