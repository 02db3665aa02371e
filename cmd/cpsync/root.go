package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/application"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/config"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/logging"
)

type rootOptions struct {
	configFile  string
	driver      string
	databaseURL string
	sqlitePath  string
	logLevel    string

	cfg *config.Config
}

// flagEnv maps persistent flags onto the environment variables they
// override, so the regular loader sees them.
var flagEnv = map[string]string{
	"driver":       "STORE_DRIVER",
	"database-url": "DATABASE_URL",
	"sqlite-path":  "SQLITE_PATH",
	"log-level":    "LOG_LEVEL",
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "cpsync",
		Short:         "Reconcile Control Plan worksheets into the relational store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "TOML config file (default: $"+config.ConfigFileEnv+")")
	flags.StringVar(&opts.driver, "driver", "", "store driver: postgres, pgx, sqlite, memory")
	flags.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection string")
	flags.StringVar(&opts.sqlitePath, "sqlite-path", "", "SQLite database file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newCollectionsCmd(opts),
		newSyncCmd(opts),
		newShowCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	_ = godotenv.Load()

	for name, env := range flagEnv {
		f := cmd.Flags().Lookup(name)
		if f != nil && f.Changed {
			if err := os.Setenv(env, f.Value.String()); err != nil {
				return err
			}
		}
	}

	path := o.configFile
	if path == "" {
		path = os.Getenv(config.ConfigFileEnv)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}

	// Logs go to stderr so stdout stays machine readable.
	slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))
	o.cfg = cfg
	return nil
}

// open connects the store for one command. Callers close the app.
func (o *rootOptions) open(cmd *cobra.Command) (*application.App, error) {
	app, err := application.Open(cmd.Context(), o.cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return app, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
