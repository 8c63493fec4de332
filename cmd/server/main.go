package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"serverPortal/internal/config"
	"serverPortal/internal/db"
	"serverPortal/internal/logging"
)

// newRootCmd builds the command tree. Commands share the config flags and
// load configuration lazily so `--help` works without a database.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "serverportal",
		Short: "Server Portal backend",
		Long: `Server Portal serves the JSON API for accounts, server reports and
admin-editable page content, plus the static frontend.

Run without arguments to start the HTTP server.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newCreateAdminCmd(),
		newConfigCmd(),
	)
	return root
}

// env is what every command needs before doing its work.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// openDB connects and migrates. Callers close the returned DB.
func (e *env) openDB() (*bun.DB, error) {
	bdb, err := db.Open(e.cfg.Database.Type, e.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return bdb, nil
}

func (e *env) close(bdb *bun.DB) {
	if bdb != nil {
		if err := bdb.Close(); err != nil {
			e.logger.Warn("close db", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
