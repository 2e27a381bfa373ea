package main

import (
	"fmt"
	"raffle/internal/config"
	"raffle/internal/logger"
	"raffle/internal/storage"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	EnvFile  string
	Database string
	LogLevel string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "raffled",
		Short:         "Raffle number reservation and winner selection service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.EnvFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.Database != "" {
				cfg.DatabasePath = opts.Database
			}
			if opts.LogLevel != "" {
				cfg.LogLevel = opts.LogLevel
			}
			opts.cfg = cfg

			return logger.Initialize(logger.Configuration{
				LogFile:   cfg.LogFile,
				ErrorFile: cfg.LogErrorFile,
				Level:     cfg.LogLevel,
				Console:   cfg.LogConsole,
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env", ".env", "path to the .env file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the SQLite database (overrides DATABASE_PATH)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	cmd.AddCommand(newWinnersCommand(opts))

	return cmd
}

func (o *rootOptions) openStorage() (*storage.SqliteStorage, error) {
	store, err := storage.NewSqliteStorage(o.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", o.cfg.DatabasePath, err)
	}
	return store, nil
}
