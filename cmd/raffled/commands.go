package main

import (
	"fmt"
	"raffle/internal/logger"
	"raffle/internal/raffle"
	"raffle/internal/sweeper"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			logger.Info("database migrated", zap.String("path", opts.cfg.DatabasePath))
			return nil
		},
	}
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Release lapsed holds once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			released, err := sweeper.NewSweeper(cmd.Context(), store).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released %d expired holds\n", released)
			return nil
		},
	}
}

func newWinnersCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "winners <drawing-id>",
		Short: "Print the winners of a drawing as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid drawing id %q", args[0])
			}

			store, err := opts.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := raffle.New(store).GetWinners(cmd.Context(), uint(id))
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(list, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
