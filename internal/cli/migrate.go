package cli

import (
	"context"
	"fmt"

	"github.com/cimillas/stockledger/internal/config"
	"github.com/cimillas/stockledger/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	List bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending postgres migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.List {
				return listMigrations(cmd)
			}
			return runMigrate(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.List, "list", false, "print the embedded migrations and exit")

	return cmd
}

func listMigrations(cmd *cobra.Command) error {
	names, err := migrations.Names()
	if err != nil {
		return WrapExitError(ExitFailure, "list migrations", err)
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, opts *MigrateOptions) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	if rt.cfg.StoreDriver != config.StorePostgres {
		return WrapExitError(ExitCommandError, "migrate", errPostgresOnly)
	}

	pool, err := rt.openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := migrations.Apply(ctx, pool)
	if err != nil {
		return WrapExitError(ExitFailure, "apply migrations", err)
	}
	rt.logger.Info("migrations applied", zap.Strings("applied", applied))
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
	return nil
}
