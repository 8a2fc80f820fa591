package cli

import (
	"context"
	"fmt"

	"github.com/cimillas/stockledger/internal/clock"
	"github.com/cimillas/stockledger/internal/seed"
	"github.com/spf13/cobra"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	File string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load initial inventory records from a YAML or JSON dataset",
		Long: `Load initial inventory records from a YAML or JSON dataset.

Existing records are left untouched, so seeding is safe to repeat.

Example:
  stockledger seed --file ./inventory.yaml
  stockledger seed --store sqlite --file ./inventory.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "path to the dataset (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *SeedOptions) error {
	entries, err := seed.LoadFile(opts.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "load dataset", err)
	}

	ctx := cmd.Context()
	rt, err := newRuntime(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	store, closeStore, err := rt.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := seed.NewImporter(store, clock.NewSystem(), rt.logger).Import(ctx, entries)
	if err != nil {
		return WrapExitError(ExitFailure, "seed inventory", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d record(s), %d already present\n", res.Wrote, res.Skipped)
	return nil
}
