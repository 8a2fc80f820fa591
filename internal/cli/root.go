package cli

import (
	"github.com/cimillas/stockledger/internal/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
	Store    string
}

// NewRootCommand creates the stockledger command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   config.ServiceName,
		Short: "Inventory reservation and order commitment ledger",
		Long: `stockledger tracks per-location stock for product variants.

Reservations and order commits are single conditional writes against the
ledger store, so concurrent callers can never oversell a location.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "store driver (postgres|sqlite|memory), overrides STORE_DRIVER")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}
