package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigDir string
	Env       string
}

// NewRootCommand creates the root command for the storefront CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storefront",
		Short: "RaniaMart storefront client core",
		Long: `Runs the local storefront backend that keeps the buyer's cart in sync with the
RaniaMart API and turns completed checkouts into receipts.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			resolveEnv(opts)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "configs", "directory holding base.yaml and <env>.yaml")
	cmd.PersistentFlags().StringVar(&opts.Env, "env", "", "environment overlay to load (dev|staging|prod); defaults to $APP_ENV, then dev")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewReceiptCommand(opts))

	return cmd
}

// resolveEnv reads .env before the environment is consulted, so APP_ENV may come from either.
// An explicit --env always wins.
func resolveEnv(opts *RootOptions) {
	// a missing .env is normal outside development
	_ = godotenv.Load()
	if opts.Env == "" {
		opts.Env = envOr("APP_ENV", "dev")
	}
}
