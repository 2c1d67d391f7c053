package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "tbank",
		Short: "Tabletop bank for board game money",
		Long: `tbank keeps the money for a tabletop game without paper notes.

One machine runs the bank server; every player keeps a wallet on their own
device. A wallet shows a code for each payment, the bank scans it, and the
wallet commits the payment once the bank has accepted it.

The bank commands talk to a running bank server. The wallet commands work on
local device state.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Resolve(cmd.Flags().Changed); err != nil {
				return err
			}

			client = NewClient(cfg.ServerURL, cfg.AdminPIN)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Config file (env: TBANK_CONFIG)")
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Bank server URL (env: TBANK_SERVER)")
	flags.StringVar(&cfg.AdminPIN, "pin", cfg.AdminPIN, "Bank admin PIN (env: TBANK_ADMIN_PIN)")
	flags.StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")
	flags.StringVar(&cfg.Store, "store", cfg.Store, "Wallet storage: sqlite, redis, memory (env: TBANK_STORE)")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Wallet SQLite file (env: TBANK_DB)")
	flags.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Wallet Redis URL (env: TBANK_REDIS_URL)")

	// Add subcommands
	rootCmd.AddCommand(newBankCmd())
	rootCmd.AddCommand(newWalletCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newOutput(cmd *cobra.Command) *Output {
	return NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr())
}
