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
		Use:   "rosterctl",
		Short: "CLI tool for the roster bot API",
		Long: `rosterctl talks to the roster bot JSON API the way the chat gateway does.

Every request carries the gateway token and the caller identity given by
--as, --name and --chat, so it can stand in for any chat user.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load token from file if not provided via flag/env
			if err := cfg.LoadToken(); err != nil {
				return err
			}

			client = NewClient(cfg.ServerURL, cfg.Token, Identity{
				ID:     cfg.CallerID,
				Name:   cfg.CallerName,
				ChatID: cfg.ChatID,
			})
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: ROSTER_SERVER)")
	flags.StringVar(&cfg.Token, "token", cfg.Token, "Gateway token (env: ROSTER_TOKEN)")
	flags.StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Gateway token file path (env: ROSTER_TOKEN_FILE)")
	flags.StringVar(&cfg.CallerID, "as", cfg.CallerID, "Caller's chat user ID (env: ROSTER_CALLER_ID)")
	flags.StringVar(&cfg.CallerName, "name", cfg.CallerName, "Caller's display name (env: ROSTER_CALLER_NAME)")
	flags.StringVar(&cfg.ChatID, "chat", cfg.ChatID, "Chat the command is sent from (env: ROSTER_CHAT_ID)")
	flags.StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")

	// Add subcommands
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newJoinCmd())
	rootCmd.AddCommand(newLeaveCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newUsageCmd())
	rootCmd.AddCommand(newHashTokenCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
