package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quayside/storefront/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront identity and cart service",
	Long: `Storefront serves the identity-aware cart core: session token
verification, guest identity issuance, route authorization, and the cart
store with guest-to-user merge on sign-in.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	// Global flags exist for discoverability; values come from the
	// environment (see internal/config).
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: DEBUG)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
