// Package cli implements the crossarb command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fd1az/crosschain-arb/internal/config"
)

// BuildInfo is stamped at link time.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var (
	cfgFile  string
	logLevel string
	build    = BuildInfo{Version: "dev", Commit: "none", BuildDate: "unknown"}
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "crossarb",
	Short:         "Detect and execute cross-chain arbitrage between EVM networks",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd || cfg != nil {
			return nil
		}

		// .env is optional
		_ = godotenv.Load()

		c, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			c.App.LogLevel = logLevel
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command until it returns or a shutdown signal
// arrives.
func Execute(info BuildInfo) {
	if info.Version != "" {
		build = info
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(chainsCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(versionCmd)
}

func getConfig() *config.Config {
	if cfg == nil {
		panic("configuration not loaded; PersistentPreRunE not executed")
	}
	return cfg
}
