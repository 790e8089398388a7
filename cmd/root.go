package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/config"
	"github.com/veilcast/vidprobe-cli/internal/observability"
)

var (
	cfgFile string
	// cfg is resolved once in PersistentPreRunE and read by subcommands.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vidprobe",
	Short: "Vidprobe drives an already-authenticated browser to find embedded videos.",
	Long: `Vidprobe attaches to a running browser over its remote debugging port,
injects a saved session, navigates to catalog pages, and classifies whatever
video embed it finds there. It never launches or closes the browser itself.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return err
		}

		resolved, err := config.NewFromViper(viper.GetViper())
		if err != nil {
			// Initialize a fallback logger so the failure is at least visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "vidprobe"})
			return err
		}
		cfg = resolved

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting vidprobe", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command under a signal-aware context so an interrupt
// tears attempts down cleanly instead of leaving the tab mid-navigation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newAuthCheckCmd())
	rootCmd.AddCommand(newCookiesCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initializeConfig reads in the config file and VIDPROBE_ environment
// variables if set.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("VIDPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}
	return nil
}
