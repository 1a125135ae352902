// Package cmd implements the CLI commands for ffmpegfarmd.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jmylchreest/ffmpegfarm/internal/config"
	"github.com/jmylchreest/ffmpegfarm/internal/observability"
	"github.com/jmylchreest/ffmpegfarm/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "ffmpegfarmd",
	Short:   "ffmpeg transcode farm job coordination server",
	Version: version.Short(),
	Long: `ffmpegfarmd coordinates ffmpeg transcoding work across a fleet of
worker machines. It accepts transcode and mux requests, decomposes each
into independently dispatchable jobs and parts, and hands jobs out to
polling workers under a lease with automatic reclamation on timeout.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default search: ./config.yaml, /etc/ffmpegfarmd, $HOME/.ffmpegfarmd)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Bind flags to viper
	mustBindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Set default configuration values before reading config file
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/ffmpegfarmd")
		viper.AddConfigPath("$HOME/.ffmpegfarmd")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Environment variables
	viper.SetEnvPrefix("FFMPEGFARM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging configures the default slog logger from configuration,
// redacting credentials that a database.dsn or similar value may carry.
func initLogging() error {
	cfg := config.LoggingConfig{
		Level:      strings.ToLower(viper.GetString("logging.level")),
		Format:     strings.ToLower(viper.GetString("logging.format")),
		AddSource:  viper.GetBool("logging.add_source"),
		TimeFormat: viper.GetString("logging.time_format"),
	}

	observability.SetDefault(observability.NewLoggerWithWriter(cfg, os.Stderr))
	return nil
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
// This helper ensures lint-compliant error handling for viper.BindPFlag.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
