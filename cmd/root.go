package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/safeguard-go/cmd/config"
	"github.com/tphakala/safeguard-go/cmd/replay"
	"github.com/tphakala/safeguard-go/cmd/serve"
	"github.com/tphakala/safeguard-go/internal/buildinfo"
	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "safeguard",
		Short:         "SafeGuard threat detection service",
		Version:       build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: search ., ~/.config/safeguard, /etc/safeguard)")
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")

	configCmd := config.Command(settings)
	rootCmd.AddCommand(
		serve.Command(settings, build),
		replay.Command(settings),
		configCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// A flag value is lost when the file is reloaded, so keep it.
		debug := settings.Debug
		if configPath != "" {
			loaded, err := conf.LoadFromFile(configPath)
			if err != nil {
				return err
			}
			*settings = *loaded
			settings.Debug = settings.Debug || debug
		}

		// config subcommands print to stdout and need no logger
		if cmd.Parent() == configCmd {
			return nil
		}
		return initLogger(settings)
	}

	return rootCmd
}

// initLogger installs the global logger described by main.log.
func initLogger(settings *conf.Settings) error {
	cfg := settings.Main.Log
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}
	central, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}
