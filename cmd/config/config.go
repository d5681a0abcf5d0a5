// Package config implements the config command for creating and inspecting
// configuration files.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/privacy"
)

// Command creates the config command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(initCommand(), showCommand(settings), validateCommand(settings))
	return cmd
}

func initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Long:  "Write the default configuration to path, config.yaml in the working directory when omitted. Existing files are never overwritten.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := conf.WriteDefaultConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", path)
			return nil
		},
	}
}

func showCommand(settings *conf.Settings) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, file and SAFEGUARD_ environment variables are applied. Passwords and service URLs are redacted unless --reveal is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := *settings
			if !reveal {
				out = Redact(settings)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(&out); err != nil {
				return fmt.Errorf("error encoding settings: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print secrets in clear text")
	return cmd
}

func validateCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.ValidateSettings(settings); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}
}

// Redact returns a copy of settings with credentials removed.
func Redact(settings *conf.Settings) conf.Settings {
	out := *settings

	out.MQTT.Password = mask(out.MQTT.Password)
	out.MQTT.Broker = privacy.ScrubMessage(out.MQTT.Broker)
	out.Redis.Password = mask(out.Redis.Password)
	out.Output.MySQL.Password = mask(out.Output.MySQL.Password)
	out.Telemetry.SentryDSN = privacy.ScrubMessage(out.Telemetry.SentryDSN)
	out.Notification.Email.URL = privacy.HideURLs(out.Notification.Email.URL)

	out.Notification.URLs = make([]string, len(settings.Notification.URLs))
	for i, u := range settings.Notification.URLs {
		out.Notification.URLs[i] = privacy.HideURLs(u)
	}
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return privacy.Redacted
}
