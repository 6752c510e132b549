package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/fonts"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage inkbridge configuration",
		Long: `Configuration management commands for inkbridge.

Commands:
  init      - Interactive configuration setup
  show      - Display current configuration
  validate  - Check the configuration for errors
  path      - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigValidateCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for inkbridge.

Press Enter to keep the value shown in brackets.
Use --force to overwrite an existing configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "inkbridge Configuration Setup")
			fmt.Fprintln(out, "=============================")
			fmt.Fprintln(out)

			reader := bufio.NewReader(cmd.InOrStdin())
			cfg := config.NewConfig()

			cfg.ServiceURL = promptString(reader, out, "Translation service URL", cfg.ServiceURL)

			for {
				lang, err := fonts.ParseLanguage(promptString(reader, out, "Target language", cfg.Language))
				if err == nil {
					cfg.Language = lang
					break
				}
				fmt.Fprintf(out, "  Error: %v\n", err)
			}
			for {
				family, err := fonts.ParseFamily(promptString(reader, out, "Font family (Noto Sans, Wild Words)", cfg.Font))
				if err == nil {
					cfg.Font = family
					break
				}
				fmt.Fprintf(out, "  Error: %v\n", err)
			}
			if w := fonts.Warning(cfg.Font, cfg.Language); w != "" {
				fmt.Fprintf(out, "  Warning: %s\n", w)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Archive Settings")
			fmt.Fprintln(out, "----------------")
			cfg.ArchiveFormat = promptString(reader, out, "Archive format (zip, tar.gz)", cfg.ArchiveFormat)
			cfg.Sink.Kind = promptString(reader, out, "Save to (local, s3, azure, gcs)", cfg.Sink.Kind)
			switch cfg.Sink.Kind {
			case config.SinkLocal:
				cfg.Sink.Dir = promptString(reader, out, "Directory", cfg.Sink.Dir)
			case config.SinkS3:
				cfg.Sink.Bucket = promptString(reader, out, "Bucket", cfg.Sink.Bucket)
				cfg.Sink.Region = promptString(reader, out, "Region", cfg.Sink.Region)
				cfg.Sink.Endpoint = promptString(reader, out, "Endpoint (blank for AWS)", cfg.Sink.Endpoint)
				cfg.Sink.Prefix = promptString(reader, out, "Key prefix", cfg.Sink.Prefix)
			case config.SinkGCS:
				cfg.Sink.Bucket = promptString(reader, out, "Bucket", cfg.Sink.Bucket)
				cfg.Sink.Prefix = promptString(reader, out, "Object prefix", cfg.Sink.Prefix)
			case config.SinkAzure:
				cfg.Sink.ContainerURL = promptString(reader, out, "Container URL with SAS token", cfg.Sink.ContainerURL)
				cfg.Sink.Prefix = promptString(reader, out, "Blob prefix", cfg.Sink.Prefix)
			}

			fmt.Fprintln(out)
			useProxy, err := promptYesNo(reader, out, "Configure proxy?", false)
			if err != nil {
				useProxy = false
			}
			if useProxy {
				fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
				cfg.ProxyMode = promptString(reader, out, "Proxy mode", "system")
				if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
					cfg.ProxyHost = promptString(reader, out, "Proxy host", cfg.ProxyHost)
					port := promptString(reader, out, "Proxy port", "8080")
					if v, err := strconv.Atoi(port); err == nil && v > 0 {
						cfg.ProxyPort = v
					}
					cfg.ProxyUser = promptString(reader, out, "Proxy user", cfg.ProxyUser)
				}
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			if cfg.ProxyUser != "" {
				fmt.Fprintf(out, "The proxy password is not stored; set %s or enter it when asked.\n", config.EnvProxyPassword)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

Priority: flags > environment (INKBRIDGE_*) > config file > defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Service:")
			fmt.Fprintf(out, "  URL:          %s\n", cfg.ServiceURL)
			fmt.Fprintf(out, "  Timeout:      %ds\n", cfg.TimeoutSeconds)
			if cfg.RequestsPerSecond > 0 {
				fmt.Fprintf(out, "  Rate Limit:   %.2f req/s\n", cfg.RequestsPerSecond)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Translation:")
			fmt.Fprintf(out, "  Language:     %s\n", cfg.Language)
			fmt.Fprintf(out, "  Font:         %s\n", cfg.Font)
			fmt.Fprintf(out, "  Wire Font:    %s\n", fonts.Resolve(cfg.Font, cfg.Language))
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Archive:")
			fmt.Fprintf(out, "  Name:         %s\n", cfg.ResolvedArchiveName())
			fmt.Fprintf(out, "  Sink:         %s\n", cfg.Sink.Kind)
			switch cfg.Sink.Kind {
			case config.SinkLocal:
				fmt.Fprintf(out, "  Directory:    %s\n", cfg.Sink.Dir)
			case config.SinkS3, config.SinkGCS:
				fmt.Fprintf(out, "  Bucket:       %s\n", cfg.Sink.Bucket)
			case config.SinkAzure:
				if cfg.Sink.ContainerURL != "" {
					// SAS tokens are credentials
					fmt.Fprintln(out, "  Container:    <set>")
				}
			}
			if cfg.Sink.Prefix != "" {
				fmt.Fprintf(out, "  Prefix:       %s\n", cfg.Sink.Prefix)
			}
			fmt.Fprintf(out, "  Overwrite:    %t\n", cfg.Sink.Overwrite)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy:")
			fmt.Fprintf(out, "  Mode:         %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Fprintf(out, "  Host:         %s:%d\n", cfg.ProxyHost, cfg.ProxyPort)
			}
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

// newConfigValidateCmd creates the 'config validate' command.
func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if _, err := fonts.ParseLanguage(cfg.Language); err != nil {
				return err
			}
			if _, err := fonts.ParseFamily(cfg.Font); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
			if w := fonts.Warning(cfg.Font, cfg.Language); w != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: %s\n", w)
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
