// Package cli provides the inkbridge command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inkbridge/inkbridge/internal/cloud"
	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/logging"
	"github.com/inkbridge/inkbridge/internal/version"
)

var (
	// Global flags
	cfgFile    string
	serviceURL string
	verbose    bool
	debug      bool
	timing     bool

	logger *logging.Logger

	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "inkbridge",
		Short: "Batch image translation client",
		Long: `inkbridge ` + version.Version + ` - Built: ` + version.BuildTime + `
Submits images to a translation service one at a time, tracks each image,
and packs the results into a single archive.

Examples:
  inkbridge translate ./chapter-12 --lang English --font "Wild Words"
  inkbridge languages
  inkbridge fonts resolve --font "Wild Words" --lang Korean`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if timing {
				os.Setenv(cloud.TimingEnv, "1")
			}
			initLogger(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				logger.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service-url", "", "Translation service URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().BoolVar(&timing, "timing", false, "Print stage timings to stderr")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newCompletionCmd(rootCmd))
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

func initLogger(cmd *cobra.Command) {
	opts := logging.Options{Console: cmd.ErrOrStderr()}
	level := "info"

	// Log settings come from the config file only; a broken config is
	// reported later by the command that needs it
	if cfg, err := config.Load(cfgFile); err == nil {
		if cfg.LogFile != "" {
			opts.File = cfg.LogFile
		}
		level = cfg.LogLevel
	}

	logger = logging.NewLogger(opts)
	logger.Install()
	logging.SetGlobalLevel(logging.ParseLevel(level))
	if verbose || debug {
		logging.SetGlobalLevel(logging.ParseLevel("debug"))
	}
}

func newCompletionCmd(rootCmd *cobra.Command) *cobra.Command {
	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for your shell.

QUICK TEST (current session only):
  bash:        source <(inkbridge completion bash)
  zsh:         source <(inkbridge completion zsh)
  fish:        inkbridge completion fish | source
  powershell:  inkbridge completion powershell | Out-String | Invoke-Expression`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			default:
				return rootCmd.GenPowerShellCompletion(out)
			}
		},
	}
	return completionCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\n\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newTranslateCmd())
	rootCmd.AddCommand(newLanguagesCmd())
	rootCmd.AddCommand(newFontsCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the signal-aware context, or Background before Execute.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if serviceURL != "" {
		cfg.ServiceURL = serviceURL
	}
	return cfg, nil
}
