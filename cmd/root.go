package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/forumrelay/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	envFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "forumrelay",
	Short: "Relay forum webhooks into a QQ group through NapCat",
	Long: `forumrelay receives Slack-style webhooks from a Flarum forum, recognises
new posts, approved posts and replies, and forwards a formatted notice to a
QQ group through a NapCat (OneBot v11) HTTP API.

Get started:
  forumrelay onboard    Interactive setup wizard
  forumrelay doctor     Verify configuration and NapCat reachability
  forumrelay serve      Start the webhook service
  forumrelay send       Send a one-off message or simulated event
  forumrelay watch      Follow live relay events from a running service`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.forumrelay/config.json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile,
		"dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		serveCmd,
		doctorCmd,
		configCmd,
		onboardCmd,
		sendCmd,
		watchCmd,
	)
}

func initConfig() {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
	loaded, err := config.LoadEnvFile(envFile)
	if err != nil {
		slog.Warn("could not load env file", "path", envFile, "error", err)
		return
	}
	if loaded {
		slog.Debug("env file loaded", "path", envFile)
	}
}

// loadConfig is shared by every command that needs the effective config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
