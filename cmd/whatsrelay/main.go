package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"whatsrelay/internal/config"
	"whatsrelay/internal/constants"
	"whatsrelay/internal/models"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// cliOptions holds the persistent flags shared by every subcommand.
type cliOptions struct {
	configPath string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "whatsrelay",
		Short: "WhatsApp Business webhook relay with realtime conversations",
		Long: "Ingests WhatsApp Business webhooks, stores messages, and serves a REST API " +
			"plus a websocket channel for chat clients.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", constants.DefaultConfigPath, "Path to configuration file (JSON or YAML)")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging (includes sensitive information)")

	root.AddCommand(
		newServeCmd(opts),
		newSeedCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "WhatsRelay %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		},
	}
}

// loadConfig loads .env, then the config file. The default config file is
// optional; a file named with --config must exist.
func loadConfig(cmd *cobra.Command, opts *cliOptions) (*models.Config, string, error) {
	config.LoadDotEnv()

	explicit := cmd.Flags().Changed("config")
	path, err := config.ResolvePath(opts.configPath, explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, path, nil
}

func newLogger(cfg *models.Config, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return logger
	}
	config.ApplyLogLevel(logger, cfg.LogLevel, false)
	return logger
}
