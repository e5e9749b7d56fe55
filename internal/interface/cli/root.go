package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/neilberkman/fieldhand/internal/core/app"
	"github.com/neilberkman/fieldhand/internal/core/config"
	"github.com/spf13/cobra"
)

var (
	configDir   string
	apiURL      string
	storeType   string
	dbPath      string
	versionInfo string
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fieldhand",
	Short: "Terminal client for the farm advisory service",
	Long: `fieldhand - soil analysis, crop advice, weather and market prices from your terminal

Sign in once with an emailed one-time code; the session is remembered
between runs. Run without a subcommand to open the interactive dashboard.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to TUI if no subcommand specified
		return tuiCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Config directory (default ~/.config/fieldhand)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Advisory service URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storeType, "store", "", "Session store: sqlite, redis or memory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path for the sqlite store")
}

func loadConfig() (*config.Config, error) {
	dir := configDir
	if dir == "" {
		dir = config.Dir()
	}
	cfg, err := config.LoadFrom(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if storeType != "" {
		cfg.Store = storeType
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp opens the app for the duration of one command.
func withApp(fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.Open(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd, a, args)
	}
}
