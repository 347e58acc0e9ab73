package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matheuskafuri/intelfeed/internal/config"
	"github.com/matheuskafuri/intelfeed/internal/logging"
	"github.com/matheuskafuri/intelfeed/internal/update"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig   string
	flagLogLevel string
	flagCheck    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "intelfeed",
	Short: "Topic-tagged feed aggregator",
	Long: `intelfeed follows topics across RSS and Atom sources, keeps a small
deduplicated cache of the newest items per topic, and scores them with an
optional language model.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			logger = logging.Init(os.Stderr, flagLogLevel)
			return nil
		}
		_ = godotenv.Load()

		c, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if flagLogLevel != "" {
			c.Log.Level = flagLogLevel
		}
		cfg = c
		logger = logging.Init(os.Stderr, cfg.Log.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override log level (debug, info, warn, error)")

	versionCmd.Flags().BoolVar(&flagCheck, "check", false, "check for a newer release")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(subscribeCmd, unsubscribeCmd, subscriptionsCmd)
	rootCmd.AddCommand(topicsCmd, showCmd, refreshCmd, staleCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(statsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "intelfeed %s (commit: %s, built: %s)\n", version, commit, date)
		if !flagCheck {
			return nil
		}
		res, err := update.Checker{}.Check(cmd.Context(), version)
		if err != nil {
			return err
		}
		if res.Newer {
			fmt.Fprintf(out, "A newer release is available: v%s\n", res.LatestVersion)
		} else {
			fmt.Fprintln(out, "You are on the latest release.")
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
