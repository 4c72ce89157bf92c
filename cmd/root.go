package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abhisek/skilltune/internal/adaptive"
	"github.com/abhisek/skilltune/internal/coach"
	"github.com/abhisek/skilltune/internal/config"
	"github.com/abhisek/skilltune/internal/logging"
	"github.com/abhisek/skilltune/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "skilltune",
	Short: "Adaptive difficulty for learning games",
	Long: "skilltune tracks what each student knows with Bayesian Knowledge Tracing\n" +
		"and tunes game difficulty from it, backed by a remote learning store with\n" +
		"an offline SQLite cache.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

var (
	cfg config.Config
	log *logrus.Logger
)

func init() {
	f := rootCmd.PersistentFlags()
	f.String("db", "", "Path to SQLite database file (overrides SKILLTUNE_DB)")
	f.String("mode", "", "Service mode: remote or local (overrides SKILLTUNE_MODE)")
	f.String("api", "", "Remote learning API base URL (overrides SKILLTUNE_API_URL)")
	f.String("log-level", "", "Log level: debug, info, warn, error (overrides SKILLTUNE_LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, stateCmd, answerCmd, difficultyCmd, recordCmd,
		syncCmd, resetCmd, statsCmd, practiceCmd, gamesCmd, llmCmd, versionCmd)
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("db", &c.DBPath)
	override("mode", &c.Mode)
	override("api", &c.APIBaseURL)
	override("log-level", &c.Log.Level)
	if err := c.Validate(); err != nil {
		return err
	}

	l, err := logging.New(c.Log.Level, c.Log.Format)
	if err != nil {
		return err
	}
	cfg, log = c, l
	return nil
}

// openStore opens the offline cache at the configured path.
func openStore() (*store.Store, error) {
	path, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

// openService builds the difficulty service with its store and coach. The
// returned func releases both.
func openService(ctx context.Context) (adaptive.DifficultyService, *store.Store, func(), error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	svc, err := adaptive.New(ctx, cfg, adaptive.Deps{
		Logger:     log,
		Store:      st,
		Encourager: coach.New(ctx, cfg.Coach, st.EventRepo(), log.WithField("component", "coach")),
	})
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	return svc, st, func() {
		svc.Close()
		st.Close()
	}, nil
}
