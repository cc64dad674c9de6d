package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/datasync/pkg/config"
	"github.com/walteh/datasync/pkg/engine"
	"github.com/walteh/datasync/pkg/oplog"
	"github.com/walteh/datasync/pkg/pathguard"
	"github.com/walteh/datasync/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// Exit codes surfaced to scripted callers.
const (
	exitSuccess   = 0
	exitFailure   = 1
	exitPartial   = 2
	exitCancelled = 130
)

var (
	// Flags
	configFile string
	debug      bool
	logFile    string
	move       bool
	overwrite  bool
	timeout    time.Duration
	parallel   int
	ignore     []string
)

// run builds the command tree and executes it, returning the process exit code
func run(ctx context.Context) int {
	exitCode := exitSuccess

	rootCmd := &cobra.Command{
		Use:           "datasync",
		Short:         "Copy or move files and directory trees with unsafe-destination protection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (.json/.yaml/.hcl/.datasync)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "operation log path (default datasync_log.txt)")

	syncCmd := &cobra.Command{
		Use:   "sync SOURCE DESTINATION",
		Short: "Copy (default) or move SOURCE to DESTINATION",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runSync(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			switch res.Outcome {
			case engine.OutcomePartialSuccess:
				exitCode = exitPartial
			case engine.OutcomeCancelled:
				exitCode = exitCancelled
			case engine.OutcomeFailure:
				exitCode = exitFailure
			}
			return nil
		},
	}
	syncCmd.Flags().BoolVarP(&move, "move", "m", false, "move the source instead of copying")
	syncCmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing destination files")
	syncCmd.Flags().DurationVar(&timeout, "timeout-per-item", 0, "per-item timeout (e.g. 30s)")
	syncCmd.Flags().IntVar(&parallel, "parallel", 0, "files copied concurrently")
	syncCmd.Flags().StringArrayVar(&ignore, "ignore", nil, "doublestar pattern to skip (repeatable)")
	rootCmd.AddCommand(syncCmd)

	rootCmd.SetContext(ctx)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, status.FormatResult(engine.Result{
			Outcome: engine.OutcomeFailure,
			Message: err.Error(),
		}))
		return exitFailure
	}
	return exitCode
}

// runSync wires the engine's collaborators and performs one transfer
func runSync(ctx context.Context, source, destination string) (engine.Result, error) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	ctx = logger.WithContext(ctx)

	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.LoadConfig(ctx, configFile)
		if err != nil {
			return engine.Result{}, errors.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if logFile != "" {
		cfg.LogPath = logFile
	}

	guard, err := pathguard.New(cfg.DenyPrefixes)
	if err != nil {
		return engine.Result{}, errors.Errorf("building path guard: %w", err)
	}

	olog, err := oplog.Open(cfg.LogPath)
	if err != nil {
		return engine.Result{}, errors.Errorf("opening operation log: %w", err)
	}
	defer olog.Close()

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Guard:    guard,
		OpLog:    olog,
		Reporter: status.NewConsoleReporter(os.Stdout),
	})
	if err != nil {
		return engine.Result{}, errors.Errorf("creating engine: %w", err)
	}

	mode := engine.ModeCopy
	if move {
		mode = engine.ModeMove
	}
	res := eng.Transfer(ctx, engine.Request{
		Source:         source,
		Destination:    destination,
		Mode:           mode,
		Overwrite:      overwrite,
		IgnorePatterns: ignore,
		TimeoutPerItem: timeout,
		Parallel:       parallel,
	})

	fmt.Fprintln(os.Stdout, status.FormatResult(res))
	if res.LogErr != nil {
		logger.Warn().Err(res.LogErr).Msg("operation was not recorded in the audit log")
	}
	return res, nil
}
