package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/sitesync/internal/config"
	"github.com/openmined/sitesync/internal/utils"
	"github.com/openmined/sitesync/internal/version"
	"github.com/spf13/cobra"
)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

var logLevel = new(slog.LevelVar)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitesync",
		Short:         "Publish a directory as a site",
		Version:       version.Detailed(),
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				logLevel.Set(slog.LevelDebug)
			}
		},
	}

	root.PersistentFlags().StringP("config", "c", "", fmt.Sprintf("config file (default %s)", config.DefaultConfigPath))
	root.PersistentFlags().BoolP("verbose", "v", false, "debug logging")

	root.AddCommand(
		newDeployCmd(),
		newDiffCmd(),
		newIDCmd(),
		newCheckPathCmd(),
		newLedgerCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	closeLog := setupLogging(config.DefaultLogFile)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		stop()
		closeLog()
		os.Exit(1)
	}
}

// setupLogging logs to stderr and, when the log file can be opened, to the file as well.
func setupLogging(logFile string) func() {
	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	var file io.WriteCloser
	handlers := []slog.Handler{stderrHandler}

	if err := utils.EnsureParent(logFile); err == nil {
		if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			file = f
			handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}

	slog.SetDefault(slog.New(utils.NewFanoutHandler(handlers...)))

	return func() {
		if file != nil {
			file.Close()
			file = nil
		}
	}
}
