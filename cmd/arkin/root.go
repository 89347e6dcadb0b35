// Command arkin is the engine's CLI front end: ingestor/insights/
// simulation/live subcommands sharing one config-load → logger-setup →
// engine-start → signal-wait → graceful-stop sequence. Grounded on the
// teacher's cmd/bot/main.go for that sequence, and on cuemby-warren's
// cmd/warren/main.go and dbn-go's cmd/*/main.go for the cobra
// command-tree shape.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/arkin-run/arkin/internal/config"
)

// Exit codes per the CLI surface contract.
const (
	exitOK           = 0
	exitConfigError  = 1
	exitRuntimeError = 2
	exitInterrupted  = 130
)

var (
	flagConfigDir   string
	flagRunMode     string
	flagInstruments string
	flagStart       string
	flagEnd         string
	flagDryRun      bool
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			fmt.Fprintln(os.Stderr, "error:", err)
			return coder.ExitCode()
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitRuntimeError
	}
	return exitOK
}

// exitCodeError lets a subcommand signal a specific process exit code
// through cobra's normal error-return path, with no underlying error to
// report (the code alone is the signal, e.g. exitInterrupted).
type exitCodeError int

func (e exitCodeError) Error() string { return fmt.Sprintf("exit code %d", int(e)) }
func (e exitCodeError) ExitCode() int { return int(e) }

var rootCmd = &cobra.Command{
	Use:   "arkin",
	Short: "arkin is the event-driven trading engine's CLI",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "configs", "directory containing layered config files")
	rootCmd.PersistentFlags().StringVar(&flagRunMode, "run-mode", "dev", "run-mode config layer to merge over default")
	rootCmd.PersistentFlags().StringVar(&flagInstruments, "instruments", "", "comma-separated instrument symbols")
	rootCmd.PersistentFlags().StringVar(&flagStart, "start", "", "replay window start, 'YYYY-MM-DD HH:MM'")
	rootCmd.PersistentFlags().StringVar(&flagEnd, "end", "", "replay window end, 'YYYY-MM-DD HH:MM'")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "do not submit live orders")

	rootCmd.AddCommand(ingestorCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(simulationCmd)
	rootCmd.AddCommand(liveCmd)
}

const timeLayout = "2006-01-02 15:04"

func parseReplayWindow() (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if flagStart != "" {
		start, err = time.Parse(timeLayout, flagStart)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --start: %w", err)
		}
	}
	if flagEnd != "" {
		end, err = time.Parse(timeLayout, flagEnd)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --end: %w", err)
		}
	}
	return start, end, nil
}

func instrumentList() []string {
	return splitCSV(flagInstruments)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flagConfigDir, flagRunMode)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if flagDryRun {
		cfg.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return cfg, slog.New(handler), nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
