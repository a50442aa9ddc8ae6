package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"courtbook/internal/config"
)

var (
	// Global flags
	configPath    string
	verbose       bool
	headless      bool
	driver        string
	court         int
	duration      string
	zip           string
	club          string
	dryRun        bool
	screenshotDir string

	logger *zap.Logger

	// exitCode is set by book and returned by main.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "courtbook",
	Short: "Book a racquetball court on the gym reservation portal",
	Long: `courtbook logs in to the reservation portal, switches to the configured
club, and books the furthest date at the earliest time on the preferred court.

Credentials come from RB_USER and RB_PASS (environment or .env).

Exit codes: 0 confirmed or dry run, 2 saved without confirmation, 3 failed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg = zap.NewDevelopmentConfig()
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runBook,
}

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Reserve a court (default)",
	RunE:  runBook,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Log in and print the interactive elements of the reservation page",
	Long: `Prints every element the page scanner tags, with the ids the selector
recovery model sees. Use it to update selectors after a portal release.`,
	RunE: runScan,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&headless, "headless", true, "run the browser without a window")
	pf.StringVar(&driver, "driver", config.DriverRod, "browser driver: rod, chromedp, playwright or selenium")
	pf.IntVar(&court, "court", config.DefaultCourt, "preferred court number")
	pf.StringVar(&duration, "duration", config.DefaultDuration, "reservation length in minutes")
	pf.StringVar(&zip, "zip", config.DefaultZip, "zip code used to find the club")
	pf.StringVar(&club, "club", config.DefaultClub, "club name as listed in the search results")
	pf.BoolVar(&dryRun, "dry-run", false, "pick the slot but do not save it")
	pf.StringVar(&screenshotDir, "screenshot-dir", "", "save a screenshot here when the run fails")

	rootCmd.AddCommand(bookCmd, scanCmd)
}

// loadConfig reads file and environment, then applies the flags the user
// actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath, logger)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Headless = headless
	}
	if flags.Changed("driver") {
		cfg.Driver = driver
	}
	if flags.Changed("court") {
		cfg.Court = court
	}
	if flags.Changed("duration") {
		cfg.DurationMinutes = duration
	}
	if flags.Changed("zip") {
		cfg.Zip = zip
	}
	if flags.Changed("club") {
		cfg.Club = club
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	if flags.Changed("screenshot-dir") {
		cfg.ScreenshotDir = screenshotDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == 0 {
			exitCode = 3
		}
	}
	stop()
	os.Exit(exitCode)
}
