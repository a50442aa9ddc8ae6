// portal_shell drives the reservation page by hand: scan it, click and type
// by element id, and try selects. Useful when the portal changes layout.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"courtbook/internal/application"
	"courtbook/internal/config"
)

var (
	success = color.New(color.FgGreen).SprintFunc()
	fail    = color.New(color.FgRed).SprintFunc()
	info    = color.New(color.FgCyan).SprintFunc()
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	driver := flag.String("driver", "", "browser driver (defaults to config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg := zap.NewDevelopmentConfig()
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig(*configPath, logger)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Warn("config incomplete; login is disabled", zap.Error(err))
	}
	// The shell is for watching the page.
	cfg.Headless = false
	if *driver != "" {
		cfg.Driver = *driver
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Starting %s browser...", cfg.Driver)
	s.Start()
	page, err := application.OpenPage(ctx, cfg, func(msg string) {
		logger.Warn("dialog dismissed", zap.String("message", msg))
	})
	s.Stop()
	if err != nil {
		fmt.Printf("%s Browser launch failed: %v\n", fail("✗"), err)
		os.Exit(1)
	}
	defer page.Close()
	fmt.Printf("%s Browser ready\n", success("✓"))

	sh := newShell(page, cfg, logger, os.Stdout)
	if err := page.Navigate(ctx, cfg.ReservationURL); err != nil {
		fmt.Printf("%s %v\n", fail("✗"), err)
	}

	in := bufio.NewScanner(os.Stdin)
	for {
		sh.scan(ctx)
		fmt.Printf("\n%s ", info("courtbook>"))
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		start := time.Now()
		quit, err := sh.exec(ctx, line)
		if quit {
			return
		}
		if err != nil {
			fmt.Printf("%s %v\n", fail("✗"), err)
			continue
		}
		fmt.Printf("%s done in %v\n", success("✓"), time.Since(start).Round(time.Millisecond))

		if ctx.Err() != nil {
			return
		}
	}
}
