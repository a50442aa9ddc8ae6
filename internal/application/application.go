// Package application wires config, browser, resolver and booking flow into
// the runs the command line offers.
package application

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"courtbook/internal/booking"
	"courtbook/internal/browser"
	"courtbook/internal/browser/cdpdriver"
	"courtbook/internal/browser/pwdriver"
	"courtbook/internal/browser/wddriver"
	"courtbook/internal/config"
	"courtbook/internal/entity"
	"courtbook/internal/llm"
)

// PageOpener starts a browser and returns its tab.
type PageOpener func(ctx context.Context, cfg *config.Config, onDialog browser.DialogHandler) (browser.Page, error)

// OpenPage starts the driver named by cfg.Driver.
func OpenPage(ctx context.Context, cfg *config.Config, onDialog browser.DialogHandler) (browser.Page, error) {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Headless
	opts.RemoteURL = cfg.SeleniumURL
	opts.OnDialog = onDialog

	var (
		page browser.Page
		err  error
	)
	switch cfg.Driver {
	case config.DriverRod, "":
		page, err = browser.NewBrowserService(ctx, opts)
	case config.DriverChromedp:
		page, err = cdpdriver.New(ctx, opts)
	case config.DriverPlaywright:
		page, err = pwdriver.New(ctx, opts)
	case config.DriverSelenium:
		page, err = wddriver.New(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// App runs the booking flow with a fresh browser per call.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	open   PageOpener
}

func New(cfg *config.Config, logger *zap.Logger) *App {
	return &App{cfg: cfg, logger: logger, open: OpenPage}
}

// WithOpener replaces the browser factory.
func (a *App) WithOpener(open PageOpener) *App {
	a.open = open
	return a
}

// Run books one court. The browser is closed on every path.
func (a *App) Run(ctx context.Context) (booking.Outcome, *entity.Result, error) {
	logger := a.logger.With(zap.String("run_id", uuid.NewString()))
	logger.Info("starting reservation run",
		zap.String("driver", a.cfg.Driver),
		zap.Bool("headless", a.cfg.Headless),
		zap.String("club", a.cfg.Club),
		zap.Int("court", a.cfg.Court),
		zap.Bool("dry_run", a.cfg.DryRun))

	page, err := a.launch(ctx, logger)
	if err != nil {
		return booking.OutcomeFailed, nil, err
	}
	defer a.close(page, logger)

	var opts []booking.Option
	if a.cfg.LLM.APIKey != "" {
		logger.Info("selector recovery enabled", zap.String("model", a.cfg.LLM.Model))
		opts = append(opts, booking.WithResolver(
			llm.New(a.cfg.LLM.APIKey, a.cfg.LLM.Model, a.cfg.LLM.BaseURL, logger)))
	}

	res, outcome, err := booking.New(page, a.cfg, logger, opts...).Run(ctx)
	if err != nil {
		logger.Error("reservation failed", zap.Error(err))
		return outcome, res, err
	}
	logger.Info("run finished", zap.Stringer("outcome", outcome), zap.Bool("confirmed", res.Confirmed))
	return outcome, res, nil
}

// Scan logs in, opens the reservation page and writes the element summary to
// w. It is meant for fixing selectors after a portal change.
func (a *App) Scan(ctx context.Context, w io.Writer) error {
	logger := a.logger.With(zap.String("run_id", uuid.NewString()))

	page, err := a.launch(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close(page, logger)

	if err := booking.New(page, a.cfg, logger).EnsureLoggedIn(ctx); err != nil {
		return err
	}

	state, err := browser.Observe(ctx, page)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "URL: %s\nTitle: %s\n\n%s", state.URL, state.Title, state.DOMSummary)
	return err
}

func (a *App) launch(ctx context.Context, logger *zap.Logger) (browser.Page, error) {
	page, err := a.open(ctx, a.cfg, func(msg string) {
		logger.Warn("dialog dismissed", zap.String("message", msg))
	})
	if err != nil {
		return nil, fmt.Errorf("browser launch error: %w", err)
	}
	return page, nil
}

func (a *App) close(page browser.Page, logger *zap.Logger) {
	if err := page.Close(); err != nil {
		logger.Warn("closing browser", zap.Error(err))
	}
}
