// Package booking runs the reservation flow against the portal: log in, pick
// the club, pick the slot, save, and check the confirmation.
package booking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"courtbook/internal/browser"
	"courtbook/internal/config"
	"courtbook/internal/entity"
)

var (
	ErrControlsMissing = errors.New("reservation controls did not load (missing #ddlDates)")
	ErrNoDates         = errors.New("no date options found")
	ErrNoTimes         = errors.New("no time options available")
	ErrNoCourts        = errors.New("no court options")
	ErrSaveClick       = errors.New("save button click failed")
)

// Resolver finds an element by intent when every known selector failed.
// Recorded attempts refer to ids of one scan and are dropped by Reset.
type Resolver interface {
	Resolve(ctx context.Context, intent string, state *entity.BrowserState) (int, error)
	RecordAttempt(intent string, id int, result string)
	Reset()
}

// Orchestrator drives one Page through the booking steps.
type Orchestrator struct {
	Page     browser.Page
	Resolver Resolver

	cfg    *config.Config
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithResolver enables model-assisted recovery of broken selectors.
func WithResolver(r Resolver) Option {
	return func(o *Orchestrator) { o.Resolver = r }
}

func New(p browser.Page, cfg *config.Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		Page:   p,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepCtx,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the whole flow once. The returned Result carries whatever was
// picked before a failure.
func (o *Orchestrator) Run(ctx context.Context) (*entity.Result, Outcome, error) {
	res := &entity.Result{DryRun: o.cfg.DryRun}

	if err := o.run(ctx, res); err != nil {
		o.saveScreenshot(ctx)
		return res, OutcomeFailed, err
	}

	switch {
	case res.DryRun:
		o.logger.Info("dry run: not submitting")
		return res, OutcomeConfirmed, nil
	case !res.Confirmed:
		o.logger.Warn("reservation may not have been saved; please verify manually")
		return res, OutcomeUnconfirmed, nil
	}
	return res, OutcomeConfirmed, nil
}

func (o *Orchestrator) run(ctx context.Context, res *entity.Result) error {
	if err := o.EnsureLoggedIn(ctx); err != nil {
		return err
	}

	club, err := o.SelectClub(ctx)
	if err != nil {
		return fmt.Errorf("select club: %w", err)
	}
	res.Club = club

	date, err := o.SelectFurthestDate(ctx)
	if err != nil {
		return fmt.Errorf("select date: %w", err)
	}
	res.Date = date.Text

	if duration, ok, err := o.SelectDuration(ctx); err != nil {
		return fmt.Errorf("select duration: %w", err)
	} else if ok {
		res.Duration = duration.Text
	}

	slot, err := o.SelectEarliestTime(ctx)
	if err != nil {
		return fmt.Errorf("select time: %w", err)
	}
	res.Time = slot.Value

	court, err := o.SelectCourt(ctx)
	if err != nil {
		return fmt.Errorf("select court: %w", err)
	}
	res.Court = court.Text

	o.logger.Info("target slot",
		zap.String("date", res.Date),
		zap.String("time", res.Time),
		zap.String("court", res.Court))

	if res.DryRun {
		return nil
	}

	status, confirmed, err := o.Submit(ctx)
	if err != nil {
		return err
	}
	res.Status = status
	res.Confirmed = confirmed
	return nil
}

// clickWithFallback clicks the first selector that is present. When none
// works and a Resolver is set, the page is scanned and the model gets two
// tries at naming the element.
func (o *Orchestrator) clickWithFallback(ctx context.Context, intent string, sels []browser.Selector, waitNav bool) error {
	click := o.Page.Click
	if waitNav {
		click = o.Page.ClickAndWait
	}

	var errs []error
	for _, sel := range sels {
		present, err := o.exists(ctx, sel)
		if err != nil || !present {
			errs = append(errs, &browser.NotFoundError{Selector: sel})
			continue
		}
		if err := click(ctx, sel); err != nil {
			o.logger.Debug("click failed", zap.String("selector", sel.String()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		return nil
	}

	if o.Resolver == nil {
		return errors.Join(errs...)
	}

	o.logger.Warn("known selectors failed; asking model", zap.String("intent", intent))
	// Ids are renumbered by every Observe.
	o.Resolver.Reset()
	state, err := browser.Observe(ctx, o.Page)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	for attempt := 0; attempt < 2; attempt++ {
		id, err := o.Resolver.Resolve(ctx, intent, state)
		if err != nil {
			errs = append(errs, err)
			break
		}
		if err := click(ctx, browser.AgentSelector(id)); err != nil {
			o.Resolver.RecordAttempt(intent, id, err.Error())
			errs = append(errs, err)
			continue
		}
		o.logger.Info("recovered selector", zap.String("intent", intent), zap.Int("element", id))
		return nil
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) exists(ctx context.Context, sel browser.Selector) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return o.Page.Exists(ctx, sel)
}

func (o *Orchestrator) saveScreenshot(ctx context.Context) {
	dir := o.cfg.ScreenshotDir
	if dir == "" {
		return
	}

	// The run context may already be cancelled; the screenshot still matters.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	buf, err := o.Page.Screenshot(ctx)
	if err != nil {
		o.logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		o.logger.Warn("screenshot dir", zap.Error(err))
		return
	}
	name := filepath.Join(dir, fmt.Sprintf("courtbook-%s.png", o.now().Format("20060102-150405")))
	if err := os.WriteFile(name, buf, 0o644); err != nil {
		o.logger.Warn("write screenshot", zap.Error(err))
		return
	}
	o.logger.Info("saved screenshot", zap.String("path", name))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
