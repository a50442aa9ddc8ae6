package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"courtbook/internal/browser"
	"courtbook/internal/entity"
	"courtbook/internal/portal"
)

const (
	dateSettle = 1000 * time.Millisecond
	timeSettle = 500 * time.Millisecond
)

// EnsureLoggedIn opens the reservation page, logs in when the login form is
// shown, and reopens the page until the date list is there.
func (o *Orchestrator) EnsureLoggedIn(ctx context.Context) error {
	if err := o.loadWithRetry(ctx, "reservation page did not load; retrying"); err != nil {
		return err
	}

	loginForm, _ := o.exists(ctx, portal.UserField)
	if !loginForm {
		o.logger.Info("login form not found; assuming session already valid")
		return o.loadWithRetry(ctx, "reservation controls missing after login; retrying")
	}

	o.logger.Info("logging in", zap.String("user", o.cfg.User))
	if err := o.Page.Fill(ctx, portal.UserField, o.cfg.User); err != nil {
		return fmt.Errorf("fill user: %w", err)
	}
	if err := o.Page.Fill(ctx, portal.PasswordField, o.cfg.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	loginCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Login)
	err := o.clickWithFallback(loginCtx, "Log in button of the sign-in form", portal.LoginButtons, true)
	cancel()
	if err != nil {
		// A failed click shows up as missing controls on the next load.
		o.logger.Warn("login click failed", zap.Error(err))
	}

	return o.loadWithRetry(ctx, "reservation controls missing after login; retrying")
}

func (o *Orchestrator) loadWithRetry(ctx context.Context, retryMsg string) error {
	t := o.cfg.Timeouts
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(t.RetryPause), uint64(t.LoadAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(func() error {
		return o.loadReservationPage(ctx)
	}, b, func(err error, wait time.Duration) {
		o.logger.Warn(retryMsg, zap.Error(err), zap.Duration("wait", wait))
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrControlsMissing, err)
	}
	return nil
}

func (o *Orchestrator) loadReservationPage(ctx context.Context) error {
	if err := o.Page.Navigate(ctx, o.cfg.ReservationURL); err != nil {
		o.logger.Debug("navigate", zap.Error(err))
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Controls)
	defer cancel()
	return o.Page.WaitVisible(waitCtx, portal.Dates)
}

// SelectClub switches the account's club through the Change Club dialog and
// returns the club label the page shows afterwards.
func (o *Orchestrator) SelectClub(ctx context.Context) (string, error) {
	t := o.cfg.Timeouts
	club := o.cfg.Club

	o.logger.Info("opening change club dialog")
	openCtx, cancel := context.WithTimeout(ctx, t.ZipField)
	if err := o.Page.Click(openCtx, portal.ChangeClub); err != nil {
		o.logger.Debug("change club click", zap.Error(err))
	}
	cancel()

	zipCtx, cancel := context.WithTimeout(ctx, t.ZipField)
	err := o.Page.WaitVisible(zipCtx, portal.ZipField)
	cancel()
	if err != nil {
		return "", fmt.Errorf("zip code field: %w", err)
	}
	if err := o.Page.Fill(ctx, portal.ZipField, o.cfg.Zip); err != nil {
		return "", fmt.Errorf("fill zip code: %w", err)
	}

	if hit, err := o.Page.Eval(ctx, browser.ClickFirstScript(portal.FindClubQueries...)); err != nil || hit == "" {
		o.logger.Debug("find button", zap.String("hit", hit), zap.Error(err))
	}

	rowCtx, cancel := context.WithTimeout(ctx, t.ClubRow)
	err = o.Page.WaitVisible(rowCtx, portal.ClubRow(club))
	cancel()
	if err != nil {
		return "", fmt.Errorf("club %q not listed for zip %s: %w", club, o.cfg.Zip, err)
	}

	o.logger.Info("selecting club", zap.String("club", club))
	navCtx, cancel := context.WithTimeout(ctx, t.ClubNav)
	err = o.clickWithFallback(navCtx, fmt.Sprintf("Select button on the %s row", club),
		[]browser.Selector{portal.ClubSelectButton(club)}, true)
	cancel()
	if err != nil {
		o.logger.Warn("club select click failed", zap.Error(err))
	}

	labelCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	label, _ := o.Page.Text(labelCtx, portal.ClubLabel)
	cancel()
	label = strings.TrimSpace(label)

	if label != "" && portal.ClubMatches(label, club) {
		o.logger.Info("club switched", zap.String("club", label))
	} else {
		current := label
		if current == "" {
			current = "unknown"
		}
		o.logger.Warn("club label not updated", zap.String("current", current))
	}
	return label, nil
}

// SelectFurthestDate picks the last date in the list.
func (o *Orchestrator) SelectFurthestDate(ctx context.Context) (entity.Option, error) {
	opts, err := o.options(ctx, portal.DatesID)
	if err != nil {
		return entity.Option{}, err
	}
	target, ok := portal.FurthestDate(opts)
	if !ok {
		return entity.Option{}, ErrNoDates
	}

	o.logger.Info("selecting furthest date", zap.String("date", target.Text))
	if err := o.Page.SelectValue(ctx, portal.Dates, target.Value); err != nil {
		return entity.Option{}, err
	}
	return target, o.sleep(ctx, dateSettle)
}

// SelectDuration picks the configured length. ok is false when the portal
// does not offer it; the page default then stays in place.
func (o *Orchestrator) SelectDuration(ctx context.Context) (entity.Option, bool, error) {
	opts, err := o.options(ctx, portal.DurationID)
	if err != nil {
		return entity.Option{}, false, err
	}
	target, ok := portal.MatchDuration(opts, o.cfg.DurationMinutes)
	if !ok {
		o.logger.Warn("duration not offered; keeping page default", zap.String("minutes", o.cfg.DurationMinutes))
		return entity.Option{}, false, nil
	}

	o.logger.Info("selecting duration", zap.String("duration", target.Text))
	if err := o.Page.SelectValue(ctx, portal.Duration, target.Value); err != nil {
		o.logger.Debug("select duration by value", zap.Error(err))
		got, jsErr := o.Page.Eval(ctx, browser.SelectIndexScript(portal.DurationID, target.Index))
		if jsErr != nil {
			return entity.Option{}, false, jsErr
		}
		if got == "" {
			return entity.Option{}, false, err
		}
	}
	return target, true, nil
}

// SelectEarliestTime picks the first slot of the day.
func (o *Orchestrator) SelectEarliestTime(ctx context.Context) (entity.Option, error) {
	opts, err := o.options(ctx, portal.TimesID)
	if err != nil {
		return entity.Option{}, err
	}
	target, ok := portal.EarliestTime(opts)
	if !ok {
		return entity.Option{}, ErrNoTimes
	}

	o.logger.Info("selecting time", zap.String("time", target.Value))
	if err := o.Page.SelectValue(ctx, portal.Times, target.Value); err != nil {
		return entity.Option{}, err
	}
	return target, o.sleep(ctx, timeSettle)
}

// SelectCourt picks the preferred court, or the first one offered.
func (o *Orchestrator) SelectCourt(ctx context.Context) (entity.Option, error) {
	opts, err := o.options(ctx, portal.CourtsID)
	if err != nil {
		return entity.Option{}, err
	}
	target, ok := portal.PreferredCourt(opts, o.cfg.Court)
	if !ok {
		return entity.Option{}, ErrNoCourts
	}

	o.logger.Info("selecting court", zap.String("court", target.Text))
	if err := o.Page.SelectValue(ctx, portal.Courts, target.Value); err != nil {
		return entity.Option{}, err
	}
	return target, nil
}

// Submit saves the reservation and reads the status box. confirmed is true
// only when the portal says the reservation was saved.
func (o *Orchestrator) Submit(ctx context.Context) (status string, confirmed bool, err error) {
	o.logger.Info("submitting reservation")
	if err := o.clickWithFallback(ctx, "Save reservation button", portal.SaveButtons, false); err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrSaveClick, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Confirm)
	err = o.Page.WaitVisible(waitCtx, portal.Status)
	cancel()
	if err != nil {
		o.logger.Warn("no confirmation message observed")
		return "", false, nil
	}

	text, err := o.Page.Text(ctx, portal.Status)
	if err != nil {
		return "", false, fmt.Errorf("read status: %w", err)
	}
	text = strings.TrimSpace(text)
	o.logger.Info("status message", zap.String("status", text))
	return text, portal.IsConfirmed(text), nil
}

func (o *Orchestrator) options(ctx context.Context, selectID string) ([]entity.Option, error) {
	html, err := o.Page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return portal.ParseOptions(html, selectID)
}
