package booking

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"courtbook/internal/browser"
	"courtbook/internal/config"
	"courtbook/internal/entity"
	"courtbook/internal/portal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestOrchestrator(t *testing.T, p browser.Page, cfg *config.Config, opts ...Option) *Orchestrator {
	t.Helper()
	o := New(p, cfg, zaptest.NewLogger(t), opts...)
	o.sleep = func(context.Context, time.Duration) error { return nil }
	o.now = func() time.Time { return time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC) }
	return o
}

func TestRun_BooksFurthestSlot(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)

	res, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	assert.Equal(t, &entity.Result{
		Club:      "LA FITNESS IRVINE - JAMBOREE",
		Date:      "Mon 10/19",
		Duration:  "60 Minutes",
		Time:      "6:00 AM",
		Court:     "Court 2",
		Status:    "Your reservation has been saved.",
		Confirmed: true,
	}, res)

	assert.Equal(t, "member", p.filled[portal.UserField.Query])
	assert.Equal(t, "hunter2", p.filled[portal.PasswordField.Query])
	assert.Equal(t, config.DefaultZip, p.filled[portal.ZipField.Query])

	assert.Equal(t, map[string]string{
		portal.DatesID:    "10/19/2026",
		portal.DurationID: "60",
		portal.TimesID:    "6:00 AM",
		portal.CourtsID:   "c2",
	}, p.selected)

	assert.Equal(t, 2, p.navigations, "one load before login, one after")
	assert.Equal(t, portal.SaveButtons[0].Query, p.clicks[len(p.clicks)-1])
	assert.Zero(t, p.screenshots)
}

func TestRun_SessionAlreadyValid(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	loggedOut := p.onNavigate
	p.onNavigate = func(n int) {
		loggedOut(n)
		p.mu.Lock()
		defer p.mu.Unlock()
		p.remove(portal.UserField)
		p.remove(portal.PasswordField)
		p.remove(portal.LoginButtons[0])
	}

	_, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.NotContains(t, p.filled, portal.UserField.Query)
	assert.NotContains(t, p.clicks, portal.LoginButtons[0].Query)
}

func TestRun_ControlsLoadOnRetry(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	load := p.onNavigate
	p.onNavigate = func(n int) {
		if n == 1 {
			return
		}
		load(n)
	}

	_, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Equal(t, 3, p.navigations)
}

func TestRun_ControlsNeverLoad(t *testing.T) {
	cfg := testConfig()
	cfg.ScreenshotDir = t.TempDir()
	p := newPortal(cfg)
	p.onNavigate = nil

	res, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.ErrorIs(t, err, ErrControlsMissing)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, cfg.Timeouts.LoadAttempts, p.navigations)
	assert.Empty(t, res.Date)

	assert.Equal(t, 1, p.screenshots)
	_, statErr := os.Stat(filepath.Join(cfg.ScreenshotDir, "courtbook-20261017-060000.png"))
	assert.NoError(t, statErr)
}

func TestRun_NoScreenshotDir(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	p.onNavigate = nil

	_, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Zero(t, p.screenshots)
}

func TestRun_ZipFieldMissing(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	delete(p.onClick, portal.ChangeClub.Query)

	_, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip code field")
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestRun_ClubNotListed(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	p.evalFn = func(string) (string, error) { return "", nil }

	_, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `club "IRVINE - JAMBOREE" not listed`)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestRun_ClubLabelNotUpdated(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	delete(p.onClick, portal.ClubSelectButton(cfg.Club).Query)

	res, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Equal(t, "LA FITNESS TUSTIN", res.Club)
}

func TestRun_NoDates(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	p.selects[portal.DatesID] = opts("", "-- No dates --")

	_, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.ErrorIs(t, err, ErrNoDates)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestRun_NoTimes(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	p.selects[portal.TimesID] = opts("", "-- Select --")

	res, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.ErrorIs(t, err, ErrNoTimes)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, "Mon 10/19", res.Date, "picks made before the failure are kept")
}

func TestRun_NoCourts(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	delete(p.selects, portal.CourtsID)

	_, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.ErrorIs(t, err, ErrNoCourts)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestRun_DurationNotOffered(t *testing.T) {
	cfg := testConfig()
	cfg.DurationMinutes = "90"
	p := newPortal(cfg)

	res, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Empty(t, res.Duration)
	assert.NotContains(t, p.selected, portal.DurationID)
}

func TestRun_DurationFallsBackToIndex(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	p.selectErr[portal.DurationID] = errors.New("element is stale")
	findClub := p.evalFn
	p.evalFn = func(js string) (string, error) {
		if strings.Contains(js, portal.DurationID) {
			return "60", nil
		}
		return findClub(js)
	}

	res, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Equal(t, "60 Minutes", res.Duration)
}

func TestRun_CourtPreference(t *testing.T) {
	tests := []struct {
		name  string
		court int
		want  string
	}{
		{name: "whole number match", court: 12, want: "Court 12"},
		{name: "not offered falls back to first", court: 5, want: "Court 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Court = tt.court
			p := newPortal(cfg)

			res, _, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Court)
		})
	}
}

func TestRun_DryRunDoesNotSubmit(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	p := newPortal(cfg)

	res, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.True(t, res.DryRun)
	assert.False(t, res.Confirmed)
	assert.Equal(t, "Court 2", res.Court)
	assert.NotContains(t, p.clicks, portal.SaveButtons[0].Query)
}

func TestRun_NoStatusMessage(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	delete(p.onClick, portal.SaveButtons[0].Query)

	res, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnconfirmed, outcome)
	assert.Empty(t, res.Status)
	assert.False(t, res.Confirmed)
}

func TestRun_StatusNotSaved(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	p.onClick[portal.SaveButtons[0].Query] = func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.show(portal.Status, "Court is no longer available.")
	}

	res, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnconfirmed, outcome)
	assert.Equal(t, "Court is no longer available.", res.Status)
	assert.False(t, res.Confirmed)
}

// withoutSaveButton makes the portal render the save control under an id
// none of the known selectors match, tagged 7 for the model.
func withoutSaveButton(p *fakePage) {
	load := p.onNavigate
	p.onNavigate = func(n int) {
		load(n)
		p.mu.Lock()
		defer p.mu.Unlock()
		p.remove(portal.SaveButtons[0])
		p.show(browser.AgentSelector(7), "Save")
	}
	p.onClick[browser.AgentSelector(7).Query] = p.onClick[portal.SaveButtons[0].Query]
}

func TestRun_SaveButtonMissing(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	withoutSaveButton(p)

	_, outcome, err := newTestOrchestrator(t, p, cfg).Run(context.Background())
	require.ErrorIs(t, err, ErrSaveClick)
	assert.Equal(t, OutcomeFailed, outcome)

	var nf *browser.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRun_ResolverRecoversSaveButton(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	withoutSaveButton(p)
	r := &stubResolver{ids: []int{3, 7}}

	res, outcome, err := newTestOrchestrator(t, p, cfg, WithResolver(r)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.True(t, res.Confirmed)

	assert.Equal(t, 2, r.calls)
	assert.Equal(t, []int{3}, r.attempts, "only the failed pick is recorded")
}

func TestRun_ResolverHistoryIsPerRecovery(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	withoutSaveButton(p)
	load := p.onNavigate
	p.onNavigate = func(n int) {
		load(n)
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.els[portal.UserField.Query]; ok {
			p.remove(portal.LoginButtons[0])
			p.show(browser.AgentSelector(5), "Log In")
		}
	}
	p.onClick[browser.AgentSelector(5).Query] = p.onClick[portal.LoginButtons[0].Query]

	// Login: 4 is a dead pick, 5 works. Save: 7 works.
	r := &stubResolver{ids: []int{4, 5, 7}}

	res, outcome, err := newTestOrchestrator(t, p, cfg, WithResolver(r)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.True(t, res.Confirmed)

	assert.Equal(t, 2, r.resets, "one reset per recovery")
	assert.Equal(t, [][]int{nil, {4}, nil}, r.seen,
		"the save recovery must not see ids that failed during login")
}

func TestRun_ResolverGivesUp(t *testing.T) {
	cfg := testConfig()
	p := newPortal(cfg)
	withoutSaveButton(p)
	r := &stubResolver{err: errors.New("model unavailable")}

	_, outcome, err := newTestOrchestrator(t, p, cfg, WithResolver(r)).Run(context.Background())
	require.ErrorIs(t, err, ErrSaveClick)
	assert.Contains(t, err.Error(), "model unavailable")
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestClickWithFallback_SkipsMissingSelectors(t *testing.T) {
	cfg := testConfig()
	p := newFakePage()
	p.show(portal.LoginButtons[2], "Log In")

	o := newTestOrchestrator(t, p, cfg)
	require.NoError(t, o.clickWithFallback(context.Background(), "login", portal.LoginButtons, true))
	assert.Equal(t, []string{portal.LoginButtons[2].Query}, p.clicks)
}

func TestClickWithFallback_ClickErrorTriesNext(t *testing.T) {
	cfg := testConfig()
	p := newFakePage()
	p.show(portal.SaveButtons[0], "Save")
	p.els[portal.SaveButtons[0].Query].clickErr = errors.New("covered by overlay")
	p.show(portal.SaveButtons[1], "Save")

	o := newTestOrchestrator(t, p, cfg)
	require.NoError(t, o.clickWithFallback(context.Background(), "save", portal.SaveButtons, false))
	assert.Equal(t, []string{portal.SaveButtons[1].Query}, p.clicks)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		outcome Outcome
		code    int
		name    string
	}{
		{OutcomeConfirmed, 0, "confirmed"},
		{OutcomeUnconfirmed, 2, "unconfirmed"},
		{OutcomeFailed, 3, "failed"},
		{Outcome(9), 9, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.outcome.ExitCode())
		assert.Equal(t, tt.name, tt.outcome.String())
	}
}
