package booking

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"sync"
	"time"

	"courtbook/internal/browser"
	"courtbook/internal/config"
	"courtbook/internal/entity"
	"courtbook/internal/portal"
)

type fakeEl struct {
	visible  bool
	text     string
	clickErr error
}

// fakePage is an in-memory stand-in for the portal. Elements are keyed by
// selector query; WaitVisible never blocks, it answers from current state.
type fakePage struct {
	mu sync.Mutex

	els      map[string]*fakeEl
	selects  map[string][]entity.Option
	selected map[string]string
	filled   map[string]string

	clicks      []string
	evals       []string
	navigations int
	screenshots int

	onNavigate func(n int)
	onClick    map[string]func()
	evalFn     func(js string) (string, error)
	selectErr  map[string]error
}

func newFakePage() *fakePage {
	return &fakePage{
		els:       map[string]*fakeEl{},
		selects:   map[string][]entity.Option{},
		selected:  map[string]string{},
		filled:    map[string]string{},
		onClick:   map[string]func(){},
		selectErr: map[string]error{},
	}
}

var _ browser.Page = (*fakePage)(nil)

func (p *fakePage) show(sel browser.Selector, text string) {
	p.els[sel.Query] = &fakeEl{visible: true, text: text}
}

func (p *fakePage) remove(sel browser.Selector) {
	delete(p.els, sel.Query)
}

func (p *fakePage) Navigate(_ context.Context, _ string) error {
	p.mu.Lock()
	p.navigations++
	n := p.navigations
	hook := p.onNavigate
	p.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (p *fakePage) WaitVisible(_ context.Context, sel browser.Selector) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.els[sel.Query]; ok && el.visible {
		return nil
	}
	return fmt.Errorf("%w: %w", &browser.NotFoundError{Selector: sel}, context.DeadlineExceeded)
}

func (p *fakePage) Exists(_ context.Context, sel browser.Selector) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.els[sel.Query]
	return ok, nil
}

func (p *fakePage) Fill(_ context.Context, sel browser.Selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.els[sel.Query]; !ok {
		return &browser.NotFoundError{Selector: sel}
	}
	p.filled[sel.Query] = text
	return nil
}

func (p *fakePage) Click(_ context.Context, sel browser.Selector) error {
	p.mu.Lock()
	el, ok := p.els[sel.Query]
	if !ok {
		p.mu.Unlock()
		return &browser.NotFoundError{Selector: sel}
	}
	if el.clickErr != nil {
		p.mu.Unlock()
		return el.clickErr
	}
	p.clicks = append(p.clicks, sel.Query)
	hook := p.onClick[sel.Query]
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (p *fakePage) ClickAndWait(ctx context.Context, sel browser.Selector) error {
	return p.Click(ctx, sel)
}

func (p *fakePage) SelectValue(_ context.Context, sel browser.Selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := strings.TrimPrefix(sel.Query, "#")
	if err := p.selectErr[id]; err != nil {
		return err
	}
	for _, o := range p.selects[id] {
		if o.Value == value {
			p.selected[id] = value
			return nil
		}
	}
	return fmt.Errorf("no option %q in %s", value, id)
}

func (p *fakePage) Text(_ context.Context, sel browser.Selector) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.els[sel.Query]
	if !ok {
		return "", &browser.NotFoundError{Selector: sel}
	}
	return el.text, nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.selects))
	for id := range p.selects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	sb.WriteString("<html><body><form>")
	for _, id := range ids {
		fmt.Fprintf(&sb, `<select id="%s">`, id)
		for _, o := range p.selects[id] {
			fmt.Fprintf(&sb, `<option value="%s">%s</option>`, html.EscapeString(o.Value), html.EscapeString(o.Text))
		}
		sb.WriteString("</select>")
	}
	sb.WriteString("</form></body></html>")
	return sb.String(), nil
}

func (p *fakePage) Eval(_ context.Context, js string) (string, error) {
	p.mu.Lock()
	p.evals = append(p.evals, js)
	fn := p.evalFn
	p.mu.Unlock()
	if fn != nil {
		return fn(js)
	}
	return "", nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots++
	return []byte("\x89PNG fake"), nil
}

func (p *fakePage) Info(context.Context) (string, string) {
	return config.DefaultReservationURL, "Racquetball Reservation"
}

func (p *fakePage) Close() error { return nil }

func opts(pairs ...string) []entity.Option {
	var out []entity.Option
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, entity.Option{Index: i / 2, Value: pairs[i], Text: pairs[i+1]})
	}
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.User = "member"
	cfg.Password = "hunter2"
	cfg.Timeouts.RetryPause = time.Millisecond
	return cfg
}

// newPortal wires a fake that behaves like the real site: logged out at
// first, a working club search, and a save button that confirms.
func newPortal(cfg *config.Config) *fakePage {
	p := newFakePage()

	p.selects[portal.DatesID] = opts("10/17/2026", "Sat 10/17", "10/18/2026", "Sun 10/18", "10/19/2026", "Mon 10/19")
	p.selects[portal.DurationID] = opts("30", "30 Minutes", "60", "60 Minutes")
	p.selects[portal.TimesID] = opts("", "-- Select --", "6:00 AM", "6:00 AM", "7:00 AM", "7:00 AM")
	p.selects[portal.CourtsID] = opts("c1", "Court 1", "c12", "Court 12", "c2", "Court 2")

	loggedIn := false
	p.onNavigate = func(int) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.show(portal.Dates, "")
		p.show(portal.ChangeClub, "Change Club")
		p.show(portal.SaveButtons[0], "Save")
		p.show(portal.ClubLabel, "LA FITNESS TUSTIN")
		if !loggedIn {
			p.show(portal.UserField, "")
			p.show(portal.PasswordField, "")
			p.show(portal.LoginButtons[0], "Log In")
		}
	}
	p.onClick[portal.LoginButtons[0].Query] = func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		loggedIn = true
		p.remove(portal.UserField)
		p.remove(portal.PasswordField)
		p.remove(portal.LoginButtons[0])
	}
	p.onClick[portal.ChangeClub.Query] = func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.show(portal.ZipField, "")
	}
	p.evalFn = func(js string) (string, error) {
		if strings.Contains(js, "#btnFindclub") {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.show(portal.ClubRow(cfg.Club), cfg.Club)
			p.show(portal.ClubSelectButton(cfg.Club), "Select")
			return "#btnFindclub", nil
		}
		return "", nil
	}
	p.onClick[portal.ClubSelectButton(cfg.Club).Query] = func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.show(portal.ClubLabel, "LA FITNESS IRVINE - JAMBOREE")
	}
	p.onClick[portal.SaveButtons[0].Query] = func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.show(portal.Status, "  Your reservation has been saved.  ")
	}
	return p
}

// stubResolver returns canned ids in order. history mimics the failed
// attempts a model would be shown; seen keeps a copy per Resolve call.
type stubResolver struct {
	ids      []int
	err      error
	calls    int
	attempts []int
	history  []int
	seen     [][]int
	resets   int
}

func (r *stubResolver) Resolve(context.Context, string, *entity.BrowserState) (int, error) {
	r.seen = append(r.seen, append([]int(nil), r.history...))
	if r.err != nil {
		return 0, r.err
	}
	if r.calls >= len(r.ids) {
		return 0, errors.New("out of picks")
	}
	id := r.ids[r.calls]
	r.calls++
	return id, nil
}

func (r *stubResolver) RecordAttempt(_ string, id int, _ string) {
	r.attempts = append(r.attempts, id)
	r.history = append(r.history, id)
}

func (r *stubResolver) Reset() {
	r.resets++
	r.history = nil
}
