// Package pwdriver implements browser.Page on top of playwright-go.
package pwdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"courtbook/internal/browser"
)

const defaultTimeout = 30 * time.Second

type Page struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

var _ browser.Page = (*Page)(nil)

// New starts the playwright driver and a Chromium browser with one page.
// The driver binaries must already be installed (playwright install chromium).
func New(_ context.Context, opts browser.Options) (*Page, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight},
	})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new page: %w", err)
	}

	page.OnDialog(func(d playwright.Dialog) {
		if opts.OnDialog != nil {
			opts.OnDialog(d.Message())
		}
		_ = d.Dismiss()
	})

	return &Page{pw: pw, browser: b, page: page}, nil
}

// timeout converts the ctx deadline into playwright's millisecond timeout.
func timeout(ctx context.Context) *float64 {
	d := defaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		d = time.Until(dl)
		if d < time.Millisecond {
			d = time.Millisecond
		}
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *Page) locator(sel browser.Selector) playwright.Locator {
	return p.page.Locator(sel.String()).First()
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   timeout(ctx),
	})
	return err
}

func (p *Page) WaitVisible(ctx context.Context, sel browser.Selector) error {
	err := p.locator(sel).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: timeout(ctx),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", &browser.NotFoundError{Selector: sel}, err)
	}
	return nil
}

func (p *Page) Exists(_ context.Context, sel browser.Selector) (bool, error) {
	n, err := p.page.Locator(sel.String()).Count()
	return n > 0, err
}

func (p *Page) Fill(ctx context.Context, sel browser.Selector, text string) error {
	return p.locator(sel).Fill(text, playwright.LocatorFillOptions{Timeout: timeout(ctx)})
}

func (p *Page) Click(ctx context.Context, sel browser.Selector) error {
	loc := p.locator(sel)
	err := loc.Click(playwright.LocatorClickOptions{Timeout: timeout(ctx)})
	if err == nil {
		return nil
	}
	if _, jsErr := loc.Evaluate(`el => el.click()`, nil, playwright.LocatorEvaluateOptions{Timeout: playwright.Float(3000)}); jsErr != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

func (p *Page) ClickAndWait(ctx context.Context, sel browser.Selector) error {
	if err := p.Click(ctx, sel); err != nil {
		return err
	}
	_ = p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: timeout(ctx),
	})
	return nil
}

func (p *Page) SelectValue(ctx context.Context, sel browser.Selector, value string) error {
	_, err := p.locator(sel).SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice(value),
	}, playwright.LocatorSelectOptionOptions{Timeout: timeout(ctx)})
	return err
}

func (p *Page) Text(ctx context.Context, sel browser.Selector) (string, error) {
	return p.locator(sel).InnerText(playwright.LocatorInnerTextOptions{Timeout: timeout(ctx)})
}

func (p *Page) HTML(context.Context) (string, error) {
	return p.page.Content()
}

func (p *Page) Eval(_ context.Context, js string) (string, error) {
	res, err := p.page.Evaluate(js)
	if err != nil {
		return "", err
	}
	switch v := res.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

func (p *Page) Screenshot(context.Context) ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
}

func (p *Page) Info(context.Context) (string, string) {
	title, _ := p.page.Title()
	return p.page.URL(), title
}

func (p *Page) Close() error {
	err := p.browser.Close()
	if stopErr := p.pw.Stop(); err == nil {
		err = stopErr
	}
	return err
}
