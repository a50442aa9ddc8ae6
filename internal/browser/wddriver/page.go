// Package wddriver implements browser.Page against a remote WebDriver
// (selenium grid or a standalone chromedriver).
package wddriver

import (
	"context"
	"fmt"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"

	"courtbook/internal/browser"
)

const defaultTimeout = 30 * time.Second

type Page struct {
	wd       selenium.WebDriver
	onDialog browser.DialogHandler
}

var _ browser.Page = (*Page)(nil)

// New opens a session on the WebDriver endpoint in opts.RemoteURL.
func New(_ context.Context, opts browser.Options) (*Page, error) {
	caps := selenium.Capabilities{"browserName": "chrome"}
	args := []string{"--disable-dev-shm-usage", "--no-sandbox"}
	if opts.Headless {
		args = append(args, "--headless")
	}
	caps.AddChrome(chrome.Capabilities{Args: args})

	wd, err := selenium.NewRemote(caps, opts.RemoteURL)
	if err != nil {
		return nil, fmt.Errorf("create selenium session at %s: %w", opts.RemoteURL, err)
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		_ = wd.ResizeWindow("", opts.ViewportWidth, opts.ViewportHeight)
	}
	return &Page{wd: wd, onDialog: opts.OnDialog}, nil
}

func by(sel browser.Selector) string {
	if sel.XPath {
		return selenium.ByXPATH
	}
	return selenium.ByCSSSelector
}

func remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		return time.Until(dl)
	}
	return defaultTimeout
}

// wait polls cond until it reports true, the WebDriver timeout passes or ctx ends.
func (p *Page) wait(ctx context.Context, cond selenium.Condition) error {
	resultChan := make(chan error, 1)
	go func() {
		resultChan <- p.wd.WaitWithTimeout(cond, remaining(ctx))
	}()

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dismissAlerts stands in for the dialog events WebDriver does not have.
func (p *Page) dismissAlerts() {
	text, err := p.wd.AlertText()
	if err != nil {
		return
	}
	if p.onDialog != nil {
		p.onDialog(text)
	}
	_ = p.wd.DismissAlert()
}

func (p *Page) find(ctx context.Context, sel browser.Selector) (selenium.WebElement, error) {
	var found selenium.WebElement
	err := p.wait(ctx, func(wd selenium.WebDriver) (bool, error) {
		el, err := wd.FindElement(by(sel), sel.Query)
		if err != nil {
			p.dismissAlerts()
			return false, nil
		}
		found = el
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", &browser.NotFoundError{Selector: sel}, err)
	}
	return found, nil
}

func (p *Page) Navigate(_ context.Context, url string) error {
	err := p.wd.Get(url)
	p.dismissAlerts()
	return err
}

func (p *Page) WaitVisible(ctx context.Context, sel browser.Selector) error {
	err := p.wait(ctx, func(wd selenium.WebDriver) (bool, error) {
		el, err := wd.FindElement(by(sel), sel.Query)
		if err != nil {
			// An open alert fails every lookup until it is dismissed.
			p.dismissAlerts()
			return false, nil
		}
		shown, err := el.IsDisplayed()
		return err == nil && shown, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", &browser.NotFoundError{Selector: sel}, err)
	}
	return nil
}

func (p *Page) Exists(_ context.Context, sel browser.Selector) (bool, error) {
	els, err := p.wd.FindElements(by(sel), sel.Query)
	if err != nil {
		// WebDriver reports "no such element" as an error.
		return false, nil
	}
	return len(els) > 0, nil
}

func (p *Page) Fill(ctx context.Context, sel browser.Selector, text string) error {
	el, err := p.find(ctx, sel)
	if err != nil {
		return err
	}
	_ = el.Clear()
	return el.SendKeys(text)
}

func (p *Page) Click(ctx context.Context, sel browser.Selector) error {
	el, err := p.find(ctx, sel)
	if err != nil {
		return err
	}
	if err := el.Click(); err != nil {
		if _, jsErr := p.wd.ExecuteScript("arguments[0].click();", []interface{}{el}); jsErr != nil {
			return fmt.Errorf("click %s: %w", sel, err)
		}
	}
	p.dismissAlerts()
	return nil
}

func (p *Page) ClickAndWait(ctx context.Context, sel browser.Selector) error {
	if err := p.Click(ctx, sel); err != nil {
		return err
	}
	_ = p.wait(ctx, func(wd selenium.WebDriver) (bool, error) {
		state, err := wd.ExecuteScript("return document.readyState;", nil)
		return err == nil && state == "complete", nil
	})
	return nil
}

func (p *Page) SelectValue(_ context.Context, sel browser.Selector, value string) error {
	if sel.XPath {
		return fmt.Errorf("select %s: xpath selects are not supported", sel)
	}
	got, err := p.wd.ExecuteScript("return ("+browser.SelectValueScript(sel.Query, value)+")();", nil)
	if err != nil {
		return fmt.Errorf("select %q in %s: %w", value, sel, err)
	}
	p.dismissAlerts()
	s, _ := got.(string)
	return browser.CheckSelected(sel, s, value)
}

func (p *Page) Text(ctx context.Context, sel browser.Selector) (string, error) {
	el, err := p.find(ctx, sel)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (p *Page) HTML(context.Context) (string, error) {
	return p.wd.PageSource()
}

func (p *Page) Eval(_ context.Context, js string) (string, error) {
	res, err := p.wd.ExecuteScript("return ("+js+")();", nil)
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
	return p.wd.Screenshot()
}

func (p *Page) Info(context.Context) (string, string) {
	url, _ := p.wd.CurrentURL()
	title, _ := p.wd.Title()
	return url, title
}

func (p *Page) Close() error {
	return p.wd.Quit()
}
