// Package cdpdriver implements browser.Page on top of chromedp.
package cdpdriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"courtbook/internal/browser"
)

type Page struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

var _ browser.Page = (*Page)(nil)

// New starts a Chrome process through chromedp's exec allocator.
func New(ctx context.Context, opts browser.Options) (*Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	// First Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	p := &Page{ctx: tabCtx, cancel: cancel, allocCancel: allocCancel}

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			if opts.OnDialog != nil {
				opts.OnDialog(e.Message)
			}
			go func() {
				_ = chromedp.Run(tabCtx, page.HandleJavaScriptDialog(false))
			}()
		}
	})
	return p, nil
}

// scope derives a context from the tab that also ends when the caller's does.
func (p *Page) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		c      context.Context
		cancel context.CancelFunc
	)
	if dl, ok := ctx.Deadline(); ok {
		c, cancel = context.WithDeadline(p.ctx, dl)
	} else {
		c, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	c, cancel := p.scope(ctx)
	defer cancel()
	return chromedp.Run(c, actions...)
}

func by(sel browser.Selector) chromedp.QueryOption {
	if sel.XPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *Page) WaitVisible(ctx context.Context, sel browser.Selector) error {
	err := p.run(ctx, chromedp.WaitVisible(sel.Query, by(sel)))
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", &browser.NotFoundError{Selector: sel}, ctx.Err())
	}
	return err
}

func (p *Page) Exists(ctx context.Context, sel browser.Selector) (bool, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(sel.Query, &nodes, by(sel), chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (p *Page) Fill(ctx context.Context, sel browser.Selector, text string) error {
	return p.run(ctx,
		chromedp.SetValue(sel.Query, "", by(sel)),
		chromedp.SendKeys(sel.Query, text, by(sel)),
	)
}

func (p *Page) Click(ctx context.Context, sel browser.Selector) error {
	err := p.run(ctx, chromedp.Click(sel.Query, by(sel), chromedp.NodeVisible))
	if err == nil {
		return nil
	}
	js := browser.CSSClickScript(sel.Query)
	if sel.XPath {
		js = browser.XPathClickScript(sel.Query)
	}
	hit, jsErr := p.Eval(ctx, js)
	if jsErr == nil && hit != "" {
		return nil
	}
	if jsErr == nil {
		jsErr = &browser.NotFoundError{Selector: sel}
	}
	return fmt.Errorf("click %s: %w", sel, errors.Join(err, jsErr))
}

func (p *Page) ClickAndWait(ctx context.Context, sel browser.Selector) error {
	loaded := make(chan struct{}, 1)
	listenCtx, stop := context.WithCancel(p.ctx)
	defer stop()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	if err := p.Click(ctx, sel); err != nil {
		return err
	}
	select {
	case <-loaded:
	case <-ctx.Done():
	}
	return nil
}

func (p *Page) SelectValue(ctx context.Context, sel browser.Selector, value string) error {
	if sel.XPath {
		return fmt.Errorf("select %s: xpath selects are not supported", sel)
	}
	got, err := p.Eval(ctx, browser.SelectValueScript(sel.Query, value))
	if err != nil {
		return fmt.Errorf("select %q in %s: %w", value, sel, err)
	}
	return browser.CheckSelected(sel, got, value)
}

func (p *Page) Text(ctx context.Context, sel browser.Selector) (string, error) {
	var text string
	err := p.run(ctx, chromedp.Text(sel.Query, &text, by(sel)))
	return text, err
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *Page) Eval(ctx context.Context, js string) (string, error) {
	var res interface{}
	if err := p.run(ctx, chromedp.Evaluate("("+js+")()", &res)); err != nil {
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

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

func (p *Page) Info(ctx context.Context) (string, string) {
	var url, title string
	_ = p.run(ctx, chromedp.Location(&url), chromedp.Title(&title))
	return url, title
}

func (p *Page) Close() error {
	p.cancel()
	p.allocCancel()
	return nil
}
