package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserService drives a single stealth tab through rod. It is the default
// Page implementation.
type BrowserService struct {
	browser     *rod.Browser
	CurrentPage *rod.Page
	launch      *launcher.Launcher
}

var _ Page = (*BrowserService)(nil)

// NewBrowserService launches Chromium and opens one stealth page.
func NewBrowserService(ctx context.Context, opts Options) (*BrowserService, error) {
	launch := launcher.New().
		Leakless(true).
		Headless(opts.Headless)

	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		launch.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create stealth page: %w", err)
	}

	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		// Not fatal; the portal lays out fine at the default size.
		_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.ViewportWidth,
			Height:            opts.ViewportHeight,
			DeviceScaleFactor: 1,
		})
	}

	s := &BrowserService{
		browser:     browser,
		CurrentPage: page,
		launch:      launch,
	}
	s.watchDialogs(opts.OnDialog)
	return s, nil
}

// watchDialogs dismisses every alert/confirm the portal raises.
func (s *BrowserService) watchDialogs(onDialog DialogHandler) {
	page := s.CurrentPage
	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		if onDialog != nil {
			onDialog(e.Message)
		}
		go func() {
			_ = proto.PageHandleJavaScriptDialog{Accept: false}.Call(page)
		}()
	})()
}

func (s *BrowserService) Info(ctx context.Context) (string, string) {
	if s.CurrentPage == nil {
		return "", ""
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	info, err := s.CurrentPage.Context(ctx).Info()
	if err != nil {
		return "", ""
	}
	return info.URL, info.Title
}

func (s *BrowserService) HTML(ctx context.Context) (string, error) {
	return s.CurrentPage.Context(ctx).HTML()
}

func (s *BrowserService) Eval(ctx context.Context, js string) (string, error) {
	res, err := s.CurrentPage.Context(ctx).Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (s *BrowserService) Screenshot(ctx context.Context) ([]byte, error) {
	return s.CurrentPage.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (s *BrowserService) Close() error {
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	if s.launch != nil {
		s.launch.Cleanup()
	}
	return err
}
