package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Navigate loads url and waits for the load event. Slow loads are tolerated:
// the caller checks for the controls it needs anyway.
func (s *BrowserService) Navigate(ctx context.Context, url string) error {
	if err := s.CurrentPage.Context(ctx).Navigate(url); err != nil {
		return err
	}
	s.safeWaitLoad(ctx)
	return nil
}

func (s *BrowserService) WaitVisible(ctx context.Context, sel Selector) error {
	el, err := s.find(ctx, sel)
	if err != nil {
		return err
	}
	return el.Context(ctx).WaitVisible()
}

func (s *BrowserService) Exists(ctx context.Context, sel Selector) (bool, error) {
	p := s.CurrentPage.Context(ctx)
	var (
		has bool
		err error
	)
	if sel.XPath {
		has, _, err = p.HasX(sel.Query)
	} else {
		has, _, err = p.Has(sel.Query)
	}
	return has, err
}

func (s *BrowserService) Fill(ctx context.Context, sel Selector, text string) error {
	el, err := s.find(ctx, sel)
	if err != nil {
		return err
	}
	el = el.Context(ctx)

	_, _ = el.Eval(HighlightTypeScript)

	// Replace whatever the browser autofilled.
	_ = el.SelectAllText()

	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into %s: %w", sel, err)
	}
	return nil
}

// Click tries a real mouse click first and falls back to a JS click, which
// gets past overlays the legacy portal likes to leave on top of buttons.
func (s *BrowserService) Click(ctx context.Context, sel Selector) error {
	el, err := s.find(ctx, sel)
	if err != nil {
		return err
	}

	_, _ = el.Context(ctx).Eval(HighlightClickScript)

	clickCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := el.Context(clickCtx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		if jsErr := s.forceClickJS(ctx, el); jsErr != nil {
			return fmt.Errorf("click %s: %w", sel, errors.Join(err, jsErr))
		}
	}
	return nil
}

func (s *BrowserService) ClickAndWait(ctx context.Context, sel Selector) error {
	wait := s.CurrentPage.Context(ctx).WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := s.Click(ctx, sel); err != nil {
		return err
	}
	wait()
	return nil
}

func (s *BrowserService) SelectValue(ctx context.Context, sel Selector, value string) error {
	el, err := s.find(ctx, sel)
	if err != nil {
		return err
	}
	el = el.Context(ctx)

	err = el.Select([]string{fmt.Sprintf("option[value=%q]", value)}, true, rod.SelectorTypeCSSSector)
	if err == nil {
		return nil
	}
	res, jsErr := el.Eval(SetValueScript, value)
	if jsErr != nil {
		return fmt.Errorf("select %q in %s: %w", value, sel, errors.Join(err, jsErr))
	}
	return CheckSelected(sel, res.Value.Str(), value)
}

func (s *BrowserService) Text(ctx context.Context, sel Selector) (string, error) {
	el, err := s.find(ctx, sel)
	if err != nil {
		return "", err
	}
	return el.Context(ctx).Text()
}

func (s *BrowserService) find(ctx context.Context, sel Selector) (*rod.Element, error) {
	p := s.CurrentPage.Context(ctx)
	var (
		el  *rod.Element
		err error
	)
	if sel.XPath {
		el, err = p.ElementX(sel.Query)
	} else {
		el, err = p.Element(sel.Query)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", &NotFoundError{Selector: sel}, ctx.Err())
		}
		return nil, err
	}
	return el, nil
}

func (s *BrowserService) forceClickJS(ctx context.Context, el *rod.Element) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := el.Context(ctx).Eval(ForceClickScript)
	return err
}

func (s *BrowserService) safeWaitLoad(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = s.CurrentPage.Context(ctx).WaitLoad()
}
