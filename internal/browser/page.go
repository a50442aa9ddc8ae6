package browser

import (
	"context"
	"errors"
	"fmt"
)

// Selector addresses an element either by CSS query or by XPath.
type Selector struct {
	Query string
	XPath bool
}

// CSS builds a CSS selector.
func CSS(q string) Selector { return Selector{Query: q} }

// XPath builds an XPath selector.
func XPath(q string) Selector { return Selector{Query: q, XPath: true} }

func (s Selector) String() string {
	if s.XPath {
		return "xpath=" + s.Query
	}
	return s.Query
}

// DialogHandler is told about every JS dialog before it is dismissed.
type DialogHandler func(message string)

// Page is the subset of a browser tab the booking flow drives. Every driver
// (rod, chromedp, playwright, selenium) implements it.
//
// Waiting methods block until the element shows up or ctx expires, so callers
// put their own deadline on ctx. Scripts passed to Eval are JS function
// expressions taking no arguments; their return value comes back as a string.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, sel Selector) error
	Exists(ctx context.Context, sel Selector) (bool, error)
	Fill(ctx context.Context, sel Selector, text string) error
	Click(ctx context.Context, sel Selector) error
	// ClickAndWait clicks and then waits for the navigation the click
	// triggers. A navigation that never comes is not an error.
	ClickAndWait(ctx context.Context, sel Selector) error
	SelectValue(ctx context.Context, sel Selector, value string) error
	Text(ctx context.Context, sel Selector) (string, error)
	HTML(ctx context.Context) (string, error)
	Eval(ctx context.Context, js string) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Info(ctx context.Context) (url string, title string)
	Close() error
}

// Options are the launch settings shared by all drivers.
type Options struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	// RemoteURL is the WebDriver endpoint; only the selenium driver uses it.
	RemoteURL string
	OnDialog  DialogHandler
}

// DefaultOptions returns a headless 1920x1080 setup.
func DefaultOptions() Options {
	return Options{
		Headless:       true,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}
}

// NotFoundError reports a selector that matched nothing.
type NotFoundError struct {
	Selector Selector
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element %s not found", e.Selector)
}

// ErrValueNotAccepted is returned when a <select> did not take the value,
// usually because a postback replaced its options.
var ErrValueNotAccepted = errors.New("value not accepted")

// CheckSelected compares the value a select reports after a scripted change
// with the one asked for.
func CheckSelected(sel Selector, got, want string) error {
	if got != want {
		return fmt.Errorf("select %q in %s (has %q): %w", want, sel, got, ErrValueNotAccepted)
	}
	return nil
}
