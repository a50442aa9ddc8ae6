package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"courtbook/internal/booking"
	"courtbook/internal/browser"
	"courtbook/internal/config"
	"courtbook/internal/portal"
)

const actionTimeout = 15 * time.Second

var (
	errUsage         = errors.New("usage")
	errNoCredentials = errors.New("login needs RB_USER and RB_PASS")
)

type shell struct {
	cfg   *config.Config
	page  browser.Page
	flow  *booking.Orchestrator
	out   io.Writer
	stale bool
}

func newShell(page browser.Page, cfg *config.Config, logger *zap.Logger, out io.Writer) *shell {
	return &shell{
		cfg:   cfg,
		page:  page,
		flow:  booking.New(page, cfg, logger),
		out:   out,
		stale: true,
	}
}

// scan prints the tagged elements when the last command may have changed
// the page.
func (s *shell) scan(ctx context.Context) {
	if !s.stale {
		return
	}
	s.stale = false

	state, err := browser.Observe(ctx, s.page)
	if err != nil {
		fmt.Fprintf(s.out, "scan failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, strings.Repeat("=", 80))
	fmt.Fprintf(s.out, "URL: %s | Title: %s\n", state.URL, state.Title)
	fmt.Fprintln(s.out, strings.Repeat("-", 80))
	fmt.Fprint(s.out, state.DOMSummary)
	fmt.Fprintln(s.out, strings.Repeat("=", 80))
}

// exec runs one command line. quit is true for q/quit/exit.
func (s *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	actx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	switch cmd {
	case "q", "quit", "exit":
		return true, nil

	case "r", "refresh", "scan":
		s.stale = true
		return false, nil

	case "goto", "go":
		if len(args) == 0 {
			return false, fmt.Errorf("%w: goto <url>", errUsage)
		}
		url := args[0]
		if !strings.HasPrefix(url, "http") {
			url = "https://" + url
		}
		s.stale = true
		return false, s.page.Navigate(actx, url)

	case "c", "click":
		id, err := elementID(args, "c <id>")
		if err != nil {
			return false, err
		}
		s.stale = true
		return false, browser.ClickElement(actx, s.page, id)

	case "t", "type":
		if len(args) < 2 {
			return false, fmt.Errorf("%w: t <id> <text>", errUsage)
		}
		id, err := elementID(args, "t <id> <text>")
		if err != nil {
			return false, err
		}
		return false, browser.TypeElement(actx, s.page, id, strings.Join(args[1:], " "))

	case "sel", "select":
		if len(args) < 2 {
			return false, fmt.Errorf("%w: sel <select-id> <value>", errUsage)
		}
		s.stale = true
		return false, s.page.SelectValue(actx, browser.CSS("#"+args[0]), strings.Join(args[1:], " "))

	case "opts", "options":
		if len(args) == 0 {
			return false, fmt.Errorf("%w: opts <select-id>", errUsage)
		}
		html, err := s.page.HTML(actx)
		if err != nil {
			return false, err
		}
		opts, err := portal.ParseOptions(html, args[0])
		if err != nil {
			return false, err
		}
		for _, o := range opts {
			fmt.Fprintf(s.out, "  %2d  %-20q %s\n", o.Index, o.Value, o.Text)
		}
		return false, nil

	case "login":
		if s.cfg.User == "" || s.cfg.Password == "" {
			return false, errNoCredentials
		}
		s.stale = true
		return false, s.flow.EnsureLoggedIn(ctx)

	case "h", "help", "?":
		printHelp(s.out)
		return false, nil
	}
	return false, fmt.Errorf("unknown command %q, try help", cmd)
}

func elementID(args []string, usage string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s", errUsage, usage)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("id must be a number, got %q", args[0])
	}
	return id, nil
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `
Navigation:
  goto <url>             open a page
  r | scan               rescan the current page

Interaction:
  c <id>                 click a scanned element
  t <id> <text>          type into a scanned element
  sel <select-id> <val>  choose an option by value
  opts <select-id>       list the options of a select
  login                  log in and open the reservation page

  q                      quit
`)
}
