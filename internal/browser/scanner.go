package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"courtbook/internal/entity"
)

// Observe tags the interactive elements of the current page and summarizes
// them one per line, e.g. "[12] <button> [ACTION] Select (row: IRVINE ...)".
// The ids stay valid until the next Observe call or page load.
func Observe(ctx context.Context, p Page) (*entity.BrowserState, error) {
	url, title := p.Info(ctx)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	raw, err := p.Eval(ctx, ObserveElementsScript)
	if err != nil {
		return &entity.BrowserState{
			URL:        url,
			Title:      title,
			DOMSummary: "Page is loading... (scan failed)",
		}, nil
	}

	if raw == "" || raw == "null" {
		return &entity.BrowserState{URL: url, Title: title, DOMSummary: "Page is empty"}, nil
	}

	var elements []entity.Element
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, fmt.Errorf("decode scan result: %w", err)
	}

	return &entity.BrowserState{
		URL:        url,
		Title:      title,
		DOMSummary: Summarize(elements),
		Elements:   elements,
	}, nil
}

// Summarize renders scanned elements the way they are shown to a human or model.
func Summarize(elements []entity.Element) string {
	var sb strings.Builder
	for _, el := range elements {
		if el.Interactive {
			fmt.Fprintf(&sb, "[%d] <%s> %s\n", el.ID, el.Tag, el.Text)
		} else {
			fmt.Fprintf(&sb, "    <%s> %s\n", el.Tag, el.Text)
		}
	}
	if sb.Len() == 0 {
		return "No elements found"
	}
	return sb.String()
}

// AgentSelector addresses an element tagged by Observe.
func AgentSelector(id int) Selector {
	return CSS(fmt.Sprintf("[data-agent-id='%d']", id))
}

// ClickElement clicks an element tagged by Observe.
func ClickElement(ctx context.Context, p Page, id int) error {
	if err := p.Click(ctx, AgentSelector(id)); err != nil {
		return fmt.Errorf("element %d: %w", id, err)
	}
	return nil
}

// TypeElement types into an element tagged by Observe.
func TypeElement(ctx context.Context, p Page, id int, text string) error {
	if err := p.Fill(ctx, AgentSelector(id), text); err != nil {
		return fmt.Errorf("element %d: %w", id, err)
	}
	return nil
}
