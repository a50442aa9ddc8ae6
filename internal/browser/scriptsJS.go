package browser

import (
	"encoding/json"
	"fmt"
)

// JS that outlines the element the flow is about to touch. Handy when running headed.
const HighlightClickScript = `function() { this.style.outline = "3px solid #00FF00"; }`

const HighlightTypeScript = `function() { this.style.outline = "3px solid blue"; }`

// ForceClickScript clicks the receiver element from JS.
const ForceClickScript = `function() { this.click(); }`

// SetValueScript sets a <select> value and fires change so ASP.NET postbacks run.
const SetValueScript = `function(v) {
	this.value = v;
	this.dispatchEvent(new Event('change', {bubbles: true}));
	return this.value;
}`

// ObserveElementsScript tags visible interactive elements with data-agent-id
// and returns them as a JSON array.
const ObserveElementsScript = `() => {
    const MAX_ITEMS = 300;

    document.querySelectorAll('[data-agent-id]').forEach(el => el.removeAttribute('data-agent-id'));

    const items = [];
    let idCounter = 1;

    function isVisible(el) {
        const rect = el.getBoundingClientRect();
        if (rect.width < 1 || rect.height < 1) return false;
        const style = window.getComputedStyle(el);
        return style.visibility !== 'hidden' && style.display !== 'none' && style.opacity !== '0';
    }

    function clean(t, n) {
        return (t || "").replace(/[\n\r\t]+/g, " ").replace(/\s+/g, " ").trim().substring(0, n);
    }

    function tag(el, kind, text) {
        const id = idCounter++;
        el.setAttribute('data-agent-id', String(id));
        items.push({ id, tag: kind, text, role: el.getAttribute('role') || "", interactive: true });
    }

    for (const el of document.body.querySelectorAll('*')) {
        if (items.length >= MAX_ITEMS) break;
        if (!isVisible(el)) continue;

        const tagName = el.tagName.toLowerCase();

        if (tagName === 'select') {
            const label = el.id || el.name || "select";
            const opts = Array.from(el.options).slice(0, 8).map(o => clean(o.text, 30));
            tag(el, 'select', "[SELECT " + label + "] " + opts.join(" | "));
            continue;
        }

        if (tagName === 'input' || tagName === 'textarea') {
            const type = (el.type || "").toLowerCase();
            if (type === 'hidden') continue;
            if (type === 'submit' || type === 'button' || type === 'image') {
                const row = el.closest('tr');
                const ctx = row ? " (row: " + clean(row.innerText, 40) + ")" : "";
                tag(el, 'button', "[ACTION] " + clean(el.value || el.id || "Button", 40) + ctx);
            } else if (type === 'checkbox' || type === 'radio') {
                tag(el, 'checkbox', "[CHECK] " + clean(el.id || el.name, 40) + (el.checked ? " (V)" : " ( )"));
            } else {
                tag(el, 'input', "[INPUT " + (el.id || el.name || type) + "] " + clean(el.placeholder || "", 40));
            }
            continue;
        }

        if (tagName === 'a') {
            const href = el.getAttribute('href');
            if (!href && !el.getAttribute('onclick')) continue;
            tag(el, 'link', "[NAVIGATE] " + clean(el.innerText || el.title || "Link", 50));
            continue;
        }

        if (tagName === 'button' || el.getAttribute('role') === 'button') {
            tag(el, 'button', "[ACTION] " + clean(el.innerText || el.getAttribute('aria-label') || "Button", 50));
            continue;
        }

        if (el.id && /status|message|lbl/i.test(el.id) && clean(el.innerText, 80)) {
            items.push({ id: 0, tag: tagName, text: "#" + el.id + ": " + clean(el.innerText, 80), role: "", interactive: false });
        }
    }

    return JSON.stringify(items);
}`

// ClickFirstScript clicks the first element matching any of the CSS queries
// and reports which one it hit, or "" when none matched.
func ClickFirstScript(queries ...string) string {
	return fmt.Sprintf(`() => {
	for (const q of %s) {
		const el = document.querySelector(q);
		if (el) { el.click(); return q; }
	}
	return "";
}`, jsArg(queries))
}

// SelectIndexScript picks an option by position and fires change.
func SelectIndexScript(selectID string, index int) string {
	return fmt.Sprintf(`() => {
	const el = document.getElementById(%s);
	if (!el || %d >= el.options.length) return "";
	el.selectedIndex = %d;
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return el.value;
}`, jsArg(selectID), index, index)
}

// SelectValueScript is SetValueScript addressed by CSS query, for drivers
// that can only evaluate page-level expressions.
func SelectValueScript(query, value string) string {
	return fmt.Sprintf(`() => {
	const el = document.querySelector(%s);
	if (!el) return "";
	el.value = %s;
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return el.value;
}`, jsArg(query), jsArg(value))
}

// XPathClickScript clicks the first node of an XPath expression.
func XPathClickScript(xpath string) string {
	return fmt.Sprintf(`() => {
	const r = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null);
	if (!r.singleNodeValue) return "";
	r.singleNodeValue.click();
	return "ok";
}`, jsArg(xpath))
}

// CSSClickScript clicks the first element matching a CSS query.
func CSSClickScript(query string) string {
	return ClickFirstScript(query)
}

func jsArg(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
