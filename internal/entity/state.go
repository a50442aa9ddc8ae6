package entity

// Element is one interactive node tagged by the page scanner.
type Element struct {
	ID          int    `json:"id"`
	Tag         string `json:"tag"`
	Text        string `json:"text"`
	Role        string `json:"role"`
	Interactive bool   `json:"interactive"`
}

// BrowserState is a snapshot of the current page as the scanner saw it.
type BrowserState struct {
	URL        string
	Title      string
	DOMSummary string
	Elements   []Element
}
