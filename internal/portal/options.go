package portal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"courtbook/internal/entity"
)

// ParseOptions reads the <option>s of the select with the given id out of a
// page's HTML. A missing select yields an empty slice.
func ParseOptions(html, selectID string) ([]entity.Option, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}

	var opts []entity.Option
	doc.Find(fmt.Sprintf("select[id=%q] option", selectID)).Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		value, ok := s.Attr("value")
		if !ok {
			// Browsers fall back to the label when value is absent.
			value = text
		}
		opts = append(opts, entity.Option{Index: i, Value: value, Text: text})
	})
	return opts, nil
}

// FurthestDate is the last real entry of the date list; the portal lists
// dates in ascending order.
func FurthestDate(opts []entity.Option) (entity.Option, bool) {
	for i := len(opts) - 1; i >= 0; i-- {
		if opts[i].Value != "" {
			return opts[i], true
		}
	}
	return entity.Option{}, false
}

// MatchDuration finds the first option whose label mentions the minutes,
// e.g. "60" matches "60 Minutes".
func MatchDuration(opts []entity.Option, minutes string) (entity.Option, bool) {
	minutes = strings.TrimSpace(minutes)
	if minutes == "" {
		return entity.Option{}, false
	}
	for _, o := range opts {
		if strings.Contains(o.Text, minutes) {
			return o, true
		}
	}
	return entity.Option{}, false
}

// EarliestTime is the first real entry of the time list.
func EarliestTime(opts []entity.Option) (entity.Option, bool) {
	for _, o := range opts {
		if o.Value != "" {
			return o, true
		}
	}
	return entity.Option{}, false
}

var numberToken = regexp.MustCompile(`\d+`)

// PreferredCourt picks the court whose label carries the number as a whole
// token ("Court 2" but not "Court 12"), else the first court offered.
func PreferredCourt(opts []entity.Option, court int) (entity.Option, bool) {
	want := strconv.Itoa(court)
	var first *entity.Option
	for i := range opts {
		o := opts[i]
		if o.Value == "" {
			continue
		}
		if first == nil {
			first = &opts[i]
		}
		for _, tok := range numberToken.FindAllString(o.Text, -1) {
			if tok == want {
				return o, true
			}
		}
	}
	if first == nil {
		return entity.Option{}, false
	}
	return *first, true
}

var savedPattern = regexp.MustCompile(`(?i)saved`)

// IsConfirmed reports whether the status box text confirms the booking.
func IsConfirmed(status string) bool {
	return savedPattern.MatchString(status)
}

// ClubMatches reports whether the club label shows the wanted club. The label
// format differs from the search results ("LA Fitness Irvine Jamboree" vs
// "IRVINE - JAMBOREE"), so only the last word of the club name is compared.
func ClubMatches(label, club string) bool {
	words := strings.FieldsFunc(strings.ToLower(club), func(r rune) bool {
		return r == ' ' || r == '-' || r == ','
	})
	if len(words) == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(label), words[len(words)-1])
}
