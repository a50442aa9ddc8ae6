// Package portal knows the layout of the racquetball reservation page: which
// elements to touch and how to read its drop-downs.
package portal

import (
	"fmt"
	"strings"

	"courtbook/internal/browser"
)

// Element ids on RacquetballReservation.aspx.
const (
	DatesID    = "ddlDates"
	DurationID = "ddlDuration"
	TimesID    = "cboSearByTimeList"
	CourtsID   = "cboCourtByTime"
)

var (
	Dates    = browser.CSS("#" + DatesID)
	Duration = browser.CSS("#" + DurationID)
	Times    = browser.CSS("#" + TimesID)
	Courts   = browser.CSS("#" + CourtsID)

	UserField     = browser.CSS("#txtUser")
	PasswordField = browser.CSS("#txtPassword")

	// Login buttons, most specific first. The ASP.NET control id has changed
	// with past portal releases.
	LoginButtons = []browser.Selector{
		browser.CSS("#ctl00_MainContent_Login1_btnLogin"),
		browser.CSS("input[id$='btnLogin']"),
		browser.CSS("input[type='submit'][value*='Log']"),
	}

	ChangeClub = browser.CSS("#btnChangeClub")
	ZipField   = browser.CSS("#txtZipCode")
	ClubLabel  = browser.CSS("#lblSelectClub")

	SaveButtons = []browser.Selector{
		browser.CSS("#btnSaveReservation"),
		browser.CSS("input[id$='btnSaveReservation']"),
	}
	Status = browser.CSS("#divUpdateStatus")
)

// FindClubQueries are tried in order by a page-level JS click: the find
// button sometimes sits under an overlay that swallows real clicks.
var FindClubQueries = []string{"#btnFindclub", `input[value="Find"]`}

const (
	lower = "abcdefghijklmnopqrstuvwxyz"
	upper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// ClubRow matches the search-result cell naming the club, ignoring case.
func ClubRow(club string) browser.Selector {
	return browser.XPath(clubRowXPath(club))
}

// ClubSelectButton is the Select button on the same row as the club cell.
func ClubSelectButton(club string) browser.Selector {
	return browser.XPath("(" + clubRowXPath(club) + "/following-sibling::td//input[@value='Select'])[1]")
}

func clubRowXPath(club string) string {
	return fmt.Sprintf("//td[contains(translate(normalize-space(.),'%s','%s'), %s)]",
		lower, upper, xpathLiteral(strings.ToUpper(strings.TrimSpace(club))))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
