package workbook

import (
	"fmt"
	"strings"
	"time"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
)

// dateLayouts are the formats the source spreadsheets are observed to
// use; tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2-Jan-2006",
	"2-Jan-06",
	"Jan 2, 2006",
	"02 Jan 2006",
}

// parseFlexibleDate tries every known layout in clk's timezone. A plain
// numeric string (an Excel serial date left without a date format) is
// not recognized and yields an error like any other unmatched text.
func parseFlexibleDate(text string, clk *clock.Clock) (clock.Date, error) {
	text = strings.TrimSpace(text)
	loc := time.UTC
	if clk != nil {
		loc = clk.Location()
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return clock.NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}

	return clock.Date{}, fmt.Errorf("no known date layout matched %q", text)
}
