package webautomation

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
)

// ReportKind names the three downloadable artifacts the adapter
// produces.
type ReportKind string

const (
	ReportTDOrders ReportKind = "td_orders"
	ReportTDSales  ReportKind = "td_sales"
	ReportUCGST    ReportKind = "uc_gst"
)

// BuildFilename renders the deterministic download filename for
// (storeCode, kind, window), per spec §6:
// "{store}_{td_orders|td_sales|uc_gst}_{YYYYMMDD}_{YYYYMMDD}.xlsx".
//
// Resolves the spec's open question on the exact date token width by
// always writing 8-digit (YYYYMMDD) tokens.
func BuildFilename(storeCode string, kind ReportKind, window clock.Window) string {
	return fmt.Sprintf("%s_%s_%s_%s.xlsx", storeCode, kind, window.From.Compact(), window.To.Compact())
}

var filenamePattern = regexp.MustCompile(
	`^([A-Za-z0-9]+)_(td_orders|td_sales|uc_gst)_(\d{6}|\d{8})_(\d{6}|\d{8})\.xlsx$`)

// ParseFilename reads back a filename from a pre-existing download
// directory. Per the spec's open question on 6- vs 8-digit date tokens,
// this defensive read accepts either width even though BuildFilename
// only ever writes 8-digit tokens.
func ParseFilename(name string) (storeCode string, kind ReportKind, window clock.Window, err error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", clock.Window{}, pipelineerrors.New(pipelineerrors.KindSchema, "webautomation.ParseFilename",
			fmt.Sprintf("filename %q does not match the expected pattern", name), nil)
	}

	from, err := parseDateToken(m[3])
	if err != nil {
		return "", "", clock.Window{}, pipelineerrors.New(pipelineerrors.KindSchema, "webautomation.ParseFilename",
			fmt.Sprintf("filename %q has an unparseable from-date token", name), err)
	}
	to, err := parseDateToken(m[4])
	if err != nil {
		return "", "", clock.Window{}, pipelineerrors.New(pipelineerrors.KindSchema, "webautomation.ParseFilename",
			fmt.Sprintf("filename %q has an unparseable to-date token", name), err)
	}

	return m[1], ReportKind(m[2]), clock.Window{From: from, To: to}, nil
}

// parseDateToken accepts both 6-digit (YYMMDD) and 8-digit (YYYYMMDD)
// tokens, widening a 6-digit year into the 2000s.
func parseDateToken(token string) (clock.Date, error) {
	if len(token) == 6 {
		token = "20" + token
	}
	year, err := strconv.Atoi(token[0:4])
	if err != nil {
		return clock.Date{}, err
	}
	month, err := strconv.Atoi(token[4:6])
	if err != nil {
		return clock.Date{}, err
	}
	day, err := strconv.Atoi(token[6:8])
	if err != nil {
		return clock.Date{}, err
	}
	return clock.NewDate(year, time.Month(month), day), nil
}
