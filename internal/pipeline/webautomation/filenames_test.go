package webautomation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
)

func TestBuildFilename(t *testing.T) {
	window := clock.Window{From: clock.NewDate(2025, 3, 1), To: clock.NewDate(2025, 3, 10)}
	name := BuildFilename("A668", ReportTDOrders, window)
	assert.Equal(t, "A668_td_orders_20250301_20250310.xlsx", name)
}

func TestParseFilenameEightDigit(t *testing.T) {
	store, kind, window, err := ParseFilename("A668_uc_gst_20250301_20250310.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "A668", store)
	assert.Equal(t, ReportUCGST, kind)
	assert.Equal(t, clock.NewDate(2025, 3, 1), window.From)
	assert.Equal(t, clock.NewDate(2025, 3, 10), window.To)
}

func TestParseFilenameSixDigitDefensiveRead(t *testing.T) {
	_, _, window, err := ParseFilename("A668_td_sales_250301_250310.xlsx")
	require.NoError(t, err)
	assert.Equal(t, clock.NewDate(2025, 3, 1), window.From)
	assert.Equal(t, clock.NewDate(2025, 3, 10), window.To)
}

func TestParseFilenameRejectsUnknownShape(t *testing.T) {
	_, _, _, err := ParseFilename("not_a_report.xlsx")
	assert.Error(t, err)
}

func TestBuildFilenameRoundTripsThroughParse(t *testing.T) {
	window := clock.Window{From: clock.NewDate(2025, 6, 15), To: clock.NewDate(2025, 6, 20)}
	name := BuildFilename("B001", ReportTDSales, window)

	store, kind, got, err := ParseFilename(name)
	require.NoError(t, err)
	assert.Equal(t, "B001", store)
	assert.Equal(t, ReportTDSales, kind)
	assert.Equal(t, window, got)
}
