package workbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
)

func TestParsePhoneStripsCountryCodeAndPunctuation(t *testing.T) {
	got, ok := parsePhone("+91 98765-43210")
	require.True(t, ok)
	assert.Equal(t, "9876543210", got)
}

func TestParsePhoneRejectsWrongLength(t *testing.T) {
	_, ok := parsePhone("12345")
	assert.False(t, ok)
}

func TestParsePhoneRejectsNonDigits(t *testing.T) {
	_, ok := parsePhone("98765abcde")
	assert.False(t, ok)
}

func TestParseNumericStripsThousandsSeparators(t *testing.T) {
	n, err := parseNumeric("1,234.50")
	require.NoError(t, err)
	assert.Equal(t, 1234.50, n)
}

func TestParseNumericUnparseableReturnsError(t *testing.T) {
	_, err := parseNumeric("not-a-number")
	assert.Error(t, err)
}

func TestParseFlexibleDateTriesMultipleLayouts(t *testing.T) {
	clk, err := clock.New("Asia/Kolkata")
	require.NoError(t, err)

	cases := []struct {
		text string
		want clock.Date
	}{
		{"2025-03-10", clock.NewDate(2025, 3, 10)},
		{"10-03-2025", clock.NewDate(2025, 3, 10)},
		{"10/03/2025", clock.NewDate(2025, 3, 10)},
		{"10-Mar-2025", clock.NewDate(2025, 3, 10)},
	}
	for _, c := range cases {
		got, err := parseFlexibleDate(c.text, clk)
		require.NoError(t, err, c.text)
		assert.Equal(t, c.want, got, c.text)
	}
}

func TestParseFlexibleDateRejectsGarbage(t *testing.T) {
	_, err := parseFlexibleDate("not a date", nil)
	assert.Error(t, err)
}

func TestDeriveTDOrderFieldsNormalDelivery(t *testing.T) {
	row := Row{"order_date": clock.NewDate(2025, 3, 1), "due_date": clock.NewDate(2025, 3, 4)}
	DeriveTDOrderFields(row)
	assert.Equal(t, clock.NewDate(2025, 3, 4), row["default_due_date"])
	assert.Equal(t, 0, row["due_days_delta"])
	assert.Equal(t, "Normal Delivery", row["due_date_flag"])
	assert.Equal(t, clock.NewDate(2025, 3, 3), row["complete_processing_by"])
}

func TestDeriveTDOrderFieldsDateExtended(t *testing.T) {
	row := Row{"order_date": clock.NewDate(2025, 3, 1), "due_date": clock.NewDate(2025, 3, 10)}
	DeriveTDOrderFields(row)
	assert.Equal(t, 6, row["due_days_delta"])
	assert.Equal(t, "Date Extended", row["due_date_flag"])
}

func TestDeriveTDOrderFieldsExpressDelivery(t *testing.T) {
	row := Row{"order_date": clock.NewDate(2025, 3, 5), "due_date": clock.NewDate(2025, 3, 6)}
	DeriveTDOrderFields(row)
	assert.Equal(t, -2, row["due_days_delta"])
	assert.Equal(t, "Express Delivery", row["due_date_flag"])
}

func TestDeriveTDOrderFieldsMissingDueDateDefaultsToPlusThree(t *testing.T) {
	row := Row{"order_date": clock.NewDate(2025, 3, 1)}
	DeriveTDOrderFields(row)
	assert.Equal(t, clock.NewDate(2025, 3, 4), row["due_date"])
	assert.Equal(t, "Normal Delivery", row["due_date_flag"])
}

func TestDeriveUCFieldsSumsTax(t *testing.T) {
	row := Row{"cgst": 45.0, "sgst": 45.0}
	DeriveUCFields(row)
	assert.Equal(t, 90.0, row["tax_amount"])
}

func TestMapHeadersMatchesCaseInsensitively(t *testing.T) {
	m := mapHeaders([]string{"order number", " Order Date ", "Status"}, TDOrdersSpec)
	assert.Equal(t, 0, m["order_number"])
	assert.Equal(t, 1, m["order_date"])
}
