package staging

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/workbook"
)

func TestBuildUpsertSQLExcludesConflictColumnsFromUpdateSet(t *testing.T) {
	sql := buildUpsertSQL(tdOrdersTable)

	assert.Contains(t, sql, "INSERT INTO stg_td_orders")
	assert.Contains(t, sql, "ON CONFLICT (store_code, order_number, order_date) DO UPDATE SET")
	assert.NotContains(t, sql, "store_code = EXCLUDED.store_code")
	assert.Contains(t, sql, "status = EXCLUDED.status")
}

func TestBuildUpsertSQLPlaceholderCountMatchesColumnCount(t *testing.T) {
	sql := buildUpsertSQL(bankTable)
	assert.Contains(t, sql, "$1")
	assert.Contains(t, sql, "$9")
}

func TestRowValuesPreservesColumnOrder(t *testing.T) {
	row := workbook.Row{
		"store_code":   "A668",
		"order_number": "ORD1",
		"order_date":   "2025-03-01",
	}
	values := rowValues(tableSpec{columns: []string{"order_number", "store_code", "order_date"}}, row)
	assert.Equal(t, []any{"ORD1", "A668", "2025-03-01"}, values)
}

func TestRowValuesMissingColumnYieldsNil(t *testing.T) {
	row := workbook.Row{"store_code": "A668"}
	values := rowValues(tableSpec{columns: []string{"store_code", "missing_col"}}, row)
	assert.Equal(t, []any{"A668", nil}, values)
}
