package production

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/workbook"
)

func TestFlagDuplicatesFirstOccurrenceIsClean(t *testing.T) {
	rows := []workbook.Row{
		{"store_code": "A668", "order_number": "ORD1"},
	}
	FlagDuplicates(rows)
	assert.Equal(t, false, rows[0]["is_duplicate"])
	assert.Equal(t, false, rows[0]["is_edited_order"])
}

func TestFlagDuplicatesRepeatedOrderIsFlagged(t *testing.T) {
	rows := []workbook.Row{
		{"store_code": "A668", "order_number": "ORD1"},
		{"store_code": "A668", "order_number": "ORD1"},
	}
	FlagDuplicates(rows)
	assert.Equal(t, false, rows[0]["is_duplicate"])
	assert.Equal(t, true, rows[1]["is_duplicate"])
	assert.Equal(t, true, rows[1]["is_edited_order"])
}

func TestFlagDuplicatesDifferentStoreSameOrderNumberIsNotADuplicate(t *testing.T) {
	rows := []workbook.Row{
		{"store_code": "A668", "order_number": "ORD1"},
		{"store_code": "B001", "order_number": "ORD1"},
	}
	FlagDuplicates(rows)
	assert.Equal(t, false, rows[0]["is_duplicate"])
	assert.Equal(t, false, rows[1]["is_duplicate"])
}
