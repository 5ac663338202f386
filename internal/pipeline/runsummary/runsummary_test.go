package runsummary

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/domain"
)

func TestSummaryText(t *testing.T) {
	text := SummaryText("TD", []domain.SyncLogStatus{
		domain.StatusSuccess, domain.StatusSuccess, domain.StatusPartial, domain.StatusFailed,
	})
	assert.Equal(t, "TD: 2 succeeded, 1 partial, 1 failed (of 4 windows)", text)
}

func TestSummaryTextNoWindows(t *testing.T) {
	text := SummaryText("UC", nil)
	assert.Equal(t, "UC: 0 succeeded, 0 partial, 0 failed (of 0 windows)", text)
}
