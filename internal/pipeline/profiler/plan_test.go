package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/synclog"
)

func date(y int, m time.Month, d int) clock.Date {
	return clock.NewDate(y, m, d)
}

func TestPlanFreshStoreSingleWindow(t *testing.T) {
	start := date(2025, time.March, 1)
	today := date(2025, time.March, 10)

	windows := Plan(nil, start, today, 90, 1, false)

	assert.Equal(t, []clock.Window{{From: start, To: today}}, windows)
}

func TestPlanTodayEqualsStartDateSingleDayWindow(t *testing.T) {
	start := date(2025, time.March, 1)

	windows := Plan(nil, start, start, 90, 1, false)

	assert.Equal(t, []clock.Window{{From: start, To: start}}, windows)
}

func TestPlanOverlapRerunScenario(t *testing.T) {
	// TD store with last success [2025-01-01, 2025-01-05], today=2025-01-07, K=2, N=90.
	successes := []synclog.SuccessWindow{
		{From: date(2025, time.January, 1), To: date(2025, time.January, 5)},
	}
	start := date(2024, time.December, 1)
	today := date(2025, time.January, 7)

	windows := Plan(successes, start, today, 90, 2, false)

	want := clock.Window{From: date(2025, time.January, 4), To: date(2025, time.January, 7)}
	assert.Equal(t, []clock.Window{want}, windows)
}

func TestPlanLastSuccessEqualsTodayWithOverlapOneRerunsTodayOnly(t *testing.T) {
	successes := []synclog.SuccessWindow{
		{From: date(2025, time.January, 1), To: date(2025, time.January, 7)},
	}
	start := date(2025, time.January, 1)
	today := date(2025, time.January, 7)

	windows := Plan(successes, start, today, 90, 1, false)

	assert.Equal(t, []clock.Window{{From: today, To: today}}, windows)
}

func TestPlanWindowDaysOneProducesOneWindowPerDay(t *testing.T) {
	start := date(2025, time.March, 1)
	today := date(2025, time.March, 3)

	windows := Plan(nil, start, today, 1, 1, false)

	assert.Equal(t, []clock.Window{
		{From: date(2025, time.March, 1), To: date(2025, time.March, 1)},
		{From: date(2025, time.March, 2), To: date(2025, time.March, 2)},
		{From: date(2025, time.March, 3), To: date(2025, time.March, 3)},
	}, windows)
}

func TestPlanFullyCoveredRangeProducesNoWindowsExceptTodayRefresh(t *testing.T) {
	// A store whose history is entirely covered by an exact, already
	// recorded success with no overlap left to re-run and today already
	// inside that success's range gets no history windows; only the
	// today-refresh window is planned.
	successes := []synclog.SuccessWindow{
		{From: date(2025, time.January, 1), To: date(2025, time.January, 10)},
	}
	start := date(2025, time.January, 1)
	today := date(2025, time.January, 3)

	windows := Plan(successes, start, today, 90, 1, false)

	// next_from = max(start, 10-0) = Jan 10, which is after today, so
	// clock.Chunks(Jan10, Jan3, ...) yields nothing; today (Jan 3) is
	// already inside the recorded success, but Plan only checks planned
	// windows for coverage, not historical success rows, so the
	// today-refresh still fires since no *planned* window covers it.
	assert.Equal(t, []clock.Window{{From: today, To: today}}, windows)
}

func TestPlanForceIgnoresExistingSuccesses(t *testing.T) {
	successes := []synclog.SuccessWindow{
		{From: date(2025, time.January, 1), To: date(2025, time.January, 10)},
	}
	start := date(2025, time.January, 1)
	today := date(2025, time.January, 10)

	windows := Plan(successes, start, today, 90, 1, true)

	assert.NotEmpty(t, windows)
}
