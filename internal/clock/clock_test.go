package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunksSingleWindow(t *testing.T) {
	from := NewDate(2025, 3, 1)
	to := NewDate(2025, 3, 10)

	windows := Chunks(from, to, 90)

	require.Len(t, windows, 1)
	assert.Equal(t, from, windows[0].From)
	assert.Equal(t, to, windows[0].To)
}

func TestChunksOneDayPerWindow(t *testing.T) {
	from := NewDate(2025, 1, 1)
	to := NewDate(2025, 1, 3)

	windows := Chunks(from, to, 1)

	require.Len(t, windows, 3)
	assert.Equal(t, Window{NewDate(2025, 1, 1), NewDate(2025, 1, 1)}, windows[0])
	assert.Equal(t, Window{NewDate(2025, 1, 2), NewDate(2025, 1, 2)}, windows[1])
	assert.Equal(t, Window{NewDate(2025, 1, 3), NewDate(2025, 1, 3)}, windows[2])
}

func TestChunksBoundariesAreContiguous(t *testing.T) {
	from := NewDate(2025, 1, 1)
	to := NewDate(2025, 1, 31)

	windows := Chunks(from, to, 10)

	require.Len(t, windows, 4)
	for i := 1; i < len(windows); i++ {
		assert.Equal(t, windows[i-1].To.AddDays(1), windows[i].From,
			"window %d should start the day after window %d ends", i, i-1)
	}
	assert.Equal(t, from, windows[0].From)
	assert.Equal(t, to, windows[len(windows)-1].To)
	for _, w := range windows {
		assert.LessOrEqual(t, w.To.DaysSince(w.From)+1, 10)
	}
}

func TestChunksEmptyWhenFromAfterTo(t *testing.T) {
	from := NewDate(2025, 3, 10)
	to := NewDate(2025, 3, 1)

	assert.Empty(t, Chunks(from, to, 90))
}

func TestChunksSameDay(t *testing.T) {
	d := NewDate(2025, 3, 10)

	windows := Chunks(d, d, 90)

	require.Len(t, windows, 1)
	assert.Equal(t, d, windows[0].From)
	assert.Equal(t, d, windows[0].To)
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2025, 1, 30)
	assert.Equal(t, NewDate(2025, 2, 1), d.AddDays(2))
	assert.Equal(t, 2, NewDate(2025, 2, 1).DaysSince(d))
	assert.True(t, d.Before(NewDate(2025, 2, 1)))
	assert.True(t, NewDate(2025, 2, 1).After(d))
}

func TestWindowOverlaps(t *testing.T) {
	a := Window{NewDate(2025, 1, 1), NewDate(2025, 1, 5)}
	b := Window{NewDate(2025, 1, 5), NewDate(2025, 1, 10)}
	c := Window{NewDate(2025, 1, 6), NewDate(2025, 1, 10)}

	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(c))
}

func TestTodayUsesConfiguredTimezone(t *testing.T) {
	c, err := New("Asia/Kolkata")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", c.Location().String())
	// Today() should not panic and should return a plausible year.
	assert.GreaterOrEqual(t, c.Today().Year, 2024)
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	_, err := New("Not/AZone")
	assert.Error(t, err)
}
