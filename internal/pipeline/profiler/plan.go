package profiler

import (
	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/synclog"
)

// Plan computes the ordered list of windows to execute for one (store,
// pipeline): next_from from the prior successes (or the store's
// start_date if none exist), chunked at windowDays, filtered by the
// execution rule, then a today-refresh if no planned window already
// covers [today, today].
func Plan(successes []synclog.SuccessWindow, startDate, today clock.Date, windowDays, overlapDays int, force bool) []clock.Window {
	hasSuccess := len(successes) > 0

	var nextFrom clock.Date
	var overlapWindow clock.Window
	if !hasSuccess {
		nextFrom = startDate
	} else {
		lastSuccessTo := successes[0].To
		for _, s := range successes[1:] {
			if s.To.After(lastSuccessTo) {
				lastSuccessTo = s.To
			}
		}
		nextFrom = clock.Max(startDate, lastSuccessTo.AddDays(-(overlapDays - 1)))
		overlapWindow = clock.Window{From: lastSuccessTo.AddDays(-(overlapDays - 1)), To: lastSuccessTo}
	}

	successSet := make(map[clock.Window]bool, len(successes))
	for _, s := range successes {
		successSet[clock.Window{From: s.From, To: s.To}] = true
	}

	var planned []clock.Window
	for _, w := range clock.Chunks(nextFrom, today, windowDays) {
		if shouldRun(w, force, hasSuccess, overlapWindow, successSet) {
			planned = append(planned, w)
		}
	}

	if !coversDay(planned, today) {
		todayWindow := clock.Window{From: today, To: today}
		if shouldRun(todayWindow, force, hasSuccess, overlapWindow, successSet) {
			planned = append(planned, todayWindow)
		}
	}

	return planned
}

// shouldRun implements spec §4.11's execution rule: run if forced, if w
// overlaps the most recent success's overlap range, or if no exact
// success row already covers w.
func shouldRun(w clock.Window, force, hasSuccess bool, overlapWindow clock.Window, successSet map[clock.Window]bool) bool {
	if force {
		return true
	}
	if hasSuccess && w.Overlaps(overlapWindow) {
		return true
	}
	return !successSet[w]
}

func coversDay(windows []clock.Window, day clock.Date) bool {
	for _, w := range windows {
		if !w.From.After(day) && !w.To.Before(day) {
			return true
		}
	}
	return false
}
