// Package recurrence turns a stored recurring calendar event into the concrete
// occurrences that fall into a query window. Occurrences are derived on every
// read and never persisted.
package recurrence

import (
	"fmt"
	"iter"
	"time"

	"lyrahub/internal/domain"
)

// MaxOccurrences caps a single expansion.
const MaxOccurrences = 5000

const monthsPerYear = 12

// Expand returns the occurrences of event whose start lies in
// [max(event start, windowStart), min(rule end, windowEnd)).
//
// Events that are not recurring are returned as a single occurrence equal to
// the event. An unrecognised frequency degrades the same way and the
// domain.ErrUnknownFrequency error is returned next to the sequence so the
// caller can report the misconfigured rule.
func Expand(
	event domain.CalendarEvent,
	windowStart time.Time,
	windowEnd time.Time,
) (iter.Seq[domain.Occurrence], error) {
	if !event.IsRecurring || event.Recurrence == nil {
		return single(event), nil
	}

	rule := event.Recurrence

	freq, err := domain.ParseFrequency(string(rule.Frequency))
	if err != nil {
		return single(event), fmt.Errorf("expand event (id = %s): %w", event.ID, err)
	}

	interval := max(rule.Interval, 1)

	effectiveEnd := windowEnd
	if rule.EndDate != nil && rule.EndDate.Before(effectiveEnd) {
		effectiveEnd = *rule.EndDate
	}

	effectiveStart := event.StartDate
	if windowStart.After(effectiveStart) {
		effectiveStart = windowStart
	}

	anchor := event.StartDate
	duration := event.EndDate.Sub(event.StartDate)
	first := firstStepAtOrAfter(anchor, effectiveStart, freq, interval)

	return func(yield func(domain.Occurrence) bool) {
		emitted := 0

		for k := first; emitted < MaxOccurrences; k++ {
			start := nthStart(anchor, freq, interval, k)
			if !start.Before(effectiveEnd) {
				return
			}

			if start.Before(effectiveStart) {
				continue
			}

			if !yield(occurrence(event, start, duration)) {
				return
			}
			emitted++
		}
	}, nil
}

// OccurrenceID derives the stable identity of the occurrence of seriesID that
// starts at start.
func OccurrenceID(seriesID string, start time.Time) string {
	return seriesID + "_" + start.UTC().Format(time.RFC3339Nano)
}

func single(event domain.CalendarEvent) iter.Seq[domain.Occurrence] {
	return func(yield func(domain.Occurrence) bool) {
		yield(domain.Occurrence{CalendarEvent: event, SeriesID: event.ID})
	}
}

func occurrence(event domain.CalendarEvent, start time.Time, duration time.Duration) domain.Occurrence {
	occ := domain.Occurrence{CalendarEvent: event, SeriesID: event.ID}
	occ.ID = OccurrenceID(event.ID, start)
	occ.StartDate = start
	occ.EndDate = start.Add(duration)

	return occ
}

// nthStart returns the start of the k-th step of the rule. Month and year
// steps are taken from the anchor, so a day that does not exist in the
// target month is clamped to that month's last day without drifting later
// occurrences.
func nthStart(anchor time.Time, freq domain.Frequency, interval int, k int) time.Time {
	switch freq {
	case domain.FrequencyDaily:
		return anchor.AddDate(0, 0, k*interval)
	case domain.FrequencyWeekly:
		return anchor.AddDate(0, 0, 7*k*interval)
	case domain.FrequencyMonthly:
		return addMonthsClamped(anchor, k*interval)
	case domain.FrequencyYearly:
		return addMonthsClamped(anchor, monthsPerYear*k*interval)
	default:
		return anchor
	}
}

// firstStepAtOrAfter estimates the first step index worth generating. The
// estimate may be one step early; Expand skips steps before the window.
func firstStepAtOrAfter(anchor time.Time, from time.Time, freq domain.Frequency, interval int) int {
	if !from.After(anchor) {
		return 0
	}

	var k int

	switch freq {
	case domain.FrequencyDaily:
		k = int(from.Sub(anchor).Hours()/24) / interval
	case domain.FrequencyWeekly:
		k = int(from.Sub(anchor).Hours()/(24*7)) / interval
	case domain.FrequencyMonthly:
		k = monthsBetween(anchor, from) / interval
	case domain.FrequencyYearly:
		k = monthsBetween(anchor, from) / (monthsPerYear * interval)
	}

	return max(k-1, 0)
}

func monthsBetween(a time.Time, b time.Time) int {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()

	return (by-ay)*monthsPerYear + int(bm-am)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	ty, tm, _ := firstOfTarget.Date()

	d = min(d, daysIn(ty, tm, t.Location()))

	return time.Date(ty, tm, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
