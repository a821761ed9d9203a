// Package ics renders stored calendar events as an iCalendar feed.
package ics

import (
	"fmt"
	"strings"
	"time"

	"lyrahub/internal/domain"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

const (
	productID = "-//lyrahub//calendar//EN"
	// lastSafeDay is the highest day of month present in every month.
	lastSafeDay = 28
)

// Export builds one VEVENT per stored event. Recurring events carry an RRULE
// and are not expanded.
func Export(events []domain.CalendarEvent, now time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName("lyrahub")

	for _, ev := range events {
		vevent := cal.AddEvent(ev.ID + "@lyrahub")
		vevent.SetDtStampTime(now.UTC())
		vevent.SetCreatedTime(ev.CreatedAt.UTC())
		vevent.SetModifiedAt(ev.UpdatedAt.UTC())
		vevent.SetStartAt(ev.StartDate.UTC())
		vevent.SetEndAt(ev.EndDate.UTC())
		vevent.SetSummary(ev.Title)

		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}

		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}

		if ev.Type != "" {
			vevent.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(ev.Type))
		}

		if ev.Completed {
			vevent.SetStatus(ical.ObjectStatusCompleted)
		}

		if !ev.IsRecurring || ev.Recurrence == nil {
			continue
		}

		rule, err := RRule(ev.StartDate, *ev.Recurrence)
		if err != nil {
			return "", fmt.Errorf("export event (id = %s): %w", ev.ID, err)
		}

		vevent.SetProperty(ical.ComponentPropertyRrule, rule)
	}

	return cal.Serialize(), nil
}

// RRule renders rule as an RFC 5545 recurrence rule anchored at start.
//
// Monthly and yearly rules anchored after the 28th select the anchor day or
// the last day of the month, whichever comes first, so they clamp the same way
// the expander does instead of skipping short months.
func RRule(start time.Time, rule domain.Recurrence) (string, error) {
	freq, err := domain.ParseFrequency(string(rule.Frequency))
	if err != nil {
		return "", err
	}

	opt := rrule.ROption{Interval: max(rule.Interval, 1)}

	switch freq {
	case domain.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case domain.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case domain.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
	case domain.FrequencyYearly:
		opt.Freq = rrule.YEARLY
	}

	start = start.UTC()

	if (freq == domain.FrequencyMonthly || freq == domain.FrequencyYearly) && start.Day() > lastSafeDay {
		opt.Bymonthday = []int{start.Day(), -1}
		opt.Bysetpos = []int{1}

		if freq == domain.FrequencyYearly {
			opt.Bymonth = []int{int(start.Month())}
		}
	}

	// UNTIL is inclusive while the stored end date is not.
	if rule.EndDate != nil {
		opt.Until = rule.EndDate.UTC().Add(-time.Second)
	}

	return opt.RRuleString(), nil
}
