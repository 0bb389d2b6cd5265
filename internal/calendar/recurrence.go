package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "venueops/internal/log"
	"venueops/internal/model"
)

const defaultMaxOccurrences = 62

var recurrenceFreq = map[model.RecurrenceType]rrule.Frequency{
	model.RecurrenceDaily:   rrule.DAILY,
	model.RecurrenceWeekly:  rrule.WEEKLY,
	model.RecurrenceMonthly: rrule.MONTHLY,
	model.RecurrenceYearly:  rrule.YEARLY,
}

// occurrenceDates returns the ISO dates, within [from, to], on which a
// recurring meeting occurs. The stored date is the series start; nothing
// is generated before it. Non-recurring meetings yield their literal date
// when it is inside the window.
func occurrenceDates(m model.Meeting, from, to time.Time, maxOccurrences int) ([]string, error) {
	start, err := time.ParseInLocation(model.DateLayout, m.Date, from.Location())
	if err != nil {
		return nil, fmt.Errorf("meeting %s: invalid date %q: %w", m.ID, m.Date, err)
	}

	freq, ok := recurrenceFreq[m.RecurrenceType]
	if !m.IsRecurring || !ok {
		if start.Before(from) || start.After(to) {
			return nil, nil
		}
		return []string{m.Date}, nil
	}

	r, err := rrule.NewRRule(rrule.ROption{Freq: freq, Dtstart: start})
	if err != nil {
		return nil, fmt.Errorf("meeting %s: build recurrence: %w", m.ID, err)
	}

	times := r.Between(from, to, true)
	if len(times) > maxOccurrences {
		times = times[:maxOccurrences]
		appLog.Warn("recurrence expansion truncated", "meeting_id", m.ID, "cap", maxOccurrences)
	}

	dates := make([]string, 0, len(times))
	for _, t := range times {
		dates = append(dates, t.Format(model.DateLayout))
	}
	return dates, nil
}
