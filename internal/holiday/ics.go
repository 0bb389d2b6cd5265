package holiday

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "venueops/internal/log"
	"venueops/internal/model"
)

// maxSpanDays caps how many table entries a single multi-day VEVENT can produce.
const maxSpanDays = 31

// ParseICS converts the all-day VEVENTs of an iCalendar payload into
// holiday entries. CATEGORIES selects the classification when it names a
// known one; otherwise fallback is used. Multi-day events produce one entry
// per covered day (DTEND is exclusive).
func ParseICS(sourceID string, body []byte, fallback model.HolidayClass) ([]model.Holiday, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if fallback == "" {
		fallback = model.HolidayOfficial
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("holiday ics parse failed", err, "id", sourceID)
		return nil, err
	}

	out := make([]model.Holiday, 0)
	for _, ve := range cal.Events() {
		entries, perr := parseHolidayEvent(ve, fallback)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("holiday vevent skipped", perr, "id", sourceID)
			continue
		}
		out = append(out, entries...)
	}

	appLog.Info("holiday ics parse completed", "id", sourceID, "entry_count", len(out))
	return out, nil
}

func parseHolidayEvent(ve *ical.VEvent, fallback model.HolidayClass) ([]model.Holiday, error) {
	summary := ""
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		summary = strings.TrimSpace(p.Value)
	}
	if summary == "" {
		return nil, errors.New("missing SUMMARY")
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return nil, errors.New("missing DTSTART")
	}
	start, err := parseICSDate(startProp.Value)
	if err != nil {
		return nil, err
	}

	end := start.AddDate(0, 0, 1)
	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		if e, err := parseICSDate(endProp.Value); err == nil && e.After(start) {
			end = e
		}
	}

	class := fallback
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		for _, c := range strings.Split(p.Value, ",") {
			candidate := model.HolidayClass(strings.ToLower(strings.TrimSpace(c)))
			if candidate.Valid() {
				class = candidate
				break
			}
		}
	}

	entries := make([]model.Holiday, 0, 1)
	for day := start; day.Before(end) && len(entries) < maxSpanDays; day = day.AddDate(0, 0, 1) {
		entries = append(entries, model.Holiday{
			Date:           day.Format(model.DateLayout),
			Name:           summary,
			Classification: class,
		})
	}
	return entries, nil
}

// parseICSDate reads the calendar date of a DATE or DATE-TIME value.
// Holidays are day-granular, so the time part is dropped.
func parseICSDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return time.Time{}, errors.New("invalid ICS date value")
	}
	return time.ParseInLocation("20060102", v[:8], time.Local)
}
