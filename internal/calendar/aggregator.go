// Package calendar merges holidays, birthdays, events and meetings into a
// Sunday-first month grid for one business context.
package calendar

import (
	"strings"
	"time"

	"venueops/internal/apperr"
	appLog "venueops/internal/log"
	"venueops/internal/model"
)

// HolidayLookup resolves an ISO date to a holiday entry.
type HolidayLookup interface {
	Lookup(date string) (model.Holiday, bool)
}

// ItemKind classifies a calendar item for presentation. It is derived,
// never stored on the source entity.
type ItemKind string

const (
	KindEvent   ItemKind = "event"
	KindMeeting ItemKind = "meeting"
)

// AccentBirthday marks days whose only annotation is a team birthday.
const AccentBirthday = "birthday"

// Item is an event or meeting placed on a day.
type Item struct {
	Kind      ItemKind `json:"kind"`
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Date      string   `json:"date"`
	StartTime string   `json:"start_time,omitempty"`
	EndTime   string   `json:"end_time,omitempty"`
	Type      string   `json:"type,omitempty"`
	Context   string   `json:"context"`
	Recurring bool     `json:"recurring,omitempty"`
}

// DayCell is one real day of the month grid. Leading placeholders are nil.
type DayCell struct {
	Date        string             `json:"date"`
	BirthdayKey string             `json:"birthday_key"`
	Day         int                `json:"day"`
	Weekday     time.Weekday       `json:"weekday"`
	IsToday     bool               `json:"is_today"`
	Holiday     *model.Holiday     `json:"holiday,omitempty"`
	Birthdays   []model.TeamMember `json:"birthdays,omitempty"`
	Items       []Item             `json:"items"`
	Accent      string             `json:"accent,omitempty"`
}

// Inputs are the host collections the view is built from, in store order.
type Inputs struct {
	Events   []model.Event
	Meetings []model.Meeting
	Members  []model.TeamMember
}

// Options tune the aggregator.
type Options struct {
	// ExpandRecurring places recurring meetings on every occurrence inside
	// the month instead of only on their stored date.
	ExpandRecurring bool
	// MaxOccurrences caps expansion per meeting; zero means the default.
	MaxOccurrences int
}

// Aggregator builds month views. It holds no per-request state.
type Aggregator struct {
	holidays HolidayLookup
	now      func() time.Time
	opts     Options
}

// NewAggregator wires the holiday source and clock.
func NewAggregator(holidays HolidayLookup, now func() time.Time, opts Options) *Aggregator {
	if now == nil {
		now = time.Now
	}
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = defaultMaxOccurrences
	}
	return &Aggregator{holidays: holidays, now: now, opts: opts}
}

// BuildMonthView returns firstWeekday nil placeholders followed by one cell
// per day of the month. Events precede meetings within a day, each group in
// input order; only items whose context equals ctxKey are placed, while
// holidays and birthdays are shown for every context.
func (a *Aggregator) BuildMonthView(year int, month time.Month, ctxKey string, in Inputs) ([]*DayCell, error) {
	vErr := &apperr.ValidationError{}
	if year < 1 || year > 9999 {
		vErr.Add("year", "year must be between 1 and 9999")
	}
	if month < time.January || month > time.December {
		vErr.Add("month", "month must be between 1 and 12")
	}
	ctxKey = strings.TrimSpace(ctxKey)
	if ctxKey == "" {
		vErr.Add("context", "context is required")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	// Day 0 of the next month is the last day of this one.
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.Local)
	daysInMonth := last.Day()
	leading := int(first.Weekday())

	events := a.indexEvents(in.Events, ctxKey)
	meetings := a.indexMeetings(in.Meetings, ctxKey, first, last)
	birthdays := indexBirthdays(in.Members)
	todayKey := a.now().In(time.Local).Format(model.DateLayout)

	cells := make([]*DayCell, leading, leading+daysInMonth)
	for d := 1; d <= daysInMonth; d++ {
		day := time.Date(year, month, d, 0, 0, 0, 0, time.Local)
		dateKey := day.Format(model.DateLayout)
		bdayKey := day.Format(model.BirthdayLayout)

		cell := &DayCell{
			Date:        dateKey,
			BirthdayKey: bdayKey,
			Day:         d,
			Weekday:     day.Weekday(),
			IsToday:     dateKey == todayKey,
			Birthdays:   birthdays[bdayKey],
			Items:       make([]Item, 0, len(events[dateKey])+len(meetings[dateKey])),
		}
		if a.holidays != nil {
			if h, ok := a.holidays.Lookup(dateKey); ok {
				cell.Holiday = &h
			}
		}
		cell.Items = append(cell.Items, events[dateKey]...)
		cell.Items = append(cell.Items, meetings[dateKey]...)

		switch {
		case cell.Holiday != nil:
			cell.Accent = string(cell.Holiday.Classification)
		case len(cell.Birthdays) > 0:
			cell.Accent = AccentBirthday
		}
		cells = append(cells, cell)
	}
	return cells, nil
}

func (a *Aggregator) indexEvents(events []model.Event, ctxKey string) map[string][]Item {
	out := make(map[string][]Item)
	for _, e := range events {
		if e.Context != ctxKey {
			continue
		}
		out[e.Date] = append(out[e.Date], Item{
			Kind:    KindEvent,
			ID:      e.ID,
			Title:   e.Title,
			Date:    e.Date,
			Context: e.Context,
		})
	}
	return out
}

func (a *Aggregator) indexMeetings(meetings []model.Meeting, ctxKey string, first, last time.Time) map[string][]Item {
	out := make(map[string][]Item)
	for _, m := range meetings {
		if m.Context != ctxKey {
			continue
		}
		dates := []string{m.Date}
		if a.opts.ExpandRecurring && m.IsRecurring {
			expanded, err := occurrenceDates(m, first, last, a.opts.MaxOccurrences)
			if err != nil {
				appLog.Warn("skipping meeting recurrence", "meeting_id", m.ID, "err", err)
			} else {
				dates = expanded
			}
		}
		for _, date := range dates {
			out[date] = append(out[date], Item{
				Kind:      KindMeeting,
				ID:        m.ID,
				Title:     m.Title,
				Date:      date,
				StartTime: m.StartTime,
				EndTime:   m.EndTime,
				Type:      m.Type,
				Context:   m.Context,
				Recurring: m.IsRecurring,
			})
		}
	}
	return out
}

func indexBirthdays(members []model.TeamMember) map[string][]model.TeamMember {
	out := make(map[string][]model.TeamMember)
	for _, m := range members {
		if m.Birthday == "" {
			continue
		}
		out[m.Birthday] = append(out[m.Birthday], m)
	}
	return out
}
