package store

import (
	"fmt"
	"strings"
	"time"

	"venueops/internal/apperr"
	"venueops/internal/intake"
	"venueops/internal/model"
)

// Tx is a private working copy of the state. Mutations become visible only
// when the surrounding RunInTransaction returns nil.
type Tx struct {
	state Snapshot
	newID func() string
	dirty bool
}

// HasProvenance implements intake.Ledger against the working copy.
func (tx *Tx) HasProvenance(key string) bool {
	return tx.state.hasProvenance(key)
}

func (tx *Tx) id(current string) string {
	if strings.TrimSpace(current) != "" {
		return current
	}
	return tx.newID()
}

func validDate(v string) bool {
	_, err := time.Parse(model.DateLayout, v)
	return err == nil
}

func validClock(v string) bool {
	_, err := time.Parse(model.ClockLayout, v)
	return err == nil
}

// AddEvent validates and appends a one-off event.
func (tx *Tx) AddEvent(e model.Event) (model.Event, error) {
	vErr := &apperr.ValidationError{}
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		vErr.Add("title", "title is required")
	}
	if !validDate(e.Date) {
		vErr.Add("date", "date must be an ISO date")
	}
	if strings.TrimSpace(e.Context) == "" {
		vErr.Add("context", "context is required")
	}
	if err := vErr.OrNil(); err != nil {
		return model.Event{}, err
	}
	e.ID = tx.id(e.ID)
	tx.state.Events = append(tx.state.Events, e)
	tx.dirty = true
	return e, nil
}

func normalizeMeeting(m model.Meeting) (model.Meeting, error) {
	vErr := &apperr.ValidationError{}
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		vErr.Add("title", "title is required")
	}
	if !validDate(m.Date) {
		vErr.Add("date", "date must be an ISO date")
	}
	if strings.TrimSpace(m.Context) == "" {
		vErr.Add("context", "context is required")
	}
	if m.StartTime != "" && !validClock(m.StartTime) {
		vErr.Add("start_time", "start time must be HH:MM")
	}
	if m.EndTime != "" && !validClock(m.EndTime) {
		vErr.Add("end_time", "end time must be HH:MM")
	}
	if m.StartTime != "" && m.EndTime != "" && m.EndTime < m.StartTime {
		vErr.Add("end_time", "end time must not precede start time")
	}

	if !m.IsRecurring {
		m.RecurrenceType = model.RecurrenceNone
	} else {
		switch m.RecurrenceType {
		case model.RecurrenceDaily, model.RecurrenceWeekly, model.RecurrenceMonthly, model.RecurrenceYearly:
		default:
			vErr.Add("recurrence_type", "recurring meetings need daily, weekly, monthly or yearly")
		}
	}
	m.Attendees = cloneStrings(m.Attendees)
	return m, vErr.OrNil()
}

// AddMeeting validates and appends a meeting.
func (tx *Tx) AddMeeting(m model.Meeting) (model.Meeting, error) {
	m, err := normalizeMeeting(m)
	if err != nil {
		return model.Meeting{}, err
	}
	m.ID = tx.id(m.ID)
	tx.state.Meetings = append(tx.state.Meetings, m)
	tx.dirty = true
	return m, nil
}

// UpdateMeeting replaces the meeting with the same id in place.
func (tx *Tx) UpdateMeeting(m model.Meeting) (model.Meeting, error) {
	idx := -1
	for i, cur := range tx.state.Meetings {
		if cur.ID == m.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Meeting{}, fmt.Errorf("meeting %s: %w", m.ID, apperr.ErrNotFound)
	}
	m, err := normalizeMeeting(m)
	if err != nil {
		return model.Meeting{}, err
	}
	tx.state.Meetings[idx] = m
	tx.dirty = true
	return m, nil
}

// DeleteMeeting removes a meeting by id.
func (tx *Tx) DeleteMeeting(id string) error {
	for i, m := range tx.state.Meetings {
		if m.ID == id {
			tx.state.Meetings = append(tx.state.Meetings[:i], tx.state.Meetings[i+1:]...)
			tx.dirty = true
			return nil
		}
	}
	return fmt.Errorf("meeting %s: %w", id, apperr.ErrNotFound)
}

// AddTeamMember appends a roster entry with a year-less birthday.
func (tx *Tx) AddTeamMember(m model.TeamMember) (model.TeamMember, error) {
	vErr := &apperr.ValidationError{}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		vErr.Add("name", "name is required")
	}
	if m.Birthday != "" {
		if _, err := time.Parse(model.BirthdayLayout, m.Birthday); err != nil {
			vErr.Add("birthday", "birthday must be MM-DD")
		}
	}
	if err := vErr.OrNil(); err != nil {
		return model.TeamMember{}, err
	}
	m.ID = tx.id(m.ID)
	tx.state.Members = append(tx.state.Members, m)
	tx.dirty = true
	return m, nil
}

// AddRoom appends an inventory entry; room numbers are unique.
func (tx *Tx) AddRoom(r model.Room) (model.Room, error) {
	vErr := &apperr.ValidationError{}
	r.RoomNumber = strings.TrimSpace(r.RoomNumber)
	r.Type = strings.TrimSpace(r.Type)
	if r.RoomNumber == "" {
		vErr.Add("room_number", "room number is required")
	}
	if r.Type == "" {
		vErr.Add("type", "type is required")
	}
	if r.Status == "" {
		r.Status = model.RoomVacantClean
	}
	switch r.Status {
	case model.RoomVacantClean, model.RoomVacantDirty, model.RoomOccupied, model.RoomMaintenance:
	default:
		vErr.Add("status", fmt.Sprintf("unknown room status %q", r.Status))
	}
	for _, cur := range tx.state.Rooms {
		if r.RoomNumber != "" && cur.RoomNumber == r.RoomNumber {
			vErr.Add("room_number", "room number already exists")
		}
	}
	if err := vErr.OrNil(); err != nil {
		return model.Room{}, err
	}
	r.ID = tx.id(r.ID)
	tx.state.Rooms = append(tx.state.Rooms, r)
	tx.dirty = true
	return r, nil
}

// AddBooking appends a guest stay. Rooms are attached later by AssignRoom.
func (tx *Tx) AddBooking(b model.Booking) (model.Booking, error) {
	vErr := &apperr.ValidationError{}
	b.GuestName = strings.TrimSpace(b.GuestName)
	if b.GuestName == "" {
		vErr.Add("guest_name", "guest name is required")
	}
	inOK, outOK := validDate(b.CheckIn), validDate(b.CheckOut)
	if !inOK {
		vErr.Add("check_in", "check-in must be an ISO date")
	}
	if !outOK {
		vErr.Add("check_out", "check-out must be an ISO date")
	}
	if inOK && outOK && b.CheckOut < b.CheckIn {
		vErr.Add("check_out", "check-out must not precede check-in")
	}
	if b.Pax < 0 {
		vErr.Add("pax", "pax must be positive")
	}
	if b.RoomID != "" {
		vErr.Add("room_id", "rooms are assigned at check-in")
	}
	if err := vErr.OrNil(); err != nil {
		return model.Booking{}, err
	}
	if b.Pax == 0 {
		b.Pax = 1
	}
	if b.Source == "" {
		b.Source = "Direct"
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = "pending"
	}
	b.ID = tx.id(b.ID)
	tx.state.Bookings = append(tx.state.Bookings, b)
	tx.dirty = true
	return b, nil
}

// AssignRoom checks a booking into a vacant-clean room. A booking's room
// is set exactly once.
func (tx *Tx) AssignRoom(bookingID, roomID string) (model.Booking, error) {
	bi := -1
	for i, b := range tx.state.Bookings {
		if b.ID == bookingID {
			bi = i
			break
		}
	}
	if bi < 0 {
		return model.Booking{}, fmt.Errorf("booking %s: %w", bookingID, apperr.ErrNotFound)
	}
	var room model.Room
	found := false
	for _, r := range tx.state.Rooms {
		if r.ID == roomID {
			room, found = r, true
			break
		}
	}
	if !found {
		return model.Booking{}, fmt.Errorf("room %s: %w", roomID, apperr.ErrNotFound)
	}

	booking := tx.state.Bookings[bi]
	if booking.RoomID != "" {
		return model.Booking{}, apperr.Conflict("booking %s already checked into room %s", booking.ID, booking.RoomID)
	}
	if room.Status != model.RoomVacantClean {
		return model.Booking{}, apperr.Conflict("room %s is %s", room.RoomNumber, room.Status)
	}
	booking.RoomID = room.ID
	if booking.InternalTable == "" {
		booking.InternalTable = room.Type
	}
	tx.state.Bookings[bi] = booking
	tx.dirty = true
	return booking, nil
}

// AddSignal records a new cross-domain signal. Signals always enter pending.
func (tx *Tx) AddSignal(sig model.CrossDomainSignal) (model.CrossDomainSignal, error) {
	vErr := &apperr.ValidationError{}
	sig.Type = strings.TrimSpace(sig.Type)
	if sig.Type == "" {
		vErr.Add("type", "type is required")
	}
	if sig.Type == model.SignalArtistBooking {
		if strings.TrimSpace(sig.Payload.ArtistName) == "" {
			vErr.Add("artist_name", "artist name is required")
		}
		if !validDate(sig.Payload.EventDate) {
			vErr.Add("event_date", "event date must be an ISO date")
		}
	}
	if _, dup := tx.state.signal(sig.ID); sig.ID != "" && dup {
		vErr.Add("id", "signal id already exists")
	}
	if err := vErr.OrNil(); err != nil {
		return model.CrossDomainSignal{}, err
	}
	sig.ID = tx.id(sig.ID)
	sig.Acknowledged = false
	sig.Payload.Rider = cloneStrings(sig.Payload.Rider)
	tx.state.Signals = append(tx.state.Signals, sig)
	tx.dirty = true
	return sig, nil
}

// Apply materializes a committed bundle. The signal must still be pending
// and no entity may already carry the bundle's provenance key.
func (tx *Tx) Apply(b intake.Bundle) error {
	si := -1
	for i, sig := range tx.state.Signals {
		if sig.ID == b.AcknowledgedSignalID {
			si = i
			break
		}
	}
	if si < 0 {
		return fmt.Errorf("signal %s: %w", b.AcknowledgedSignalID, apperr.ErrNotFound)
	}
	if tx.state.Signals[si].Acknowledged {
		return apperr.Conflict("signal %s already acknowledged", b.AcknowledgedSignalID)
	}
	if tx.state.hasProvenance(b.Provenance()) {
		return apperr.Conflict("signal %s already materialized", b.AcknowledgedSignalID)
	}

	signal := b.Signal
	signal.Acknowledged = true
	tx.state.Signals[si] = signal
	tx.state.Protocols = append(tx.state.Protocols, b.Protocol)
	tx.state.Bookings = append(tx.state.Bookings, b.Booking)
	tx.state.Tasks = append(tx.state.Tasks, b.Task)
	tx.dirty = true
	return nil
}

// AddTicket opens a maintenance ticket in the todo column.
func (tx *Tx) AddTicket(t model.MaintenanceTicket) (model.MaintenanceTicket, error) {
	vErr := &apperr.ValidationError{}
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		vErr.Add("title", "title is required")
	}
	if strings.TrimSpace(t.Category) == "" {
		vErr.Add("category", "category is required")
	}
	if t.DueDate != "" && !validDate(t.DueDate) {
		vErr.Add("due_date", "due date must be an ISO date")
	}
	switch t.Priority {
	case "":
		t.Priority = model.PriorityMedium
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityCritical:
	default:
		vErr.Add("priority", fmt.Sprintf("unknown priority %q", t.Priority))
	}
	if err := vErr.OrNil(); err != nil {
		return model.MaintenanceTicket{}, err
	}
	t.ID = tx.id(t.ID)
	t.Status = model.StatusTodo
	tx.state.Tickets = append(tx.state.Tickets, t)
	tx.dirty = true
	return t, nil
}

var nextTicketStatus = map[string]string{
	model.StatusTodo:       model.StatusInProgress,
	model.StatusInProgress: model.StatusDone,
}

// AdvanceTicket moves a ticket one column forward. Done is terminal.
func (tx *Tx) AdvanceTicket(id string) (model.MaintenanceTicket, error) {
	for i, t := range tx.state.Tickets {
		if t.ID != id {
			continue
		}
		next, ok := nextTicketStatus[t.Status]
		if !ok {
			return model.MaintenanceTicket{}, apperr.Conflict("ticket %s is %s", t.ID, t.Status)
		}
		t.Status = next
		tx.state.Tickets[i] = t
		tx.dirty = true
		return t, nil
	}
	return model.MaintenanceTicket{}, fmt.Errorf("ticket %s: %w", id, apperr.ErrNotFound)
}
