package store

import "venueops/internal/model"

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Events:    append([]model.Event(nil), s.Events...),
		Meetings:  cloneMeetings(s.Meetings),
		Members:   append([]model.TeamMember(nil), s.Members...),
		Rooms:     append([]model.Room(nil), s.Rooms...),
		Bookings:  append([]model.Booking(nil), s.Bookings...),
		Tickets:   append([]model.MaintenanceTicket(nil), s.Tickets...),
		Protocols: cloneProtocols(s.Protocols),
		Signals:   cloneSignals(s.Signals),
		Tasks:     cloneTasks(s.Tasks),
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

func cloneMeetings(in []model.Meeting) []model.Meeting {
	if in == nil {
		return nil
	}
	out := make([]model.Meeting, len(in))
	for i, m := range in {
		m.Attendees = cloneStrings(m.Attendees)
		out[i] = m
	}
	return out
}

func cloneProtocols(in []model.VipResidencyProtocol) []model.VipResidencyProtocol {
	if in == nil {
		return nil
	}
	out := make([]model.VipResidencyProtocol, len(in))
	for i, p := range in {
		p.Rider = cloneStrings(p.Rider)
		p.TransportSchedule = append([]model.TransportLeg(nil), p.TransportSchedule...)
		out[i] = p
	}
	return out
}

func cloneSignals(in []model.CrossDomainSignal) []model.CrossDomainSignal {
	if in == nil {
		return nil
	}
	out := make([]model.CrossDomainSignal, len(in))
	for i, s := range in {
		s.Payload.Rider = cloneStrings(s.Payload.Rider)
		out[i] = s
	}
	return out
}

func cloneTasks(in []model.OperationalTask) []model.OperationalTask {
	if in == nil {
		return nil
	}
	out := make([]model.OperationalTask, len(in))
	for i, t := range in {
		t.Assignees = cloneStrings(t.Assignees)
		out[i] = t
	}
	return out
}
