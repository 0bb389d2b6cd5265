package web

import (
	"net/http"

	"venueops/internal/model"
	"venueops/internal/store"
)

// filterByContext keeps items whose context matches ctxKey; an empty key keeps all.
func filterByContext[T any](items []T, ctxKey string, contextOf func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if ctxKey == "" || contextOf(it) == ctxKey {
			out = append(out, it)
		}
	}
	return out
}

// mutate runs fn in a store transaction and writes its result with status.
func mutate[T any](s *Server, w http.ResponseWriter, r *http.Request, status int, fn func(tx *store.Tx) (T, error)) {
	var out T
	err := s.store.RunInTransaction(r.Context(), func(tx *store.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, status, out)
}

// --- signals ---

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("all") == "1" {
		writeJSON(w, http.StatusOK, nonNil(s.store.Snapshot().Signals))
		return
	}
	writeJSON(w, http.StatusOK, s.store.PendingSignals())
}

func (s *Server) handleCreateSignal(w http.ResponseWriter, r *http.Request) {
	var sig model.CrossDomainSignal
	if err := decodeJSON(r, &sig); err != nil {
		writeAppError(w, err)
		return
	}
	mutate(s, w, r, http.StatusCreated, func(tx *store.Tx) (model.CrossDomainSignal, error) {
		return tx.AddSignal(sig)
	})
}

func (s *Server) handleStageSignal(w http.ResponseWriter, r *http.Request) {
	staged, err := s.store.StageSignal(s.workflow, r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, staged)
}

type commitRequest struct {
	RoomID     string `json:"room_id"`
	PickupTime string `json:"pickup_time"`
}

// handleCommitSignal authorizes a signal. An omitted pickup time uses the
// staged default; an omitted room is rejected.
func (s *Server) handleCommitSignal(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	id := r.PathValue("id")
	if req.PickupTime == "" {
		staged, err := s.store.StageSignal(s.workflow, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		req.PickupTime = staged.DefaultPickupTime
	}
	bundle, err := s.store.CommitSignal(r.Context(), s.workflow, id, req.RoomID, req.PickupTime)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bundle)
}

// --- bookings ---

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings := s.store.Snapshot().Bookings
	if r.URL.Query().Get("vip") == "1" {
		vip := make([]model.Booking, 0)
		for _, b := range bookings {
			if b.IsVip {
				vip = append(vip, b)
			}
		}
		bookings = vip
	}
	writeJSON(w, http.StatusOK, nonNil(bookings))
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var b model.Booking
	if err := decodeJSON(r, &b); err != nil {
		writeAppError(w, err)
		return
	}
	mutate(s, w, r, http.StatusCreated, func(tx *store.Tx) (model.Booking, error) {
		return tx.AddBooking(b)
	})
}

type checkInRequest struct {
	RoomID string `json:"room_id"`
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "room_id is required")
		return
	}
	id := r.PathValue("id")
	mutate(s, w, r, http.StatusOK, func(tx *store.Tx) (model.Booking, error) {
		return tx.AssignRoom(id, req.RoomID)
	})
}

// --- meetings and events ---

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	ctxKey := r.URL.Query().Get("context")
	writeJSON(w, http.StatusOK, filterByContext(s.store.Snapshot().Meetings, ctxKey,
		func(m model.Meeting) string { return m.Context }))
}

func (s *Server) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var m model.Meeting
	if err := decodeJSON(r, &m); err != nil {
		writeAppError(w, err)
		return
	}
	mutate(s, w, r, http.StatusCreated, func(tx *store.Tx) (model.Meeting, error) {
		return tx.AddMeeting(m)
	})
}

func (s *Server) handleUpdateMeeting(w http.ResponseWriter, r *http.Request) {
	var m model.Meeting
	if err := decodeJSON(r, &m); err != nil {
		writeAppError(w, err)
		return
	}
	m.ID = r.PathValue("id")
	mutate(s, w, r, http.StatusOK, func(tx *store.Tx) (model.Meeting, error) {
		return tx.UpdateMeeting(m)
	})
}

func (s *Server) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.RunInTransaction(r.Context(), func(tx *store.Tx) error {
		return tx.DeleteMeeting(id)
	}); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctxKey := r.URL.Query().Get("context")
	writeJSON(w, http.StatusOK, filterByContext(s.store.Snapshot().Events, ctxKey,
		func(e model.Event) string { return e.Context }))
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var e model.Event
	if err := decodeJSON(r, &e); err != nil {
		writeAppError(w, err)
		return
	}
	mutate(s, w, r, http.StatusCreated, func(tx *store.Tx) (model.Event, error) {
		return tx.AddEvent(e)
	})
}

// --- operations board ---

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctxKey := r.URL.Query().Get("context")
	writeJSON(w, http.StatusOK, filterByContext(s.store.Snapshot().Tasks, ctxKey,
		func(t model.OperationalTask) string { return t.Context }))
}

func (s *Server) handleListProtocols(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.store.Snapshot().Protocols))
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	tickets := make([]model.MaintenanceTicket, 0)
	for _, t := range s.store.Snapshot().Tickets {
		if status == "" || t.Status == status {
			tickets = append(tickets, t)
		}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var t model.MaintenanceTicket
	if err := decodeJSON(r, &t); err != nil {
		writeAppError(w, err)
		return
	}
	mutate(s, w, r, http.StatusCreated, func(tx *store.Tx) (model.MaintenanceTicket, error) {
		return tx.AddTicket(t)
	})
}

func (s *Server) handleAdvanceTicket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	mutate(s, w, r, http.StatusOK, func(tx *store.Tx) (model.MaintenanceTicket, error) {
		return tx.AdvanceTicket(id)
	})
}

// --- roster and inventory ---

func (s *Server) handleListTeam(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.store.Snapshot().Members))
}

func (s *Server) handleCreateTeamMember(w http.ResponseWriter, r *http.Request) {
	var m model.TeamMember
	if err := decodeJSON(r, &m); err != nil {
		writeAppError(w, err)
		return
	}
	mutate(s, w, r, http.StatusCreated, func(tx *store.Tx) (model.TeamMember, error) {
		return tx.AddTeamMember(m)
	})
}

// handleListRooms filters inventory by ?status= and ?type=.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, tier := q.Get("status"), q.Get("type")
	rooms := make([]model.Room, 0)
	for _, room := range s.store.Snapshot().Rooms {
		if (status == "" || room.Status == status) && (tier == "" || room.Type == tier) {
			rooms = append(rooms, room)
		}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var room model.Room
	if err := decodeJSON(r, &room); err != nil {
		writeAppError(w, err)
		return
	}
	mutate(s, w, r, http.StatusCreated, func(tx *store.Tx) (model.Room, error) {
		return tx.AddRoom(room)
	})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
