package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"venueops/internal/apperr"
	"venueops/internal/calendar"
	"venueops/internal/config"
	"venueops/internal/intake"
	appLog "venueops/internal/log"
	"venueops/internal/pricing"
	"venueops/internal/store"
)

const maxBodyBytes = 1 << 20

// cacheYearWindow bounds which month views are cached: only years within
// this distance of the current year.
const cacheYearWindow = 2

// Deps are the collaborators the HTTP layer drives.
type Deps struct {
	Config   *config.Config
	Store    *store.Store
	Workflow *intake.Workflow
	Calendar *calendar.Aggregator
	Pricing  *pricing.Resolver
	Now      func() time.Time
}

// Server exposes the operations API.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	workflow *intake.Workflow
	calendar *calendar.Aggregator
	pricing  *pricing.Resolver
	now      func() time.Time
	mux      *http.ServeMux

	// Month views are cached until the store changes, holidays are
	// refreshed or the day rolls over. monthGen counts invalidations; a
	// view built across one is served but not cached.
	monthMu    sync.RWMutex
	monthGen   uint64
	monthCache map[monthKey]monthResponse
}

type monthKey struct {
	year    int
	month   time.Month
	context string
}

// NewServer constructs a new Server and subscribes it to store changes.
func NewServer(d Deps) *Server {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	s := &Server{
		cfg:        d.Config,
		store:      d.Store,
		workflow:   d.Workflow,
		calendar:   d.Calendar,
		pricing:    d.Pricing,
		now:        now,
		mux:        http.NewServeMux(),
		monthCache: make(map[monthKey]monthResponse),
	}
	s.store.OnChange(s.InvalidateCalendar)
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// InvalidateCalendar drops every cached month view.
func (s *Server) InvalidateCalendar() {
	s.monthMu.Lock()
	n := len(s.monthCache)
	s.monthCache = make(map[monthKey]monthResponse)
	s.monthGen++
	s.monthMu.Unlock()
	if n > 0 {
		appLog.Debug("month view cache cleared", "entries", n)
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="VenueOps", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/pricing", s.handlePricing)

	s.mux.HandleFunc("GET /api/signals", s.handleListSignals)
	s.mux.HandleFunc("POST /api/signals", s.handleCreateSignal)
	s.mux.HandleFunc("GET /api/signals/{id}/stage", s.handleStageSignal)
	s.mux.HandleFunc("POST /api/signals/{id}/commit", s.handleCommitSignal)

	s.mux.HandleFunc("GET /api/bookings", s.handleListBookings)
	s.mux.HandleFunc("POST /api/bookings", s.handleCreateBooking)
	s.mux.HandleFunc("POST /api/bookings/{id}/check-in", s.handleCheckIn)

	s.mux.HandleFunc("GET /api/meetings", s.handleListMeetings)
	s.mux.HandleFunc("POST /api/meetings", s.handleCreateMeeting)
	s.mux.HandleFunc("PUT /api/meetings/{id}", s.handleUpdateMeeting)
	s.mux.HandleFunc("DELETE /api/meetings/{id}", s.handleDeleteMeeting)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)

	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("GET /api/protocols", s.handleListProtocols)

	s.mux.HandleFunc("GET /api/tickets", s.handleListTickets)
	s.mux.HandleFunc("POST /api/tickets", s.handleCreateTicket)
	s.mux.HandleFunc("POST /api/tickets/{id}/advance", s.handleAdvanceTicket)

	s.mux.HandleFunc("GET /api/team", s.handleListTeam)
	s.mux.HandleFunc("POST /api/team", s.handleCreateTeamMember)

	s.mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	s.mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// monthResponse is the JSON shape for /api/calendar. Cells holds null for
// each leading weekday placeholder.
type monthResponse struct {
	Year           int                 `json:"year"`
	Month          int                 `json:"month"`
	Context        string              `json:"context"`
	Cells          []*calendar.DayCell `json:"cells"`
	PendingSignals int                 `json:"pending_signals"`
}

// handleCalendar returns the month view for one context.
//
// GET /api/calendar?year=2026&month=8&context=hotel
//   - year, month default to the current local month
//   - context defaults to the operations context
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now()
	year := parseIntDefault(q.Get("year"), now.Year())
	month := time.Month(parseIntDefault(q.Get("month"), int(now.Month())))
	ctxKey := q.Get("context")
	if ctxKey == "" {
		ctxKey = s.cfg.OperationsContext
	}
	if !s.cfg.HasContext(ctxKey) {
		writeAppError(w, apperr.Invalid("context", fmt.Sprintf("unknown context %q", ctxKey)))
		return
	}

	key := monthKey{year: year, month: month, context: ctxKey}
	s.monthMu.RLock()
	cached, ok := s.monthCache[key]
	gen := s.monthGen
	s.monthMu.RUnlock()
	if ok {
		cached.PendingSignals = s.store.PendingCount()
		writeJSON(w, http.StatusOK, cached)
		return
	}

	var (
		cells []*calendar.DayCell
		err   error
	)
	s.store.View(func(snap store.Snapshot) {
		cells, err = s.calendar.BuildMonthView(year, month, ctxKey, calendar.Inputs{
			Events:   snap.Events,
			Meetings: snap.Meetings,
			Members:  snap.Members,
		})
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	resp := monthResponse{
		Year:    year,
		Month:   int(month),
		Context: ctxKey,
		Cells:   cells,
	}
	if cacheable(year, now.Year()) {
		s.monthMu.Lock()
		if s.monthGen == gen {
			s.monthCache[key] = resp
		}
		s.monthMu.Unlock()
	}

	resp.PendingSignals = s.store.PendingCount()
	writeJSON(w, http.StatusOK, resp)
}

type pricingResponse struct {
	Tier      string `json:"tier"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Nights    int    `json:"nights"`
	UnitPrice int64  `json:"unit_price"`
	KnownTier bool   `json:"known_tier"`
	Total     int64  `json:"total"`
}

// handlePricing projects the price of a stay.
//
// GET /api/pricing?tier=Deluxe%20Suite&check_in=2026-03-10&check_out=2026-03-12
func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tier, in, out := q.Get("tier"), q.Get("check_in"), q.Get("check_out")

	total, err := s.pricing.Projection(tier, in, out)
	if errors.Is(err, pricing.ErrUnknownTier) {
		writeAppError(w, apperr.Invalid("tier", err.Error()))
		return
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	nights, _ := pricing.Nights(in, out)
	unit, known := s.pricing.UnitPrice(tier)
	writeJSON(w, http.StatusOK, pricingResponse{
		Tier:      tier,
		CheckIn:   in,
		CheckOut:  out,
		Nights:    nights,
		UnitPrice: unit,
		KnownTier: known,
		Total:     total,
	})
}

func cacheable(year, current int) bool {
	return year >= current-cacheYearWindow && year <= current+cacheYearWindow
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("body", "invalid JSON: "+err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeAppError maps the error taxonomy onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.Kind(err)
	resp := errorResponse{Error: err.Error(), Kind: kind}
	status := http.StatusInternalServerError

	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
		var vErr *apperr.ValidationError
		if errors.As(err, &vErr) {
			resp.Fields = vErr.FieldErrors
		}
	case apperr.KindStateConflict:
		status = http.StatusConflict
	case apperr.KindNotFound:
		status = http.StatusNotFound
	default:
		appLog.Error("request failed", err)
		if errors.Is(err, context.Canceled) {
			return
		}
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}
