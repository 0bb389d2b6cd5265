package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venueops/internal/calendar"
	"venueops/internal/config"
	"venueops/internal/holiday"
	"venueops/internal/intake"
	"venueops/internal/model"
	"venueops/internal/pricing"
	"venueops/internal/store"
)

func newTestServer(t *testing.T, mutateCfg func(*config.Config)) (*Server, *store.Store) {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutateCfg != nil {
		mutateCfg(cfg)
	}

	var n atomic.Int64
	st := store.New(store.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", n.Add(1)) }))
	require.NoError(t, st.RunInTransaction(context.Background(), func(tx *store.Tx) error {
		for _, room := range []model.Room{
			{ID: "r-101", RoomNumber: "101", Type: "Standard Room", Floor: 1},
			{ID: "r-1201", RoomNumber: "1201", Type: "The Sanctuary", Floor: 12, IsVipRoom: true},
		} {
			if _, err := tx.AddRoom(room); err != nil {
				return err
			}
		}
		_, err := tx.AddSignal(model.CrossDomainSignal{
			ID:      "sig-nova",
			Type:    model.SignalArtistBooking,
			Payload: model.SignalPayload{ArtistName: "Nova", EventDate: "2026-08-09"},
		})
		return err
	}))

	reg, err := holiday.NewRegistry(model.Holiday{Date: "2026-08-09", Name: "National Day"})
	require.NoError(t, err)
	resolver, err := pricing.NewResolver(cfg.Pricing.Tiers, cfg.Pricing.StrictTiers)
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2026, time.August, 14, 10, 0, 0, 0, time.Local) }
	srv := NewServer(Deps{
		Config:   cfg,
		Store:    st,
		Workflow: intake.NewWorkflow(intake.Config{}, st.NewID),
		Calendar: calendar.NewAggregator(reg, now, calendar.Options{}),
		Pricing:  resolver,
		Now:      now,
	})
	return srv, st
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestSignalWorkflowOverHTTP(t *testing.T) {
	srv, st := newTestServer(t, nil)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/signals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []model.CrossDomainSignal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)

	rec = do(t, h, http.MethodGet, "/api/signals/sig-nova/stage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var staged intake.Staged
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &staged))
	assert.Equal(t, "r-1201", staged.DefaultRoomID)
	assert.Equal(t, "14:00", staged.DefaultPickupTime)

	rec = do(t, h, http.MethodPost, "/api/signals/sig-nova/commit", commitRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no room selected")
	assert.Equal(t, 1, st.PendingCount())

	rec = do(t, h, http.MethodPost, "/api/signals/sig-nova/commit", commitRequest{RoomID: staged.DefaultRoomID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bundle intake.Bundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, "14:00", bundle.Protocol.TransportSchedule[0].Time)
	assert.Equal(t, intake.DefaultRider, bundle.Protocol.Rider)

	rec = do(t, h, http.MethodPost, "/api/signals/sig-nova/commit", commitRequest{RoomID: staged.DefaultRoomID, PickupTime: "14:00"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/signals/sig-missing/stage", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/tasks?context=hotel", nil)
	var tasks []model.OperationalTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, model.PriorityCritical, tasks[0].Priority)
}

func TestCalendarEndpointCachesAndInvalidates(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	fetch := func() monthResponse {
		rec := do(t, h, http.MethodGet, "/api/calendar?year=2026&month=8&context=events", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp monthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	resp := fetch()
	// August 2026 starts on a Saturday.
	require.Len(t, resp.Cells, 6+31)
	assert.Nil(t, resp.Cells[0])
	day9 := resp.Cells[6+8]
	require.NotNil(t, day9.Holiday)
	assert.Empty(t, day9.Items)
	assert.Equal(t, 1, resp.PendingSignals)
	assert.True(t, resp.Cells[6+13].IsToday)

	rec := do(t, h, http.MethodPost, "/api/events", model.Event{Title: "Nova Live", Date: "2026-08-09", Context: model.ContextEvents})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp = fetch()
	require.Len(t, resp.Cells[6+8].Items, 1, "cache dropped after a store change")
	assert.Equal(t, calendar.KindEvent, resp.Cells[6+8].Items[0].Kind)

	rec = do(t, h, http.MethodGet, "/api/calendar?year=2026&month=8&context=spa", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarDoesNotCacheViewBuiltAcrossAWrite(t *testing.T) {
	_, st := newTestServer(t, nil)
	cfg := config.DefaultConfig()
	reg, err := holiday.NewRegistry()
	require.NoError(t, err)
	resolver, err := pricing.NewResolver(cfg.Pricing.Tiers, false)
	require.NoError(t, err)

	today := time.Date(2026, time.August, 14, 10, 0, 0, 0, time.Local)
	var once sync.Once
	// The first build sees the event commit after it took its snapshot.
	clock := func() time.Time {
		once.Do(func() {
			require.NoError(t, st.RunInTransaction(context.Background(), func(tx *store.Tx) error {
				_, err := tx.AddEvent(model.Event{Title: "Nova Live", Date: "2026-08-09", Context: model.ContextEvents})
				return err
			}))
		})
		return today
	}
	srv := NewServer(Deps{
		Config:   cfg,
		Store:    st,
		Workflow: intake.NewWorkflow(intake.Config{}, st.NewID),
		Calendar: calendar.NewAggregator(reg, clock, calendar.Options{}),
		Pricing:  resolver,
		Now:      func() time.Time { return today },
	})
	h := srv.Handler()

	fetch := func() monthResponse {
		rec := do(t, h, http.MethodGet, "/api/calendar?year=2026&month=8&context=events", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp monthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	assert.Empty(t, fetch().Cells[6+8].Items)
	require.Len(t, st.Snapshot().Events, 1)
	assert.Len(t, fetch().Cells[6+8].Items, 1)
}

func TestCalendarCachesOnlyNearbyYears(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	for _, year := range []int{1, 1990, 9999} {
		rec := do(t, h, http.MethodGet, fmt.Sprintf("/api/calendar?year=%d&month=1&context=hotel", year), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	srv.monthMu.RLock()
	assert.Empty(t, srv.monthCache)
	srv.monthMu.RUnlock()

	rec := do(t, h, http.MethodGet, "/api/calendar?year=2027&month=1&context=hotel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	srv.monthMu.RLock()
	assert.Len(t, srv.monthCache, 1)
	srv.monthMu.RUnlock()
}

func TestPricingEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/pricing?tier=Deluxe%20Suite&check_in=2026-03-10&check_out=2026-03-12", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp pricingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Nights)
	assert.Equal(t, int64(640), resp.Total)

	rec = do(t, h, http.MethodGet, "/api/pricing?tier=Penthouse&check_in=2026-03-10&check_out=2026-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.KnownTier)
	assert.Zero(t, resp.Total)

	strict, _ := newTestServer(t, func(c *config.Config) { c.Pricing.StrictTiers = true })
	rec = do(t, strict.Handler(), http.MethodGet, "/api/pricing?tier=Penthouse&check_in=2026-03-10&check_out=2026-03-10", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckInEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/bookings", model.Booking{GuestName: "Kwame", CheckIn: "2026-03-10", CheckOut: "2026-03-11"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))

	rec = do(t, h, http.MethodPost, "/api/bookings/"+b.ID+"/check-in", checkInRequest{RoomID: "r-101"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/bookings/"+b.ID+"/check-in", checkInRequest{RoomID: "r-1201"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/bookings/"+b.ID+"/check-in", checkInRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeetingEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/meetings", model.Meeting{Title: "", Date: "2026-08-03", Context: model.ContextHotel})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Contains(t, errResp.Fields, "title")

	rec = do(t, h, http.MethodPost, "/api/meetings", model.Meeting{Title: "Ops Sync", Date: "2026-08-03", Context: model.ContextHotel})
	require.Equal(t, http.StatusCreated, rec.Code)
	var m model.Meeting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))

	m.Title = "Ops Sync v2"
	rec = do(t, h, http.MethodPut, "/api/meetings/"+m.ID, m)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/api/meetings/"+m.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/meetings/"+m.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "ops", Password: "secret"}
	})
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/rooms", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms?status=vacant-clean", nil)
	req.SetBasicAuth("ops", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var rooms []model.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	assert.Len(t, rooms, 2)
}
