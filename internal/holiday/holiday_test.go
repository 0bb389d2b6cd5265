package holiday

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venueops/internal/model"
)

func TestRegistryLookup(t *testing.T) {
	r, err := NewRegistry(
		model.Holiday{Date: "2026-01-01", Name: "New Year's Day"},
		model.Holiday{Date: "2026-10-10", Name: "Mental Health Day", Classification: model.HolidayWellness},
	)
	require.NoError(t, err)

	h, ok := r.Lookup("2026-01-01")
	require.True(t, ok)
	assert.Equal(t, "New Year's Day", h.Name)
	assert.Equal(t, model.HolidayOfficial, h.Classification)

	h, ok = r.Lookup("2026-10-10")
	require.True(t, ok)
	assert.Equal(t, model.HolidayWellness, h.Classification)

	// Outside the loaded year: absent, not an error.
	_, ok = r.Lookup("2027-01-01")
	assert.False(t, ok)
	_, ok = r.Lookup("garbage")
	assert.False(t, ok)

	assert.Equal(t, []int{2026}, r.Years())
	assert.Equal(t, 2, r.Len())
}

func TestRegistryRejectsBadEntries(t *testing.T) {
	_, err := NewRegistry(model.Holiday{Date: "01/01/2026", Name: "x"})
	assert.Error(t, err)

	_, err = NewRegistry(model.Holiday{Date: "2026-01-01", Name: "x", Classification: "secret"})
	assert.Error(t, err)

	r, err := NewRegistry()
	require.NoError(t, err)
	assert.Error(t, r.ReplaceYear(2026, []model.Holiday{{Date: "2025-12-31", Name: "eve"}}))
}

func TestRegistryReplaceYear(t *testing.T) {
	r, err := NewRegistry(model.Holiday{Date: "2026-05-01", Name: "Labour Day"})
	require.NoError(t, err)

	require.NoError(t, r.ReplaceYear(2026, []model.Holiday{{Date: "2026-12-25", Name: "Christmas"}}))
	_, ok := r.Lookup("2026-05-01")
	assert.False(t, ok)
	h, ok := r.Lookup("2026-12-25")
	require.True(t, ok)
	assert.Equal(t, model.HolidayOfficial, h.Classification)
}

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//venueops//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:h1@test\r\n" +
	"DTSTART;VALUE=DATE:20261225\r\n" +
	"DTEND;VALUE=DATE:20261227\r\n" +
	"SUMMARY:Christmas Break\r\n" +
	"CATEGORIES:Observed\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:h2@test\r\n" +
	"DTSTART;VALUE=DATE:20260704\r\n" +
	"SUMMARY:Independence Day\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:h3@test\r\n" +
	"DTSTART;VALUE=DATE:20260801\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	entries, err := ParseICS("test", []byte(sampleICS), model.HolidayCultural)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, model.Holiday{Date: "2026-12-25", Name: "Christmas Break", Classification: model.HolidayObserved}, entries[0])
	assert.Equal(t, "2026-12-26", entries[1].Date)
	assert.Equal(t, model.Holiday{Date: "2026-07-04", Name: "Independence Day", Classification: model.HolidayCultural}, entries[2])

	_, err = ParseICS("empty", nil, "")
	assert.Error(t, err)
}

func TestFetcherUsesConditionalCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	feed := Feed{ID: "public", URL: srv.URL + "/holidays.ics", Classification: model.HolidayCultural}

	first, err := f.Load(context.Background(), feed)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	require.Len(t, first.Entries, 3)

	second, err := f.Load(context.Background(), feed)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Entries, second.Entries)
	assert.EqualValues(t, 2, hits.Load())

	results, err := f.LoadAll(context.Background(), []Feed{feed, {ID: "broken"}})
	assert.Len(t, results, 1)
	assert.Error(t, err)
}

func TestFetcherKeepsLastGoodBody(t *testing.T) {
	var broken atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() {
			// 200 with an empty body is not a calendar.
			return
		}
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	feed := Feed{ID: "public", URL: srv.URL}

	_, err := f.Load(context.Background(), feed)
	require.NoError(t, err)

	broken.Store(true)
	res, err := f.Load(context.Background(), feed)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Len(t, res.Entries, 3)

	_, err = NewFetcher(t.TempDir()).Load(context.Background(), feed)
	assert.Error(t, err, "no cached body to fall back on")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private.ics?token=abc"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}

func TestRegistryReloadSkipsInvalidEntries(t *testing.T) {
	r, err := NewRegistry(model.Holiday{Date: "2025-05-01", Name: "Labour Day"})
	require.NoError(t, err)

	err = r.Reload([]model.Holiday{
		{Date: "2026-01-01", Name: "New Year"},
		{Date: "2026-12-25", Name: "Christmas", Classification: "religious"},
		{Date: "26-12-31", Name: "Eve"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "religious")

	_, ok := r.Lookup("2026-01-01")
	assert.True(t, ok)
	_, ok = r.Lookup("2026-12-25")
	assert.False(t, ok)
	_, ok = r.Lookup("2025-05-01")
	assert.False(t, ok, "reload replaces every table")
	assert.Equal(t, 1, r.Len())
}
