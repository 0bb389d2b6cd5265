package holiday

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venueops/internal/model"
)

func TestLoaderMergesSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.ics")
	require.NoError(t, os.WriteFile(path, []byte(sampleICS), 0o600))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	l := &Loader{
		Inline:  []model.Holiday{{Date: "2026-07-04", Name: "Inline Day", Classification: model.HolidayWellness}},
		Files:   []File{{Path: path, Classification: model.HolidayCultural}},
		Feeds:   []Feed{{ID: "remote", URL: srv.URL}},
		Fetcher: NewFetcher(filepath.Join(dir, "cache")),
	}

	entries, err := l.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1+3+3)

	reg, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, l.Refresh(context.Background(), reg))

	h, ok := reg.Lookup("2026-07-04")
	require.True(t, ok)
	assert.Equal(t, "Independence Day", h.Name, "feeds override inline entries")
	assert.Equal(t, model.HolidayOfficial, h.Classification, "feed fallback classification")
	assert.Equal(t, []int{2026}, reg.Years())
}

func TestLoaderRefreshKeepsTableWhenEverythingFails(t *testing.T) {
	reg, err := NewRegistry(model.Holiday{Date: "2026-01-01", Name: "New Year"})
	require.NoError(t, err)

	l := &Loader{Files: []File{{Path: filepath.Join(t.TempDir(), "missing.ics")}}}
	err = l.Refresh(context.Background(), reg)
	require.Error(t, err)

	_, ok := reg.Lookup("2026-01-01")
	assert.True(t, ok)
}

func TestLoaderRefreshSkipsInvalidEntries(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	l := &Loader{Inline: []model.Holiday{
		{Date: "2026-01-01", Name: "New Year"},
		{Date: "2026-12-25", Name: "Christmas", Classification: "religious"},
	}}
	err = l.Refresh(context.Background(), reg)
	require.Error(t, err)

	h, ok := reg.Lookup("2026-01-01")
	require.True(t, ok)
	assert.Equal(t, model.HolidayOfficial, h.Classification)
	assert.Equal(t, 1, reg.Len())
}

func TestLoaderRefreshKeepsTableWhenEveryEntryIsInvalid(t *testing.T) {
	reg, err := NewRegistry(model.Holiday{Date: "2026-01-01", Name: "New Year"})
	require.NoError(t, err)

	l := &Loader{Inline: []model.Holiday{{Date: "tomorrow", Name: "Bad"}}}
	require.Error(t, l.Refresh(context.Background(), reg))

	_, ok := reg.Lookup("2026-01-01")
	assert.True(t, ok)
}
