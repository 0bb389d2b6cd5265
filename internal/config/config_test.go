package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venueops/internal/model"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, "The Sanctuary", cfg.VIP.Tier)
	assert.Len(t, cfg.Pricing.Tiers, 4)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
listen: ":9090"
holidays:
  entries:
    - date: "2026-08-09"
      name: National Day
pricing:
  strict_tiers: true
calendar:
  expand_recurring: true
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.True(t, cfg.Pricing.StrictTiers)
	assert.Equal(t, DefaultTiers(), cfg.Pricing.Tiers)
	assert.True(t, cfg.Calendar.ExpandRecurring)
	assert.Equal(t, 62, cfg.Calendar.MaxOccurrences)
	assert.Equal(t, []string{model.ContextHotel, model.ContextEvents}, cfg.Contexts)
	require.Len(t, cfg.Holidays.Entries, 1)
	assert.Equal(t, "National Day", cfg.Holidays.Entries[0].Name)
	assert.Equal(t, defaultDayRolloverCron, cfg.DayRolloverCron)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
day_rollover_cron: "every midnight"
operations_context: spa
pricing:
  tiers:
    - name: Suite
      nightly_rate: -5
basic_auth:
  username: admin
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	for _, want := range []string{"day_rollover_cron", "operations_context", "pricing", "basic_auth"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadRejectsInvalidHolidays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
holidays:
  entries:
    - date: "2026-01-01"
      name: New Year
    - date: "2026-12-25"
      name: Christmas
      classification: religious
    - date: "25/12/2026"
      name: Boxing Day
  files:
    - path: ./local.ics
      classification: seasonal
  feeds:
    - id: public
      url: https://example.com/holidays.ics
      classification: Official
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	for _, want := range []string{
		`holidays.entries[1]: unknown classification "religious"`,
		"holidays.entries[2]: date",
		`holidays.files[0]: unknown classification "seasonal"`,
		`holidays.feeds[0]: unknown classification "Official"`,
	} {
		assert.Contains(t, err.Error(), want)
	}
	assert.NotContains(t, err.Error(), "holidays.entries[0]")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Rooms = []model.Room{{ID: "r-1201", RoomNumber: "1201", Type: "The Sanctuary", Floor: 12, Status: model.RoomVacantClean, IsVipRoom: true}}
	cfg.BasicAuth = &BasicAuthConfig{Username: "ops", Password: "secret"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Rooms, loaded.Rooms)
	require.NotNil(t, loaded.BasicAuth)
	assert.Equal(t, "ops", loaded.BasicAuth.Username)
}
