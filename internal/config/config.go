package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"venueops/internal/model"
	"venueops/internal/pricing"
)

// FeedConfig describes an iCalendar holiday subscription.
type FeedConfig struct {
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
	// URL is the ICS endpoint.
	URL string `yaml:"url" json:"url"`
	// Classification applies to entries without a usable CATEGORIES value.
	Classification model.HolidayClass `yaml:"classification,omitempty" json:"classification,omitempty"`
}

// FileConfig is a local .ics file of holidays.
type FileConfig struct {
	Path           string             `yaml:"path" json:"path"`
	Classification model.HolidayClass `yaml:"classification,omitempty" json:"classification,omitempty"`
}

// HolidayConfig is the per-deployment holiday table. Entries, files and
// feeds are merged; later sources win on the same date.
type HolidayConfig struct {
	Entries []model.Holiday `yaml:"entries" json:"entries"`
	Files   []FileConfig    `yaml:"files" json:"files"`
	Feeds   []FeedConfig    `yaml:"feeds" json:"feeds"`
}

// PricingConfig lists room tiers.
type PricingConfig struct {
	Tiers []pricing.Tier `yaml:"tiers" json:"tiers"`
	// StrictTiers rejects unknown tiers instead of pricing them at 0.
	StrictTiers bool `yaml:"strict_tiers" json:"strict_tiers"`
}

// VIPConfig holds the defaults used when authorizing artist bookings.
type VIPConfig struct {
	Tier           string   `yaml:"tier" json:"tier"`
	PickupTime     string   `yaml:"pickup_time" json:"pickup_time"`
	PickupLocation string   `yaml:"pickup_location" json:"pickup_location"`
	Rider          []string `yaml:"default_rider" json:"default_rider"`
	TaskCategory   string   `yaml:"task_category" json:"task_category"`
	TaskAssignees  []string `yaml:"task_assignees" json:"task_assignees"`
}

// CalendarConfig tunes the month view.
type CalendarConfig struct {
	// ExpandRecurring places recurring meetings on every occurrence.
	ExpandRecurring bool `yaml:"expand_recurring" json:"expand_recurring"`
	MaxOccurrences  int  `yaml:"max_occurrences" json:"max_occurrences"`
}

// StorageConfig selects snapshot persistence. An empty path keeps state in memory only.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Contexts are the business domains sharing the calendar.
	Contexts []string `yaml:"contexts" json:"contexts"`

	// OperationsContext receives tasks spawned by authorized signals.
	OperationsContext string `yaml:"operations_context" json:"operations_context"`

	Holidays HolidayConfig  `yaml:"holidays" json:"holidays"`
	Pricing  PricingConfig  `yaml:"pricing" json:"pricing"`
	VIP      VIPConfig      `yaml:"vip" json:"vip"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`

	// CacheDir stores holiday feed responses for conditional requests.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// DayRolloverCron invalidates cached month views so "today" moves.
	DayRolloverCron string `yaml:"day_rollover_cron" json:"day_rollover_cron"`

	// HolidayRefreshCron re-fetches holiday feeds.
	HolidayRefreshCron string `yaml:"holiday_refresh_cron" json:"holiday_refresh_cron"`

	// Rooms seeds an empty store with inventory.
	Rooms []model.Room `yaml:"rooms" json:"rooms"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen             = "127.0.0.1:8080"
	defaultDayRolloverCron    = "0 0 * * *"
	defaultHolidayRefreshCron = "0 */6 * * *"
	defaultCacheDir           = "cache"
)

// DefaultTiers is the tier table written on first run.
func DefaultTiers() []pricing.Tier {
	return []pricing.Tier{
		{Name: "Standard Room", NightlyRate: 180, Floor: 2},
		{Name: "Deluxe Suite", NightlyRate: 320, Floor: 5},
		{Name: "Executive Suite", NightlyRate: 550, Floor: 9},
		{Name: "The Sanctuary", NightlyRate: 1200, Floor: 12},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            defaultListen,
		LogLevel:          "info",
		Contexts:          []string{model.ContextHotel, model.ContextEvents},
		OperationsContext: model.ContextHotel,
		Holidays: HolidayConfig{
			Entries: []model.Holiday{},
			Files:   []FileConfig{},
			Feeds:   []FeedConfig{},
		},
		Pricing: PricingConfig{Tiers: DefaultTiers()},
		VIP: VIPConfig{
			Tier:           "The Sanctuary",
			PickupTime:     "14:00",
			PickupLocation: "Private Aviation Terminal",
			Rider:          []string{"Standard VIP Refreshments", "Premium Security Escort"},
			TaskCategory:   "VIP Operations",
			TaskAssignees:  []string{},
		},
		Calendar:           CalendarConfig{MaxOccurrences: 62},
		CacheDir:           defaultCacheDir,
		DayRolloverCron:    defaultDayRolloverCron,
		HolidayRefreshCron: defaultHolidayRefreshCron,
		Rooms:              []model.Room{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if len(c.Contexts) == 0 {
		c.Contexts = def.Contexts
	}
	if c.OperationsContext == "" {
		c.OperationsContext = def.OperationsContext
	}
	if c.Holidays.Entries == nil {
		c.Holidays.Entries = []model.Holiday{}
	}
	if c.Holidays.Files == nil {
		c.Holidays.Files = []FileConfig{}
	}
	if c.Holidays.Feeds == nil {
		c.Holidays.Feeds = []FeedConfig{}
	}
	if len(c.Pricing.Tiers) == 0 {
		c.Pricing.Tiers = def.Pricing.Tiers
	}
	if c.VIP.Tier == "" {
		c.VIP.Tier = def.VIP.Tier
	}
	if c.VIP.PickupTime == "" {
		c.VIP.PickupTime = def.VIP.PickupTime
	}
	if c.VIP.PickupLocation == "" {
		c.VIP.PickupLocation = def.VIP.PickupLocation
	}
	if len(c.VIP.Rider) == 0 {
		c.VIP.Rider = def.VIP.Rider
	}
	if c.VIP.TaskCategory == "" {
		c.VIP.TaskCategory = def.VIP.TaskCategory
	}
	if c.VIP.TaskAssignees == nil {
		c.VIP.TaskAssignees = []string{}
	}
	if c.Calendar.MaxOccurrences <= 0 {
		c.Calendar.MaxOccurrences = def.Calendar.MaxOccurrences
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.DayRolloverCron == "" {
		c.DayRolloverCron = def.DayRolloverCron
	}
	if c.HolidayRefreshCron == "" {
		c.HolidayRefreshCron = def.HolidayRefreshCron
	}
	if c.Rooms == nil {
		c.Rooms = []model.Room{}
	}
}

// HasContext reports whether key is a configured context.
func (c *Config) HasContext(key string) bool {
	for _, k := range c.Contexts {
		if k == key {
			return true
		}
	}
	return false
}

// Validate reports configuration errors that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	for _, spec := range []struct{ name, expr string }{
		{"day_rollover_cron", c.DayRolloverCron},
		{"holiday_refresh_cron", c.HolidayRefreshCron},
	} {
		if _, err := cron.ParseStandard(spec.expr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", spec.name, err))
		}
	}
	if !c.HasContext(c.OperationsContext) {
		errs = append(errs, fmt.Errorf("operations_context %q is not one of %v", c.OperationsContext, c.Contexts))
	}
	for _, ctxKey := range c.Contexts {
		if strings.TrimSpace(ctxKey) == "" {
			errs = append(errs, errors.New("contexts: empty context key"))
		}
	}
	if _, err := pricing.NewResolver(c.Pricing.Tiers, c.Pricing.StrictTiers); err != nil {
		errs = append(errs, fmt.Errorf("pricing: %w", err))
	}
	errs = append(errs, c.Holidays.validate()...)
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		errs = append(errs, errors.New("basic_auth: username and password are required"))
	}
	return errors.Join(errs...)
}

func (h HolidayConfig) validate() []error {
	var errs []error
	checkClass := func(field string, class model.HolidayClass) {
		if class != "" && !class.Valid() {
			errs = append(errs, fmt.Errorf("%s: unknown classification %q", field, class))
		}
	}
	for i, e := range h.Entries {
		field := fmt.Sprintf("holidays.entries[%d]", i)
		if _, err := time.Parse(model.DateLayout, e.Date); err != nil {
			errs = append(errs, fmt.Errorf("%s: date %q must be YYYY-MM-DD", field, e.Date))
		}
		if strings.TrimSpace(e.Name) == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", field))
		}
		checkClass(field, e.Classification)
	}
	for i, f := range h.Files {
		field := fmt.Sprintf("holidays.files[%d]", i)
		if f.Path == "" {
			errs = append(errs, fmt.Errorf("%s: path is required", field))
		}
		checkClass(field, f.Classification)
	}
	for i, f := range h.Feeds {
		field := fmt.Sprintf("holidays.feeds[%d]", i)
		if f.URL == "" {
			errs = append(errs, fmt.Errorf("%s: url is required", field))
		}
		checkClass(field, f.Classification)
	}
	return errs
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg atomically via a temp file + rename, with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".venueops-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
