package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"venueops/internal/calendar"
	"venueops/internal/config"
	"venueops/internal/holiday"
	"venueops/internal/intake"
	appLog "venueops/internal/log"
	"venueops/internal/pricing"
	"venueops/internal/store"
	"venueops/internal/store/sqlite"
	"venueops/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("venueops starting", "version", "0.1.0")

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"contexts", conf.Contexts,
		"operations_context", conf.OperationsContext,
		"tiers", len(conf.Pricing.Tiers),
		"strict_tiers", conf.Pricing.StrictTiers,
		"expand_recurring", conf.Calendar.ExpandRecurring,
		"holiday_feeds", len(conf.Holidays.Feeds),
		"sqlite", conf.Storage.SQLitePath,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("venueops failed", err)
		os.Exit(1)
	}
	appLog.Info("venueops exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	a, err := newApp(ctx, conf)
	if err != nil {
		return err
	}
	defer a.Close()

	if flags.once {
		return a.dumpCurrentMonth(os.Stdout)
	}

	scheduler, err := a.startScheduler(ctx)
	if err != nil {
		return err
	}
	defer func() {
		<-scheduler.Stop().Done()
	}()

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// app wires the core packages to the reference host.
type app struct {
	conf      *config.Config
	holidays  *holiday.Registry
	loader    *holiday.Loader
	store     *store.Store
	persister *sqlite.Persister
	calendar  *calendar.Aggregator
	server    *web.Server
}

func newApp(ctx context.Context, conf *config.Config) (*app, error) {
	a := &app{conf: conf, loader: newHolidayLoader(conf)}

	reg, err := holiday.NewRegistry()
	if err != nil {
		return nil, err
	}
	if err := a.loader.Refresh(ctx, reg); err != nil {
		// Partial tables are still served; a missing feed must not block startup.
		appLog.Warn("holiday table loaded with errors", "err", err)
	}
	a.holidays = reg
	appLog.Info("holiday table ready", "entries", reg.Len(), "years", reg.Years())

	resolver, err := pricing.NewResolver(conf.Pricing.Tiers, conf.Pricing.StrictTiers)
	if err != nil {
		return nil, err
	}

	var opts []store.Option
	if conf.Storage.SQLitePath != "" {
		p, err := sqlite.Open(ctx, conf.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.persister = p
		opts = append(opts, store.WithPersister(p))
	}
	a.store = store.New(opts...)
	if err := a.store.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.seedRooms(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.calendar = calendar.NewAggregator(reg, time.Now, calendar.Options{
		ExpandRecurring: conf.Calendar.ExpandRecurring,
		MaxOccurrences:  conf.Calendar.MaxOccurrences,
	})

	workflow := intake.NewWorkflow(intake.Config{
		VipTier:           conf.VIP.Tier,
		DefaultPickupTime: conf.VIP.PickupTime,
		DefaultRider:      conf.VIP.Rider,
		OperationsContext: conf.OperationsContext,
		TaskCategory:      conf.VIP.TaskCategory,
		TaskAssignees:     conf.VIP.TaskAssignees,
		PickupLocation:    conf.VIP.PickupLocation,
	}, a.store.NewID)

	a.server = web.NewServer(web.Deps{
		Config:   conf,
		Store:    a.store,
		Workflow: workflow,
		Calendar: a.calendar,
		Pricing:  resolver,
	})
	return a, nil
}

func newHolidayLoader(conf *config.Config) *holiday.Loader {
	l := &holiday.Loader{
		Inline:  conf.Holidays.Entries,
		Fetcher: holiday.NewFetcher(conf.CacheDir),
	}
	for _, f := range conf.Holidays.Files {
		l.Files = append(l.Files, holiday.File{Path: f.Path, Classification: f.Classification})
	}
	for _, f := range conf.Holidays.Feeds {
		l.Feeds = append(l.Feeds, holiday.Feed{
			ID:             f.ID,
			URL:            f.URL,
			Classification: f.Classification,
		})
	}
	return l
}

// seedRooms loads the configured inventory into an empty store.
func (a *app) seedRooms(ctx context.Context) error {
	if len(a.conf.Rooms) == 0 || len(a.store.Snapshot().Rooms) > 0 {
		return nil
	}
	err := a.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		for _, r := range a.conf.Rooms {
			if _, err := tx.AddRoom(r); err != nil {
				return fmt.Errorf("seed room %s: %w", r.RoomNumber, err)
			}
		}
		return nil
	})
	if err == nil {
		appLog.Info("room inventory seeded", "rooms", len(a.conf.Rooms))
	}
	return err
}

// startScheduler runs the day-rollover and holiday-refresh jobs.
func (a *app) startScheduler(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(a.conf.DayRolloverCron, func() {
		appLog.Info("day rollover, clearing month views")
		a.server.InvalidateCalendar()
	}); err != nil {
		return nil, fmt.Errorf("day_rollover_cron: %w", err)
	}

	if _, err := c.AddFunc(a.conf.HolidayRefreshCron, func() {
		if err := a.loader.Refresh(ctx, a.holidays); err != nil {
			appLog.Warn("holiday refresh finished with errors", "err", err)
		}
		a.server.InvalidateCalendar()
	}); err != nil {
		return nil, fmt.Errorf("holiday_refresh_cron: %w", err)
	}

	c.Start()
	appLog.Info("scheduler started",
		"day_rollover", a.conf.DayRolloverCron,
		"holiday_refresh", a.conf.HolidayRefreshCron,
	)
	return c, nil
}

type monthDump struct {
	Context string              `json:"context"`
	Cells   []*calendar.DayCell `json:"cells"`
}

// dumpCurrentMonth writes the current month of every context as JSON.
func (a *app) dumpCurrentMonth(w io.Writer) error {
	now := time.Now()
	snap := a.store.Snapshot()
	in := calendar.Inputs{Events: snap.Events, Meetings: snap.Meetings, Members: snap.Members}

	out := make([]monthDump, 0, len(a.conf.Contexts))
	for _, ctxKey := range a.conf.Contexts {
		cells, err := a.calendar.BuildMonthView(now.Year(), now.Month(), ctxKey, in)
		if err != nil {
			return err
		}
		out = append(out, monthDump{Context: ctxKey, Cells: cells})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (a *app) Close() {
	if a.persister == nil {
		return
	}
	if err := a.persister.Close(); err != nil {
		appLog.Error("closing sqlite", err)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./venueops.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load holidays, print the current month view of every context and exit")

	flag.Parse()

	return cfg
}
