package holiday

import (
	"context"
	"errors"
	"fmt"
	"os"

	appLog "venueops/internal/log"
	"venueops/internal/model"
)

// File is a local iCalendar file of holidays.
type File struct {
	Path           string
	Classification model.HolidayClass
}

// Loader gathers holiday entries from every configured source. Inline
// entries come first, then files, then feeds; later entries win on the
// same date when loaded into a Registry.
type Loader struct {
	Inline  []model.Holiday
	Files   []File
	Feeds   []Feed
	Fetcher *Fetcher
}

// Collect returns every entry it could load. A failing source is reported
// in the joined error but does not discard the others.
func (l *Loader) Collect(ctx context.Context) ([]model.Holiday, error) {
	out := append([]model.Holiday{}, l.Inline...)
	var errs []error

	for _, f := range l.Files {
		body, err := os.ReadFile(f.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("holiday file %s: %w", f.Path, err))
			continue
		}
		entries, err := ParseICS(f.Path, body, f.Classification)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, entries...)
	}

	if len(l.Feeds) > 0 && l.Fetcher != nil {
		feeds := make([]Feed, 0, len(l.Feeds))
		for _, f := range l.Feeds {
			if f.ID == "" {
				f.ID = f.URL
			}
			feeds = append(feeds, f)
		}
		results, err := l.Fetcher.LoadAll(ctx, feeds)
		if err != nil {
			errs = append(errs, err)
		}
		for _, res := range results {
			out = append(out, res.Entries...)
		}
	}

	appLog.Info("holiday sources collected",
		"entries", len(out),
		"files", len(l.Files),
		"feeds", len(l.Feeds),
		"errors", len(errs),
	)
	return out, errors.Join(errs...)
}

// Refresh collects and reloads r. Invalid entries are skipped and
// reported; the valid rest still loads. A registry that already holds
// entries keeps them when nothing valid could be collected.
func (l *Loader) Refresh(ctx context.Context, r *Registry) error {
	entries, collectErr := l.Collect(ctx)
	tables, accepted, entryErr := buildTables(entries)
	if entryErr != nil {
		appLog.Warn("holiday entries skipped", "err", entryErr)
	}
	err := errors.Join(collectErr, entryErr)
	if accepted == 0 && err != nil && r.Len() > 0 {
		return fmt.Errorf("holiday refresh kept previous table: %w", err)
	}
	r.swap(tables)
	return err
}
