// Package holiday holds the year-scoped holiday tables consulted by the
// calendar aggregator. Tables are injected configuration: inline YAML
// entries or iCalendar feeds, loaded per deployment.
package holiday

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"venueops/internal/model"
)

// Registry maps ISO dates to holidays, partitioned by calendar year.
// A date whose year has no loaded table is simply absent.
type Registry struct {
	mu     sync.RWMutex
	tables map[int]map[string]model.Holiday
}

// NewRegistry builds a registry from the given entries.
func NewRegistry(entries ...model.Holiday) (*Registry, error) {
	r := &Registry{tables: make(map[int]map[string]model.Holiday)}
	for _, h := range entries {
		if err := r.Add(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add inserts or replaces a single entry. An empty classification
// defaults to official.
func (r *Registry) Add(h model.Holiday) error {
	h, year, err := normalizeEntry(h)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	table, ok := r.tables[year]
	if !ok {
		table = make(map[string]model.Holiday)
		r.tables[year] = table
	}
	table[h.Date] = h
	return nil
}

// normalizeEntry checks the date and classification of h and returns the
// entry with its default classification applied, plus its table year.
func normalizeEntry(h model.Holiday) (model.Holiday, int, error) {
	day, err := time.Parse(model.DateLayout, h.Date)
	if err != nil {
		return h, 0, fmt.Errorf("holiday %q: invalid date %q: %w", h.Name, h.Date, err)
	}
	if h.Classification == "" {
		h.Classification = model.HolidayOfficial
	}
	if !h.Classification.Valid() {
		return h, 0, fmt.Errorf("holiday %q: unknown classification %q", h.Name, h.Classification)
	}
	return h, day.Year(), nil
}

// ReplaceYear swaps the whole table of one year, e.g. after a feed refresh.
// Entries dated outside year are rejected.
func (r *Registry) ReplaceYear(year int, entries []model.Holiday) error {
	table := make(map[string]model.Holiday, len(entries))
	for _, h := range entries {
		h, y, err := normalizeEntry(h)
		if err != nil {
			return err
		}
		if y != year {
			return fmt.Errorf("holiday %q dated %s is outside table year %d", h.Name, h.Date, year)
		}
		table[h.Date] = h
	}

	r.mu.Lock()
	r.tables[year] = table
	r.mu.Unlock()
	return nil
}

// Lookup returns the holiday for an ISO date, if the year's table has one.
func (r *Registry) Lookup(date string) (model.Holiday, bool) {
	if r == nil || len(date) < 4 {
		return model.Holiday{}, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return model.Holiday{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.tables[year][date]
	return h, ok
}

// Years lists the loaded table years in ascending order.
func (r *Registry) Years() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	years := make([]int, 0, len(r.tables))
	for y := range r.tables {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Len reports the total number of entries across all years.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.tables {
		n += len(t)
	}
	return n
}

// Reload atomically replaces every table with the valid entries. Invalid
// entries are skipped and reported in the joined error; they never block
// the rest of the table.
func (r *Registry) Reload(entries []model.Holiday) error {
	tables, _, err := buildTables(entries)
	r.swap(tables)
	return err
}

func (r *Registry) swap(tables map[int]map[string]model.Holiday) {
	r.mu.Lock()
	r.tables = tables
	r.mu.Unlock()
}

// buildTables partitions entries by year. It returns the number of entries
// accepted and one error per rejected entry.
func buildTables(entries []model.Holiday) (map[int]map[string]model.Holiday, int, error) {
	tables := make(map[int]map[string]model.Holiday)
	var errs []error
	accepted := 0
	for _, h := range entries {
		h, year, err := normalizeEntry(h)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		table, ok := tables[year]
		if !ok {
			table = make(map[string]model.Holiday)
			tables[year] = table
		}
		table[h.Date] = h
		accepted++
	}
	return tables, accepted, errors.Join(errs...)
}
