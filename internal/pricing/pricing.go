// Package pricing maps room tiers and stay lengths to projected prices.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"venueops/internal/apperr"
	appLog "venueops/internal/log"
	"venueops/internal/model"
)

// ErrUnknownTier is returned by a strict resolver for tiers it has no price for.
var ErrUnknownTier = errors.New("pricing: unknown tier")

// Tier is a named room category with a nightly unit price.
type Tier struct {
	Name        string `yaml:"name" json:"name"`
	NightlyRate int64  `yaml:"nightly_rate" json:"nightly_rate"`
	Floor       int    `yaml:"floor" json:"floor"`
}

// Resolver prices stays. It is immutable after construction.
type Resolver struct {
	tiers  map[string]Tier
	order  []string
	strict bool
}

// NewResolver builds a resolver. Tier names are matched case-insensitively.
// In strict mode unknown tiers fail instead of pricing at zero.
func NewResolver(tiers []Tier, strict bool) (*Resolver, error) {
	r := &Resolver{tiers: make(map[string]Tier, len(tiers)), strict: strict}
	for _, t := range tiers {
		key := tierKey(t.Name)
		if key == "" {
			return nil, errors.New("pricing: tier name is required")
		}
		if t.NightlyRate < 0 {
			return nil, fmt.Errorf("pricing: tier %q has negative rate", t.Name)
		}
		if _, dup := r.tiers[key]; dup {
			return nil, fmt.Errorf("pricing: duplicate tier %q", t.Name)
		}
		r.tiers[key] = t
		r.order = append(r.order, key)
	}
	return r, nil
}

func tierKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Tiers returns the configured tiers in declaration order.
func (r *Resolver) Tiers() []Tier {
	out := make([]Tier, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.tiers[k])
	}
	return out
}

// UnitPrice returns the nightly rate of tier. ok is false for unknown tiers.
func (r *Resolver) UnitPrice(tier string) (int64, bool) {
	t, ok := r.tiers[tierKey(tier)]
	return t.NightlyRate, ok
}

// Price is max(1, nights) * unitPrice(tier). Unknown tiers price at 0
// unless the resolver is strict.
func (r *Resolver) Price(tier string, nights int) (int64, error) {
	unit, ok := r.UnitPrice(tier)
	if !ok {
		if r.strict {
			return 0, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
		}
		appLog.Debug("pricing unknown tier, falling back to zero", "tier", tier)
		return 0, nil
	}
	return int64(max(1, nights)) * unit, nil
}

// Nights is max(1, ceil(checkOut - checkIn)) in days. Same-day stays bill
// one night; reversed ranges never go below one either.
func Nights(checkIn, checkOut string) (int, error) {
	vErr := &apperr.ValidationError{}
	in, err := time.Parse(model.DateLayout, checkIn)
	if err != nil {
		vErr.Add("check_in", "must be an ISO date")
	}
	out, err := time.Parse(model.DateLayout, checkOut)
	if err != nil {
		vErr.Add("check_out", "must be an ISO date")
	}
	if vErr.HasErrors() {
		return 0, vErr
	}
	days := int(math.Ceil(out.Sub(in).Hours() / 24))
	return max(1, days), nil
}

// Projection prices a stay of tier between two ISO dates.
func (r *Resolver) Projection(tier, checkIn, checkOut string) (int64, error) {
	nights, err := Nights(checkIn, checkOut)
	if err != nil {
		return 0, err
	}
	return r.Price(tier, nights)
}
