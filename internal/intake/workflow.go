// Package intake authorizes cross-domain artist-booking signals and turns
// each one into a residency protocol, a VIP booking and an operations task.
//
// The workflow is pure: Stage derives defaults, Commit returns a Bundle of
// new entity values. Applying a bundle atomically is the host's job (see
// store.Store.CommitSignal, which runs store.Tx.Apply under the write lock).
package intake

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"venueops/internal/apperr"
	"venueops/internal/model"
)

// DefaultRider replaces an empty rider list; a protocol never stores an empty rider.
var DefaultRider = []string{"Standard VIP Refreshments", "Premium Security Escort"}

const (
	defaultVipTier     = "The Sanctuary"
	defaultPickupTime  = "14:00"
	defaultTaskTitle   = "VIP Arrival"
	bookingSource      = "Artist Management"
	paymentPending     = "pending"
	defaultPickupPlace = "Private Aviation Terminal"
)

// Config holds deployment defaults for staging and commit.
type Config struct {
	VipTier           string
	DefaultPickupTime string
	DefaultRider      []string
	OperationsContext string
	TaskCategory      string
	TaskAssignees     []string
	PickupLocation    string
	DefaultEntourage  int
}

// Ledger answers whether a provenance key was already materialized.
// It lets Commit refuse duplicates even when the acknowledgment flag it
// was handed is stale.
type Ledger interface {
	HasProvenance(key string) bool
}

// IDGenerator issues unique ids for spawned entities.
type IDGenerator func() string

// Staged is the side-effect free derivation shown to an operator.
type Staged struct {
	SignalID          string `json:"signal_id"`
	DefaultRoomID     string `json:"default_room_id,omitempty"`
	DefaultPickupTime string `json:"default_pickup_time"`
}

// Bundle is the all-or-nothing set of mutations produced by Commit.
type Bundle struct {
	Protocol             model.VipResidencyProtocol `json:"protocol"`
	Booking              model.Booking              `json:"booking"`
	Task                 model.OperationalTask      `json:"task"`
	Signal               model.CrossDomainSignal    `json:"signal"`
	AcknowledgedSignalID string                     `json:"acknowledged_signal_id"`
}

// Provenance returns the idempotency key shared by every entity in the bundle.
func (b Bundle) Provenance() string {
	return model.SignalProvenance(b.AcknowledgedSignalID)
}

// Workflow stages and commits signals.
type Workflow struct {
	cfg   Config
	newID IDGenerator
}

// NewWorkflow fills unset config fields with defaults.
func NewWorkflow(cfg Config, newID IDGenerator) *Workflow {
	if strings.TrimSpace(cfg.VipTier) == "" {
		cfg.VipTier = defaultVipTier
	}
	if _, err := time.Parse(model.ClockLayout, cfg.DefaultPickupTime); err != nil {
		cfg.DefaultPickupTime = defaultPickupTime
	}
	if len(cfg.DefaultRider) == 0 {
		cfg.DefaultRider = DefaultRider
	}
	if cfg.OperationsContext == "" {
		cfg.OperationsContext = model.ContextHotel
	}
	if cfg.TaskCategory == "" {
		cfg.TaskCategory = "VIP Operations"
	}
	if cfg.PickupLocation == "" {
		cfg.PickupLocation = defaultPickupPlace
	}
	if newID == nil {
		newID = func() string { return "" }
	}
	return &Workflow{cfg: cfg, newID: newID}
}

// Pending lists unacknowledged artist-booking signals in input order.
func Pending(signals []model.CrossDomainSignal) []model.CrossDomainSignal {
	out := make([]model.CrossDomainSignal, 0)
	for _, s := range signals {
		if !s.Acknowledged && s.Type == model.SignalArtistBooking {
			out = append(out, s)
		}
	}
	return out
}

// Stage derives the default room and pickup time for a signal. Room
// priority: first room of the VIP tier, first VIP-capable room, first room
// in inventory, none.
func (w *Workflow) Stage(signal model.CrossDomainSignal, rooms []model.Room) Staged {
	return Staged{
		SignalID:          signal.ID,
		DefaultRoomID:     w.defaultRoom(rooms),
		DefaultPickupTime: w.cfg.DefaultPickupTime,
	}
}

func (w *Workflow) defaultRoom(rooms []model.Room) string {
	for _, r := range rooms {
		if strings.EqualFold(strings.TrimSpace(r.Type), w.cfg.VipTier) {
			return r.ID
		}
	}
	for _, r := range rooms {
		if r.IsVipRoom {
			return r.ID
		}
	}
	if len(rooms) > 0 {
		return rooms[0].ID
	}
	return ""
}

// Commit validates the operator's choices and builds the bundle. Nothing
// is returned on error, and the caller's signal value is never modified.
func (w *Workflow) Commit(signal model.CrossDomainSignal, roomID, pickupTime string, rooms []model.Room, ledger Ledger) (Bundle, error) {
	if signal.Acknowledged {
		return Bundle{}, apperr.Conflict("signal %s already acknowledged", signal.ID)
	}
	if ledger != nil && ledger.HasProvenance(model.SignalProvenance(signal.ID)) {
		return Bundle{}, apperr.Conflict("signal %s already materialized", signal.ID)
	}

	room, err := w.validate(signal, roomID, pickupTime, rooms)
	if err != nil {
		return Bundle{}, err
	}

	p := signal.Payload
	provenance := model.SignalProvenance(signal.ID)
	rider := riderOrDefault(p.Rider, w.cfg.DefaultRider)
	entourage := p.EntourageSize
	if entourage <= 0 {
		entourage = w.cfg.DefaultEntourage
	}
	artist := strings.TrimSpace(p.ArtistName)

	protocol := model.VipResidencyProtocol{
		ID:                 w.newID(),
		ArtistID:           artistID(artist),
		Rider:              rider,
		AssignedRoomNumber: room.RoomNumber,
		TransportSchedule: []model.TransportLeg{{
			Time: pickupTime,
			From: w.cfg.PickupLocation,
			To:   fmt.Sprintf("%s (Room %s)", room.Type, room.RoomNumber),
		}},
		SecurityRequired:   true,
		EntourageSize:      entourage,
		HospitalityGifting: gifting(p.SourceBrand),
		PrivacyNotes:       fmt.Sprintf("Strict confidentiality for %s; no public listing of room %s.", artist, room.RoomNumber),
		Provenance:         provenance,
	}

	booking := model.Booking{
		ID:              w.newID(),
		GuestName:       artist,
		GuestEmail:      p.ManagementEmail,
		GuestPhone:      p.ManagementPhone,
		CheckIn:         p.EventDate,
		CheckOut:        p.EventDate,
		Pax:             1 + entourage,
		Source:          bookingSource,
		IsVip:           true,
		RoomID:          room.ID,
		InternalTable:   room.Type,
		PaymentStatus:   paymentPending,
		SpecialRequests: strings.Join(rider, "; "),
		Provenance:      provenance,
	}

	task := model.OperationalTask{
		ID:    w.newID(),
		Title: fmt.Sprintf("%s: %s", defaultTaskTitle, artist),
		Description: fmt.Sprintf("Rider: %s. Pickup at %s from %s. Room %s.",
			strings.Join(rider, ", "), pickupTime, w.cfg.PickupLocation, room.RoomNumber),
		Status:     model.StatusTodo,
		Priority:   model.PriorityCritical,
		Category:   w.cfg.TaskCategory,
		Assignees:  append([]string{}, w.cfg.TaskAssignees...),
		DueDate:    p.EventDate,
		Context:    w.cfg.OperationsContext,
		Progress:   0,
		Provenance: provenance,
	}

	acked := signal
	acked.Acknowledged = true
	acked.Payload.Rider = append([]string(nil), signal.Payload.Rider...)

	return Bundle{
		Protocol:             protocol,
		Booking:              booking,
		Task:                 task,
		Signal:               acked,
		AcknowledgedSignalID: signal.ID,
	}, nil
}

func (w *Workflow) validate(signal model.CrossDomainSignal, roomID, pickupTime string, rooms []model.Room) (model.Room, error) {
	vErr := &apperr.ValidationError{}
	if signal.Type != model.SignalArtistBooking {
		vErr.Add("type", fmt.Sprintf("signal type %q cannot be committed", signal.Type))
	}
	if strings.TrimSpace(signal.Payload.ArtistName) == "" {
		vErr.Add("artist_name", "artist name is required")
	}
	if _, err := time.Parse(model.DateLayout, signal.Payload.EventDate); err != nil {
		vErr.Add("event_date", "event date must be an ISO date")
	}
	if _, err := time.Parse(model.ClockLayout, pickupTime); err != nil {
		vErr.Add("pickup_time", "pickup time must be HH:MM")
	}

	var room model.Room
	if strings.TrimSpace(roomID) == "" {
		vErr.Add("room_id", "a room must be selected")
	} else {
		found := false
		for _, r := range rooms {
			if r.ID == roomID {
				room, found = r, true
				break
			}
		}
		if !found {
			vErr.Add("room_id", "room does not exist")
		}
	}
	return room, vErr.OrNil()
}

func riderOrDefault(rider, fallback []string) []string {
	out := make([]string, 0, len(rider))
	for _, r := range rider {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return append([]string{}, fallback...)
	}
	return out
}

func gifting(brand string) string {
	if strings.TrimSpace(brand) == "" {
		return "Signature welcome amenity"
	}
	return "Signature welcome amenity co-branded with " + strings.TrimSpace(brand)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func artistID(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	return "artist-" + slug
}
