package model

// Entities shared by the aggregator, the intake workflow and the host store.
// All dates are ISO calendar dates ("2006-01-02") in the single local zone;
// birthdays are year-less "01-02" keys.

const (
	DateLayout     = "2006-01-02"
	BirthdayLayout = "01-02"
	ClockLayout    = "15:04"
)

// Contexts partition the shared calendar surface between business domains.
const (
	ContextHotel  = "hotel"
	ContextEvents = "events"
)

// HolidayClass is the classification attached to a holiday entry.
type HolidayClass string

const (
	HolidayOfficial HolidayClass = "official"
	HolidayObserved HolidayClass = "observed"
	HolidayCultural HolidayClass = "cultural"
	HolidayBirthday HolidayClass = "birthday"
	HolidayWellness HolidayClass = "wellness"
)

// Valid reports whether c is one of the known classifications.
func (c HolidayClass) Valid() bool {
	switch c {
	case HolidayOfficial, HolidayObserved, HolidayCultural, HolidayBirthday, HolidayWellness:
		return true
	}
	return false
}

// Holiday is a year-bound entry of the holiday table.
type Holiday struct {
	Date           string       `json:"date" yaml:"date"`
	Name           string       `json:"name" yaml:"name"`
	Classification HolidayClass `json:"classification" yaml:"classification"`
}

// Event is a one-off calendar entry owned by a domain.
type Event struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	Context string `json:"context"`
}

// RecurrenceType describes how a meeting repeats. It is descriptive unless
// recurrence expansion is enabled on the aggregator.
type RecurrenceType string

const (
	RecurrenceNone    RecurrenceType = "none"
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceYearly  RecurrenceType = "yearly"
)

// Meeting is an internal meeting; exactly one version exists per ID.
type Meeting struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Date           string         `json:"date"`
	StartTime      string         `json:"start_time"`
	EndTime        string         `json:"end_time"`
	Type           string         `json:"type"`
	Notes          string         `json:"notes,omitempty"`
	Attendees      []string       `json:"attendees,omitempty"`
	IsRecurring    bool           `json:"is_recurring"`
	RecurrenceType RecurrenceType `json:"recurrence_type"`
	Context        string         `json:"context"`
}

// TeamMember is a roster entry; Birthday is "MM-DD".
type TeamMember struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Birthday string `json:"birthday"`
}

// Room statuses observed by the core. Transitions are owned by housekeeping.
const (
	RoomVacantClean = "vacant-clean"
	RoomVacantDirty = "vacant-dirty"
	RoomOccupied    = "occupied"
	RoomMaintenance = "maintenance"
)

// Room is an inventory entry. The core filters rooms but never mutates them.
type Room struct {
	ID         string `json:"id" yaml:"id"`
	RoomNumber string `json:"room_number" yaml:"room_number"`
	Type       string `json:"type" yaml:"type"`
	Floor      int    `json:"floor" yaml:"floor"`
	Status     string `json:"status" yaml:"status"`
	IsVipRoom  bool   `json:"is_vip_room" yaml:"is_vip_room"`
}

// Booking is a guest stay. RoomID is empty until check-in.
type Booking struct {
	ID              string `json:"id"`
	GuestName       string `json:"guest_name"`
	GuestEmail      string `json:"guest_email,omitempty"`
	GuestPhone      string `json:"guest_phone,omitempty"`
	CheckIn         string `json:"check_in"`
	CheckOut        string `json:"check_out"`
	Pax             int    `json:"pax"`
	Source          string `json:"source"`
	IsVip           bool   `json:"is_vip"`
	RoomID          string `json:"room_id,omitempty"`
	InternalTable   string `json:"internal_table"`
	PaymentStatus   string `json:"payment_status"`
	SpecialRequests string `json:"special_requests,omitempty"`
	Provenance      string `json:"provenance,omitempty"`
}

// TransportLeg is one entry of a residency transport schedule.
type TransportLeg struct {
	Time string `json:"time"`
	From string `json:"from"`
	To   string `json:"to"`
}

// VipResidencyProtocol captures security, transport and hospitality needs
// for an artist stay. Rider is never empty.
type VipResidencyProtocol struct {
	ID                 string         `json:"id"`
	ArtistID           string         `json:"artist_id"`
	Rider              []string       `json:"rider"`
	AssignedRoomNumber string         `json:"assigned_room_number"`
	TransportSchedule  []TransportLeg `json:"transport_schedule"`
	SecurityRequired   bool           `json:"security_required"`
	EntourageSize      int            `json:"entourage_size"`
	HospitalityGifting string         `json:"hospitality_gifting"`
	PrivacyNotes       string         `json:"privacy_notes"`
	Provenance         string         `json:"provenance"`
}

// SignalArtistBooking is the only signal type the intake workflow consumes.
const SignalArtistBooking = "artist-booking"

// SignalPayload is the producer supplied body of a cross-domain signal.
type SignalPayload struct {
	ArtistName      string   `json:"artist_name"`
	EventDate       string   `json:"event_date"`
	ManagementEmail string   `json:"management_email,omitempty"`
	ManagementPhone string   `json:"management_phone,omitempty"`
	Rider           []string `json:"rider,omitempty"`
	SourceBrand     string   `json:"source_brand,omitempty"`
	EntourageSize   int      `json:"entourage_size,omitempty"`
}

// CrossDomainSignal is a notification from another domain awaiting
// operator authorization.
type CrossDomainSignal struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Acknowledged bool          `json:"acknowledged"`
	Payload      SignalPayload `json:"payload"`
}

// Task priorities and statuses used by the operations board.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"

	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

// OperationalTask is an item on the operations board.
type OperationalTask struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	Assignees   []string `json:"assignees"`
	DueDate     string   `json:"due_date"`
	Context     string   `json:"context"`
	Progress    int      `json:"progress"`
	Provenance  string   `json:"provenance,omitempty"`
}

// MaintenanceTicket is a housekeeping or engineering work order.
type MaintenanceTicket struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
	Status      string `json:"status"`
	IsRecurring bool   `json:"is_recurring"`
}

// SignalProvenance is the idempotency key stamped on every entity spawned
// from a signal.
func SignalProvenance(signalID string) string {
	return "signal:" + signalID
}
