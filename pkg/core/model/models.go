package model

import "time"

// Priority ranks a suitable time range. Higher values are allocated first.
type Priority int

const (
	PrioritySecondary Priority = 200
	PriorityPrimary   Priority = 300
)

func (p Priority) IsValid() bool {
	return p == PriorityPrimary || p == PrioritySecondary
}

func (p Priority) String() string {
	switch p {
	case PriorityPrimary:
		return "PRIMARY"
	case PrioritySecondary:
		return "SECONDARY"
	}
	return "UNKNOWN"
}

// ApplicationRound is a seasonal call for applications
type ApplicationRound struct {
	ID                     string
	Name                   string
	ApplicationPeriodBegin time.Time
	ApplicationPeriodEnd   time.Time
	ReservationPeriodBegin time.Time
	ReservationPeriodEnd   time.Time
	HandledDate            *time.Time
	SentDate               *time.Time
}

// Application is one applicant's submission to a round
type Application struct {
	ID             string
	RoundID        string
	ApplicantName  string
	Organisation   *Organisation
	ContactPerson  *Person
	BillingAddress *Address
	CancelledDate  *time.Time
	SentDate       *time.Time
	CreatedAt      time.Time
}

type Organisation struct {
	Name               string
	IdentifierNumber   string
	Email              string
	CoreBusinessDetail string
}

type Person struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

func (p Person) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

type Address struct {
	StreetAddress string
	PostCode      string
	City          string
}

// ApplicationSection is one recurring booking need inside an application
type ApplicationSection struct {
	ID                         string
	ApplicationID              string
	Name                       string
	NumPersons                 int
	ReservationMinDuration     time.Duration
	ReservationMaxDuration     time.Duration
	AppliedReservationsPerWeek int
	ReservationsBeginDate      time.Time
	ReservationsEndDate        time.Time
	Biweekly                   bool
	CreatedAt                  time.Time
}

// SuitableTimeRange is an applicant-declared availability window
type SuitableTimeRange struct {
	ID           string
	SectionID    string
	Priority     Priority
	DayOfTheWeek Weekday
	BeginTime    TimeOfDay
	EndTime      TimeOfDay
}

func (r SuitableTimeRange) Range() TimeRange {
	return TimeRange{Begin: r.BeginTime, End: r.EndTime}
}

// ReservationUnitOption is a reservation unit the applicant accepts for a section
type ReservationUnitOption struct {
	ID                string
	SectionID         string
	ReservationUnitID string
	PreferredOrder    int
	Rejected          bool
	Locked            bool
}

// IsUsable reports whether the option may receive new allocations
func (o ReservationUnitOption) IsUsable() bool {
	return !o.Rejected && !o.Locked
}

// AllocatedTimeSlot is the weekly day/time assigned to a section through one option
type AllocatedTimeSlot struct {
	ID           string
	OptionID     string
	SectionID    string
	DayOfTheWeek Weekday
	BeginTime    TimeOfDay
	EndTime      TimeOfDay
}

func (s AllocatedTimeSlot) Range() TimeRange {
	return TimeRange{Begin: s.BeginTime, End: s.EndTime}
}

// ReservationState is the state of a single materialised occurrence
type ReservationState string

const (
	ReservationConfirmed ReservationState = "CONFIRMED"
	ReservationDenied    ReservationState = "DENIED"
)

// RecurringReservation is the series created from exactly one allocated slot
type RecurringReservation struct {
	ID                  string
	AllocatedTimeSlotID string
	ReservationUnitID   string
	Name                string
	BeginDate           time.Time
	EndDate             time.Time
	Weekday             Weekday
	BeginTime           TimeOfDay
	EndTime             TimeOfDay
	Biweekly            bool
	CreatedAt           time.Time
}

// Reservation is one dated occurrence of a series. Reservee fields are copied
// from the application when the series is created and never refreshed.
type Reservation struct {
	ID                     string
	RecurringReservationID string
	ReservationUnitID      string
	Begin                  time.Time
	End                    time.Time
	State                  ReservationState
	DenyReason             string
	NumPersons             int

	ReserveeName         string
	ReserveeOrganisation string
	ReserveeIdentifier   string
	ContactName          string
	ContactEmail         string
	ContactPhone         string
	BillingStreetAddress string
	BillingPostCode      string
	BillingCity          string
}

// OpeningHours is one weekly opening period of a reservation unit
type OpeningHours struct {
	ReservationUnitID string
	DayOfTheWeek      Weekday
	BeginTime         TimeOfDay
	EndTime           TimeOfDay
}

func (h OpeningHours) Range() TimeRange {
	return TimeRange{Begin: h.BeginTime, End: h.EndTime}
}
