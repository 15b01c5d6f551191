package model

import "time"

const (
	StatusPending    = "PENDING"
	StatusAccepted   = "ACCEPTED"
	StatusArrived    = "ARRIVED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

const (
	PaymentMethodCash = "CASH"
	PaymentMethodCard = "CARD"

	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
)

const (
	CancelledByClient = "client"
	CancelledByDriver = "driver"
	CancelledByAdmin  = "admin"
)

// nextStatuses encodes the whole lifecycle. CANCELLED is reachable from
// PENDING, ACCEPTED and ARRIVED only: an in-progress trip must end via
// COMPLETED.
var nextStatuses = map[string][]string{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusArrived, StatusCancelled},
	StatusArrived:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func IsValidStatus(s string) bool {
	_, ok := nextStatuses[s]
	return ok
}

func IsTerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from->to is a legal lifecycle step.
func CanTransition(from, to string) bool {
	for _, s := range nextStatuses[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Address   string  `json:"address,omitempty"`
}

type Order struct {
	ID            string
	ClientID      string
	DriverID      string // empty until ACCEPTED
	Pickup        Location
	Dropoff       Location
	DistanceKm    float64
	DurationMin   float64
	Price         float64
	FinalPrice    float64
	CarClass      CarClass
	PaymentMethod string
	Status        string

	CreatedAt   time.Time
	AcceptedAt  *time.Time
	ArrivedAt   *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	CancelReason string
	CancelledBy  string
}

// StatusHistory is the append-only audit trail, one row per transition.
type StatusHistory struct {
	OrderID   string
	Status    string
	Comment   string
	CreatedAt time.Time
}

type Payment struct {
	ID      string
	OrderID string
	UserID  string
	Amount  float64
	Method  string
	Status  string
}
