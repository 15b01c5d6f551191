package ports

import (
	"context"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
)

// IRegistry tracks live channels keyed by domain id. Lookups returning
// ok=false are a normal, frequent condition, not an error.
type IRegistry interface {
	RegisterDriver(ctx context.Context, driverID, userID string, ch Channel)
	RegisterClient(userID string, ch Channel)
	UnregisterByChannel(ctx context.Context, ch Channel)
	LookupDriver(driverID string) (Channel, bool)
	LookupClient(userID string) (Channel, bool)
	ConnectedDriverIDs() []string
	ConnectedClientIDs() []string
	StaleSweep(ctx context.Context)
}

type DriverPosition struct {
	DriverID  string
	Latitude  float64
	Longitude float64
}

type IPresence interface {
	ReportLocation(ctx context.Context, driverID string, lat, lng float64) error
	SetStatus(ctx context.Context, driverID, status string) error
	EligibleDriversFor(ctx context.Context, o model.Order) ([]model.Driver, error)
	Snapshot() []DriverPosition
	// MarkOfflineIfIdle persists OFFLINE unless the driver still has a
	// non-terminal order.
	MarkOfflineIfIdle(ctx context.Context, driverID string) error
}

type IOrdersService interface {
	Accept(ctx context.Context, orderID, driverID string) (model.Order, error)
	Arrive(ctx context.Context, orderID, driverID string) (model.Order, error)
	Start(ctx context.Context, orderID, driverID string) (model.Order, error)
	Complete(ctx context.Context, orderID, driverID string) (model.Order, error)
	Cancel(ctx context.Context, orderID, actorID, actorRole, reason string) (model.Order, error)

	ActiveForClient(ctx context.Context, clientID string) (model.Order, error)
	ActiveForDriver(ctx context.Context, driverID string) (model.Order, error)
	AvailableFor(ctx context.Context, driverID string) ([]model.Order, error)
}

type IMatcher interface {
	Announce(ctx context.Context, orderID string) error
	AttemptAccept(ctx context.Context, orderID, driverID string) (model.Order, error)
	// CatchUp offers still-PENDING recent orders to a freshly registered
	// driver.
	CatchUp(ctx context.Context, driverID string)
}

type IFanout interface {
	OfferOrder(driverID string, o model.Order)
	RetractOffer(driverIDs []string, orderID string)
	OrderAccepted(ctx context.Context, o model.Order, d model.Driver)
	OrderStatus(ctx context.Context, o model.Order)
	OrderCompleted(ctx context.Context, o model.Order)
	OrderCancelled(ctx context.Context, o model.Order)
	DriverLocation(o model.Order, lat, lng float64)
	BroadcastDriverLocations(positions []DriverPosition)
}

type IReviewsService interface {
	SubmitReview(ctx context.Context, orderID, authorID string, rating int, comment string) (float64, error)
}
