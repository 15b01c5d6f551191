package ports

import (
	"context"
	"time"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
)

// OrderPatch carries the fields a single transition is allowed to touch.
// Nil pointers are left untouched by the store.
type OrderPatch struct {
	Status       string
	DriverID     *string
	FinalPrice   *float64
	DurationMin  *float64
	AcceptedAt   *time.Time
	ArrivedAt    *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason *string
	CancelledBy  *string
}

type IOrdersRepo interface {
	GetOrder(ctx context.Context, orderID string) (model.Order, error)

	// UpdateOrderStatus applies patch only while the stored status still
	// equals expected. The ok result is the single source of truth for
	// concurrent transition races.
	UpdateOrderStatus(ctx context.Context, orderID, expected string, patch OrderPatch) (bool, error)

	AppendStatusHistory(ctx context.Context, orderID, status, comment string) error

	FindActiveByClient(ctx context.Context, clientID string) (model.Order, error)
	FindActiveByDriver(ctx context.Context, driverID string) (model.Order, error)

	// FindPendingOrders returns the most recent PENDING orders, newest
	// first, bounded by limit.
	FindPendingOrders(ctx context.Context, limit int) ([]model.Order, error)
}

type IDriversRepo interface {
	GetDriver(ctx context.Context, driverID string) (model.Driver, error)
	UpdateDriverStatus(ctx context.Context, driverID, status string) error
	UpdateDriverLocation(ctx context.Context, driverID string, lat, lng float64, at time.Time) error
	FindDriversByStatus(ctx context.Context, status string) ([]model.Driver, error)

	// ApplyTripCompletion flips the driver back ONLINE, bumps the trip
	// counter and adds the fare to lifetime earnings in one statement.
	ApplyTripCompletion(ctx context.Context, driverID string, earnings float64) error
}

type IPaymentsRepo interface {
	CreatePayment(ctx context.Context, p model.Payment) error
}

type IReviewsRepo interface {
	AddReview(ctx context.Context, r model.Review) error
	RatingsFor(ctx context.Context, targetID string) ([]int, error)
	SetRating(ctx context.Context, targetID string, rating float64) error
}
