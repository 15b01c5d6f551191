package services

import (
	"context"
	"time"

	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	messagebrokerdto "ride-dispatch/internal/dispatch-service/core/domain/message_broker_dto"
	websocketdto "ride-dispatch/internal/dispatch-service/core/domain/websocket_dto"
	"ride-dispatch/internal/dispatch-service/core/ports"

	"github.com/google/uuid"
)

// Fanout routes events to exactly the parties with standing: the order's
// client, its assigned driver, offered drivers, or every connected client
// for the live-map broadcast. Delivery is fire-and-forget; a disconnected
// target simply misses the push and re-fetches state on reconnect.
// Lifecycle events are additionally published to the broker for globally
// subscribed dashboards.
type Fanout struct {
	mylog    mylogger.Logger
	registry ports.IRegistry
	broker   ports.IDispatchBroker
}

func NewFanout(log mylogger.Logger, registry ports.IRegistry, broker ports.IDispatchBroker) *Fanout {
	return &Fanout{
		mylog:    log,
		registry: registry,
		broker:   broker,
	}
}

func (f *Fanout) OfferOrder(driverID string, o model.Order) {
	f.toDriver(driverID, websocketdto.OutOrderAvailable, orderSummary(o))
}

func (f *Fanout) RetractOffer(driverIDs []string, orderID string) {
	for _, id := range driverIDs {
		f.toDriver(id, websocketdto.OutOrderTaken, websocketdto.OrderTaken{OrderID: orderID})
	}
}

func (f *Fanout) OrderAccepted(ctx context.Context, o model.Order, d model.Driver) {
	f.toClient(o.ClientID, websocketdto.OutOrderAccepted, websocketdto.DriverSummary{
		OrderID:  o.ID,
		DriverID: d.ID,
		Name:     d.Name,
		CarClass: string(d.CarClass),
		Rating:   d.Rating,
	})
	f.publishStatus(ctx, o)
}

func (f *Fanout) OrderStatus(ctx context.Context, o model.Order) {
	update := websocketdto.OrderStatusUpdate{OrderID: o.ID, Status: o.Status}
	f.toClient(o.ClientID, websocketdto.OutOrderStatus, update)
	f.publishStatus(ctx, o)
}

func (f *Fanout) OrderCompleted(ctx context.Context, o model.Order) {
	done := websocketdto.OrderCompleted{OrderID: o.ID, FinalPrice: o.FinalPrice}
	f.toClient(o.ClientID, websocketdto.OutOrderCompleted, done)
	f.toDriver(o.DriverID, websocketdto.OutOrderCompleted, done)
	f.publishStatus(ctx, o)
}

// OrderCancelled tells the party that did not initiate the cancellation;
// the initiator already has the sync response in hand. An admin
// cancellation informs both sides.
func (f *Fanout) OrderCancelled(ctx context.Context, o model.Order) {
	cancelled := websocketdto.OrderCancelled{
		OrderID:     o.ID,
		CancelledBy: o.CancelledBy,
		Reason:      o.CancelReason,
	}
	if o.CancelledBy != model.CancelledByClient {
		f.toClient(o.ClientID, websocketdto.OutOrderCancelled, cancelled)
	}
	if o.DriverID != "" && o.CancelledBy != model.CancelledByDriver {
		f.toDriver(o.DriverID, websocketdto.OutOrderCancelled, cancelled)
	}
	f.publishStatus(ctx, o)
}

// DriverLocation is the targeted per-order push, distinct from the global
// live-map broadcast.
func (f *Fanout) DriverLocation(o model.Order, lat, lng float64) {
	f.toClient(o.ClientID, websocketdto.OutLocationUpdate, websocketdto.DriverLocationUpdate{
		OrderID:   o.ID,
		Latitude:  lat,
		Longitude: lng,
	})
}

func (f *Fanout) BroadcastDriverLocations(positions []ports.DriverPosition) {
	payload := make([]websocketdto.DriverPosition, 0, len(positions))
	for _, p := range positions {
		payload = append(payload, websocketdto.DriverPosition{
			DriverID:  p.DriverID,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		})
	}

	event, err := websocketdto.NewEvent(websocketdto.OutDriversMap, payload)
	if err != nil {
		f.mylog.Action("BroadcastDriverLocations").Error("cannot marshal payload", err)
		return
	}
	for _, id := range f.registry.ConnectedClientIDs() {
		if ch, ok := f.registry.LookupClient(id); ok {
			ch.Send(event)
		}
	}
}

func (f *Fanout) toDriver(driverID, eventType string, payload any) {
	ch, ok := f.registry.LookupDriver(driverID)
	if !ok {
		return
	}
	event, err := websocketdto.NewEvent(eventType, payload)
	if err != nil {
		f.mylog.Action("toDriver").Error("cannot marshal payload", err, "type", eventType)
		return
	}
	ch.Send(event)
}

func (f *Fanout) toClient(userID, eventType string, payload any) {
	ch, ok := f.registry.LookupClient(userID)
	if !ok {
		return
	}
	event, err := websocketdto.NewEvent(eventType, payload)
	if err != nil {
		f.mylog.Action("toClient").Error("cannot marshal payload", err, "type", eventType)
		return
	}
	ch.Send(event)
}

func (f *Fanout) publishStatus(ctx context.Context, o model.Order) {
	if f.broker == nil {
		return
	}
	msg := messagebrokerdto.OrderStatus{
		OrderID:       o.ID,
		Status:        o.Status,
		DriverID:      o.DriverID,
		ClientID:      o.ClientID,
		FinalPrice:    o.FinalPrice,
		CancelledBy:   o.CancelledBy,
		Reason:        o.CancelReason,
		Timestamp:     time.Now().Format(time.RFC3339),
		CorrelationID: "req_" + uuid.NewString(),
	}
	if err := f.broker.PublishOrderStatus(ctx, msg); err != nil {
		f.mylog.Action("publishStatus").Error("cannot publish lifecycle event", err, "order_id", o.ID)
	}
}

func orderSummary(o model.Order) websocketdto.OrderSummary {
	return websocketdto.OrderSummary{
		OrderID:       o.ID,
		PickupLat:     o.Pickup.Latitude,
		PickupLng:     o.Pickup.Longitude,
		PickupAddress: o.Pickup.Address,
		DropoffLat:    o.Dropoff.Latitude,
		DropoffLng:    o.Dropoff.Longitude,
		DropoffAddr:   o.Dropoff.Address,
		DistanceKm:    o.DistanceKm,
		Price:         o.Price,
		CarClass:      string(o.CarClass),
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
	}
}
