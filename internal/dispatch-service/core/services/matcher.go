package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	"ride-dispatch/internal/dispatch-service/core/myerrors"
	"ride-dispatch/internal/dispatch-service/core/ports"
)

// catchUpWindow bounds how many recent PENDING orders a reconnecting driver
// is offered, so a long backlog is never replayed wholesale.
const catchUpWindow = 10

// Matcher announces new orders to eligible drivers and resolves the
// first-acceptor race. It keeps no authority over order state: the state
// machine's conditional write decides the winner, the matcher only remembers
// who was offered what so it can retract.
type Matcher struct {
	mylog mylogger.Logger

	orders   ports.IOrdersRepo
	service  ports.IOrdersService
	presence ports.IPresence
	drivers  ports.IDriversRepo
	fanout   ports.IFanout

	mu      sync.Mutex
	offered map[string]map[string]struct{} // orderID -> offered driver ids
}

func NewMatcher(
	log mylogger.Logger,
	orders ports.IOrdersRepo,
	service ports.IOrdersService,
	presence ports.IPresence,
	drivers ports.IDriversRepo,
	fanout ports.IFanout,
) *Matcher {
	return &Matcher{
		mylog:    log,
		orders:   orders,
		service:  service,
		presence: presence,
		drivers:  drivers,
		fanout:   fanout,
		offered:  make(map[string]map[string]struct{}),
	}
}

// Announce pushes an offer for a PENDING order to every eligible connected
// driver. An order with no eligible driver is not an error: it simply waits
// for the next registration catch-up.
func (m *Matcher) Announce(ctx context.Context, orderID string) error {
	log := m.mylog.Action("Announce")

	order, err := m.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.StatusPending {
		return fmt.Errorf("%w: order %s is %s", myerrors.ErrConflict, orderID, order.Status)
	}

	eligible, err := m.presence.EligibleDriversFor(ctx, order)
	if err != nil {
		return err
	}
	if len(eligible) == 0 {
		log.Info("no eligible drivers", "order_id", orderID, "car_class", order.CarClass)
		return nil
	}

	for _, d := range eligible {
		m.fanout.OfferOrder(d.ID, order)
		m.rememberOffer(orderID, d.ID)
	}

	log.Info("order announced", "order_id", orderID, "offered_to", len(eligible))
	return nil
}

// AttemptAccept delegates the race to the state machine. On a win the
// retraction goes out to every other previously offered driver, best-effort.
func (m *Matcher) AttemptAccept(ctx context.Context, orderID, driverID string) (model.Order, error) {
	order, err := m.service.Accept(ctx, orderID, driverID)
	if err != nil {
		if errors.Is(err, myerrors.ErrConflict) {
			// lost the race; nothing to retract on our side
			m.forgetOffer(orderID, driverID)
		}
		return model.Order{}, err
	}

	losers := m.takeOffered(orderID, driverID)
	if len(losers) > 0 {
		m.fanout.RetractOffer(losers, orderID)
	}
	return order, nil
}

// CatchUp offers still-PENDING recent orders to a driver that just
// (re)connected, so registering late does not mean missing open work.
func (m *Matcher) CatchUp(ctx context.Context, driverID string) {
	log := m.mylog.Action("CatchUp")

	driver, err := m.drivers.GetDriver(ctx, driverID)
	if err != nil {
		log.Error("cannot load driver", err, "driver_id", driverID)
		return
	}
	if !driver.Verified || driver.Status != model.DriverOnline {
		return
	}

	pending, err := m.orders.FindPendingOrders(ctx, catchUpWindow)
	if err != nil {
		log.Error("cannot list pending orders", err)
		return
	}

	for _, o := range pending {
		if !driver.CarClass.CanServe(o.CarClass) {
			continue
		}
		m.fanout.OfferOrder(driverID, o)
		m.rememberOffer(o.ID, driverID)
	}
}

// Abandon clears offer bookkeeping for an order that left PENDING without
// an accept, e.g. a client-side cancellation, and retracts the stale offer
// from every driver still holding it.
func (m *Matcher) Abandon(orderID string) {
	losers := m.takeOffered(orderID, "")
	if len(losers) > 0 {
		m.fanout.RetractOffer(losers, orderID)
	}
}

func (m *Matcher) rememberOffer(orderID, driverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.offered[orderID]
	if !ok {
		set = make(map[string]struct{})
		m.offered[orderID] = set
	}
	set[driverID] = struct{}{}
}

func (m *Matcher) forgetOffer(orderID, driverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.offered[orderID]; ok {
		delete(set, driverID)
	}
}

// takeOffered removes the order's offer set and returns it minus the winner.
func (m *Matcher) takeOffered(orderID, winner string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.offered[orderID]
	if !ok {
		return nil
	}
	delete(m.offered, orderID)

	var ids []string
	for id := range set {
		if id != winner {
			ids = append(ids, id)
		}
	}
	return ids
}
