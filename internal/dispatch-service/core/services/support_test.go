package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	websocketdto "ride-dispatch/internal/dispatch-service/core/domain/websocket_dto"
	"ride-dispatch/internal/dispatch-service/core/myerrors"
	"ride-dispatch/internal/dispatch-service/core/ports"
)

// ---- test logger ----

type noopLogger struct{}

func (noopLogger) Debug(string, ...any)              {}
func (noopLogger) Info(string, ...any)               {}
func (noopLogger) Warn(string, ...any)               {}
func (noopLogger) Error(string, error, ...any)       {}
func (l noopLogger) Action(string) mylogger.Logger   { return l }
func (l noopLogger) With(...any) mylogger.Logger     { return l }
func (l noopLogger) WithGroup(string) mylogger.Logger { return l }

// ---- in-memory orders repo with the same CAS semantics as the store ----

type fakeOrdersRepo struct {
	mu      sync.Mutex
	orders  map[string]model.Order
	history []model.StatusHistory
}

func newFakeOrdersRepo() *fakeOrdersRepo {
	return &fakeOrdersRepo{orders: make(map[string]model.Order)}
}

func (r *fakeOrdersRepo) put(o model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
}

func (r *fakeOrdersRepo) GetOrder(_ context.Context, orderID string) (model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return model.Order{}, fmt.Errorf("%w: order %s", myerrors.ErrNotFound, orderID)
	}
	return o, nil
}

func (r *fakeOrdersRepo) UpdateOrderStatus(_ context.Context, orderID, expected string, patch ports.OrderPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || o.Status != expected {
		return false, nil
	}

	o.Status = patch.Status
	if patch.DriverID != nil {
		o.DriverID = *patch.DriverID
	}
	if patch.FinalPrice != nil {
		o.FinalPrice = *patch.FinalPrice
	}
	if patch.DurationMin != nil {
		o.DurationMin = *patch.DurationMin
	}
	if patch.AcceptedAt != nil {
		o.AcceptedAt = patch.AcceptedAt
	}
	if patch.ArrivedAt != nil {
		o.ArrivedAt = patch.ArrivedAt
	}
	if patch.StartedAt != nil {
		o.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		o.CompletedAt = patch.CompletedAt
	}
	if patch.CancelledAt != nil {
		o.CancelledAt = patch.CancelledAt
	}
	if patch.CancelReason != nil {
		o.CancelReason = *patch.CancelReason
	}
	if patch.CancelledBy != nil {
		o.CancelledBy = *patch.CancelledBy
	}
	r.orders[orderID] = o
	return true, nil
}

func (r *fakeOrdersRepo) AppendStatusHistory(_ context.Context, orderID, status, comment string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, model.StatusHistory{
		OrderID:   orderID,
		Status:    status,
		Comment:   comment,
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *fakeOrdersRepo) historyFor(orderID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, h := range r.history {
		if h.OrderID == orderID {
			out = append(out, h.Status)
		}
	}
	return out
}

func (r *fakeOrdersRepo) FindActiveByClient(_ context.Context, clientID string) (model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ClientID == clientID && !model.IsTerminalStatus(o.Status) {
			return o, nil
		}
	}
	return model.Order{}, fmt.Errorf("%w: no active order for client %s", myerrors.ErrNotFound, clientID)
}

func (r *fakeOrdersRepo) FindActiveByDriver(_ context.Context, driverID string) (model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.DriverID == driverID && !model.IsTerminalStatus(o.Status) {
			return o, nil
		}
	}
	return model.Order{}, fmt.Errorf("%w: no active order for driver %s", myerrors.ErrNotFound, driverID)
}

func (r *fakeOrdersRepo) FindPendingOrders(_ context.Context, limit int) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Order
	for _, o := range r.orders {
		if o.Status == model.StatusPending {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- in-memory drivers repo ----

type fakeDriversRepo struct {
	mu      sync.Mutex
	drivers map[string]model.Driver
}

func newFakeDriversRepo() *fakeDriversRepo {
	return &fakeDriversRepo{drivers: make(map[string]model.Driver)}
}

func (r *fakeDriversRepo) put(d model.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[d.ID] = d
}

func (r *fakeDriversRepo) get(driverID string) model.Driver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drivers[driverID]
}

func (r *fakeDriversRepo) GetDriver(_ context.Context, driverID string) (model.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[driverID]
	if !ok {
		return model.Driver{}, fmt.Errorf("%w: driver %s", myerrors.ErrNotFound, driverID)
	}
	return d, nil
}

func (r *fakeDriversRepo) UpdateDriverStatus(_ context.Context, driverID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[driverID]
	if !ok {
		return fmt.Errorf("%w: driver %s", myerrors.ErrNotFound, driverID)
	}
	d.Status = status
	r.drivers[driverID] = d
	return nil
}

func (r *fakeDriversRepo) UpdateDriverLocation(_ context.Context, driverID string, lat, lng float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[driverID]
	if !ok {
		return fmt.Errorf("%w: driver %s", myerrors.ErrNotFound, driverID)
	}
	d.Latitude, d.Longitude, d.LocatedAt = &lat, &lng, &at
	r.drivers[driverID] = d
	return nil
}

func (r *fakeDriversRepo) FindDriversByStatus(_ context.Context, status string) ([]model.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Driver
	for _, d := range r.drivers {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDriversRepo) ApplyTripCompletion(_ context.Context, driverID string, earnings float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[driverID]
	if !ok {
		return fmt.Errorf("%w: driver %s", myerrors.ErrNotFound, driverID)
	}
	d.Status = model.DriverOnline
	d.TotalTrips++
	d.Earnings += earnings
	r.drivers[driverID] = d
	return nil
}

// ---- payments / reviews ----

type fakePaymentsRepo struct {
	mu       sync.Mutex
	payments []model.Payment
}

func (r *fakePaymentsRepo) CreatePayment(_ context.Context, p model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = append(r.payments, p)
	return nil
}

func (r *fakePaymentsRepo) all() []model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Payment(nil), r.payments...)
}

type fakeReviewsRepo struct {
	mu      sync.Mutex
	reviews []model.Review
	ratings map[string]float64
}

func newFakeReviewsRepo() *fakeReviewsRepo {
	return &fakeReviewsRepo{ratings: make(map[string]float64)}
}

func (r *fakeReviewsRepo) AddReview(_ context.Context, rev model.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews = append(r.reviews, rev)
	return nil
}

func (r *fakeReviewsRepo) RatingsFor(_ context.Context, targetID string) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, rev := range r.reviews {
		if rev.TargetID == targetID {
			out = append(out, rev.Rating)
		}
	}
	return out, nil
}

func (r *fakeReviewsRepo) SetRating(_ context.Context, targetID string, rating float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ratings[targetID] = rating
	return nil
}

// ---- channel ----

type fakeChannel struct {
	mu        sync.Mutex
	events    []websocketdto.Event
	connected bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{connected: true}
}

func (c *fakeChannel) Send(e websocketdto.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *fakeChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *fakeChannel) eventsOfType(eventType string) []websocketdto.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []websocketdto.Event
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// ---- wired environment ----

type testEnv struct {
	orders   *fakeOrdersRepo
	drivers  *fakeDriversRepo
	payments *fakePaymentsRepo
	reviews  *fakeReviewsRepo

	registry *Registry
	presence *Presence
	fanout   *Fanout
	service  *OrdersService
	matcher  *Matcher
}

func newTestEnv(ctx context.Context) *testEnv {
	log := noopLogger{}

	env := &testEnv{
		orders:   newFakeOrdersRepo(),
		drivers:  newFakeDriversRepo(),
		payments: &fakePaymentsRepo{},
		reviews:  newFakeReviewsRepo(),
	}

	env.registry = NewRegistry(log)
	env.fanout = NewFanout(log, env.registry, nil)
	env.presence = NewPresence(ctx, log, env.registry, env.orders, env.drivers, env.fanout)
	env.registry.SetPresence(env.presence)
	env.service = NewOrdersService(ctx, log, env.orders, env.drivers, env.payments, env.fanout)
	env.matcher = NewMatcher(log, env.orders, env.service, env.presence, env.drivers, env.fanout)
	env.service.OnOrderAbandoned = env.matcher.Abandon
	return env
}

func pendingOrder(id, clientID string, class model.CarClass) model.Order {
	return model.Order{
		ID:            id,
		ClientID:      clientID,
		Pickup:        model.Location{Latitude: 51.1, Longitude: 71.4, Address: "Mangilik Yel 55"},
		Dropoff:       model.Location{Latitude: 51.2, Longitude: 71.5, Address: "Turan 37"},
		DistanceKm:    7.5,
		Price:         1800,
		CarClass:      class,
		PaymentMethod: model.PaymentMethodCash,
		Status:        model.StatusPending,
		CreatedAt:     time.Now(),
	}
}

func onlineDriver(id string, class model.CarClass) model.Driver {
	return model.Driver{
		ID:       id,
		UserID:   "u_" + id,
		Name:     "driver " + id,
		CarClass: class,
		Status:   model.DriverOnline,
		Verified: true,
		Rating:   4.8,
	}
}
