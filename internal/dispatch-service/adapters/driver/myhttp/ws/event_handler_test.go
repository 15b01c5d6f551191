package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	websocketdto "ride-dispatch/internal/dispatch-service/core/domain/websocket_dto"
	"ride-dispatch/internal/dispatch-service/core/myerrors"
	"ride-dispatch/internal/dispatch-service/core/ports"

	"github.com/golang-jwt/jwt"
)

const testSecret = "test-secret"

type noopLogger struct{}

func (noopLogger) Debug(string, ...any)               {}
func (noopLogger) Info(string, ...any)                {}
func (noopLogger) Warn(string, ...any)                {}
func (noopLogger) Error(string, error, ...any)        {}
func (l noopLogger) Action(string) mylogger.Logger    { return l }
func (l noopLogger) With(...any) mylogger.Logger      { return l }
func (l noopLogger) WithGroup(string) mylogger.Logger { return l }

type stubPresence struct {
	reported  []websocketdto.LocationMessage
	statusSet map[string]string
	err       error
}

func newStubPresence() *stubPresence {
	return &stubPresence{statusSet: make(map[string]string)}
}

func (s *stubPresence) ReportLocation(_ context.Context, driverID string, lat, lng float64) error {
	s.reported = append(s.reported, websocketdto.LocationMessage{DriverID: driverID, Latitude: lat, Longitude: lng})
	return s.err
}

func (s *stubPresence) SetStatus(_ context.Context, driverID, status string) error {
	s.statusSet[driverID] = status
	return s.err
}

func (s *stubPresence) EligibleDriversFor(context.Context, model.Order) ([]model.Driver, error) {
	return nil, nil
}

func (s *stubPresence) Snapshot() []ports.DriverPosition { return nil }

func (s *stubPresence) MarkOfflineIfIdle(context.Context, string) error { return nil }

type stubMatcher struct {
	announced []string
	accepted  [][2]string
	order     model.Order
	err       error
}

func (s *stubMatcher) Announce(_ context.Context, orderID string) error {
	s.announced = append(s.announced, orderID)
	return s.err
}

func (s *stubMatcher) AttemptAccept(_ context.Context, orderID, driverID string) (model.Order, error) {
	s.accepted = append(s.accepted, [2]string{orderID, driverID})
	return s.order, s.err
}

func (s *stubMatcher) CatchUp(context.Context, string) {}

type stubOrders struct {
	active    model.Order
	activeErr error
	cancelled []string
	err       error
}

func (s *stubOrders) Accept(_ context.Context, orderID, _ string) (model.Order, error) {
	return s.active, s.err
}

func (s *stubOrders) Arrive(_ context.Context, orderID, _ string) (model.Order, error) {
	return s.active, s.err
}

func (s *stubOrders) Start(_ context.Context, orderID, _ string) (model.Order, error) {
	return s.active, s.err
}

func (s *stubOrders) Complete(_ context.Context, orderID, _ string) (model.Order, error) {
	return s.active, s.err
}

func (s *stubOrders) Cancel(_ context.Context, orderID, _, _, _ string) (model.Order, error) {
	s.cancelled = append(s.cancelled, orderID)
	return s.active, s.err
}

func (s *stubOrders) ActiveForClient(context.Context, string) (model.Order, error) {
	return s.active, s.activeErr
}

func (s *stubOrders) ActiveForDriver(context.Context, string) (model.Order, error) {
	return s.active, s.activeErr
}

func (s *stubOrders) AvailableFor(context.Context, string) ([]model.Order, error) {
	return nil, nil
}

type handlerEnv struct {
	presence *stubPresence
	matcher  *stubMatcher
	orders   *stubOrders
	eh       *EventHandler
}

func newHandlerEnv() *handlerEnv {
	env := &handlerEnv{
		presence: newStubPresence(),
		matcher:  &stubMatcher{},
		orders:   &stubOrders{},
	}
	env.eh = NewEventHandler(context.Background(), noopLogger{}, testSecret, env.presence, env.matcher, env.orders)
	return env
}

func driverClient(driverID string) *Client {
	c := NewClient(context.Background(), nil, nil)
	c.actorType = ActorDriver
	c.actorID = driverID
	c.userID = "u_" + driverID
	return c
}

func clientClient(userID string) *Client {
	c := NewClient(context.Background(), nil, nil)
	c.actorType = ActorClient
	c.actorID = userID
	c.userID = userID
	return c
}

func takeEvent(t *testing.T, c *Client) websocketdto.Event {
	t.Helper()
	select {
	case e := <-c.egress:
		return e
	default:
		t.Fatal("no event queued on egress")
		return websocketdto.Event{}
	}
}

func noEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case e := <-c.egress:
		t.Fatalf("unexpected event %s queued", e.Type)
	default:
	}
}

func mustEvent(t *testing.T, eventType string, payload any) websocketdto.Event {
	t.Helper()
	e, err := websocketdto.NewEvent(eventType, payload)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return e
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return token
}

func TestAuthenticateDriver(t *testing.T) {
	env := newHandlerEnv()

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "u1",
		"role":    "DRIVER",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	payload, _ := json.Marshal(websocketdto.AuthMessage{
		Token:    "Bearer " + token,
		Type:     ActorDriver,
		DriverID: "d1",
	})

	id, err := env.eh.Authenticate(payload)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.ActorType != ActorDriver || id.ActorID != "d1" || id.UserID != "u1" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestAuthenticateRejectsClientTokenOnDriverChannel(t *testing.T) {
	env := newHandlerEnv()

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "u1",
		"role":    "CLIENT",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	payload, _ := json.Marshal(websocketdto.AuthMessage{
		Token:    token,
		Type:     ActorDriver,
		DriverID: "d1",
	})

	if _, err := env.eh.Authenticate(payload); err == nil {
		t.Fatal("client token must not open a driver channel")
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	env := newHandlerEnv()

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "u1",
		"role":    "DRIVER",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	payload, _ := json.Marshal(websocketdto.AuthMessage{
		Token:    token,
		Type:     ActorDriver,
		DriverID: "d1",
	})

	if _, err := env.eh.Authenticate(payload); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	env := newHandlerEnv()

	token := signToken(t, "some-other-secret", jwt.MapClaims{
		"user_id": "u1",
		"role":    "DRIVER",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	payload, _ := json.Marshal(websocketdto.AuthMessage{
		Token:    token,
		Type:     ActorDriver,
		DriverID: "d1",
	})

	if _, err := env.eh.Authenticate(payload); err == nil {
		t.Fatal("token signed with a different secret accepted")
	}
}

func TestAuthenticateClient(t *testing.T) {
	env := newHandlerEnv()

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "u1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	payload, _ := json.Marshal(websocketdto.AuthMessage{Token: token, Type: ActorClient})
	id, err := env.eh.Authenticate(payload)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.ActorType != ActorClient || id.ActorID != "u1" {
		t.Fatalf("identity = %+v", id)
	}

	// the declared user id must match the token claim
	payload, _ = json.Marshal(websocketdto.AuthMessage{Token: token, Type: ActorClient, UserID: "somebody-else"})
	if _, err := env.eh.Authenticate(payload); err == nil {
		t.Fatal("user id mismatch accepted")
	}
}

func TestRouteUnknownTypeSendsError(t *testing.T) {
	env := newHandlerEnv()
	c := driverClient("d1")

	env.eh.Route(c, websocketdto.Event{Type: "order:teleport"})

	e := takeEvent(t, c)
	if e.Type != websocketdto.OutError {
		t.Fatalf("event type = %s, want %s", e.Type, websocketdto.OutError)
	}
}

func TestRouteLocationForwardsToPresence(t *testing.T) {
	env := newHandlerEnv()
	c := driverClient("d1")

	env.eh.Route(c, mustEvent(t, websocketdto.InLocation, websocketdto.LocationMessage{
		DriverID:  "d1",
		Latitude:  51.1,
		Longitude: 71.4,
	}))

	noEvent(t, c)
	if len(env.presence.reported) != 1 || env.presence.reported[0].DriverID != "d1" {
		t.Fatalf("reported = %+v", env.presence.reported)
	}
}

func TestRouteLocationIsDriverOnly(t *testing.T) {
	env := newHandlerEnv()
	c := clientClient("u1")

	env.eh.Route(c, mustEvent(t, websocketdto.InLocation, websocketdto.LocationMessage{
		DriverID: "d1",
		Latitude: 51.1,
	}))

	if e := takeEvent(t, c); e.Type != websocketdto.OutError {
		t.Fatalf("event type = %s, want %s", e.Type, websocketdto.OutError)
	}
	if len(env.presence.reported) != 0 {
		t.Fatal("client location report reached presence")
	}
}

func TestRouteLocationRejectsSpoofedDriverID(t *testing.T) {
	env := newHandlerEnv()
	c := driverClient("d1")

	env.eh.Route(c, mustEvent(t, websocketdto.InLocation, websocketdto.LocationMessage{
		DriverID: "d2",
		Latitude: 51.1,
	}))

	if e := takeEvent(t, c); e.Type != websocketdto.OutError {
		t.Fatalf("event type = %s, want %s", e.Type, websocketdto.OutError)
	}
}

func TestRouteAcceptWin(t *testing.T) {
	env := newHandlerEnv()
	env.matcher.order = model.Order{ID: "o1", Status: model.StatusAccepted, DriverID: "d1"}
	c := driverClient("d1")

	env.eh.Route(c, mustEvent(t, websocketdto.InOrderAccept, websocketdto.OrderActionMessage{
		OrderID:  "o1",
		DriverID: "d1",
	}))

	e := takeEvent(t, c)
	if e.Type != websocketdto.OutAcceptSuccess {
		t.Fatalf("event type = %s, want %s", e.Type, websocketdto.OutAcceptSuccess)
	}
	var summary websocketdto.OrderSummary
	if err := json.Unmarshal(e.Data, &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.OrderID != "o1" || summary.Status != model.StatusAccepted {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRouteAcceptLossCarriesConflictCode(t *testing.T) {
	env := newHandlerEnv()
	env.matcher.err = fmt.Errorf("%w: order o1 no longer available", myerrors.ErrConflict)
	c := driverClient("d1")

	env.eh.Route(c, mustEvent(t, websocketdto.InOrderAccept, websocketdto.OrderActionMessage{
		OrderID:  "o1",
		DriverID: "d1",
	}))

	e := takeEvent(t, c)
	if e.Type != websocketdto.OutAcceptError {
		t.Fatalf("event type = %s, want %s", e.Type, websocketdto.OutAcceptError)
	}
	var p websocketdto.ErrorPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Code != 409 {
		t.Fatalf("code = %d, want 409", p.Code)
	}
}

func TestRouteJoinResyncsCurrentStatus(t *testing.T) {
	env := newHandlerEnv()
	env.orders.active = model.Order{ID: "o1", Status: model.StatusArrived, DriverID: "d1"}
	c := driverClient("d1")

	env.eh.Route(c, mustEvent(t, websocketdto.InOrderJoin, websocketdto.OrderIDMessage{OrderID: "o1"}))

	e := takeEvent(t, c)
	if e.Type != websocketdto.OutOrderStatus {
		t.Fatalf("event type = %s, want %s", e.Type, websocketdto.OutOrderStatus)
	}
	var update websocketdto.OrderStatusUpdate
	if err := json.Unmarshal(e.Data, &update); err != nil {
		t.Fatalf("unmarshal update: %v", err)
	}
	if update.Status != model.StatusArrived {
		t.Fatalf("status = %s, want ARRIVED", update.Status)
	}
}

func TestRouteJoinRejectsForeignOrder(t *testing.T) {
	env := newHandlerEnv()
	env.orders.activeErr = errors.New("no active order")
	c := clientClient("u1")

	env.eh.Route(c, mustEvent(t, websocketdto.InOrderJoin, websocketdto.OrderIDMessage{OrderID: "o1"}))

	if e := takeEvent(t, c); e.Type != websocketdto.OutError {
		t.Fatalf("event type = %s, want %s", e.Type, websocketdto.OutError)
	}
}

func TestRouteCancelPassesThrough(t *testing.T) {
	env := newHandlerEnv()
	c := clientClient("u1")

	env.eh.Route(c, mustEvent(t, websocketdto.InOrderCancel, websocketdto.OrderCancelMessage{
		OrderID: "o1",
		Reason:  "waited too long",
	}))

	noEvent(t, c)
	if len(env.orders.cancelled) != 1 || env.orders.cancelled[0] != "o1" {
		t.Fatalf("cancelled = %v", env.orders.cancelled)
	}
}
