package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	websocketdto "ride-dispatch/internal/dispatch-service/core/domain/websocket_dto"
	"ride-dispatch/internal/dispatch-service/core/myerrors"
	"ride-dispatch/internal/dispatch-service/core/ports"

	"github.com/golang-jwt/jwt"
)

const handleTimeout = 15 * time.Second

type Identity struct {
	ActorType string
	ActorID   string
	UserID    string
}

// EventHandler decodes inbound commands and routes them to the core
// services. Tags are matched exhaustively; an unknown tag is a validation
// error, not a silent drop.
type EventHandler struct {
	ctx         context.Context
	log         mylogger.Logger
	accessToken string

	presence ports.IPresence
	matcher  ports.IMatcher
	orders   ports.IOrdersService
}

func NewEventHandler(
	ctx context.Context,
	log mylogger.Logger,
	accessToken string,
	presence ports.IPresence,
	matcher ports.IMatcher,
	orders ports.IOrdersService,
) *EventHandler {
	return &EventHandler{
		ctx:         ctx,
		log:         log,
		accessToken: accessToken,
		presence:    presence,
		matcher:     matcher,
		orders:      orders,
	}
}

// Authenticate turns the auth payload into a verified identity: parse the
// JWT, check expiry, check the declared ids against the claims.
func (eh *EventHandler) Authenticate(data json.RawMessage) (Identity, error) {
	var msg websocketdto.AuthMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Identity{}, fmt.Errorf("malformed auth payload")
	}

	tokenString := strings.TrimPrefix(msg.Token, "Bearer ")
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(eh.accessToken), nil
	})
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("cannot read claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return Identity{}, fmt.Errorf("no user_id claim")
	}

	exp, ok := claims["exp"].(float64)
	if !ok || time.Now().Unix() > int64(exp) {
		return Identity{}, fmt.Errorf("token expired")
	}

	switch msg.Type {
	case ActorDriver:
		if msg.DriverID == "" {
			return Identity{}, fmt.Errorf("no driver_id")
		}
		if role, _ := claims["role"].(string); role != "DRIVER" {
			return Identity{}, fmt.Errorf("token is not a driver token")
		}
		return Identity{ActorType: ActorDriver, ActorID: msg.DriverID, UserID: userID}, nil

	case ActorClient:
		if msg.UserID != "" && msg.UserID != userID {
			return Identity{}, fmt.Errorf("user id mismatch")
		}
		return Identity{ActorType: ActorClient, ActorID: userID, UserID: userID}, nil

	default:
		return Identity{}, fmt.Errorf("unknown channel type %q", msg.Type)
	}
}

// Route dispatches one inbound command from an authenticated channel.
func (eh *EventHandler) Route(c *Client, event websocketdto.Event) {
	ctx, cancel := context.WithTimeout(eh.ctx, handleTimeout)
	defer cancel()

	switch event.Type {
	case websocketdto.InAuth:
		// already authenticated, re-auth is a no-op

	case websocketdto.InLocation:
		eh.handleLocation(ctx, c, event.Data)

	case websocketdto.InDriverStatus:
		eh.handleDriverStatus(ctx, c, event.Data)

	case websocketdto.InOrderNew:
		eh.handleOrderNew(ctx, c, event.Data)

	case websocketdto.InOrderAccept:
		eh.handleAccept(ctx, c, event.Data)

	case websocketdto.InOrderArrived:
		eh.handleTransition(ctx, c, event.Data, eh.orders.Arrive)

	case websocketdto.InOrderStart:
		eh.handleTransition(ctx, c, event.Data, eh.orders.Start)

	case websocketdto.InOrderDone:
		eh.handleTransition(ctx, c, event.Data, eh.orders.Complete)

	case websocketdto.InOrderCancel:
		eh.handleCancel(ctx, c, event.Data)

	case websocketdto.InOrderJoin:
		eh.handleJoin(ctx, c, event.Data)

	case websocketdto.InOrderLeave:
		// nothing to tear down: targeting is by actor id, not rooms

	default:
		eh.SendError(c, fmt.Sprintf("unknown event type %q", event.Type))
	}
}

func (eh *EventHandler) handleLocation(ctx context.Context, c *Client, data json.RawMessage) {
	var msg websocketdto.LocationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		eh.SendError(c, "malformed location payload")
		return
	}
	if c.actorType != ActorDriver || msg.DriverID != c.actorID {
		eh.SendError(c, "location reports are driver-only")
		return
	}
	if err := eh.presence.ReportLocation(ctx, msg.DriverID, msg.Latitude, msg.Longitude); err != nil {
		eh.SendError(c, err.Error())
	}
}

func (eh *EventHandler) handleDriverStatus(ctx context.Context, c *Client, data json.RawMessage) {
	var msg websocketdto.DriverStatusMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		eh.SendError(c, "malformed status payload")
		return
	}
	if c.actorType != ActorDriver || msg.DriverID != c.actorID {
		eh.SendError(c, "status pushes are driver-only")
		return
	}
	if err := eh.presence.SetStatus(ctx, msg.DriverID, msg.Status); err != nil {
		eh.SendError(c, err.Error())
	}
}

func (eh *EventHandler) handleOrderNew(ctx context.Context, c *Client, data json.RawMessage) {
	var msg websocketdto.OrderIDMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		eh.SendError(c, "malformed order payload")
		return
	}
	if err := eh.matcher.Announce(ctx, msg.OrderID); err != nil {
		eh.SendError(c, err.Error())
	}
}

func (eh *EventHandler) handleAccept(ctx context.Context, c *Client, data json.RawMessage) {
	var msg websocketdto.OrderActionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		eh.SendError(c, "malformed accept payload")
		return
	}
	if c.actorType != ActorDriver || msg.DriverID != c.actorID {
		eh.SendError(c, "accept is driver-only")
		return
	}

	order, err := eh.matcher.AttemptAccept(ctx, msg.OrderID, msg.DriverID)
	if err != nil {
		// the loser of the race gets an immediate no-longer-available
		payload := websocketdto.ErrorPayload{Message: err.Error(), Code: myerrors.HTTPStatus(err)}
		if out, merr := websocketdto.NewEvent(websocketdto.OutAcceptError, payload); merr == nil {
			c.Send(out)
		}
		return
	}

	if out, merr := websocketdto.NewEvent(websocketdto.OutAcceptSuccess, orderSummaryFor(order)); merr == nil {
		c.Send(out)
	}
}

func (eh *EventHandler) handleTransition(
	ctx context.Context,
	c *Client,
	data json.RawMessage,
	do func(ctx context.Context, orderID, driverID string) (model.Order, error),
) {
	var msg websocketdto.OrderActionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		eh.SendError(c, "malformed transition payload")
		return
	}
	if c.actorType != ActorDriver || msg.DriverID != c.actorID {
		eh.SendError(c, "transitions are driver-only")
		return
	}
	if _, err := do(ctx, msg.OrderID, msg.DriverID); err != nil {
		eh.SendError(c, err.Error())
	}
}

func (eh *EventHandler) handleCancel(ctx context.Context, c *Client, data json.RawMessage) {
	var msg websocketdto.OrderCancelMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		eh.SendError(c, "malformed cancel payload")
		return
	}
	if _, err := eh.orders.Cancel(ctx, msg.OrderID, c.actorID, c.actorType, msg.Reason); err != nil {
		eh.SendError(c, err.Error())
	}
}

// handleJoin is the pull-style resync: a party re-joining an order gets its
// current status pushed immediately, since missed events are never
// redelivered.
func (eh *EventHandler) handleJoin(ctx context.Context, c *Client, data json.RawMessage) {
	var msg websocketdto.OrderIDMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		eh.SendError(c, "malformed join payload")
		return
	}

	var order model.Order
	var err error
	if c.actorType == ActorDriver {
		order, err = eh.orders.ActiveForDriver(ctx, c.actorID)
	} else {
		order, err = eh.orders.ActiveForClient(ctx, c.actorID)
	}
	if err != nil || order.ID != msg.OrderID {
		eh.SendError(c, "no standing on this order")
		return
	}

	update := websocketdto.OrderStatusUpdate{OrderID: order.ID, Status: order.Status}
	if out, merr := websocketdto.NewEvent(websocketdto.OutOrderStatus, update); merr == nil {
		c.Send(out)
	}
}

func (eh *EventHandler) SendError(c *Client, message string) {
	event, err := websocketdto.NewEvent(websocketdto.OutError, websocketdto.ErrorPayload{Message: message})
	if err != nil {
		eh.log.Action("SendError").Error("cannot marshal error payload", err)
		return
	}
	c.Send(event)
}

func orderSummaryFor(o model.Order) websocketdto.OrderSummary {
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
