package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"ride-dispatch/internal/mylogger"

	websocketdto "ride-dispatch/internal/dispatch-service/core/domain/websocket_dto"
	"ride-dispatch/internal/dispatch-service/core/ports"

	"github.com/gorilla/websocket"
)

// websocketUpgrader turns incoming HTTP requests into persistent websocket
// connections.
var websocketUpgrader = websocket.Upgrader{
	// TODO: restrict CheckOrigin once the app origins are pinned down
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Dispatcher owns the ws endpoint: upgrade, the auth window, and handing
// authenticated channels to the connection registry.
type Dispatcher struct {
	ctx      context.Context
	log      mylogger.Logger
	registry ports.IRegistry
	handler  *EventHandler
}

func NewDispatcher(ctx context.Context, log mylogger.Logger, registry ports.IRegistry, handler *EventHandler) *Dispatcher {
	return &Dispatcher{
		ctx:      ctx,
		log:      log,
		registry: registry,
		handler:  handler,
	}
}

// WsHandler upgrades the request and runs the auth handshake: the first
// frame must be an auth command within the auth window, anything else
// closes the socket.
func (d *Dispatcher) WsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := d.log.Action("WsHandler")

		conn, err := websocketUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("cannot upgrade", err)
			return
		}

		conn.SetReadDeadline(time.Now().Add(authTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}

		var event websocketdto.Event
		if err := json.Unmarshal(payload, &event); err != nil || event.Type != websocketdto.InAuth {
			d.rejectAuth(conn, "first frame must be auth")
			return
		}

		identity, err := d.handler.Authenticate(event.Data)
		if err != nil {
			log.Warn("auth rejected", "reason", err.Error())
			d.rejectAuth(conn, err.Error())
			return
		}

		// The client, and the context node it hangs off d.ctx, only exists
		// for handshakes that made it past authentication.
		client := NewClient(d.ctx, conn, d)
		client.actorType = identity.ActorType
		client.actorID = identity.ActorID
		client.userID = identity.UserID

		switch identity.ActorType {
		case ActorDriver:
			d.registry.RegisterDriver(d.ctx, identity.ActorID, identity.UserID, client)
		case ActorClient:
			d.registry.RegisterClient(identity.ActorID, client)
		}

		go client.ReadMessages()
		go client.WriteMessages()

		success, _ := websocketdto.NewEvent(websocketdto.OutAuthSuccess, map[string]string{"id": identity.ActorID})
		client.Send(success)

		log.Info("channel authenticated", "actor_type", identity.ActorType, "actor_id", identity.ActorID)
	}
}

func (d *Dispatcher) rejectAuth(conn *websocket.Conn, reason string) {
	event, err := websocketdto.NewEvent(websocketdto.OutAuthError, websocketdto.ErrorPayload{Message: reason})
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(event)
	}
	conn.Close()
}

// dropClient runs when a read pump exits: close the socket and let the
// registry apply the disconnect rule.
func (d *Dispatcher) dropClient(c *Client) {
	c.Close()
	d.registry.UnregisterByChannel(d.ctx, c)
}
