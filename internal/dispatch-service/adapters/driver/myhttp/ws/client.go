package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	websocketdto "ride-dispatch/internal/dispatch-service/core/domain/websocket_dto"

	"github.com/gorilla/websocket"
)

const (
	authTimeout    = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
	egressBuffer   = 32
)

const (
	ActorDriver = "driver"
	ActorClient = "client"
)

// Client is one upgraded connection. It implements ports.Channel: Send
// queues on the egress channel drained by the write pump, so all writes to
// the socket come from a single goroutine.
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
	dis    *Dispatcher
	egress chan websocketdto.Event
	gone   atomic.Bool

	actorType string // ActorDriver or ActorClient
	actorID   string // driver id or client user id
	userID    string // a driver's owning user id
}

func NewClient(ctx context.Context, conn *websocket.Conn, dis *Dispatcher) *Client {
	cctx, cancel := context.WithCancel(ctx)
	return &Client{
		ctx:    cctx,
		cancel: cancel,
		conn:   conn,
		dis:    dis,
		egress: make(chan websocketdto.Event, egressBuffer),
	}
}

// Send is fire-and-forget: a full egress buffer means a peer too slow to
// matter, the event is dropped rather than blocking the caller.
func (c *Client) Send(e websocketdto.Event) {
	if c.gone.Load() {
		return
	}
	select {
	case c.egress <- e:
	default:
	}
}

func (c *Client) IsConnected() bool {
	return !c.gone.Load()
}

func (c *Client) Close() error {
	c.gone.Store(true)
	c.cancel()
	return c.conn.Close()
}

func (c *Client) ReadMessages() {
	defer c.dis.dropClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.dis.log.Action("ReadMessages").Warn("unexpected close", "actor", c.actorID)
			}
			return
		}

		var event websocketdto.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			c.dis.handler.SendError(c, "malformed event envelope")
			continue
		}
		c.dis.handler.Route(c, event)
	}
}

func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case event, ok := <-c.egress:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.dis.log.Action("WriteMessages").Warn("write failed", "actor", c.actorID)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
