package ports

import websocketdto "ride-dispatch/internal/dispatch-service/core/domain/websocket_dto"

// Channel is one live bidirectional connection. Send is fire-and-forget:
// a write that cannot be delivered is dropped, callers never block on a
// slow or dead peer.
type Channel interface {
	Send(e websocketdto.Event)
	IsConnected() bool
	Close() error
}
