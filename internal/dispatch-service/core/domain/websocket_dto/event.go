package websocketdto

import "encoding/json"

// Event is the wire envelope in both directions: a tag plus a raw payload
// decoded once the tag is known. Unknown tags are rejected at the boundary.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound command tags.
const (
	InAuth         = "auth"
	InLocation     = "driver:location"
	InDriverStatus = "driver:status"
	InOrderNew     = "order:new"
	InOrderAccept  = "order:accept"
	InOrderArrived = "order:arrived"
	InOrderStart   = "order:start"
	InOrderDone    = "order:complete"
	InOrderCancel  = "order:cancel"
	InOrderJoin    = "order:join"
	InOrderLeave   = "order:leave"
)

// Outbound event tags.
const (
	OutAuthSuccess    = "auth:success"
	OutAuthError      = "auth:error"
	OutOrderAvailable = "order:available"
	OutOrderTaken     = "order:taken"
	OutOrderAccepted  = "order:accepted"
	OutAcceptSuccess  = "order:accept:success"
	OutAcceptError    = "order:accept:error"
	OutOrderStatus    = "order:status"
	OutOrderCompleted = "order:completed"
	OutOrderCancelled = "order:cancelled"
	OutLocationUpdate = "driver:location:update"
	OutDriversMap     = "drivers:locations"
	OutError          = "error"
)

func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: data}, nil
}
