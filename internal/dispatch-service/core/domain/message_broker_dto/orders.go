package messagebrokerdto

// OrderCreated is published by the order-creation collaborator once an
// order row is durable; the matcher consumes it and starts dispatch.
type OrderCreated struct {
	OrderID       string `json:"order_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// OrderStatus is the lifecycle event fanned out to the topic exchange for
// dashboards and audit consumers.
type OrderStatus struct {
	OrderID       string  `json:"order_id"`
	Status        string  `json:"status"`
	DriverID      string  `json:"driver_id,omitempty"`
	ClientID      string  `json:"client_id"`
	FinalPrice    float64 `json:"final_price,omitempty"`
	CancelledBy   string  `json:"cancelled_by,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	Timestamp     string  `json:"timestamp"`
	CorrelationID string  `json:"correlation_id"`
}
