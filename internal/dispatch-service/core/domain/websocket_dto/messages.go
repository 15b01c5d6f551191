package websocketdto

// ---- inbound payloads ----

type AuthMessage struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id,omitempty"`
	DriverID string `json:"driver_id,omitempty"`
	Type     string `json:"type"` // "driver" or "client"
}

type LocationMessage struct {
	DriverID  string  `json:"driver_id"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

type DriverStatusMessage struct {
	DriverID string `json:"driver_id"`
	Status   string `json:"status"`
}

type OrderIDMessage struct {
	OrderID string `json:"order_id"`
}

type OrderActionMessage struct {
	OrderID  string `json:"order_id"`
	DriverID string `json:"driver_id"`
}

type OrderCancelMessage struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason,omitempty"`
}

// ---- outbound payloads ----

type OrderSummary struct {
	OrderID       string  `json:"order_id"`
	PickupLat     float64 `json:"pickup_lat"`
	PickupLng     float64 `json:"pickup_lng"`
	PickupAddress string  `json:"pickup_address"`
	DropoffLat    float64 `json:"dropoff_lat"`
	DropoffLng    float64 `json:"dropoff_lng"`
	DropoffAddr   string  `json:"dropoff_address"`
	DistanceKm    float64 `json:"distance_km"`
	Price         float64 `json:"price"`
	CarClass      string  `json:"car_class"`
	PaymentMethod string  `json:"payment_method"`
	Status        string  `json:"status"`
}

type DriverSummary struct {
	OrderID  string  `json:"order_id"`
	DriverID string  `json:"driver_id"`
	Name     string  `json:"name"`
	CarClass string  `json:"car_class"`
	Rating   float64 `json:"rating"`
}

type OrderTaken struct {
	OrderID string `json:"order_id"`
}

type OrderStatusUpdate struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type OrderCompleted struct {
	OrderID    string  `json:"order_id"`
	FinalPrice float64 `json:"final_price"`
}

type OrderCancelled struct {
	OrderID     string `json:"order_id"`
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}

type DriverLocationUpdate struct {
	OrderID   string  `json:"order_id"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

type DriverPosition struct {
	DriverID  string  `json:"id"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}
